package model

import "time"

// Alert types. Anything outside this set is rejected on create.
const (
	AlertTypeTraining   = "training"
	AlertTypeCourse     = "course"
	AlertTypeModule     = "module"
	AlertTypeUser       = "user"
	AlertTypeEnrollment = "enrollment"
	AlertTypeGraduation = "graduation"
)

// Alert is a per-account notification record. Rows are append-only except
// for the read flag flip and explicit deletes.
type Alert struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"index;not null"`
	Type      string    `json:"type" gorm:"type:varchar(50);not null"`
	Title     string    `json:"title" gorm:"type:varchar(200);not null"`
	Message   string    `json:"message" gorm:"type:varchar(500)"`
	Read      bool      `json:"read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidAlertType reports whether t is one of the known alert types.
func ValidAlertType(t string) bool {
	switch t {
	case AlertTypeTraining, AlertTypeCourse, AlertTypeModule,
		AlertTypeUser, AlertTypeEnrollment, AlertTypeGraduation:
		return true
	}
	return false
}
