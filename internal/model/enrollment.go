package model

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses.
const (
	EnrollmentStatusEnrolled   = "enrolled"
	EnrollmentStatusInProgress = "in_progress"
	EnrollmentStatusCompleted  = "completed"
	EnrollmentStatusGraduated  = "graduated"
)

// Enrollment links a virtual user to a course. Ownership is the account id,
// not the virtual user; authorization always compares against AccountID.
type Enrollment struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	AccountID     uint           `json:"account_id" gorm:"index;not null"`
	VirtualUserID uint           `json:"virtual_user_id" gorm:"index;not null"`
	CourseID      uint           `json:"course_id" gorm:"index;not null"`
	Status        string         `json:"status" gorm:"type:varchar(20);not null;default:'enrolled'"`
	Progress      int            `json:"progress" gorm:"default:0"`
	EnrolledAt    time.Time      `json:"enrolled_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
