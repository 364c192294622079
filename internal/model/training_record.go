package model

import (
	"time"

	"gorm.io/gorm"
)

// TrainingRecord captures one completed module session inside an enrollment.
type TrainingRecord struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	AccountID       uint           `json:"account_id" gorm:"index;not null"`
	EnrollmentID    uint           `json:"enrollment_id" gorm:"index;not null"`
	ModuleID        uint           `json:"module_id" gorm:"index;not null"`
	Score           int            `json:"score"`
	DurationSeconds int            `json:"duration_seconds"`
	CompletedAt     time.Time      `json:"completed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}
