package model

import (
	"time"

	"gorm.io/gorm"
)

// Course is an admin-managed training course available to all accounts.
type Course struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Title           string         `json:"title" gorm:"type:varchar(200);not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Category        string         `json:"category" gorm:"type:varchar(100);index"`
	DurationMinutes int            `json:"duration_minutes"`
	Active          bool           `json:"active" gorm:"default:true"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// CourseModule is one unit of a course, ordered by Sequence.
type CourseModule struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	CourseID        uint           `json:"course_id" gorm:"index;not null"`
	Title           string         `json:"title" gorm:"type:varchar(200);not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Sequence        int            `json:"sequence"`
	DurationMinutes int            `json:"duration_minutes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}
