package model

import (
	"time"

	"gorm.io/gorm"
)

// Device is a VR headset registered to an account.
type Device struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	AccountID    uint           `json:"account_id" gorm:"index;not null"`
	Name         string         `json:"name" gorm:"type:varchar(100);not null"`
	SerialNumber string         `json:"serial_number" gorm:"type:varchar(100);uniqueIndex"`
	Model        string         `json:"model" gorm:"type:varchar(100)"`
	Active       bool           `json:"active" gorm:"default:true"`
	LastSeenAt   *time.Time     `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
