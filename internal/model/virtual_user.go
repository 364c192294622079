package model

import (
	"time"

	"gorm.io/gorm"
)

// VirtualUser is a simulated trainee belonging to an account. The number of
// virtual users per account is capped by Account.MaxVirtualUsers.
type VirtualUser struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	AccountID uint           `json:"account_id" gorm:"index;not null"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	AvatarID  string         `json:"avatar_id" gorm:"type:varchar(100)"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
