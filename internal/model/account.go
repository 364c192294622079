package model

import (
	"time"

	"gorm.io/gorm"
)

// Account roles. Virtual accounts exist for simulated trainees and cannot
// authenticate against the management API.
const (
	RoleAdmin   = "admin"
	RoleUser    = "user"
	RoleVirtual = "virtual"
)

// Account represents an organization/tenant identity. Every protected
// resource in the system carries exactly one owning account id.
type Account struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Email           string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password        string         `json:"-" gorm:"type:varchar(255)"`
	CompanyName     string         `json:"company_name" gorm:"type:varchar(200)"`
	Role            string         `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	Active          bool           `json:"active" gorm:"default:true"`
	MaxVirtualUsers int            `json:"max_virtual_users" gorm:"default:10"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}
