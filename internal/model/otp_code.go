package model

import "time"

// OTP purposes.
const (
	OTPPurposePasswordReset = "password_reset"
)

// OTPCode is a short-lived one-time code. Expired and consumed rows are
// removed by the background sweeper.
type OTPCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"index;not null"`
	Code      string    `json:"-" gorm:"type:varchar(10);not null"`
	Purpose   string    `json:"purpose" gorm:"type:varchar(30);not null"`
	ExpiresAt time.Time `json:"expires_at"`
	Consumed  bool      `json:"consumed" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}
