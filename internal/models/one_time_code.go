package models

import "time"

// OneTimeCode is one entry in the password-reset OTP ledger. Codes are
// six-digit numeric strings valid for a short window. Issuing a new code marks
// every prior unconsumed code for the same user consumed, so at most one code
// can succeed at any submission time.
type OneTimeCode struct {
	BaseModel

	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Code      string    `gorm:"not null;size:6" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	Consumed  bool      `gorm:"default:false" json:"consumed"`
}
