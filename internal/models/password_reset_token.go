package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordResetToken is a single-use credential for the reset flow. It is
// consumed with a conditional update (used=false and unexpired), so a token
// can never be redeemed twice even under concurrent attempts.
type PasswordResetToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;index:idx_reset_email_hash" json:"email"`
	TokenHash string    `gorm:"size:64;not null;index:idx_reset_email_hash" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`
	IPAddress string    `gorm:"size:45" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailVerificationToken proves ownership of an address. Same consumption
// contract as the reset token.
type EmailVerificationToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;index:idx_verify_email_hash" json:"email"`
	TokenHash string    `gorm:"size:64;not null;index:idx_verify_email_hash" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
