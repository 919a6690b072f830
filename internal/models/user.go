package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/bkaraoglu/timberline-api/internal/roles"
)

// User is the identity record. It carries only data; role resolution, token
// lifecycle, two-factor state transitions and usage counting live in their
// own services.
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Surname     string     `gorm:"size:100" json:"surname,omitempty"`
	Email       string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password    string     `gorm:"not null" json:"-"`
	Phone       string     `gorm:"size:30" json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Avatar      string     `gorm:"type:text" json:"avatar,omitempty"`

	Role            roles.Role `gorm:"size:20;not null;default:'free';index:idx_users_role_active" json:"role"`
	IsActive        bool       `gorm:"default:true;index:idx_users_role_active" json:"is_active"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	TwoFactorEnabled       bool           `gorm:"default:false" json:"two_factor_enabled"`
	TwoFactorSecret        string         `gorm:"type:text" json:"-"`
	TwoFactorRecoveryCodes datatypes.JSON `json:"-"`
	TwoFactorConfirmedAt   *time.Time     `json:"-"`

	// Denormalized rolling counters for O(1) rate-limit checks. The hourly
	// window resets lazily on the first tracked call after it elapses.
	APICallsThisHour int        `gorm:"default:0" json:"-"`
	APICallsResetAt  *time.Time `json:"-"`
	TotalAPICalls    int64      `gorm:"default:0" json:"-"`
	StorageUsedBytes int64      `gorm:"default:0" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `gorm:"size:45" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// RecoveryCodes decodes the stored recovery-code set. An empty or absent
// column yields an empty slice.
func (u *User) RecoveryCodes() []string {
	if len(u.TwoFactorRecoveryCodes) == 0 {
		return nil
	}
	var codes []string
	if err := json.Unmarshal(u.TwoFactorRecoveryCodes, &codes); err != nil {
		return nil
	}
	return codes
}
