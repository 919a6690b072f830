package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SocialAccount links an external identity to a local user. The (provider,
// provider_id) pair is unique; the same external identity can never attach to
// two users.
type SocialAccount struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider      string         `gorm:"size:50;not null;uniqueIndex:idx_social_provider_id" json:"provider"`
	ProviderID    string         `gorm:"size:255;not null;uniqueIndex:idx_social_provider_id" json:"-"`
	ProviderEmail string         `gorm:"size:255" json:"provider_email,omitempty"`
	ProviderData  datatypes.JSON `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	User          User           `gorm:"foreignKey:UserID" json:"-"`
}
