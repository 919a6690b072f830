package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimberListing is the marketplace resource guarded by the authorization
// gateway. The live count of a user's listings feeds the timber_listings
// feature limit.
type TimberListing struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Species     string         `gorm:"size:100" json:"species,omitempty"`
	VolumeM3    float64        `json:"volume_m3"`
	PriceCents  int64          `json:"price_cents"`
	Currency    string         `gorm:"size:3;default:'EUR'" json:"currency"`
	Status      string         `gorm:"size:20;default:'active';index" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	User        User           `gorm:"foreignKey:UserID" json:"-"`
}
