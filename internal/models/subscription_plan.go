package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SubscriptionPlan is a catalog row describing a purchasable tier. The
// catalog is read-only here; payment sync happens outside this service and
// lands as a role change on the user.
type SubscriptionPlan struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Slug                string         `gorm:"size:50;not null;uniqueIndex" json:"slug"`
	Name                string         `gorm:"size:100;not null" json:"name"`
	Description         string         `gorm:"type:text" json:"description,omitempty"`
	PriceCents          int64          `json:"price_cents"`
	YearlyPriceCents    int64          `json:"yearly_price_cents,omitempty"`
	Features            datatypes.JSON `json:"features"`
	APILimit            int            `json:"api_limit"`
	StorageLimitMB      int64          `json:"storage_limit_mb"`
	TimberListingsLimit int            `json:"timber_listings_limit"`
	ServicesLimit       int            `json:"services_limit"`
	IsActive            bool           `gorm:"default:true;index" json:"is_active"`
	SortOrder           int            `gorm:"default:0" json:"sort_order"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}
