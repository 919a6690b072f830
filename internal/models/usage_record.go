package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Usage event types with recognized counter side effects.
const (
	UsageAPICall = "api_call"
	UsageStorage = "storage"
)

// UsageRecord is an append-only usage event. Records are immutable once
// written and are aggregated for reporting; the fast-path rate-limit checks
// read the denormalized counters on User instead.
type UsageRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_usage_user_type_time" json:"user_id"`
	Type       string         `gorm:"size:50;not null;index:idx_usage_user_type_time" json:"type"`
	Quantity   int            `gorm:"not null;default:1" json:"quantity"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	RecordedAt time.Time      `gorm:"not null;index:idx_usage_user_type_time" json:"recorded_at"`
	User       User           `gorm:"foreignKey:UserID" json:"-"`
}
