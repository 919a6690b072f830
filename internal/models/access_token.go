package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/bkaraoglu/timberline-api/internal/roles"
)

// AccessToken is a capability-bearing credential. Only the sha256 of the
// secret is stored; the plaintext leaves the ledger exactly once, at issue
// time, as "{id}|{secret}".
type AccessToken struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name       string         `gorm:"size:255;not null" json:"name"`
	TokenHash  string         `gorm:"uniqueIndex;not null;size:64" json:"-"`
	Abilities  datatypes.JSON `json:"abilities"`
	LastUsedAt *time.Time     `gorm:"index" json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	User       User           `gorm:"foreignKey:UserID" json:"-"`
}

// AbilityList decodes the abilities issued with the token. The snapshot is
// frozen at issuance; a later role change does not alter it.
func (t *AccessToken) AbilityList() []string {
	if len(t.Abilities) == 0 {
		return nil
	}
	var abilities []string
	if err := json.Unmarshal(t.Abilities, &abilities); err != nil {
		return nil
	}
	return abilities
}

// Can reports whether the token holds the ability, either exactly or through
// the wildcard.
func (t *AccessToken) Can(ability string) bool {
	for _, a := range t.AbilityList() {
		if a == roles.Wildcard || a == ability {
			return true
		}
	}
	return false
}

func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}
