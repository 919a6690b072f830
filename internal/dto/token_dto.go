package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type CreateTokenRequest struct {
	Name      string     `json:"name"`
	Abilities []string   `json:"abilities,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type TokenResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Abilities  []string   `json:"abilities"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type CreatedTokenResponse struct {
	Token     TokenResponse `json:"token"`
	Plaintext string        `json:"plain_text_token"`
}

func NewTokenResponse(t *models.AccessToken) TokenResponse {
	return TokenResponse{
		ID:         t.ID,
		Name:       t.Name,
		Abilities:  t.AbilityList(),
		LastUsedAt: t.LastUsedAt,
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
	}
}
