package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type CreateListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Species     string  `json:"species"`
	VolumeM3    float64 `json:"volume_m3"`
	PriceCents  int64   `json:"price_cents"`
	Currency    string  `json:"currency,omitempty"`
}

type UpdateListingRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Species     *string  `json:"species,omitempty"`
	VolumeM3    *float64 `json:"volume_m3,omitempty"`
	PriceCents  *int64   `json:"price_cents,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

type ListingResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Species     string    `json:"species"`
	VolumeM3    float64   `json:"volume_m3"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewListingResponse(l *models.TimberListing) ListingResponse {
	return ListingResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Species:     l.Species,
		VolumeM3:    l.VolumeM3,
		PriceCents:  l.PriceCents,
		Currency:    l.Currency,
		Status:      l.Status,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
