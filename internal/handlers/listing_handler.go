package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
)

type ListingHandler struct {
	listings repository.ListingRepository
}

func NewListingHandler(listings repository.ListingRepository) *ListingHandler {
	return &ListingHandler{listings: listings}
}

func (h *ListingHandler) List(c *fiber.Ctx) error {
	limit, offset := pagination(c)

	user := middleware.CurrentUser(c)
	listings, total, err := h.listings.ListForUser(c.Context(), user.ID, limit, offset)
	if err != nil {
		return internalError(c, err)
	}

	out := make([]dto.ListingResponse, len(listings))
	for i := range listings {
		out[i] = dto.NewListingResponse(&listings[i])
	}
	return c.JSON(dto.OK(fiber.Map{
		"listings": out,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	}))
}

func (h *ListingHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Title == "" || req.Species == "" {
		return badRequest(c, "Title and species are required")
	}
	if req.VolumeM3 <= 0 || req.PriceCents < 0 {
		return badRequest(c, "Volume must be positive and price non-negative")
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	user := middleware.CurrentUser(c)
	listing := &models.TimberListing{
		ID:          uuid.New(),
		UserID:      user.ID,
		Title:       req.Title,
		Description: req.Description,
		Species:     req.Species,
		VolumeM3:    req.VolumeM3,
		PriceCents:  req.PriceCents,
		Currency:    currency,
		Status:      "active",
	}
	if err := h.listings.Create(c.Context(), listing); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK(dto.NewListingResponse(listing)))
}

func (h *ListingHandler) Update(c *fiber.Ctx) error {
	listing, err := h.ownedListing(c)
	if listing == nil {
		return err
	}

	var req dto.UpdateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Species != nil {
		listing.Species = *req.Species
	}
	if req.VolumeM3 != nil {
		listing.VolumeM3 = *req.VolumeM3
	}
	if req.PriceCents != nil {
		listing.PriceCents = *req.PriceCents
	}
	if req.Status != nil {
		switch *req.Status {
		case "active", "sold", "withdrawn":
			listing.Status = *req.Status
		default:
			return badRequest(c, "Status must be active, sold or withdrawn")
		}
	}

	if err := h.listings.Update(c.Context(), listing); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OK(dto.NewListingResponse(listing)))
}

func (h *ListingHandler) Delete(c *fiber.Ctx) error {
	listing, err := h.ownedListing(c)
	if listing == nil {
		return err
	}
	if err := h.listings.Delete(c.Context(), listing.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Listing deleted"))
}

// ownedListing loads the path listing and hides other users' rows behind a
// 404. A nil listing means the response has already been written.
func (h *ListingHandler) ownedListing(c *fiber.Ctx) (*models.TimberListing, error) {
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, badRequest(c, "Invalid listing id")
	}

	listing, err := h.listings.ByID(c.Context(), listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(dto.Fail("Listing not found"))
		}
		return nil, internalError(c, err)
	}

	user := middleware.CurrentUser(c)
	if listing.UserID != user.ID && user.Role != "admin" {
		return nil, c.Status(fiber.StatusNotFound).JSON(dto.Fail("Listing not found"))
	}
	return listing, nil
}
