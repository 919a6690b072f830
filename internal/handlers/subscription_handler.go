package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
)

type SubscriptionHandler struct {
	plans repository.PlanRepository
}

func NewSubscriptionHandler(plans repository.PlanRepository) *SubscriptionHandler {
	return &SubscriptionHandler{plans: plans}
}

// Plans is public: the pricing page reads it before sign-up.
func (h *SubscriptionHandler) Plans(c *fiber.Ctx) error {
	plans, err := h.plans.ListActive(c.Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OK(plans))
}

func (h *SubscriptionHandler) Current(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	plan, err := h.plans.BySlug(c.Context(), string(user.Role))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return internalError(c, err)
	}

	payload := fiber.Map{
		"role":            user.Role,
		"role_label":      user.Role.Label(),
		"is_paid":         user.Role.IsPaid(),
		"upgrade_options": roles.UpgradeOptions(user.Role),
	}
	if plan != nil {
		payload["plan"] = plan
	}
	return c.JSON(dto.OK(payload))
}
