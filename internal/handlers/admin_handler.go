package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

type AdminHandler struct {
	users       repository.UserRepository
	authService *services.AuthService
}

func NewAdminHandler(users repository.UserRepository, authService *services.AuthService) *AdminHandler {
	return &AdminHandler{users: users, authService: authService}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit, offset := pagination(c)

	users, total, err := h.users.List(c.Context(), limit, offset)
	if err != nil {
		return internalError(c, err)
	}

	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = dto.NewUserResponse(&users[i])
	}
	return c.JSON(dto.OK(fiber.Map{
		"users":  out,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}))
}

// UpdateUserRole moves a user to another tier and signs them out
// everywhere.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user id")
	}

	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.authService.ChangeUserRole(c.Context(), userID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRole):
			return badRequest(c, "Unknown role: "+string(req.Role))
		case errors.Is(err, repository.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.Fail("User not found"))
		}
		return internalError(c, err)
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

// ReactivateUser reverses a soft deactivation.
func (h *AdminHandler) ReactivateUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user id")
	}

	user, err := h.authService.ReactivateUser(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.Fail("User not found"))
		}
		return internalError(c, err)
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}
