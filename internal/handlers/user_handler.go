package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

type UserHandler struct {
	users       repository.UserRepository
	authService *services.AuthService
	usage       *services.UsageService
}

func NewUserHandler(users repository.UserRepository, authService *services.AuthService, usage *services.UsageService) *UserHandler {
	return &UserHandler{users: users, authService: authService, usage: usage}
}

func (h *UserHandler) Show(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user := middleware.CurrentUser(c)
	fields := map[string]interface{}{}
	if req.Name != "" {
		fields["name"] = req.Name
		user.Name = req.Name
	}
	if req.Surname != "" {
		fields["surname"] = req.Surname
		user.Surname = req.Surname
	}
	if req.Phone != "" {
		fields["phone"] = req.Phone
		user.Phone = req.Phone
	}
	if req.Avatar != "" {
		fields["avatar"] = req.Avatar
		user.Avatar = req.Avatar
	}
	if req.DateOfBirth != nil {
		fields["date_of_birth"] = req.DateOfBirth
		user.DateOfBirth = req.DateOfBirth
	}
	if len(fields) == 0 {
		return badRequest(c, "Nothing to update")
	}

	if err := h.users.UpdateFields(c.Context(), user.ID, fields); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

func (h *UserHandler) UpdatePassword(c *fiber.Ctx) error {
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.NewPassword) < 8 {
		return badRequest(c, "New password must be at least 8 characters")
	}

	user := middleware.CurrentUser(c)
	token := middleware.CurrentToken(c)
	if err := h.authService.ChangePassword(c.Context(), user, req.CurrentPassword, req.NewPassword, token.ID); err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail(err.Error()))
		}
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Password updated; other sessions were signed out"))
}

func (h *UserHandler) Deactivate(c *fiber.Ctx) error {
	var req dto.DeactivateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user := middleware.CurrentUser(c)
	if err := h.authService.Deactivate(c.Context(), user, req.Password); err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail(err.Error()))
		}
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Account deactivated"))
}

func (h *UserHandler) Usage(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	snap, err := h.usage.Snapshot(c.Context(), user)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(dto.OK(dto.UsageResponse{
		APICallsThisHour: snap.APICallsThisHour,
		APICallsResetAt:  snap.APICallsResetAt,
		TotalAPICalls:    snap.TotalAPICalls,
		CallsToday:       snap.CallsToday,
		CallsThisMonth:   snap.CallsThisMonth,
		StorageUsedBytes: snap.StorageUsedBytes,
		StoragePercent:   snap.StoragePercent,
	}))
}

func (h *UserHandler) Limits(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(dto.OK(dto.LimitsResponse{
		Role:           user.Role,
		RoleLabel:      user.Role.Label(),
		Abilities:      roles.Abilities(user.Role),
		RateLimit:      roles.RateLimit(user.Role),
		StorageLimitMB: roles.StorageLimitMB(user.Role),
		FeatureLimits:  roles.FeatureLimits(user.Role),
	}))
}
