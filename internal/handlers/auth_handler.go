package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return badRequest(c, "Name, email and password are required")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}

	auth, err := h.authService.Register(c.Context(), services.RegisterParams{
		Name:        strings.TrimSpace(req.Name),
		Surname:     strings.TrimSpace(req.Surname),
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return c.Status(fiber.StatusConflict).JSON(dto.Fail(err.Error()))
		}
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.OK(authResponse(auth)))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.authService.Login(c.Context(), services.LoginParams{
		Email:         req.Email,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
		RecoveryCode:  req.RecoveryCode,
		IP:            c.IP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail(err.Error()))
		case errors.Is(err, services.ErrInvalidTwoFactorCode):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail(err.Error()))
		case errors.Is(err, services.ErrAccountDisabled):
			return c.Status(fiber.StatusForbidden).JSON(dto.Fail(err.Error()))
		}
		return internalError(c, err)
	}

	if result.RequiresTwoFactor {
		return c.JSON(dto.Response{
			Success: false,
			Message: "Two-factor authentication code required",
			Data:    dto.TwoFactorChallengeResponse{RequiresTwoFactor: true},
		})
	}

	return c.JSON(dto.OK(authResponse(result.Auth)))
}

func (h *AuthHandler) GoogleSignIn(c *fiber.Ctx) error {
	var req dto.GoogleSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.IdentityToken == "" {
		return badRequest(c, "identity_token is required")
	}

	auth, err := h.authService.GoogleSignIn(c.Context(), req.IdentityToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail("Invalid identity token"))
		}
		if errors.Is(err, services.ErrAccountDisabled) {
			return c.Status(fiber.StatusForbidden).JSON(dto.Fail(err.Error()))
		}
		return internalError(c, err)
	}

	return c.JSON(dto.OK(authResponse(auth)))
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := middleware.CurrentToken(c)
	if err := h.authService.Logout(c.Context(), token.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Logged out successfully"))
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := h.authService.LogoutAll(c.Context(), user.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Logged out from all devices"))
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	token := middleware.CurrentToken(c)

	auth, err := h.authService.Refresh(c.Context(), user, token.ID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OK(authResponse(auth)))
}

// ForgotPassword answers the same way whether or not the address exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" {
		return badRequest(c, "Email is required")
	}

	if err := h.authService.ForgotPassword(c.Context(), req.Email, c.IP()); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("If the address exists, a reset link has been sent"))
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Token == "" || len(req.Password) < 8 {
		return badRequest(c, "Email, token and a password of at least 8 characters are required")
	}

	if err := h.authService.ResetPassword(c.Context(), req.Email, req.Token, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.Fail(err.Error()))
		}
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Password has been reset"))
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.authService.VerifyEmail(c.Context(), req.Email, req.Token); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.Fail("Invalid or expired verification token"))
		}
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Email address verified"))
}

func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user.EmailVerified() {
		return badRequest(c, "Email address is already verified")
	}
	h.authService.ResendVerification(c.Context(), user)
	return c.JSON(dto.OKMessage("Verification email sent"))
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	token := middleware.CurrentToken(c)
	return c.JSON(dto.OK(fiber.Map{
		"user":  dto.NewUserResponse(user),
		"token": dto.NewTokenResponse(token),
	}))
}

func authResponse(auth *services.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		User:      dto.NewUserResponse(auth.User),
		Token:     auth.Token,
		TokenType: auth.TokenType,
		ExpiresAt: auth.ExpiresAt,
		Abilities: auth.Abilities,
	}
}
