package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

type TokenHandler struct {
	tokens      *services.TokenService
	authService *services.AuthService
}

func NewTokenHandler(tokens *services.TokenService, authService *services.AuthService) *TokenHandler {
	return &TokenHandler{tokens: tokens, authService: authService}
}

func (h *TokenHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	tokens, err := h.tokens.ListForUser(c.Context(), user.ID)
	if err != nil {
		return internalError(c, err)
	}

	out := make([]dto.TokenResponse, len(tokens))
	for i := range tokens {
		out[i] = dto.NewTokenResponse(&tokens[i])
	}
	return c.JSON(dto.OK(out))
}

// Create issues a named API token. Requested abilities are clamped to what
// the user's role grants; asking only for abilities outside the role is an
// error rather than a silently empty token.
func (h *TokenHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "Token name is required")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return badRequest(c, "expires_at must be in the future")
	}

	user := middleware.CurrentUser(c)
	token, plaintext, err := h.authService.CreateNamedToken(c.Context(), user, req.Name, req.Abilities, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusForbidden).JSON(dto.Fail("Requested abilities exceed your plan"))
		}
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.OK(dto.CreatedTokenResponse{
		Token:     dto.NewTokenResponse(token),
		Plaintext: plaintext,
	}))
}

// Revoke deletes one of the caller's tokens. A token belonging to someone
// else is indistinguishable from a missing one.
func (h *TokenHandler) Revoke(c *fiber.Ctx) error {
	tokenID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid token id")
	}

	user := middleware.CurrentUser(c)
	if _, err := h.tokens.Find(c.Context(), user.ID, tokenID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.Fail("Token not found"))
		}
		return internalError(c, err)
	}
	if err := h.tokens.Revoke(c.Context(), tokenID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Token revoked"))
}

func (h *TokenHandler) RevokeAll(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	token := middleware.CurrentToken(c)

	if err := h.tokens.RevokeAllExcept(c.Context(), user.ID, token.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("All other tokens revoked"))
}
