package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

const (
	localsUser  = "current_user"
	localsToken = "current_token"
)

// RequireToken authenticates the bearer token, loads its user and stashes
// both in Locals for downstream handlers. An expired token gets its own
// message so clients know to re-login rather than retry.
func RequireToken(tokens *services.TokenService, users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return unauthorized(c, "Authentication token required")
		}

		token, err := tokens.Authenticate(c.Context(), raw)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				return unauthorized(c, "Token has expired")
			}
			return unauthorized(c, "Invalid authentication token")
		}

		user, err := users.ByID(c.Context(), token.UserID)
		if err != nil {
			return unauthorized(c, "Invalid authentication token")
		}
		if !user.IsActive {
			return unauthorized(c, "Account has been deactivated")
		}

		c.Locals(localsUser, user)
		c.Locals(localsToken, token)
		return c.Next()
	}
}

// CurrentUser returns the authenticated user set by RequireToken.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localsUser).(*models.User)
	return user
}

// CurrentToken returns the access token set by RequireToken.
func CurrentToken(c *fiber.Ctx) *models.AccessToken {
	token, _ := c.Locals(localsToken).(*models.AccessToken)
	return token
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail(message))
}
