package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
)

// RequireAbilities rejects tokens that lack any of the listed abilities.
// Runs after RequireToken; the 403 body spells out what was needed versus
// what the token carries.
func RequireAbilities(abilities ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := CurrentToken(c)
		if token == nil {
			return unauthorized(c, "Authentication token required")
		}

		for _, ability := range abilities {
			if !token.Can(ability) {
				return c.Status(fiber.StatusForbidden).JSON(dto.Response{
					Success: false,
					Message: "Token does not have the required abilities",
					Data: fiber.Map{
						"required_abilities": abilities,
						"token_abilities":    token.AbilityList(),
					},
				})
			}
		}
		return c.Next()
	}
}
