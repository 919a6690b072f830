package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/roles"
)

// RequireRole allows only users holding one of the listed roles.
func RequireRole(allowed ...roles.Role) fiber.Handler {
	labels := make([]string, len(allowed))
	for i, r := range allowed {
		labels[i] = string(r)
	}

	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c, "Authentication token required")
		}

		for _, r := range allowed {
			if user.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.Response{
			Success: false,
			Message: "Insufficient role for this resource",
			Data: fiber.Map{
				"required_roles": labels,
				"current_role":   string(user.Role),
			},
		})
	}
}

// RequireAdmin is shorthand for the admin-only surfaces.
func RequireAdmin() fiber.Handler {
	return RequireRole(roles.Admin)
}
