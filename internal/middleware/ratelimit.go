package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

// RateLimitByRole enforces the per-plan hourly call quota. A request that
// clears the gate is recorded as one api_call before the handler runs, so
// the counter reflects admitted traffic only. Tracking failures are logged
// rather than turned into client errors.
func RateLimitByRole(usage *services.UsageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c, "Authentication token required")
		}

		if usage.HasExceededRateLimit(user) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.Response{
				Success: false,
				Message: "Hourly rate limit exceeded",
				Data: fiber.Map{
					"limit":             roles.RateLimit(user.Role),
					"current_usage":     user.APICallsThisHour,
					"reset_at":          user.APICallsResetAt,
					"upgrade_available": roles.RateLimit(user.Role) > 0,
				},
			})
		}

		err := usage.Track(c.Context(), user, models.UsageAPICall, 1, map[string]interface{}{
			"endpoint":   c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
		})
		if err != nil {
			slog.Error("failed to track api call", "user_id", user.ID, "error", err)
		}

		return c.Next()
	}
}
