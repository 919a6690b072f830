package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

// RequireFeature gates a route behind plan access to the named feature.
// A plan that excludes the feature entirely gets 402 with the plans that
// would unlock it.
func RequireFeature(feature string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c, "Authentication token required")
		}

		if !roles.HasFeatureAccess(user.Role, feature) {
			return c.Status(fiber.StatusPaymentRequired).JSON(dto.Response{
				Success: false,
				Message: "Your current plan does not include this feature",
				Data: fiber.Map{
					"feature":          feature,
					"current_plan":     string(user.Role),
					"upgrade_required": true,
					"available_plans":  roles.UpgradeOptionsFor(user.Role, feature),
				},
			})
		}
		return c.Next()
	}
}

// EnforceFeatureLimit blocks creation once the plan's quota for the
// feature is used up. Belongs after RequireFeature on create routes.
func EnforceFeatureLimit(usage *services.UsageService, feature string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c, "Authentication token required")
		}

		reached, err := usage.HasReachedFeatureLimit(c.Context(), user, feature)
		if err != nil {
			slog.Error("feature limit check failed", "user_id", user.ID, "feature", feature, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.Fail("Unable to verify plan limits"))
		}
		if reached {
			current, _ := usage.CurrentUsage(c.Context(), user, feature)
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.Response{
				Success: false,
				Message: "Plan limit reached for this feature",
				Data: fiber.Map{
					"limit_reached":   true,
					"feature":         feature,
					"current_limit":   roles.FeatureLimit(user.Role, feature),
					"current_usage":   current,
					"upgrade_options": roles.UpgradeOptionsFor(user.Role, feature),
				},
			})
		}
		return c.Next()
	}
}
