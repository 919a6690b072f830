package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/bkaraoglu/timberline-api/internal/handlers"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	TwoFactor    *handlers.TwoFactorHandler
	User         *handlers.UserHandler
	Token        *handlers.TokenHandler
	Subscription *handlers.SubscriptionHandler
	Listing      *handlers.ListingHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
}

type Deps struct {
	Tokens *services.TokenService
	Usage  *services.UsageService
	Users  repository.UserRepository
}

// Setup wires every route behind its slice of the gateway chain: token,
// abilities, role, feature gate, then the per-plan rate limit.
func Setup(app *fiber.App, h Handlers, deps Deps) {
	api := app.Group("/api")

	// Per-IP flood control in front of everything, per-plan limits come
	// later in the chain.
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)
	api.Get("/plans", h.Subscription.Plans)

	// Public auth endpoints get a stricter per-IP budget against
	// credential stuffing.
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/google", h.Auth.GoogleSignIn)
	auth.Post("/forgot-password", h.Auth.ForgotPassword)
	auth.Post("/reset-password", h.Auth.ResetPassword)
	auth.Post("/verify-email", h.Auth.VerifyEmail)

	authed := middleware.RequireToken(deps.Tokens, deps.Users)
	rated := middleware.RateLimitByRole(deps.Usage)

	// Session management. No per-plan rate limit here so a capped user
	// can still sign out.
	api.Post("/auth/logout", authed, h.Auth.Logout)
	api.Post("/auth/logout-all", authed, h.Auth.LogoutAll)
	api.Post("/auth/refresh", authed, h.Auth.Refresh)
	api.Post("/auth/resend-verification", authed, h.Auth.ResendVerification)
	api.Get("/auth/me", authed, h.Auth.Me)

	// Two-factor management rides on the session token.
	twofa := api.Group("/auth/2fa", authed)
	twofa.Get("/status", h.TwoFactor.Status)
	twofa.Post("/enable", h.TwoFactor.Enable)
	twofa.Post("/confirm", h.TwoFactor.Confirm)
	twofa.Post("/disable", h.TwoFactor.Disable)
	twofa.Post("/recovery-codes", h.TwoFactor.RecoveryCodes)
	twofa.Get("/qr-code", h.TwoFactor.QRCode)

	// Profile and account.
	user := api.Group("/user", authed)
	user.Get("/", middleware.RequireAbilities("profile:read"), h.User.Show)
	user.Put("/", middleware.RequireAbilities("profile:update"), h.User.Update)
	user.Put("/password", h.User.UpdatePassword)
	user.Delete("/", h.User.Deactivate)
	user.Get("/usage", h.User.Usage)
	user.Get("/limits", h.User.Limits)

	// Token ledger management.
	tokens := api.Group("/tokens", authed)
	tokens.Get("/", h.Token.List)
	tokens.Post("/", h.Token.Create)
	tokens.Delete("/all", h.Token.RevokeAll)
	tokens.Delete("/:id", h.Token.Revoke)

	api.Get("/subscription", authed, h.Subscription.Current)

	// Timber listings sit behind the full gateway chain.
	listings := api.Group("/listings", authed, middleware.RequireFeature(roles.FeatureTimberListings))
	listings.Get("/", middleware.RequireAbilities("timber:read"), rated, h.Listing.List)
	listings.Post("/",
		middleware.RequireAbilities("timber:create"),
		middleware.EnforceFeatureLimit(deps.Usage, roles.FeatureTimberListings),
		rated,
		h.Listing.Create,
	)
	listings.Put("/:id", middleware.RequireAbilities("timber:update-own"), rated, h.Listing.Update)
	listings.Delete("/:id", middleware.RequireAbilities("timber:delete-own"), rated, h.Listing.Delete)

	// Admin panel: role check plus the admin ability on the token.
	admin := api.Group("/admin", authed, middleware.RequireAdmin(), middleware.RequireAbilities(roles.AdminWildcard))
	admin.Get("/users", h.Admin.ListUsers)
	admin.Put("/users/:id/role", h.Admin.UpdateUserRole)
	admin.Post("/users/:id/reactivate", h.Admin.ReactivateUser)
}
