package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"

	"github.com/bkaraoglu/timberline-api/internal/config"
	"github.com/bkaraoglu/timberline-api/internal/database"
	"github.com/bkaraoglu/timberline-api/internal/handlers"
	"github.com/bkaraoglu/timberline-api/internal/logging"
	"github.com/bkaraoglu/timberline-api/internal/mail"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/routes"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

func main() {
	_ = godotenv.Load()

	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// ERROR+ records also land in postgres for later inspection.
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Repositories
	userRepo := repository.NewGormUserRepository(database.DB)
	tokenRepo := repository.NewGormTokenRepository(database.DB)
	resetRepo := repository.NewGormResetTokenRepository(database.DB)
	verifyRepo := repository.NewGormVerificationTokenRepository(database.DB)
	socialRepo := repository.NewGormSocialAccountRepository(database.DB)
	usageRepo := repository.NewGormUsageRepository(database.DB)
	listingRepo := repository.NewGormListingRepository(database.DB)
	planRepo := repository.NewGormPlanRepository(database.DB)

	if err := planRepo.Seed(context.Background(), database.DefaultPlans()); err != nil {
		slog.Error("plan seeding failed", "error", err)
		os.Exit(1)
	}

	// Services
	tokenService := services.NewTokenService(tokenRepo)
	twoFactorService := services.NewTwoFactorService(userRepo, cfg.EncryptionKey(), cfg.AppName)
	usageService := services.NewUsageService(userRepo, usageRepo, listingRepo, cfg.RateLimitWindow)
	authService := services.NewAuthService(services.AuthServiceParams{
		Users:          userRepo,
		Socials:        socialRepo,
		ResetTokens:    resetRepo,
		VerifyTokens:   verifyRepo,
		Tokens:         tokenService,
		TwoFactor:      twoFactorService,
		Mailer:         mail.NewLogMailer(cfg.AppURL),
		Google:         services.NewGoogleJWKSClient(),
		TokenExpiry:    cfg.TokenExpiry,
		ResetExpiry:    cfg.ResetTokenExpiry,
		GoogleAudience: cfg.GoogleClientID,
	})

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		TwoFactor:    handlers.NewTwoFactorHandler(twoFactorService),
		User:         handlers.NewUserHandler(userRepo, authService, usageService),
		Token:        handlers.NewTokenHandler(tokenService, authService),
		Subscription: handlers.NewSubscriptionHandler(planRepo),
		Listing:      handlers.NewListingHandler(listingRepo),
		Admin:        handlers.NewAdminHandler(userRepo, authService),
		Health:       handlers.NewHealthHandler(),
	}, routes.Deps{
		Tokens: tokenService,
		Usage:  usageService,
		Users:  userRepo,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
