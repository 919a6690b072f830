package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

// ErrNotFound is returned for any missing record so callers never learn
// which part of a lookup failed.
var ErrNotFound = errors.New("record not found")

// UserRepository is the identity store contract. Counter updates are single
// statements so they stay atomic across service instances.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	ByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateFieldsByEmail(ctx context.Context, email string, fields map[string]interface{}) error
	// BumpAPICalls increments the hourly and total counters, resetting the
	// hourly window first when it has elapsed. One statement, no read.
	BumpAPICalls(ctx context.Context, id uuid.UUID, window time.Duration) error
	AddStorageBytes(ctx context.Context, id uuid.UUID, bytes int64) error
	List(ctx context.Context, limit, offset int) ([]models.User, int64, error)
}

// TokenRepository persists issued bearer tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *models.AccessToken) error
	ByID(ctx context.Context, id uuid.UUID) (*models.AccessToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
	DeleteForUserExcept(ctx context.Context, userID, keepID uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AccessToken, error)
	CountActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ResetTokenRepository handles single-use password reset tokens. Consume is
// a compare-and-set: it only succeeds for an unused, unexpired token.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
}

// VerificationTokenRepository handles single-use email verification tokens.
type VerificationTokenRepository interface {
	Create(ctx context.Context, token *models.EmailVerificationToken) error
	Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
}

// SocialAccountRepository links provider identities to users.
type SocialAccountRepository interface {
	Create(ctx context.Context, account *models.SocialAccount) error
	ByProvider(ctx context.Context, provider, providerID string) (*models.SocialAccount, error)
}

// UsageRepository appends immutable usage events and aggregates them for
// reporting.
type UsageRepository interface {
	Create(ctx context.Context, record *models.UsageRecord) error
	SumInWindow(ctx context.Context, userID uuid.UUID, usageType string, from, to time.Time) (int64, error)
}

// ListingRepository stores timber listings; CountForUser feeds the
// timber_listings feature limit.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.TimberListing) error
	ByID(ctx context.Context, id uuid.UUID) (*models.TimberListing, error)
	Update(ctx context.Context, listing *models.TimberListing) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TimberListing, int64, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PlanRepository reads the subscription plan catalog.
type PlanRepository interface {
	ListActive(ctx context.Context) ([]models.SubscriptionPlan, error)
	BySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error)
	Seed(ctx context.Context, plans []models.SubscriptionPlan) error
}
