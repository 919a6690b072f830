package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
)

// Usage reporting windows.
const (
	WindowToday = "today"
	WindowMonth = "month"
)

// UsageService appends usage events and maintains the denormalized rolling
// counters the rate limiter reads. It is an approximate limiter by contract:
// counter updates are single atomic statements, but no cross-request
// serialization beyond that.
type UsageService struct {
	users    repository.UserRepository
	records  repository.UsageRepository
	listings repository.ListingRepository
	window   time.Duration
}

func NewUsageService(users repository.UserRepository, records repository.UsageRepository, listings repository.ListingRepository, window time.Duration) *UsageService {
	if window <= 0 {
		window = time.Hour
	}
	return &UsageService{users: users, records: records, listings: listings, window: window}
}

// Track appends an immutable usage record and applies the counter side
// effect for recognized types: api_call bumps the rolling hourly counter
// (resetting an elapsed window first), storage adds metadata["bytes"] to the
// byte counter.
func (s *UsageService) Track(ctx context.Context, user *models.User, usageType string, quantity int, metadata map[string]interface{}) error {
	if quantity <= 0 {
		quantity = 1
	}

	record := &models.UsageRecord{
		UserID:     user.ID,
		Type:       usageType,
		Quantity:   quantity,
		RecordedAt: time.Now(),
	}
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode usage metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(encoded)
	}

	if err := s.records.Create(ctx, record); err != nil {
		return err
	}

	switch usageType {
	case models.UsageAPICall:
		return s.users.BumpAPICalls(ctx, user.ID, s.window)
	case models.UsageStorage:
		if bytes := metadataBytes(metadata); bytes != 0 {
			return s.users.AddStorageBytes(ctx, user.ID, bytes)
		}
	}
	return nil
}

// HasExceededRateLimit compares the rolling counter against the role limit.
// A counter whose window already elapsed counts as zero, so the first
// request after idle time passes even before the lazy reset runs.
func (s *UsageService) HasExceededRateLimit(user *models.User) bool {
	limit := roles.RateLimit(user.Role)
	if limit == 0 {
		return false
	}
	if user.APICallsResetAt == nil || !user.APICallsResetAt.After(time.Now()) {
		return false
	}
	return user.APICallsThisHour >= limit
}

// HasReachedFeatureLimit compares the live owned count against the role's
// feature limit: -1 is never reached, 0 always is.
func (s *UsageService) HasReachedFeatureLimit(ctx context.Context, user *models.User, feature string) (bool, error) {
	limit := roles.FeatureLimit(user.Role, feature)
	if limit == -1 {
		return false, nil
	}
	if limit == 0 {
		return true, nil
	}
	current, err := s.CurrentUsage(ctx, user, feature)
	if err != nil {
		return false, err
	}
	return current >= int64(limit), nil
}

// CurrentUsage returns the live count backing a feature limit.
func (s *UsageService) CurrentUsage(ctx context.Context, user *models.User, feature string) (int64, error) {
	switch feature {
	case roles.FeatureTimberListings:
		return s.listings.CountForUser(ctx, user.ID)
	default:
		return 0, nil
	}
}

// UsageInWindow aggregates over the append-only records, independent of the
// fast-path counters. Used for reporting only.
func (s *UsageService) UsageInWindow(ctx context.Context, user *models.User, usageType, window string) (int64, error) {
	now := time.Now()
	var from, to time.Time
	switch window {
	case WindowToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 0, 1)
	case WindowMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 1, 0)
	default:
		return 0, fmt.Errorf("unknown usage window %q", window)
	}
	return s.records.SumInWindow(ctx, user.ID, usageType, from, to)
}

// UsageSnapshot combines the fast-path counters with the aggregated report
// windows for the account usage endpoint.
type UsageSnapshot struct {
	APICallsThisHour int
	APICallsResetAt  *time.Time
	TotalAPICalls    int64
	CallsToday       int64
	CallsThisMonth   int64
	StorageUsedBytes int64
	StoragePercent   float64
}

func (s *UsageService) Snapshot(ctx context.Context, user *models.User) (*UsageSnapshot, error) {
	today, err := s.UsageInWindow(ctx, user, models.UsageAPICall, WindowToday)
	if err != nil {
		return nil, err
	}
	month, err := s.UsageInWindow(ctx, user, models.UsageAPICall, WindowMonth)
	if err != nil {
		return nil, err
	}
	return &UsageSnapshot{
		APICallsThisHour: user.APICallsThisHour,
		APICallsResetAt:  user.APICallsResetAt,
		TotalAPICalls:    user.TotalAPICalls,
		CallsToday:       today,
		CallsThisMonth:   month,
		StorageUsedBytes: user.StorageUsedBytes,
		StoragePercent:   s.StorageUsagePercent(user),
	}, nil
}

func (s *UsageService) HasExceededStorageLimit(user *models.User) bool {
	limitMB := roles.StorageLimitMB(user.Role)
	if limitMB == 0 {
		return false
	}
	return user.StorageUsedBytes >= limitMB*1024*1024
}

// StorageUsagePercent is capped at 100; unlimited roles always report 0.
func (s *UsageService) StorageUsagePercent(user *models.User) float64 {
	limitMB := roles.StorageLimitMB(user.Role)
	if limitMB == 0 {
		return 0
	}
	pct := float64(user.StorageUsedBytes) / float64(limitMB*1024*1024) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

func metadataBytes(metadata map[string]interface{}) int64 {
	switch v := metadata["bytes"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
