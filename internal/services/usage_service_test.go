package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/roles"
)

func TestTrack(t *testing.T) {
	t.Run("api call bumps the rolling counter", func(t *testing.T) {
		bumped := false
		users := &mockUserRepo{
			BumpAPICallsFunc: func(_ context.Context, _ uuid.UUID, window time.Duration) error {
				bumped = true
				assert.Equal(t, time.Hour, window)
				return nil
			},
		}
		var recorded *models.UsageRecord
		records := &mockUsageRepo{
			CreateFunc: func(_ context.Context, record *models.UsageRecord) error {
				recorded = record
				return nil
			},
		}
		svc := NewUsageService(users, records, &mockListingRepo{}, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Free}
		err := svc.Track(context.Background(), user, models.UsageAPICall, 1, map[string]interface{}{
			"endpoint": "/api/listings",
		})
		require.NoError(t, err)
		assert.True(t, bumped)
		require.NotNil(t, recorded)
		assert.Equal(t, models.UsageAPICall, recorded.Type)
		assert.Equal(t, 1, recorded.Quantity)
		assert.NotEmpty(t, recorded.Metadata)
	})

	t.Run("storage adds metadata bytes", func(t *testing.T) {
		var added int64
		users := &mockUserRepo{
			AddStorageBytesFunc: func(_ context.Context, _ uuid.UUID, bytes int64) error {
				added = bytes
				return nil
			},
		}
		svc := NewUsageService(users, &mockUsageRepo{}, &mockListingRepo{}, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Basic}
		// JSON-decoded metadata arrives as float64.
		err := svc.Track(context.Background(), user, models.UsageStorage, 1, map[string]interface{}{
			"bytes": float64(2048),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2048), added)
	})

	t.Run("non-positive quantity is clamped to one", func(t *testing.T) {
		var recorded *models.UsageRecord
		records := &mockUsageRepo{
			CreateFunc: func(_ context.Context, record *models.UsageRecord) error {
				recorded = record
				return nil
			},
		}
		svc := NewUsageService(&mockUserRepo{}, records, &mockListingRepo{}, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Free}
		require.NoError(t, svc.Track(context.Background(), user, models.UsageAPICall, 0, nil))
		assert.Equal(t, 1, recorded.Quantity)
	})
}

func TestHasExceededRateLimit(t *testing.T) {
	svc := NewUsageService(&mockUserRepo{}, &mockUsageRepo{}, &mockListingRepo{}, time.Hour)
	future := time.Now().Add(30 * time.Minute)
	past := time.Now().Add(-time.Minute)

	t.Run("under the limit passes", func(t *testing.T) {
		user := &models.User{Role: roles.Free, APICallsThisHour: 99, APICallsResetAt: &future}
		assert.False(t, svc.HasExceededRateLimit(user))
	})

	t.Run("at the limit blocks", func(t *testing.T) {
		user := &models.User{Role: roles.Free, APICallsThisHour: 100, APICallsResetAt: &future}
		assert.True(t, svc.HasExceededRateLimit(user))
	})

	t.Run("an elapsed window counts as zero", func(t *testing.T) {
		user := &models.User{Role: roles.Free, APICallsThisHour: 100, APICallsResetAt: &past}
		assert.False(t, svc.HasExceededRateLimit(user))
	})

	t.Run("a never-used account passes", func(t *testing.T) {
		user := &models.User{Role: roles.Free}
		assert.False(t, svc.HasExceededRateLimit(user))
	})

	t.Run("unlimited roles never block", func(t *testing.T) {
		user := &models.User{Role: roles.Enterprise, APICallsThisHour: 1000000, APICallsResetAt: &future}
		assert.False(t, svc.HasExceededRateLimit(user))
	})
}

func TestHasReachedFeatureLimit(t *testing.T) {
	t.Run("under the cap allows creation", func(t *testing.T) {
		listings := &mockListingRepo{
			CountForUserFunc: func(context.Context, uuid.UUID) (int64, error) { return 4, nil },
		}
		svc := NewUsageService(&mockUserRepo{}, &mockUsageRepo{}, listings, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Basic}
		reached, err := svc.HasReachedFeatureLimit(context.Background(), user, roles.FeatureTimberListings)
		require.NoError(t, err)
		assert.False(t, reached)
	})

	t.Run("at the cap blocks", func(t *testing.T) {
		listings := &mockListingRepo{
			CountForUserFunc: func(context.Context, uuid.UUID) (int64, error) { return 5, nil },
		}
		svc := NewUsageService(&mockUserRepo{}, &mockUsageRepo{}, listings, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Basic}
		reached, err := svc.HasReachedFeatureLimit(context.Background(), user, roles.FeatureTimberListings)
		require.NoError(t, err)
		assert.True(t, reached)
	})

	t.Run("unlimited plans are never capped", func(t *testing.T) {
		listings := &mockListingRepo{
			CountForUserFunc: func(context.Context, uuid.UUID) (int64, error) {
				t.Fatal("count should not be queried for unlimited plans")
				return 0, nil
			},
		}
		svc := NewUsageService(&mockUserRepo{}, &mockUsageRepo{}, listings, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Enterprise}
		reached, err := svc.HasReachedFeatureLimit(context.Background(), user, roles.FeatureTimberListings)
		require.NoError(t, err)
		assert.False(t, reached)
	})

	t.Run("excluded features are always capped", func(t *testing.T) {
		svc := NewUsageService(&mockUserRepo{}, &mockUsageRepo{}, &mockListingRepo{}, time.Hour)

		user := &models.User{ID: uuid.New(), Role: roles.Free}
		reached, err := svc.HasReachedFeatureLimit(context.Background(), user, roles.FeatureAnalytics)
		require.NoError(t, err)
		assert.True(t, reached)
	})
}

func TestStorageAccounting(t *testing.T) {
	svc := NewUsageService(&mockUserRepo{}, &mockUsageRepo{}, &mockListingRepo{}, time.Hour)

	t.Run("percent is capped at 100", func(t *testing.T) {
		user := &models.User{Role: roles.Free, StorageUsedBytes: 100 * 1024 * 1024}
		assert.Equal(t, float64(100), svc.StorageUsagePercent(user))
		assert.True(t, svc.HasExceededStorageLimit(user))
	})

	t.Run("half-used storage reports 50", func(t *testing.T) {
		user := &models.User{Role: roles.Free, StorageUsedBytes: 5 * 1024 * 1024}
		assert.InDelta(t, 50, svc.StorageUsagePercent(user), 0.01)
		assert.False(t, svc.HasExceededStorageLimit(user))
	})

	t.Run("unlimited storage reports zero", func(t *testing.T) {
		user := &models.User{Role: roles.Enterprise, StorageUsedBytes: 1 << 40}
		assert.Zero(t, svc.StorageUsagePercent(user))
		assert.False(t, svc.HasExceededStorageLimit(user))
	})
}

func TestUsageInWindow(t *testing.T) {
	var gotFrom, gotTo time.Time
	records := &mockUsageRepo{
		SumInWindowFunc: func(_ context.Context, _ uuid.UUID, usageType string, from, to time.Time) (int64, error) {
			assert.Equal(t, models.UsageAPICall, usageType)
			gotFrom, gotTo = from, to
			return 42, nil
		},
	}
	svc := NewUsageService(&mockUserRepo{}, records, &mockListingRepo{}, time.Hour)
	user := &models.User{ID: uuid.New(), Role: roles.Free}

	t.Run("today spans a single day", func(t *testing.T) {
		total, err := svc.UsageInWindow(context.Background(), user, models.UsageAPICall, WindowToday)
		require.NoError(t, err)
		assert.Equal(t, int64(42), total)
		assert.Equal(t, 24*time.Hour, gotTo.Sub(gotFrom))
	})

	t.Run("month starts on the first", func(t *testing.T) {
		_, err := svc.UsageInWindow(context.Background(), user, models.UsageAPICall, WindowMonth)
		require.NoError(t, err)
		assert.Equal(t, 1, gotFrom.Day())
	})

	t.Run("unknown window errors", func(t *testing.T) {
		_, err := svc.UsageInWindow(context.Background(), user, models.UsageAPICall, "fortnight")
		assert.Error(t, err)
	})
}

func TestSnapshot(t *testing.T) {
	calls := 0
	records := &mockUsageRepo{
		SumInWindowFunc: func(_ context.Context, _ uuid.UUID, _ string, _, _ time.Time) (int64, error) {
			calls++
			if calls == 1 {
				return 7, nil
			}
			return 19, nil
		},
	}
	svc := NewUsageService(&mockUserRepo{}, records, &mockListingRepo{}, time.Hour)

	reset := time.Now().Add(30 * time.Minute)
	user := &models.User{
		ID:               uuid.New(),
		Role:             roles.Free,
		APICallsThisHour: 12,
		APICallsResetAt:  &reset,
		TotalAPICalls:    340,
		StorageUsedBytes: 5 * 1024 * 1024,
	}

	snap, err := svc.Snapshot(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.APICallsThisHour)
	assert.Equal(t, int64(340), snap.TotalAPICalls)
	assert.Equal(t, int64(7), snap.CallsToday)
	assert.Equal(t, int64(19), snap.CallsThisMonth)
	assert.InDelta(t, 50.0, snap.StoragePercent, 0.01)
}
