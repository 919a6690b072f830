package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
)

type mockUserRepo struct {
	CreateFunc              func(ctx context.Context, user *models.User) error
	ByIDFunc                func(ctx context.Context, id uuid.UUID) (*models.User, error)
	ByEmailFunc             func(ctx context.Context, email string) (*models.User, error)
	UpdateFieldsFunc        func(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateFieldsByEmailFunc func(ctx context.Context, email string, fields map[string]interface{}) error
	BumpAPICallsFunc        func(ctx context.Context, id uuid.UUID, window time.Duration) error
	AddStorageBytesFunc     func(ctx context.Context, id uuid.UUID, bytes int64) error
	ListFunc                func(ctx context.Context, limit, offset int) ([]models.User, int64, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.ByIDFunc != nil {
		return m.ByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.ByEmailFunc != nil {
		return m.ByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if m.UpdateFieldsFunc != nil {
		return m.UpdateFieldsFunc(ctx, id, fields)
	}
	return nil
}

func (m *mockUserRepo) UpdateFieldsByEmail(ctx context.Context, email string, fields map[string]interface{}) error {
	if m.UpdateFieldsByEmailFunc != nil {
		return m.UpdateFieldsByEmailFunc(ctx, email, fields)
	}
	return nil
}

func (m *mockUserRepo) BumpAPICalls(ctx context.Context, id uuid.UUID, window time.Duration) error {
	if m.BumpAPICallsFunc != nil {
		return m.BumpAPICallsFunc(ctx, id, window)
	}
	return nil
}

func (m *mockUserRepo) AddStorageBytes(ctx context.Context, id uuid.UUID, bytes int64) error {
	if m.AddStorageBytesFunc != nil {
		return m.AddStorageBytesFunc(ctx, id, bytes)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, 0, nil
}

// mockTokenRepo keeps an in-memory map so issue/authenticate round-trips
// work without per-test plumbing. Function fields still override any call.
type mockTokenRepo struct {
	CreateFunc func(ctx context.Context, token *models.AccessToken) error
	DeleteFunc func(ctx context.Context, id uuid.UUID) error

	store map[uuid.UUID]*models.AccessToken
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{store: map[uuid.UUID]*models.AccessToken{}}
}

func (m *mockTokenRepo) Create(ctx context.Context, token *models.AccessToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	cp := *token
	m.store[token.ID] = &cp
	return nil
}

func (m *mockTokenRepo) ByID(_ context.Context, id uuid.UUID) (*models.AccessToken, error) {
	token, ok := m.store[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (m *mockTokenRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	delete(m.store, id)
	return nil
}

func (m *mockTokenRepo) DeleteForUser(_ context.Context, userID uuid.UUID) error {
	for id, token := range m.store {
		if token.UserID == userID {
			delete(m.store, id)
		}
	}
	return nil
}

func (m *mockTokenRepo) DeleteForUserExcept(_ context.Context, userID, keepID uuid.UUID) error {
	for id, token := range m.store {
		if token.UserID == userID && id != keepID {
			delete(m.store, id)
		}
	}
	return nil
}

func (m *mockTokenRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]models.AccessToken, error) {
	var out []models.AccessToken
	for _, token := range m.store {
		if token.UserID == userID {
			out = append(out, *token)
		}
	}
	return out, nil
}

func (m *mockTokenRepo) CountActiveForUser(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var n int64
	for _, token := range m.store {
		if token.UserID == userID && !token.Expired(now) {
			n++
		}
	}
	return n, nil
}

func (m *mockTokenRepo) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	if token, ok := m.store[id]; ok {
		token.LastUsedAt = &at
	}
	return nil
}

type mockResetTokenRepo struct {
	CreateFunc  func(ctx context.Context, token *models.PasswordResetToken) error
	ConsumeFunc func(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
}

func (m *mockResetTokenRepo) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *mockResetTokenRepo) Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, email, tokenHash, now)
	}
	return false, nil
}

type mockVerificationTokenRepo struct {
	CreateFunc  func(ctx context.Context, token *models.EmailVerificationToken) error
	ConsumeFunc func(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
}

func (m *mockVerificationTokenRepo) Create(ctx context.Context, token *models.EmailVerificationToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *mockVerificationTokenRepo) Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, email, tokenHash, now)
	}
	return false, nil
}

type mockSocialRepo struct {
	CreateFunc     func(ctx context.Context, account *models.SocialAccount) error
	ByProviderFunc func(ctx context.Context, provider, providerID string) (*models.SocialAccount, error)
}

func (m *mockSocialRepo) Create(ctx context.Context, account *models.SocialAccount) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil
}

func (m *mockSocialRepo) ByProvider(ctx context.Context, provider, providerID string) (*models.SocialAccount, error) {
	if m.ByProviderFunc != nil {
		return m.ByProviderFunc(ctx, provider, providerID)
	}
	return nil, repository.ErrNotFound
}

type mockUsageRepo struct {
	CreateFunc      func(ctx context.Context, record *models.UsageRecord) error
	SumInWindowFunc func(ctx context.Context, userID uuid.UUID, usageType string, from, to time.Time) (int64, error)
}

func (m *mockUsageRepo) Create(ctx context.Context, record *models.UsageRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return nil
}

func (m *mockUsageRepo) SumInWindow(ctx context.Context, userID uuid.UUID, usageType string, from, to time.Time) (int64, error) {
	if m.SumInWindowFunc != nil {
		return m.SumInWindowFunc(ctx, userID, usageType, from, to)
	}
	return 0, nil
}

type mockListingRepo struct {
	CountForUserFunc func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (m *mockListingRepo) Create(context.Context, *models.TimberListing) error { return nil }

func (m *mockListingRepo) ByID(context.Context, uuid.UUID) (*models.TimberListing, error) {
	return nil, repository.ErrNotFound
}

func (m *mockListingRepo) Update(context.Context, *models.TimberListing) error { return nil }

func (m *mockListingRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (m *mockListingRepo) ListForUser(context.Context, uuid.UUID, int, int) ([]models.TimberListing, int64, error) {
	return nil, 0, nil
}

func (m *mockListingRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.CountForUserFunc != nil {
		return m.CountForUserFunc(ctx, userID)
	}
	return 0, nil
}
