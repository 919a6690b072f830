package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type GormTokenRepository struct {
	db *gorm.DB
}

func NewGormTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

func (r *GormTokenRepository) Create(ctx context.Context, token *models.AccessToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (r *GormTokenRepository) ByID(ctx context.Context, id uuid.UUID) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.WithContext(ctx).First(&token, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return &token, nil
}

func (r *GormTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.AccessToken{}, "id = ?", id).Error
}

func (r *GormTokenRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.AccessToken{}, "user_id = ?", userID).Error
}

func (r *GormTokenRepository) DeleteForUserExcept(ctx context.Context, userID, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.AccessToken{}, "user_id = ? AND id <> ?", userID, keepID).Error
}

func (r *GormTokenRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AccessToken, error) {
	var tokens []models.AccessToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

func (r *GormTokenRepository) CountActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return count, nil
}

func (r *GormTokenRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
