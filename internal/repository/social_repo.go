package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type GormSocialAccountRepository struct {
	db *gorm.DB
}

func NewGormSocialAccountRepository(db *gorm.DB) *GormSocialAccountRepository {
	return &GormSocialAccountRepository{db: db}
}

func (r *GormSocialAccountRepository) Create(ctx context.Context, account *models.SocialAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to link social account: %w", err)
	}
	return nil
}

func (r *GormSocialAccountRepository) ByProvider(ctx context.Context, provider, providerID string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load social account: %w", err)
	}
	return &account, nil
}
