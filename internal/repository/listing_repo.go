package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type GormListingRepository struct {
	db *gorm.DB
}

func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

func (r *GormListingRepository) Create(ctx context.Context, listing *models.TimberListing) error {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *GormListingRepository) ByID(ctx context.Context, id uuid.UUID) (*models.TimberListing, error) {
	var listing models.TimberListing
	err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return &listing, nil
}

func (r *GormListingRepository) Update(ctx context.Context, listing *models.TimberListing) error {
	if err := r.db.WithContext(ctx).Save(listing).Error; err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

func (r *GormListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.TimberListing{}, "id = ?", id).Error
}

func (r *GormListingRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.TimberListing, int64, error) {
	var listings []models.TimberListing
	var total int64
	q := r.db.WithContext(ctx).Model(&models.TimberListing{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&listings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, total, nil
}

func (r *GormListingRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TimberListing{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}
