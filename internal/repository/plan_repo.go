package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type GormPlanRepository struct {
	db *gorm.DB
}

func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

func (r *GormPlanRepository) ListActive(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("is_active = true").
		Order("sort_order ASC, price_cents ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *GormPlanRepository) BySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

// Seed inserts the default catalog once; existing rows are left alone.
func (r *GormPlanRepository) Seed(ctx context.Context, plans []models.SubscriptionPlan) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SubscriptionPlan{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check plan catalog: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&plans).Error; err != nil {
		return fmt.Errorf("failed to seed plan catalog: %w", err)
	}
	return nil
}
