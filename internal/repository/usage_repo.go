package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type GormUsageRepository struct {
	db *gorm.DB
}

func NewGormUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

func (r *GormUsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}
	return nil
}

func (r *GormUsageRepository) SumInWindow(ctx context.Context, userID uuid.UUID, usageType string, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("user_id = ? AND type = ? AND recorded_at >= ? AND recorded_at < ?", userID, usageType, from, to).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return total, nil
}
