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

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *GormUserRepository) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (r *GormUserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (r *GormUserRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) UpdateFieldsByEmail(ctx context.Context, email string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpAPICalls is the lazy window reset and increment in one statement. Both
// CASE branches evaluate against the same row version, so two instances
// racing at a window boundary cannot double-count a reset.
func (r *GormUserRepository) BumpAPICalls(ctx context.Context, id uuid.UUID, window time.Duration) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Exec(`
		UPDATE users SET
			api_calls_this_hour = CASE
				WHEN api_calls_reset_at IS NULL OR api_calls_reset_at <= ? THEN 1
				ELSE api_calls_this_hour + 1
			END,
			api_calls_reset_at = CASE
				WHEN api_calls_reset_at IS NULL OR api_calls_reset_at <= ? THEN ?
				ELSE api_calls_reset_at
			END,
			total_api_calls = total_api_calls + 1,
			updated_at = ?
		WHERE id = ?`,
		now, now, now.Add(window), now, id)
	if res.Error != nil {
		return fmt.Errorf("failed to bump api counters: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) AddStorageBytes(ctx context.Context, id uuid.UUID, bytes int64) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("storage_used_bytes", gorm.Expr("storage_used_bytes + ?", bytes))
	if res.Error != nil {
		return fmt.Errorf("failed to update storage usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	var users []models.User
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
