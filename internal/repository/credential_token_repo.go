package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

type GormResetTokenRepository struct {
	db *gorm.DB
}

func NewGormResetTokenRepository(db *gorm.DB) *GormResetTokenRepository {
	return &GormResetTokenRepository{db: db}
}

func (r *GormResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

// Consume marks the token used if and only if it is still live. The
// conditional update is the whole double-use defense; there is no
// read-then-write window.
func (r *GormResetTokenRepository) Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("email = ? AND token_hash = ? AND used = false AND expires_at > ?", email, tokenHash, now).
		Update("used", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume reset token: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

type GormVerificationTokenRepository struct {
	db *gorm.DB
}

func NewGormVerificationTokenRepository(db *gorm.DB) *GormVerificationTokenRepository {
	return &GormVerificationTokenRepository{db: db}
}

func (r *GormVerificationTokenRepository) Create(ctx context.Context, token *models.EmailVerificationToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	return nil
}

func (r *GormVerificationTokenRepository) Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.EmailVerificationToken{}).
		Where("email = ? AND token_hash = ? AND used = false AND expires_at > ?", email, tokenHash, now).
		Update("used", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume verification token: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
