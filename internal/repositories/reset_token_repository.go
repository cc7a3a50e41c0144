package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Pabby01/studIQ-sub001/internal/models/db_models"
)

type ResetTokenRepository interface {
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
	Insert(ctx context.Context, token *db_models.ResetToken) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	FindByHash(ctx context.Context, tokenHash string) (*db_models.ResetToken, error)
}

type resetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &resetTokenRepository{db: db}
}

func (r *resetTokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&db_models.ResetToken{}).Error
}

func (r *resetTokenRepository) Insert(ctx context.Context, token *db_models.ResetToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// DeleteExpired removes rows with expires_at <= now and reports how many.
func (r *resetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&db_models.ResetToken{})
	return res.RowsAffected, res.Error
}

// FindByHash returns (nil, nil) when no row carries the digest.
func (r *resetTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*db_models.ResetToken, error) {
	var token db_models.ResetToken
	err := r.db.WithContext(ctx).First(&token, "token_hash = ?", tokenHash).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &token, nil
}

