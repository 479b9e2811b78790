package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"volt/internal/domain/user"
	"volt/internal/infrastructure/persistence/models"
	"volt/internal/shared/biztime"
	"volt/internal/shared/errors"
)

type SessionTokenRepository struct {
	db *gorm.DB
}

func NewSessionTokenRepository(db *gorm.DB) user.SessionTokenRepository {
	return &SessionTokenRepository{db: db}
}

// Upsert replaces any existing token row for the uid, enforcing the
// single-session-per-user contract at the storage layer.
func (r *SessionTokenRepository) Upsert(ctx context.Context, token *user.SessionToken) error {
	model := &models.SessionTokenModel{
		UID:       token.UID,
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
		Active:    token.Active,
		CreatedAt: token.CreatedAt,
		UpdatedAt: token.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_hash", "expires_at", "active", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert session token: %w", err)
	}
	return nil
}

func (r *SessionTokenRepository) GetByUID(ctx context.Context, uid string) (*user.SessionToken, error) {
	var model models.SessionTokenModel
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("session token not found")
		}
		return nil, fmt.Errorf("failed to get session token: %w", err)
	}
	return &user.SessionToken{
		UID:       model.UID,
		TokenHash: model.TokenHash,
		ExpiresAt: model.ExpiresAt,
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func (r *SessionTokenRepository) Deactivate(ctx context.Context, uid string) error {
	err := r.db.WithContext(ctx).
		Model(&models.SessionTokenModel{}).
		Where("uid = ?", uid).
		Updates(map[string]any{"active": false, "updated_at": biztime.NowUTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate session token: %w", err)
	}
	return nil
}

func (r *SessionTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", biztime.NowUTC()).
		Delete(&models.SessionTokenModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired session tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
