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

type TwoFAChallengeRepository struct {
	db *gorm.DB
}

func NewTwoFAChallengeRepository(db *gorm.DB) user.TwoFAChallengeRepository {
	return &TwoFAChallengeRepository{db: db}
}

// Upsert replaces any pending challenge for the subject; only the
// latest issued code is ever valid.
func (r *TwoFAChallengeRepository) Upsert(ctx context.Context, challenge *user.TwoFAChallenge) error {
	model := &models.TwoFAChallengeModel{
		Subject:   challenge.Subject,
		CodeHash:  challenge.CodeHash,
		ExpiresAt: challenge.ExpiresAt,
		Active:    challenge.Active,
		CreatedAt: challenge.CreatedAt,
		UpdatedAt: challenge.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{"code_hash", "expires_at", "active", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert 2FA challenge: %w", err)
	}
	return nil
}

func (r *TwoFAChallengeRepository) GetBySubject(ctx context.Context, subject string) (*user.TwoFAChallenge, error) {
	var model models.TwoFAChallengeModel
	err := r.db.WithContext(ctx).Where("subject = ?", subject).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("2FA challenge not found")
		}
		return nil, fmt.Errorf("failed to get 2FA challenge: %w", err)
	}
	return &user.TwoFAChallenge{
		Subject:   model.Subject,
		CodeHash:  model.CodeHash,
		ExpiresAt: model.ExpiresAt,
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func (r *TwoFAChallengeRepository) Deactivate(ctx context.Context, subject string) error {
	err := r.db.WithContext(ctx).
		Model(&models.TwoFAChallengeModel{}).
		Where("subject = ?", subject).
		Updates(map[string]any{"active": false, "updated_at": biztime.NowUTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate 2FA challenge: %w", err)
	}
	return nil
}

func (r *TwoFAChallengeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", biztime.NowUTC()).
		Delete(&models.TwoFAChallengeModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired 2FA challenges: %w", result.Error)
	}
	return result.RowsAffected, nil
}
