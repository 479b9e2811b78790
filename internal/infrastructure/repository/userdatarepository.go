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

type UserDataRepository struct {
	db *gorm.DB
}

func NewUserDataRepository(db *gorm.DB) user.DataRepository {
	return &UserDataRepository{db: db}
}

func (r *UserDataRepository) Set(ctx context.Context, uid, key string, value []byte, protected bool) error {
	model := &models.UserDataModel{
		UID:       uid,
		Key:       key,
		Value:     value,
		Protected: protected,
		CreatedAt: biztime.NowUTC(),
		UpdatedAt: biztime.NowUTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "protected", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to set user data: %w", err)
	}
	return nil
}

func (r *UserDataRepository) Get(ctx context.Context, uid, key string) ([]byte, error) {
	var model models.UserDataModel
	err := r.db.WithContext(ctx).
		Where("uid = ? AND `key` = ?", uid, key).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("user data key not found")
		}
		return nil, fmt.Errorf("failed to get user data: %w", err)
	}
	return model.Value, nil
}

func (r *UserDataRepository) List(ctx context.Context, uid string, protected bool) (map[string][]byte, error) {
	var rows []models.UserDataModel
	err := r.db.WithContext(ctx).
		Where("uid = ? AND protected = ?", uid, protected).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user data: %w", err)
	}

	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (r *UserDataRepository) Delete(ctx context.Context, uid, key string) error {
	result := r.db.WithContext(ctx).
		Where("uid = ? AND `key` = ? AND protected = ?", uid, key, false).
		Delete(&models.UserDataModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user data: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("user data key not found")
	}
	return nil
}

// DeleteAll removes every entry for a uid, protected included. Used by
// account deletion only.
func (r *UserDataRepository) DeleteAll(ctx context.Context, uid string) error {
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Delete(&models.UserDataModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to purge user data: %w", err)
	}
	return nil
}
