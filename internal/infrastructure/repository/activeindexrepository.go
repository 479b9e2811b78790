package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"volt/internal/domain/subscription"
	"volt/internal/infrastructure/persistence/models"
	"volt/internal/shared/errors"
)

type ActiveIndexRepository struct {
	db *gorm.DB
}

func NewActiveIndexRepository(db *gorm.DB) subscription.ActiveIndexRepository {
	return &ActiveIndexRepository{db: db}
}

func (r *ActiveIndexRepository) Upsert(ctx context.Context, entry *subscription.ActiveEntry) error {
	model := &models.ActiveSubscriptionModel{
		UID:                    entry.UID,
		PlanID:                 entry.PlanID,
		ExternalSubscriptionID: entry.ExternalSubscriptionID,
		CreatedAt:              entry.CreatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}, {Name: "plan_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"external_subscription_id"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert active subscription entry: %w", err)
	}
	return nil
}

func (r *ActiveIndexRepository) Get(ctx context.Context, uid, planID string) (*subscription.ActiveEntry, error) {
	var model models.ActiveSubscriptionModel
	err := r.db.WithContext(ctx).
		Where("uid = ? AND plan_id = ?", uid, planID).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("active subscription entry not found")
		}
		return nil, fmt.Errorf("failed to get active subscription entry: %w", err)
	}
	return toActiveEntry(&model), nil
}

func (r *ActiveIndexRepository) ListByUID(ctx context.Context, uid string) ([]*subscription.ActiveEntry, error) {
	var rows []models.ActiveSubscriptionModel
	err := r.db.WithContext(ctx).Where("uid = ?", uid).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscription entries: %w", err)
	}
	return toActiveEntries(rows), nil
}

func (r *ActiveIndexRepository) ListByUIDAndPlans(ctx context.Context, uid string, planIDs []string) ([]*subscription.ActiveEntry, error) {
	if len(planIDs) == 0 {
		return nil, nil
	}
	var rows []models.ActiveSubscriptionModel
	err := r.db.WithContext(ctx).
		Where("uid = ? AND plan_id IN ?", uid, planIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscription entries: %w", err)
	}
	return toActiveEntries(rows), nil
}

func (r *ActiveIndexRepository) Delete(ctx context.Context, uid, planID string) error {
	err := r.db.WithContext(ctx).
		Where("uid = ? AND plan_id = ?", uid, planID).
		Delete(&models.ActiveSubscriptionModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete active subscription entry: %w", err)
	}
	return nil
}

func (r *ActiveIndexRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).
		Where("external_subscription_id = ?", externalID).
		Delete(&models.ActiveSubscriptionModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete active subscription entries: %w", err)
	}
	return nil
}

func (r *ActiveIndexRepository) DeleteByUID(ctx context.Context, uid string) error {
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Delete(&models.ActiveSubscriptionModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete active subscription entries: %w", err)
	}
	return nil
}

func toActiveEntry(m *models.ActiveSubscriptionModel) *subscription.ActiveEntry {
	return &subscription.ActiveEntry{
		UID:                    m.UID,
		PlanID:                 m.PlanID,
		ExternalSubscriptionID: m.ExternalSubscriptionID,
		CreatedAt:              m.CreatedAt,
	}
}

func toActiveEntries(rows []models.ActiveSubscriptionModel) []*subscription.ActiveEntry {
	entries := make([]*subscription.ActiveEntry, len(rows))
	for i := range rows {
		entries[i] = toActiveEntry(&rows[i])
	}
	return entries
}
