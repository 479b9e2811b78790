package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"volt/internal/domain/subscription"
	"volt/internal/infrastructure/persistence/mappers"
	"volt/internal/infrastructure/persistence/models"
)

type SubscriptionRepository struct {
	db     *gorm.DB
	mapper mappers.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) subscription.Repository {
	return &SubscriptionRepository{
		db:     db,
		mapper: mappers.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	model, err := r.mapper.ToModel(sub)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	model, err := r.mapper.ToModel(sub)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Model(&models.SubscriptionModel{}).
		Where("external_id = ?", sub.ExternalID).
		Updates(map[string]any{
			"status":     model.Status,
			"plan_ids":   model.PlanIDs,
			"updated_at": model.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByExternalID(ctx context.Context, externalID string) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SubscriptionRepository) ListByUID(ctx context.Context, uid string) ([]*subscription.Subscription, error) {
	var rows []models.SubscriptionModel
	err := r.db.WithContext(ctx).Where("uid = ?", uid).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]*subscription.Subscription, 0, len(rows))
	for i := range rows {
		s, err := r.mapper.ToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (r *SubscriptionRepository) DeleteByUID(ctx context.Context, uid string) error {
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).Delete(&models.SubscriptionModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete subscriptions: %w", err)
	}
	return nil
}
