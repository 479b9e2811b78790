package mappers

import (
	"encoding/json"
	"fmt"

	"volt/internal/domain/subscription"
	"volt/internal/infrastructure/persistence/models"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error)
}

type subscriptionMapper struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &subscriptionMapper{}
}

func (m *subscriptionMapper) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	var planIDs []string
	if err := json.Unmarshal(model.PlanIDs, &planIDs); err != nil {
		return nil, fmt.Errorf("failed to decode subscription plan ids: %w", err)
	}

	return &subscription.Subscription{
		UID:        model.UID,
		ExternalID: model.ExternalID,
		CustomerID: model.CustomerID,
		Status:     subscription.Status(model.Status),
		PlanIDs:    planIDs,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

func (m *subscriptionMapper) ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error) {
	if entity == nil {
		return nil, nil
	}

	raw, err := json.Marshal(entity.PlanIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription plan ids: %w", err)
	}

	return &models.SubscriptionModel{
		UID:        entity.UID,
		ExternalID: entity.ExternalID,
		CustomerID: entity.CustomerID,
		Status:     string(entity.Status),
		PlanIDs:    raw,
		CreatedAt:  entity.CreatedAt,
		UpdatedAt:  entity.UpdatedAt,
	}, nil
}
