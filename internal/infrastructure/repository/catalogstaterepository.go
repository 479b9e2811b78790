package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"volt/internal/domain/catalog"
	"volt/internal/infrastructure/persistence/models"
	"volt/internal/shared/biztime"
	"volt/internal/shared/errors"
)

// catalogStateRowID pins the cache to a single row.
const catalogStateRowID = 1

type CatalogStateRepository struct {
	db *gorm.DB
}

func NewCatalogStateRepository(db *gorm.DB) catalog.StateRepository {
	return &CatalogStateRepository{db: db}
}

func (r *CatalogStateRepository) Get(ctx context.Context) (*catalog.State, error) {
	var model models.CatalogStateModel
	err := r.db.WithContext(ctx).Where("id = ?", catalogStateRowID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("catalog state not cached")
		}
		return nil, fmt.Errorf("failed to get catalog state: %w", err)
	}

	resolution := make(map[string]catalog.ExternalIDs)
	if err := json.Unmarshal(model.Resolution, &resolution); err != nil {
		return nil, fmt.Errorf("failed to decode catalog resolution map: %w", err)
	}

	return &catalog.State{
		ConfigHash:  model.ConfigHash,
		Resolution:  resolution,
		WebhookHash: model.WebhookHash,
	}, nil
}

func (r *CatalogStateRepository) Save(ctx context.Context, state *catalog.State) error {
	raw, err := json.Marshal(state.Resolution)
	if err != nil {
		return fmt.Errorf("failed to encode catalog resolution map: %w", err)
	}

	model := &models.CatalogStateModel{
		ID:          catalogStateRowID,
		ConfigHash:  state.ConfigHash,
		Resolution:  raw,
		WebhookHash: state.WebhookHash,
		UpdatedAt:   biztime.NowUTC(),
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save catalog state: %w", err)
	}
	return nil
}
