package models

import (
	"time"

	"gorm.io/datatypes"
)

// CatalogStateModel caches the catalog sync result: the local-id to
// external-id resolution map plus the hashes used to short-circuit
// sync and webhook registration. Single row.
type CatalogStateModel struct {
	ID          uint           `gorm:"primarykey"`
	ConfigHash  string         `gorm:"size:64;not null"`
	Resolution  datatypes.JSON `gorm:"not null"`
	WebhookHash string         `gorm:"size:64"`
	UpdatedAt   time.Time
}

func (CatalogStateModel) TableName() string {
	return "catalog_state"
}
