package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubscriptionModel struct {
	ID         uint           `gorm:"primarykey"`
	UID        string         `gorm:"size:32;not null;index"`
	ExternalID string         `gorm:"size:64;uniqueIndex;not null"`
	CustomerID string         `gorm:"size:64"`
	Status     string         `gorm:"size:16;not null"`
	PlanIDs    datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (SubscriptionModel) TableName() string {
	return "subscriptions"
}
