package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentModel stores one processor transaction. Line items are owned
// by value and serialized into the items JSON column.
type PaymentModel struct {
	ID            string         `gorm:"primarykey;size:64"`
	UID           string         `gorm:"size:32;not null;index"`
	TransactionID string         `gorm:"size:64;uniqueIndex;not null"`
	Status        string         `gorm:"size:16;not null;index"`
	Email         string         `gorm:"size:255"`
	Name          string         `gorm:"size:255"`
	Items         datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"index"`
	UpdatedAt     time.Time
}

func (PaymentModel) TableName() string {
	return "payments"
}
