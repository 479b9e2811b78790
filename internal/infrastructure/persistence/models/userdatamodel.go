package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserDataModel is the namespaced per-user key-value store. Protected
// entries are readable through the protected endpoint only and never
// writable by the user.
type UserDataModel struct {
	ID        uint           `gorm:"primarykey"`
	UID       string         `gorm:"size:32;not null;uniqueIndex:idx_user_data_uid_key,priority:1"`
	Key       string         `gorm:"size:128;not null;uniqueIndex:idx_user_data_uid_key,priority:2"`
	Value     datatypes.JSON `gorm:"not null"`
	Protected bool           `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserDataModel) TableName() string {
	return "user_data"
}
