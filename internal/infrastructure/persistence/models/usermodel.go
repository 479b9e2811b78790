package models

import "time"

// UserModel is the persistence model for users. The unique indexes on
// uid, username, and email are the authoritative uniqueness checks.
type UserModel struct {
	ID           uint   `gorm:"primarykey"`
	UID          string `gorm:"size:32;uniqueIndex;not null"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:64;not null"`
	DisplayName  string `gorm:"size:128"`
	Activated    bool   `gorm:"not null;default:false"`
	SupportPIN   string `gorm:"size:16"`
	APIKeyHash   string `gorm:"size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}
