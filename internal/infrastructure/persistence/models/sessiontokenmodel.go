package models

import "time"

// SessionTokenModel holds the single session credential per uid. The
// uid primary key makes sign-in an upsert.
type SessionTokenModel struct {
	UID       string    `gorm:"primarykey;size:32"`
	TokenHash string    `gorm:"size:64;not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SessionTokenModel) TableName() string {
	return "session_tokens"
}
