package models

import "time"

// TwoFAChallengeModel holds the single pending challenge per subject.
// Subject is a uid for sign-in flows or a pending email for sign-up.
type TwoFAChallengeModel struct {
	Subject   string    `gorm:"primarykey;size:255"`
	CodeHash  string    `gorm:"size:64;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TwoFAChallengeModel) TableName() string {
	return "twofa_challenges"
}
