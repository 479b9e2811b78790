package models

import "time"

// ActiveSubscriptionModel is the (uid, plan) -> external subscription
// index. Row existence is the authoritative "is subscribed" predicate.
type ActiveSubscriptionModel struct {
	ID                     uint   `gorm:"primarykey"`
	UID                    string `gorm:"size:32;not null;uniqueIndex:idx_active_sub_uid_plan,priority:1"`
	PlanID                 string `gorm:"size:64;not null;uniqueIndex:idx_active_sub_uid_plan,priority:2"`
	ExternalSubscriptionID string `gorm:"size:64;not null;index"`
	CreatedAt              time.Time
}

func (ActiveSubscriptionModel) TableName() string {
	return "active_subscriptions"
}
