package subscription

import "context"

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	GetByExternalID(ctx context.Context, externalID string) (*Subscription, error)
	ListByUID(ctx context.Context, uid string) ([]*Subscription, error)
	DeleteByUID(ctx context.Context, uid string) error
}

// ActiveIndexRepository stores the (uid, plan) -> external subscription
// id index.
type ActiveIndexRepository interface {
	Upsert(ctx context.Context, entry *ActiveEntry) error
	Get(ctx context.Context, uid, planID string) (*ActiveEntry, error)
	ListByUID(ctx context.Context, uid string) ([]*ActiveEntry, error)
	ListByUIDAndPlans(ctx context.Context, uid string, planIDs []string) ([]*ActiveEntry, error)
	Delete(ctx context.Context, uid, planID string) error
	DeleteByExternalID(ctx context.Context, externalID string) error
	DeleteByUID(ctx context.Context, uid string) error
}
