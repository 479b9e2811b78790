package payment

import (
	"context"
	"time"
)

// ListFilter narrows payment listings. Zero values mean "no bound".
type ListFilter struct {
	Since  time.Time
	Limit  int
	Status Status
}

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, paymentID string) (*Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	ListByUID(ctx context.Context, uid string, filter ListFilter) ([]*Payment, error)
	DeleteByUID(ctx context.Context, uid string) error
}
