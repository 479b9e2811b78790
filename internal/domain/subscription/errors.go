package subscription

import "volt/internal/shared/errors"

var (
	ErrNotFound        = errors.NewNotFoundError("subscription not found")
	ErrNothingToCancel = errors.NewNotFoundError("no cancellable subscription for this product")
)
