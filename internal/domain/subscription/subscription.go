package subscription

import (
	"fmt"
	"time"

	"volt/internal/shared/biztime"
)

// Status advances monotonically: active -> cancelling -> cancelled.
// Cancelling is skipped when cancellation takes effect immediately.
type Status string

const (
	StatusActive     Status = "active"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusActive:     {StatusCancelling, StatusCancelled},
	StatusCancelling: {StatusCancelled},
	StatusCancelled:  {},
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Subscription mirrors one processor subscription for a user. PlanIDs
// are the local plan ids currently carried by it.
type Subscription struct {
	UID        string
	ExternalID string
	CustomerID string
	Status     Status
	PlanIDs    []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewSubscription(uid, externalID, customerID string, planIDs []string) (*Subscription, error) {
	if uid == "" {
		return nil, fmt.Errorf("uid is required")
	}
	if externalID == "" {
		return nil, fmt.Errorf("external subscription id is required")
	}

	now := biztime.NowUTC()
	return &Subscription{
		UID:        uid,
		ExternalID: externalID,
		CustomerID: customerID,
		Status:     StatusActive,
		PlanIDs:    planIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Transition moves the subscription to target, rejecting backward
// moves.
func (s *Subscription) Transition(target Status) error {
	if s.Status == target {
		return nil
	}
	if !s.Status.CanTransitionTo(target) {
		return fmt.Errorf("illegal subscription transition %s -> %s", s.Status, target)
	}
	s.Status = target
	s.UpdatedAt = biztime.NowUTC()
	return nil
}

// Cancel marks the subscription cancelling, or cancelled when
// immediate.
func (s *Subscription) Cancel(immediate bool) error {
	if immediate {
		return s.Transition(StatusCancelled)
	}
	return s.Transition(StatusCancelling)
}

// ActiveEntry is one row of the active-subscription index. Existence
// of an entry is the authoritative "is subscribed" predicate; it is
// inserted on activation and removed on cancellation, and must stay
// consistent with Subscription.Status.
type ActiveEntry struct {
	UID                    string
	PlanID                 string
	ExternalSubscriptionID string
	CreatedAt              time.Time
}

func NewActiveEntry(uid, planID, externalSubscriptionID string) (*ActiveEntry, error) {
	if uid == "" || planID == "" || externalSubscriptionID == "" {
		return nil, fmt.Errorf("uid, plan id, and external subscription id are required")
	}
	return &ActiveEntry{
		UID:                    uid,
		PlanID:                 planID,
		ExternalSubscriptionID: externalSubscriptionID,
		CreatedAt:              biztime.NowUTC(),
	}, nil
}
