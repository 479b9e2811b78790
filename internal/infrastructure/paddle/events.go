package paddle

import (
	"encoding/json"
	"fmt"
)

// Webhook event types the engine subscribes to.
const (
	EventTransactionPaid       = "transaction.paid"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionTrialing  = "subscription.trialing"
	EventSubscriptionResumed   = "subscription.resumed"
	EventSubscriptionCanceled  = "subscription.canceled"
	EventSubscriptionPaused    = "subscription.paused"
	EventAdjustmentUpdated     = "adjustment.updated"
)

// SubscribedEventTypes is the fixed set registered with the processor.
var SubscribedEventTypes = []string{
	EventTransactionPaid,
	EventSubscriptionActivated,
	EventSubscriptionTrialing,
	EventSubscriptionResumed,
	EventSubscriptionCanceled,
	EventSubscriptionPaused,
	EventAdjustmentUpdated,
}

// Event is the decoded webhook payload. Exactly one of the typed
// variants below implements it per event_type.
type Event interface {
	EventType() string
}

type TransactionEvent struct {
	Type        string
	Transaction Transaction
}

func (e *TransactionEvent) EventType() string { return e.Type }

type SubscriptionEvent struct {
	Type         string
	Subscription Subscription
}

func (e *SubscriptionEvent) EventType() string { return e.Type }

type AdjustmentEvent struct {
	Type       string
	Adjustment Adjustment
}

func (e *AdjustmentEvent) EventType() string { return e.Type }

// UnknownEvent is returned for event types the engine does not handle;
// the dispatcher logs and ignores it.
type UnknownEvent struct {
	Type string
}

func (e *UnknownEvent) EventType() string { return e.Type }

type eventEnvelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// DecodeEvent parses a webhook body into its typed variant, validating
// the fields each handler depends on.
func DecodeEvent(body []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed webhook envelope: %w", err)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("webhook envelope missing event_type")
	}

	switch env.EventType {
	case EventTransactionPaid:
		var txn Transaction
		if err := json.Unmarshal(env.Data, &txn); err != nil {
			return nil, fmt.Errorf("malformed %s data: %w", env.EventType, err)
		}
		if txn.ID == "" {
			return nil, fmt.Errorf("%s missing transaction id", env.EventType)
		}
		return &TransactionEvent{Type: env.EventType, Transaction: txn}, nil

	case EventSubscriptionActivated, EventSubscriptionTrialing,
		EventSubscriptionResumed, EventSubscriptionCanceled, EventSubscriptionPaused:
		var sub Subscription
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return nil, fmt.Errorf("malformed %s data: %w", env.EventType, err)
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("%s missing subscription id", env.EventType)
		}
		return &SubscriptionEvent{Type: env.EventType, Subscription: sub}, nil

	case EventAdjustmentUpdated:
		var adj Adjustment
		if err := json.Unmarshal(env.Data, &adj); err != nil {
			return nil, fmt.Errorf("malformed %s data: %w", env.EventType, err)
		}
		if adj.TransactionID == "" {
			return nil, fmt.Errorf("%s missing transaction id", env.EventType)
		}
		return &AdjustmentEvent{Type: env.EventType, Adjustment: adj}, nil

	default:
		return &UnknownEvent{Type: env.EventType}, nil
	}
}
