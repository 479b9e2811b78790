package payment

import "context"

// Hooks is the observer interface the reconciliation engine invokes
// after a state transition commits. Implementations must tolerate
// re-delivery; hook failures are logged by the caller and never abort
// the transition that triggered them.
type Hooks interface {
	OnPayment(ctx context.Context, p *Payment)
	OnSubscriptionActivated(ctx context.Context, uid, planID, externalSubscriptionID string)
	OnSubscriptionCanceled(ctx context.Context, uid, externalSubscriptionID string)
	OnRefund(ctx context.Context, p *Payment, externalItemIDs []string)
}

// NoopHooks is the default Hooks implementation.
type NoopHooks struct{}

func (NoopHooks) OnPayment(context.Context, *Payment)                            {}
func (NoopHooks) OnSubscriptionActivated(context.Context, string, string, string) {}
func (NoopHooks) OnSubscriptionCanceled(context.Context, string, string)         {}
func (NoopHooks) OnRefund(context.Context, *Payment, []string)                   {}
