package payment

// Status is the lifecycle state of a whole payment.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPaid    Status = "paid"
	StatusPastDue Status = "past_due"
	StatusUnknown Status = "unknown"
)

// StatusFromProcessor maps the processor's transaction lifecycle state
// onto the local status. Unrecognized states map to unknown; the caller
// logs those.
func StatusFromProcessor(remote string) Status {
	switch remote {
	case "draft", "ready":
		return StatusOpen
	case "billed", "paid", "completed":
		return StatusPaid
	case "past_due":
		return StatusPastDue
	default:
		return StatusUnknown
	}
}

// ItemStatus is the refund state of a single line item.
type ItemStatus string

const (
	ItemPaid      ItemStatus = "paid"
	ItemRefunding ItemStatus = "refunding"
	ItemRefunded  ItemStatus = "refunded"
)

// itemTransitions lists legal forward moves. The only backward move is
// refunded -> paid, reserved for chargeback reversals.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPaid:      {ItemRefunding, ItemRefunded},
	ItemRefunding: {ItemRefunded, ItemPaid},
	ItemRefunded:  {},
}

// CanTransitionTo reports whether a normal (non-reversal) transition is
// allowed.
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	for _, t := range itemTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}
