package payment

import (
	"fmt"
	"time"

	"volt/internal/shared/biztime"
	"volt/internal/shared/id"
)

// AnonymousUID marks payments whose transaction carried no resolvable
// local user.
const AnonymousUID = "unauth"

// Item is one line of a payment. Money fields are stored in minor
// units, pre-divided by quantity: mails and invoices render unit
// amounts from these fields directly, so the stored value is per-unit,
// not per-line. This is a frozen contract; do not change the division.
type Item struct {
	ProductID      string
	ExternalItemID string
	Quantity       int
	Tax            int64
	Discount       int64
	Subtotal       int64
	Total          int64
	Currency       string
	Status         ItemStatus
}

// NewItem builds a line item from per-line processor amounts, dividing
// each money field by quantity before storage.
func NewItem(productID, externalItemID string, quantity int, tax, discount, subtotal, total int64, currency string) (Item, error) {
	if quantity <= 0 {
		return Item{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	q := int64(quantity)
	return Item{
		ProductID:      productID,
		ExternalItemID: externalItemID,
		Quantity:       quantity,
		Tax:            tax / q,
		Discount:       discount / q,
		Subtotal:       subtotal / q,
		Total:          total / q,
		Currency:       currency,
		Status:         ItemPaid,
	}, nil
}

// Payment is one processor transaction as seen locally. Items are
// owned by value; later refund and chargeback webhooks mutate item
// statuses in place.
type Payment struct {
	ID            string
	UID           string
	TransactionID string
	Status        Status
	Email         string
	Name          string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment creates a payment record. The id embeds the owning uid, a
// random component, and the creation timestamp so ids are unique
// without coordination and sortable per user.
func NewPayment(uid, transactionID string, status Status) (*Payment, error) {
	if uid == "" {
		uid = AnonymousUID
	}
	if transactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}

	random, err := id.Generate(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment id: %w", err)
	}

	now := biztime.NowUTC()
	return &Payment{
		ID:            fmt.Sprintf("%s_%s_%d", uid, random, now.UnixMilli()),
		UID:           uid,
		TransactionID: transactionID,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AddItem appends a line item.
func (p *Payment) AddItem(item Item) {
	p.Items = append(p.Items, item)
	p.UpdatedAt = biztime.NowUTC()
}

// Total sums the stored per-unit totals multiplied back by quantity.
func (p *Payment) Total() int64 {
	var sum int64
	for _, it := range p.Items {
		sum += it.Total * int64(it.Quantity)
	}
	return sum
}

// RefundableItems returns items that can still be refunded: the
// payment is paid, the item total is positive, and the item is not
// already refunded or refunding.
func (p *Payment) RefundableItems() []Item {
	if p.Status != StatusPaid {
		return nil
	}
	var out []Item
	for _, it := range p.Items {
		if it.Status == ItemPaid && it.Total > 0 {
			out = append(out, it)
		}
	}
	return out
}

// ItemsWithStatus filters items by status.
func (p *Payment) ItemsWithStatus(status ItemStatus) []Item {
	var out []Item
	for _, it := range p.Items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

// SetItemStatus moves the items matching externalItemIDs to target,
// returning how many items actually changed. Illegal transitions are
// skipped; re-delivered webhooks therefore cannot move an item twice.
func (p *Payment) SetItemStatus(externalItemIDs []string, target ItemStatus) int {
	wanted := make(map[string]bool, len(externalItemIDs))
	for _, eid := range externalItemIDs {
		wanted[eid] = true
	}

	changed := 0
	for i := range p.Items {
		it := &p.Items[i]
		if !wanted[it.ExternalItemID] || it.Status == target {
			continue
		}
		if !it.Status.CanTransitionTo(target) {
			continue
		}
		it.Status = target
		changed++
	}
	if changed > 0 {
		p.UpdatedAt = biztime.NowUTC()
	}
	return changed
}

// RevertItemsToPaid forces the matching items back to paid regardless
// of their current state. Only chargeback reversals call this.
func (p *Payment) RevertItemsToPaid(externalItemIDs []string) int {
	wanted := make(map[string]bool, len(externalItemIDs))
	for _, eid := range externalItemIDs {
		wanted[eid] = true
	}

	changed := 0
	for i := range p.Items {
		it := &p.Items[i]
		if !wanted[it.ExternalItemID] || it.Status == ItemPaid {
			continue
		}
		it.Status = ItemPaid
		changed++
	}
	if changed > 0 {
		p.UpdatedAt = biztime.NowUTC()
	}
	return changed
}
