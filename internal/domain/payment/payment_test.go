package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment("usr_abc", "txn_1", StatusPaid)
	require.NoError(t, err)
	for _, eid := range []string{"itm_1", "itm_2", "itm_3"} {
		item, err := NewItem("ebook", eid, 1, 100, 0, 900, 1000, "usd")
		require.NoError(t, err)
		p.AddItem(item)
	}
	return p
}

func TestNewPaymentID(t *testing.T) {
	p, err := NewPayment("usr_abc", "txn_1", StatusPaid)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.ID, "usr_abc_"))
	assert.Equal(t, "usr_abc", p.UID)

	anon, err := NewPayment("", "txn_2", StatusOpen)
	require.NoError(t, err)
	assert.Equal(t, AnonymousUID, anon.UID)
	assert.True(t, strings.HasPrefix(anon.ID, AnonymousUID+"_"))
}

// The stored money fields are per-unit: per-line amounts divided by
// quantity. Mails and invoices depend on this; the division must not
// be changed.
func TestItemMoneyDividedByQuantity(t *testing.T) {
	item, err := NewItem("ebook", "itm_1", 4, 400, 80, 3600, 4000, "usd")
	require.NoError(t, err)

	assert.Equal(t, int64(100), item.Tax)
	assert.Equal(t, int64(20), item.Discount)
	assert.Equal(t, int64(900), item.Subtotal)
	assert.Equal(t, int64(1000), item.Total)

	p, err := NewPayment("usr_abc", "txn_1", StatusPaid)
	require.NoError(t, err)
	p.AddItem(item)
	assert.Equal(t, int64(4000), p.Total(), "payment total multiplies back by quantity")
}

func TestNewItemRejectsNonPositiveQuantity(t *testing.T) {
	_, err := NewItem("ebook", "itm_1", 0, 0, 0, 0, 0, "usd")
	assert.Error(t, err)
}

func TestStatusFromProcessor(t *testing.T) {
	tests := []struct {
		remote string
		want   Status
	}{
		{"draft", StatusOpen},
		{"ready", StatusOpen},
		{"billed", StatusPaid},
		{"paid", StatusPaid},
		{"completed", StatusPaid},
		{"past_due", StatusPastDue},
		{"something_else", StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFromProcessor(tt.remote), tt.remote)
	}
}

func TestRefundableItems(t *testing.T) {
	p := paidPayment(t)
	assert.Len(t, p.RefundableItems(), 3)

	p.SetItemStatus([]string{"itm_1"}, ItemRefunded)
	p.SetItemStatus([]string{"itm_2"}, ItemRefunding)
	assert.Len(t, p.RefundableItems(), 1)

	open, err := NewPayment("usr_abc", "txn_2", StatusOpen)
	require.NoError(t, err)
	item, err := NewItem("ebook", "itm_9", 1, 0, 0, 900, 1000, "usd")
	require.NoError(t, err)
	open.AddItem(item)
	assert.Nil(t, open.RefundableItems(), "only paid payments are refundable")
}

func TestSetItemStatusPartialRefund(t *testing.T) {
	p := paidPayment(t)

	changed := p.SetItemStatus([]string{"itm_1", "itm_2"}, ItemRefunded)
	assert.Equal(t, 2, changed)
	assert.Len(t, p.ItemsWithStatus(ItemPaid), 1)
	assert.Len(t, p.ItemsWithStatus(ItemRefunded), 2)
}

func TestSetItemStatusIdempotent(t *testing.T) {
	p := paidPayment(t)

	require.Equal(t, 1, p.SetItemStatus([]string{"itm_1"}, ItemRefunded))
	assert.Equal(t, 0, p.SetItemStatus([]string{"itm_1"}, ItemRefunded), "re-delivery changes nothing")
	assert.Equal(t, 0, p.SetItemStatus([]string{"itm_1"}, ItemRefunding), "refunded is terminal")
}

func TestRevertItemsToPaid(t *testing.T) {
	p := paidPayment(t)
	p.SetItemStatus([]string{"itm_1", "itm_2"}, ItemRefunded)

	changed := p.RevertItemsToPaid([]string{"itm_1"})
	assert.Equal(t, 1, changed)
	assert.Len(t, p.ItemsWithStatus(ItemPaid), 2)
	assert.Len(t, p.ItemsWithStatus(ItemRefunded), 1)

	assert.Equal(t, 0, p.RevertItemsToPaid([]string{"itm_1"}), "already paid")
}
