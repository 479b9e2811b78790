package payment

import (
	"context"
	"strings"

	"volt/internal/domain/catalog"
	"volt/internal/domain/payment"
	"volt/internal/domain/subscription"
	"volt/internal/shared/logger"
)

// ReceiptMailer sends payment lifecycle mail. Implemented by the email
// service.
type ReceiptMailer interface {
	SendPaymentReceipt(to, productName string, amount int64, currencyCode string) error
	SendSubscriptionCanceled(to, productName string) error
}

// EmailLookup resolves an account uid to its email address.
type EmailLookup func(ctx context.Context, uid string) (string, error)

// MailHooks emails customers after payment transitions commit. Failures
// are logged by the engine and never affect reconciliation.
type MailHooks struct {
	mailer  ReceiptMailer
	catalog *catalog.Catalog
	subs    subscription.Repository
	lookup  EmailLookup
	log     logger.Interface
}

func NewMailHooks(mailer ReceiptMailer, cat *catalog.Catalog, subs subscription.Repository, lookup EmailLookup, log logger.Interface) *MailHooks {
	return &MailHooks{mailer: mailer, catalog: cat, subs: subs, lookup: lookup, log: log.Named("mailhooks")}
}

func (h *MailHooks) OnPayment(_ context.Context, p *payment.Payment) {
	if p.Email == "" {
		return
	}

	var total int64
	currency := ""
	names := make([]string, 0, len(p.Items))
	// Item amounts are stored per unit.
	for _, item := range p.Items {
		total += item.Total * int64(item.Quantity)
		if currency == "" {
			currency = item.Currency
		}
		names = append(names, h.productName(item.ProductID))
	}

	if err := h.mailer.SendPaymentReceipt(p.Email, strings.Join(names, ", "), total, currency); err != nil {
		h.log.Warnw("failed to send payment receipt", "payment", p.ID, "error", err)
	}
}

func (h *MailHooks) OnSubscriptionActivated(context.Context, string, string, string) {}

func (h *MailHooks) OnSubscriptionCanceled(ctx context.Context, uid, externalSubscriptionID string) {
	email, err := h.lookup(ctx, uid)
	if err != nil || email == "" {
		h.log.Warnw("no address for cancellation mail", "uid", uid, "error", err)
		return
	}

	if err := h.mailer.SendSubscriptionCanceled(email, h.subscriptionName(ctx, externalSubscriptionID)); err != nil {
		h.log.Warnw("failed to send cancellation mail", "uid", uid, "error", err)
	}
}

func (h *MailHooks) OnRefund(context.Context, *payment.Payment, []string) {}

func (h *MailHooks) productName(productID string) string {
	if p, ok := h.catalog.Product(productID); ok {
		return p.Name
	}
	if plan, ok := h.catalog.Plan(productID); ok {
		return plan.Name
	}
	return productID
}

// subscriptionName names the family a cancelled subscription belonged
// to, via the subscription record's plans. Falls back to a generic
// label when the record or its plan is gone.
func (h *MailHooks) subscriptionName(ctx context.Context, externalID string) string {
	sub, err := h.subs.GetByExternalID(ctx, externalID)
	if err != nil || len(sub.PlanIDs) == 0 {
		return "your subscription"
	}
	if parent, ok := h.catalog.ParentOf(sub.PlanIDs[0]); ok {
		if p, found := h.catalog.Product(parent); found {
			return p.Name
		}
	}
	return h.productName(sub.PlanIDs[0])
}
