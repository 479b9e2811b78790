package payment

import (
	"context"
	"fmt"

	"volt/internal/domain/payment"
	"volt/internal/domain/subscription"
	"volt/internal/infrastructure/paddle"
	"volt/internal/shared/errors"
)

// HandleEvent applies one webhook event to local state. Every handler
// is idempotent with respect to re-delivery. Errors returned here are
// logged by the webhook endpoint, never surfaced to the sender.
func (s *Service) HandleEvent(ctx context.Context, ev paddle.Event) error {
	switch e := ev.(type) {
	case *paddle.TransactionEvent:
		return s.handleTransactionPaid(ctx, &e.Transaction)
	case *paddle.SubscriptionEvent:
		switch e.Type {
		case paddle.EventSubscriptionActivated, paddle.EventSubscriptionTrialing, paddle.EventSubscriptionResumed:
			return s.handleSubscriptionActivated(ctx, &e.Subscription)
		case paddle.EventSubscriptionCanceled, paddle.EventSubscriptionPaused:
			return s.handleSubscriptionCanceled(ctx, &e.Subscription)
		}
		s.log.Warnw("unhandled subscription event", "event_type", e.Type)
		return nil
	case *paddle.AdjustmentEvent:
		return s.handleAdjustmentUpdated(ctx, &e.Adjustment)
	case *paddle.UnknownEvent:
		s.log.Infow("ignoring unhandled event type", "event_type", e.Type)
		return nil
	default:
		return fmt.Errorf("unexpected event variant %T", ev)
	}
}

func (s *Service) handleTransactionPaid(ctx context.Context, notified *paddle.Transaction) error {
	// Re-delivery: the transaction was already reconciled.
	if _, err := s.payments.GetByTransactionID(ctx, notified.ID); err == nil {
		s.log.Infow("transaction already recorded", "transaction_id", notified.ID)
		return nil
	} else if !errors.IsNotFound(err) {
		return err
	}

	// The webhook payload omits line items and adjustments; fetch the
	// full transaction.
	txn, err := s.processor.GetTransaction(ctx, notified.ID)
	if err != nil {
		return err
	}

	status := payment.StatusFromProcessor(txn.Status)
	if status == payment.StatusUnknown {
		s.log.Warnw("unknown transaction status", "transaction_id", txn.ID, "status", txn.Status)
	}

	uid := customDataString(txn.CustomData, "uid")
	p, err := payment.NewPayment(uid, txn.ID, status)
	if err != nil {
		return err
	}
	p.Email, p.Name = s.billingDetails(ctx, txn)

	if txn.Details != nil {
		currency := ""
		if txn.Details.Totals != nil {
			currency = txn.Details.Totals.CurrencyCode
		}
		for _, li := range txn.Details.LineItems {
			item, err := s.buildItem(li, currency)
			if err != nil {
				return err
			}
			p.AddItem(item)
		}
	}

	// Adjustments issued before this webhook arrived are applied
	// retroactively so the record lands in its settled state.
	for i := range txn.Adjustments {
		s.applyAdjustment(p, &txn.Adjustments[i])
	}

	if err := s.payments.Create(ctx, p); err != nil {
		if errors.IsConflict(err) {
			// A concurrent delivery won the race.
			return nil
		}
		return err
	}

	s.log.Infow("payment recorded", "payment", p.ID, "transaction_id", txn.ID, "items", len(p.Items))
	s.runHook("on_payment", func() { s.hooks.OnPayment(ctx, p) })

	return s.cancelSiblingPlans(ctx, p)
}

// billingDetails resolves the payer's email and name with a fixed
// precedence: business contact, then customer record, then the name
// carried in custom data.
func (s *Service) billingDetails(ctx context.Context, txn *paddle.Transaction) (email, name string) {
	if txn.BusinessID != "" {
		if biz, err := s.processor.GetBusiness(ctx, txn.CustomerID, txn.BusinessID); err == nil {
			email, name = biz.ContactEmail, biz.Name
		} else {
			s.log.Warnw("failed to fetch business contact", "transaction_id", txn.ID, "error", err)
		}
	}
	if email == "" && txn.CustomerID != "" {
		if cust, err := s.processor.GetCustomer(ctx, txn.CustomerID); err == nil {
			email = cust.Email
			if name == "" {
				name = cust.Name
			}
		} else {
			s.log.Warnw("failed to fetch customer", "transaction_id", txn.ID, "error", err)
		}
	}
	if name == "" {
		name = customDataString(txn.CustomData, "name")
	}
	return email, name
}

func (s *Service) buildItem(li paddle.LineItem, currency string) (payment.Item, error) {
	productID, ok := s.currentState().LocalIDForPrice(li.PriceID)
	if !ok {
		// Tolerated: the price was created outside the synced catalog.
		s.log.Warnw("line item price has no local product", "price_id", li.PriceID)
		productID = li.PriceID
	}
	return payment.NewItem(
		productID,
		li.ID,
		li.Quantity,
		parseMinorUnits(li.Totals.Tax),
		parseMinorUnits(li.Totals.Discount),
		parseMinorUnits(li.Totals.Subtotal),
		parseMinorUnits(li.Totals.Total),
		currency,
	)
}

// cancelSiblingPlans enforces one active plan per subscription family:
// buying plan B cancels any still-active sibling plan A for the same
// user.
func (s *Service) cancelSiblingPlans(ctx context.Context, p *payment.Payment) error {
	if p.UID == payment.AnonymousUID {
		return nil
	}

	for _, item := range p.Items {
		siblings := s.catalog.SiblingPlans(item.ProductID)
		if len(siblings) == 0 {
			continue
		}

		entries, err := s.active.ListByUIDAndPlans(ctx, p.UID, siblings)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			s.log.Infow("cancelling sibling plan",
				"uid", p.UID, "plan", entry.PlanID, "replaced_by", item.ProductID)

			if err := s.processor.CancelSubscription(ctx, entry.ExternalSubscriptionID, true); err != nil {
				s.log.Errorw("failed to cancel sibling subscription",
					"external_id", entry.ExternalSubscriptionID, "error", err)
				continue
			}
			if err := s.active.Delete(ctx, entry.UID, entry.PlanID); err != nil {
				return err
			}
			if err := s.markCancelled(ctx, entry.ExternalSubscriptionID); err != nil && !errors.IsNotFound(err) {
				s.log.Warnw("failed to mark sibling subscription cancelled",
					"external_id", entry.ExternalSubscriptionID, "error", err)
			}
		}
	}
	return nil
}

func (s *Service) markCancelled(ctx context.Context, externalID string) error {
	sub, err := s.subs.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if err := sub.Transition(subscription.StatusCancelled); err != nil {
		return err
	}
	return s.subs.Update(ctx, sub)
}

func (s *Service) handleSubscriptionActivated(ctx context.Context, remote *paddle.Subscription) error {
	uid := customDataString(remote.CustomData, "uid")
	if uid == "" {
		// Without a uid the subscription cannot be attributed. This is
		// a data inconsistency that needs manual intervention.
		s.log.Errorw("subscription activation carries no uid, manual intervention required",
			"external_id", remote.ID)
		return nil
	}

	state := s.currentState()
	var planIDs []string
	for _, item := range remote.Items {
		planID, ok := state.LocalIDForPrice(item.Price.ID)
		if !ok {
			s.log.Errorw("subscription item price has no local plan, manual intervention required",
				"external_id", remote.ID, "price_id", item.Price.ID)
			continue
		}
		planIDs = append(planIDs, planID)
	}
	if len(planIDs) == 0 {
		return nil
	}

	if err := s.upsertSubscriptionRecord(ctx, uid, remote, planIDs); err != nil {
		return err
	}

	for _, planID := range planIDs {
		entry, err := subscription.NewActiveEntry(uid, planID, remote.ID)
		if err != nil {
			return err
		}
		if err := s.active.Upsert(ctx, entry); err != nil {
			return err
		}

		planID := planID
		s.runHook("on_subscription_activated", func() {
			s.hooks.OnSubscriptionActivated(ctx, uid, planID, remote.ID)
		})
	}

	s.log.Infow("subscription activated", "uid", uid, "external_id", remote.ID, "plans", planIDs)
	return nil
}

func (s *Service) upsertSubscriptionRecord(ctx context.Context, uid string, remote *paddle.Subscription, planIDs []string) error {
	existing, err := s.subs.GetByExternalID(ctx, remote.ID)
	if err != nil {
		if !errors.IsNotFound(err) {
			return err
		}
		sub, err := subscription.NewSubscription(uid, remote.ID, remote.CustomerID, planIDs)
		if err != nil {
			return err
		}
		if err := s.subs.Create(ctx, sub); err != nil && !errors.IsConflict(err) {
			return err
		}
		return nil
	}

	existing.PlanIDs = planIDs
	if existing.Status != subscription.StatusActive {
		// Re-delivery after cancellation, or a resume we cannot express
		// as a forward transition. The index entry above is what grants
		// access; the record keeps its terminal status.
		s.log.Warnw("activation for non-active subscription record",
			"external_id", remote.ID, "status", existing.Status)
	}
	return s.subs.Update(ctx, existing)
}

func (s *Service) handleSubscriptionCanceled(ctx context.Context, remote *paddle.Subscription) error {
	sub, err := s.subs.GetByExternalID(ctx, remote.ID)
	if err != nil {
		// Unlike unresolvable products, a cancellation for a record we
		// never created is a bug worth failing loudly on.
		return fmt.Errorf("cancellation for unknown subscription %s: %w", remote.ID, err)
	}

	if err := s.active.DeleteByExternalID(ctx, remote.ID); err != nil {
		return err
	}
	if err := sub.Transition(subscription.StatusCancelled); err != nil {
		return err
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.runHook("on_subscription_canceled", func() {
		s.hooks.OnSubscriptionCanceled(ctx, sub.UID, sub.ExternalID)
	})

	s.log.Infow("subscription cancelled", "uid", sub.UID, "external_id", sub.ExternalID)
	return nil
}

func (s *Service) handleAdjustmentUpdated(ctx context.Context, adj *paddle.Adjustment) error {
	if adj.Status == paddle.AdjustmentPendingApproval {
		return nil
	}

	p, err := s.payments.GetByTransactionID(ctx, adj.TransactionID)
	if err != nil {
		return fmt.Errorf("adjustment for unknown transaction %s: %w", adj.TransactionID, err)
	}

	changed := s.applyAdjustment(p, adj)
	if changed == 0 {
		return nil
	}
	if err := s.payments.Update(ctx, p); err != nil {
		return err
	}

	if adj.Status == paddle.AdjustmentApproved &&
		(adj.Action == paddle.AdjustmentRefund || adj.Action == paddle.AdjustmentChargeback) {
		itemIDs := adjustmentItemIDs(adj)
		s.runHook("on_refund", func() { s.hooks.OnRefund(ctx, p, itemIDs) })

		if err := s.cancelAssociatedSubscription(ctx, adj.TransactionID); err != nil {
			s.log.Errorw("failed to cancel subscription after refund",
				"transaction_id", adj.TransactionID, "error", err)
		}
	}
	return nil
}

// applyAdjustment flips item statuses for one adjustment and returns
// how many items changed. Approved refunds and chargebacks move items
// to refunded, rejections move in-flight items back to paid, and
// chargeback reversals force items back to paid.
func (s *Service) applyAdjustment(p *payment.Payment, adj *paddle.Adjustment) int {
	if adj.Status == paddle.AdjustmentPendingApproval {
		return 0
	}
	itemIDs := adjustmentItemIDs(adj)

	if adj.Action == paddle.AdjustmentChargebackReverse {
		return p.RevertItemsToPaid(itemIDs)
	}

	switch adj.Status {
	case paddle.AdjustmentApproved:
		return p.SetItemStatus(itemIDs, payment.ItemRefunded)
	case paddle.AdjustmentRejected, paddle.AdjustmentReversed:
		return p.SetItemStatus(itemIDs, payment.ItemPaid)
	default:
		s.log.Warnw("unhandled adjustment status", "adjustment", adj.ID, "status", adj.Status)
		return 0
	}
}

// cancelAssociatedSubscription immediately cancels the subscription a
// refunded transaction belongs to, if any.
func (s *Service) cancelAssociatedSubscription(ctx context.Context, transactionID string) error {
	txn, err := s.processor.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.SubscriptionID == "" {
		return nil
	}

	if err := s.processor.CancelSubscription(ctx, txn.SubscriptionID, true); err != nil {
		return err
	}
	if err := s.active.DeleteByExternalID(ctx, txn.SubscriptionID); err != nil {
		return err
	}

	sub, err := s.subs.GetByExternalID(ctx, txn.SubscriptionID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := sub.Transition(subscription.StatusCancelled); err != nil {
		return err
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.runHook("on_subscription_canceled", func() {
		s.hooks.OnSubscriptionCanceled(ctx, sub.UID, sub.ExternalID)
	})
	return nil
}

func adjustmentItemIDs(adj *paddle.Adjustment) []string {
	ids := make([]string, 0, len(adj.Items))
	for _, it := range adj.Items {
		ids = append(ids, it.ItemID)
	}
	return ids
}

func customDataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	v, _ := data[key].(string)
	return v
}
