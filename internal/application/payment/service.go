package payment

import (
	"context"
	"strconv"
	"sync"

	"volt/internal/domain/catalog"
	"volt/internal/domain/payment"
	"volt/internal/domain/subscription"
	"volt/internal/infrastructure/paddle"
	"volt/internal/shared/biztime"
	"volt/internal/shared/errors"
	"volt/internal/shared/logger"
)

// Processor is the outbound surface of the payment processor the
// engine depends on. Satisfied by paddle.Client; tests substitute a
// fake.
type Processor interface {
	ListActiveProducts(ctx context.Context) ([]paddle.Product, error)
	CreateProduct(ctx context.Context, p paddle.Product) (paddle.Product, error)
	UpdateProduct(ctx context.Context, productID string, p paddle.Product) (paddle.Product, error)
	CreatePrice(ctx context.Context, p paddle.Price) (paddle.Price, error)
	UpdatePrice(ctx context.Context, priceID string, p paddle.Price) (paddle.Price, error)
	GetTransaction(ctx context.Context, transactionID string) (*paddle.Transaction, error)
	GetCustomer(ctx context.Context, customerID string) (*paddle.Customer, error)
	GetBusiness(ctx context.Context, customerID, businessID string) (*paddle.Business, error)
	CreateAdjustment(ctx context.Context, transactionID string, itemIDs []string) (*paddle.Adjustment, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error
	ListNotificationSettings(ctx context.Context) ([]paddle.NotificationSetting, error)
	CreateNotificationSetting(ctx context.Context, s paddle.NotificationSetting) error
	UpdateNotificationSetting(ctx context.Context, settingID string, s paddle.NotificationSetting) error
}

// Service is the payment reconciliation engine: it syncs the product
// catalog against the processor, consumes webhook events, and serves
// the customer-facing payment and subscription operations.
type Service struct {
	payments  payment.Repository
	subs      subscription.Repository
	active    subscription.ActiveIndexRepository
	states    catalog.StateRepository
	catalog   *catalog.Catalog
	processor Processor
	hooks     payment.Hooks
	log       logger.Interface

	// state is the id-resolution cache populated by Sync before the
	// server starts accepting webhooks.
	mu    sync.RWMutex
	state *catalog.State
}

func NewService(
	payments payment.Repository,
	subs subscription.Repository,
	active subscription.ActiveIndexRepository,
	states catalog.StateRepository,
	cat *catalog.Catalog,
	processor Processor,
	hooks payment.Hooks,
	log logger.Interface,
) *Service {
	if hooks == nil {
		hooks = payment.NoopHooks{}
	}
	return &Service{
		payments:  payments,
		subs:      subs,
		active:    active,
		states:    states,
		catalog:   cat,
		processor: processor,
		hooks:     hooks,
		log:       log.Named("payment"),
		state:     &catalog.State{Resolution: map[string]catalog.ExternalIDs{}},
	}
}

func (s *Service) currentState() *catalog.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(st *catalog.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Catalog exposes the loaded product definitions for listing endpoints.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// CartItem is one entry of a checkout request.
type CartItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// ResolvedCartItem carries the external price id the client-side
// checkout needs.
type ResolvedCartItem struct {
	ProductID string `json:"product_id"`
	PriceID   string `json:"price_id"`
	Quantity  int    `json:"quantity"`
}

// InitCart validates a cart against the catalog and resolves each
// entry to its external price id.
func (s *Service) InitCart(ctx context.Context, items []CartItem) ([]ResolvedCartItem, error) {
	if len(items) == 0 {
		return nil, errors.NewValidationError("cart is empty")
	}

	state := s.currentState()
	out := make([]ResolvedCartItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.NewValidationError("quantity must be positive")
		}
		if _, isProduct := s.catalog.Product(item.ProductID); !isProduct {
			if _, isPlan := s.catalog.Plan(item.ProductID); !isPlan {
				return nil, errors.NewValidationError("unknown product: " + item.ProductID)
			}
		}
		ids, ok := state.Resolve(item.ProductID)
		if !ok || ids.PriceID == "" {
			return nil, errors.NewInternalError("product not synced with processor: " + item.ProductID)
		}
		out = append(out, ResolvedCartItem{
			ProductID: item.ProductID,
			PriceID:   ids.PriceID,
			Quantity:  item.Quantity,
		})
	}
	return out, nil
}

// GetPayment returns one of the caller's payments. Other users'
// payments are indistinguishable from missing ones.
func (s *Service) GetPayment(ctx context.Context, uid, paymentID string) (*payment.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UID != uid {
		return nil, errors.NewNotFoundError("payment not found")
	}
	return p, nil
}

// ListPayments returns the caller's payments within the last `days`
// days (0 means unbounded), newest first.
func (s *Service) ListPayments(ctx context.Context, uid string, days, limit int, status payment.Status) ([]*payment.Payment, error) {
	filter := payment.ListFilter{Limit: limit, Status: status}
	if days > 0 {
		filter.Since = biztime.DaysAgoUTC(days)
	}
	return s.payments.ListByUID(ctx, uid, filter)
}

// ListRefundable returns payments that still carry at least one
// refundable item.
func (s *Service) ListRefundable(ctx context.Context, uid string, days, limit int) ([]*payment.Payment, error) {
	return s.listWithItemFilter(ctx, uid, days, limit, func(p *payment.Payment) bool {
		return len(p.RefundableItems()) > 0
	})
}

// ListRefunded returns payments with at least one refunded item.
func (s *Service) ListRefunded(ctx context.Context, uid string, days, limit int) ([]*payment.Payment, error) {
	return s.listWithItemFilter(ctx, uid, days, limit, func(p *payment.Payment) bool {
		return len(p.ItemsWithStatus(payment.ItemRefunded)) > 0
	})
}

// ListRefunding returns payments with at least one refund in flight.
func (s *Service) ListRefunding(ctx context.Context, uid string, days, limit int) ([]*payment.Payment, error) {
	return s.listWithItemFilter(ctx, uid, days, limit, func(p *payment.Payment) bool {
		return len(p.ItemsWithStatus(payment.ItemRefunding)) > 0
	})
}

func (s *Service) listWithItemFilter(ctx context.Context, uid string, days, limit int, keep func(*payment.Payment) bool) ([]*payment.Payment, error) {
	// The subset predicate depends on item statuses, so the limit is
	// applied after filtering.
	all, err := s.ListPayments(ctx, uid, days, 0, "")
	if err != nil {
		return nil, err
	}
	out := make([]*payment.Payment, 0, len(all))
	for _, p := range all {
		if keep(p) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Refund requests a full-amount refund for the given external item ids
// of one payment, or for every refundable item when none are given.
// Items already refunded or refunding are excluded from the upstream
// request. Item state moves to refunded when the processor approves
// synchronously, refunding otherwise; the adjustment webhook settles
// the final state.
func (s *Service) Refund(ctx context.Context, uid, paymentID string, externalItemIDs []string) (*payment.Payment, error) {
	p, err := s.GetPayment(ctx, uid, paymentID)
	if err != nil {
		return nil, err
	}

	refundable := map[string]bool{}
	for _, it := range p.RefundableItems() {
		refundable[it.ExternalItemID] = true
	}

	var requested []string
	if len(externalItemIDs) == 0 {
		for _, it := range p.RefundableItems() {
			requested = append(requested, it.ExternalItemID)
		}
	} else {
		for _, eid := range externalItemIDs {
			if refundable[eid] {
				requested = append(requested, eid)
			}
		}
	}
	if len(requested) == 0 {
		return nil, errors.NewValidationError("nothing to refund")
	}

	adj, err := s.processor.CreateAdjustment(ctx, p.TransactionID, requested)
	if err != nil {
		return nil, err
	}

	target := payment.ItemRefunding
	if adj.Status == paddle.AdjustmentApproved {
		target = payment.ItemRefunded
	}
	if p.SetItemStatus(requested, target) > 0 {
		if err := s.payments.Update(ctx, p); err != nil {
			return nil, err
		}
	}

	s.runHook("on_refund", func() { s.hooks.OnRefund(ctx, p, requested) })
	s.log.Infow("refund requested", "payment", p.ID, "items", len(requested), "adjustment_status", adj.Status)
	return p, nil
}

// CancelSubscription cancels the caller's subscription to a product.
// The product may be a subscription family id or a single plan id. The
// cancellation is scheduled for the end of the billing period; the
// index entry is removed by the cancellation webhook, not here.
func (s *Service) CancelSubscription(ctx context.Context, uid, productID string) error {
	planIDs := s.planIDsFor(productID)
	if len(planIDs) == 0 {
		return errors.NewValidationError("unknown product: " + productID)
	}

	entries, err := s.active.ListByUIDAndPlans(ctx, uid, planIDs)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return subscription.ErrNothingToCancel
	}

	cancelled := map[string]bool{}
	for _, entry := range entries {
		if cancelled[entry.ExternalSubscriptionID] {
			continue
		}
		cancelled[entry.ExternalSubscriptionID] = true

		if err := s.processor.CancelSubscription(ctx, entry.ExternalSubscriptionID, false); err != nil {
			return err
		}
		if err := s.markCancelling(ctx, entry.ExternalSubscriptionID); err != nil {
			s.log.Warnw("failed to mark subscription cancelling",
				"external_id", entry.ExternalSubscriptionID, "error", err)
		}
	}
	return nil
}

func (s *Service) markCancelling(ctx context.Context, externalID string) error {
	sub, err := s.subs.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if err := sub.Cancel(false); err != nil {
		return err
	}
	return s.subs.Update(ctx, sub)
}

// planIDsFor expands a product reference into the plan ids it covers:
// every plan of a subscription family, or the plan itself.
func (s *Service) planIDsFor(productID string) []string {
	if product, ok := s.catalog.Product(productID); ok && product.Subscription {
		ids := make([]string, len(product.Plans))
		for i := range product.Plans {
			ids[i] = product.Plans[i].ID
		}
		return ids
	}
	if _, ok := s.catalog.Plan(productID); ok {
		return []string{productID}
	}
	return nil
}

// ActiveSubscriptions returns the caller's active-subscription index
// entries.
func (s *Service) ActiveSubscriptions(ctx context.Context, uid string) ([]*subscription.ActiveEntry, error) {
	return s.active.ListByUID(ctx, uid)
}

// Subscribed reports whether the user holds any active plan of the
// given product. Index existence is the authoritative predicate.
func (s *Service) Subscribed(ctx context.Context, uid, productID string) (bool, error) {
	planIDs := s.planIDsFor(productID)
	if len(planIDs) == 0 {
		return false, errors.NewValidationError("unknown product: " + productID)
	}
	entries, err := s.active.ListByUIDAndPlans(ctx, uid, planIDs)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// PurgeUser removes every payment and subscription record for a uid.
// Called from account deletion.
func (s *Service) PurgeUser(ctx context.Context, uid string) error {
	if err := s.active.DeleteByUID(ctx, uid); err != nil {
		return err
	}
	if err := s.subs.DeleteByUID(ctx, uid); err != nil {
		return err
	}
	return s.payments.DeleteByUID(ctx, uid)
}

// runHook invokes an observer callback. Hook failures never abort the
// state transition that triggered them.
func (s *Service) runHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("hook failed", "hook", name, "panic", r)
		}
	}()
	fn()
}

func parseMinorUnits(amount string) int64 {
	if amount == "" {
		return 0
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
