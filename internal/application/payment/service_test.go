package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"volt/internal/domain/catalog"
	"volt/internal/domain/payment"
	"volt/internal/domain/subscription"
	"volt/internal/infrastructure/paddle"
	"volt/internal/infrastructure/persistence/models"
	"volt/internal/infrastructure/repository"
	"volt/internal/shared/errors"
	"volt/internal/shared/logger"
)

const testCatalogYAML = `
products:
  - id: gadget
    name: Gadget
    description: A gadget
    price: 1000
    currency: USD
  - name: Pro
    subscription: true
    currency: USD
    plans:
      - id: pro_month
        name: Pro Monthly
        price: 500
        interval: month
      - id: pro_year
        name: Pro Yearly
        price: 5000
        interval: year
`

type cancelCall struct {
	subscriptionID string
	immediate      bool
}

type adjustmentCall struct {
	transactionID string
	itemIDs       []string
}

// fakeProcessor is an in-memory stand-in for the processor REST API.
type fakeProcessor struct {
	mu sync.Mutex

	products     []paddle.Product
	transactions map[string]*paddle.Transaction
	customers    map[string]*paddle.Customer
	businesses   map[string]*paddle.Business
	settings     []paddle.NotificationSetting

	// adjustmentStatus is what CreateAdjustment reports back.
	adjustmentStatus string

	listCalls       int
	adjustments     []adjustmentCall
	cancellations   []cancelCall
	createdSettings int
	updatedSettings int

	nextID int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		transactions:     map[string]*paddle.Transaction{},
		customers:        map[string]*paddle.Customer{},
		businesses:       map[string]*paddle.Business{},
		adjustmentStatus: paddle.AdjustmentPendingApproval,
	}
}

func (f *fakeProcessor) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeProcessor) ListActiveProducts(context.Context) ([]paddle.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]paddle.Product(nil), f.products...), nil
}

func (f *fakeProcessor) CreateProduct(_ context.Context, p paddle.Product) (paddle.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id("pro")
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeProcessor) UpdateProduct(_ context.Context, productID string, p paddle.Product) (paddle.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == productID {
			prices := f.products[i].Prices
			p.ID = productID
			p.Prices = prices
			f.products[i] = p
			return p, nil
		}
	}
	return paddle.Product{}, errors.NewNotFoundError("no such product")
}

func (f *fakeProcessor) CreatePrice(_ context.Context, p paddle.Price) (paddle.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id("pri")
	for i := range f.products {
		if f.products[i].ID == p.ProductID {
			f.products[i].Prices = append(f.products[i].Prices, p)
			return p, nil
		}
	}
	return paddle.Price{}, errors.NewNotFoundError("no such product")
}

func (f *fakeProcessor) UpdatePrice(_ context.Context, priceID string, p paddle.Price) (paddle.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		for j := range f.products[i].Prices {
			if f.products[i].Prices[j].ID == priceID {
				p.ID = priceID
				f.products[i].Prices[j] = p
				return p, nil
			}
		}
	}
	return paddle.Price{}, errors.NewNotFoundError("no such price")
}

func (f *fakeProcessor) GetTransaction(_ context.Context, transactionID string) (*paddle.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.transactions[transactionID]
	if !ok {
		return nil, errors.NewExternalServiceError("transaction not found", 404)
	}
	return txn, nil
}

func (f *fakeProcessor) GetCustomer(_ context.Context, customerID string) (*paddle.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if !ok {
		return nil, errors.NewExternalServiceError("customer not found", 404)
	}
	return c, nil
}

func (f *fakeProcessor) GetBusiness(_ context.Context, _, businessID string) (*paddle.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[businessID]
	if !ok {
		return nil, errors.NewExternalServiceError("business not found", 404)
	}
	return b, nil
}

func (f *fakeProcessor) CreateAdjustment(_ context.Context, transactionID string, itemIDs []string) (*paddle.Adjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjustments = append(f.adjustments, adjustmentCall{transactionID: transactionID, itemIDs: itemIDs})
	return &paddle.Adjustment{
		ID:            f.id("adj"),
		Action:        paddle.AdjustmentRefund,
		Status:        f.adjustmentStatus,
		TransactionID: transactionID,
	}, nil
}

func (f *fakeProcessor) CancelSubscription(_ context.Context, subscriptionID string, immediate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations = append(f.cancellations, cancelCall{subscriptionID: subscriptionID, immediate: immediate})
	return nil
}

func (f *fakeProcessor) ListNotificationSettings(context.Context) ([]paddle.NotificationSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]paddle.NotificationSetting(nil), f.settings...), nil
}

func (f *fakeProcessor) CreateNotificationSetting(_ context.Context, s paddle.NotificationSetting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id("ntf")
	f.settings = append(f.settings, s)
	f.createdSettings++
	return nil
}

func (f *fakeProcessor) UpdateNotificationSetting(_ context.Context, settingID string, s paddle.NotificationSetting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.settings {
		if f.settings[i].ID == settingID {
			s.ID = settingID
			f.settings[i] = s
			f.updatedSettings++
			return nil
		}
	}
	return errors.NewNotFoundError("no such setting")
}

// recordingHooks counts observer invocations.
type recordingHooks struct {
	mu         sync.Mutex
	payments   int
	activated  []string
	canceled   []string
	refunds    int
	panicHooks bool
}

func (h *recordingHooks) OnPayment(context.Context, *payment.Payment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payments++
	if h.panicHooks {
		panic("hook failure")
	}
}

func (h *recordingHooks) OnSubscriptionActivated(_ context.Context, uid, planID, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activated = append(h.activated, uid+":"+planID)
}

func (h *recordingHooks) OnSubscriptionCanceled(_ context.Context, uid, externalID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canceled = append(h.canceled, uid+":"+externalID)
}

func (h *recordingHooks) OnRefund(context.Context, *payment.Payment, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refunds++
}

type engineFixture struct {
	svc       *Service
	processor *fakeProcessor
	hooks     *recordingHooks
	payments  payment.Repository
	subs      subscription.Repository
	active    subscription.ActiveIndexRepository
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.PaymentModel{},
		&models.SubscriptionModel{},
		&models.ActiveSubscriptionModel{},
		&models.CatalogStateModel{},
	))

	cat, err := catalog.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)

	processor := newFakeProcessor()
	hooks := &recordingHooks{}
	payments := repository.NewPaymentRepository(db)
	subs := repository.NewSubscriptionRepository(db)
	active := repository.NewActiveIndexRepository(db)

	svc := NewService(
		payments, subs, active,
		repository.NewCatalogStateRepository(db),
		cat, processor, hooks,
		logger.NewLogger(),
	)
	return &engineFixture{
		svc:       svc,
		processor: processor,
		hooks:     hooks,
		payments:  payments,
		subs:      subs,
		active:    active,
	}
}

// syncedFixture runs a full sync so the resolution map is populated.
func syncedFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := newEngineFixture(t)
	require.NoError(t, f.svc.Sync(context.Background(), SyncOptions{
		Policy:             SyncAutoApply,
		WebhookDestination: "https://volt.example/payments/webhook",
	}))
	return f
}

func (f *engineFixture) priceID(t *testing.T, localID string) string {
	t.Helper()
	ids, ok := f.svc.currentState().Resolve(localID)
	require.True(t, ok, "no resolution for %s", localID)
	return ids.PriceID
}

func TestSyncCreatesRemoteCatalog(t *testing.T) {
	f := syncedFixture(t)

	// gadget + two plans, each with one price.
	assert.Len(t, f.processor.products, 3)
	for _, localID := range []string{"gadget", "pro_month", "pro_year"} {
		ids, ok := f.svc.currentState().Resolve(localID)
		assert.True(t, ok, localID)
		assert.NotEmpty(t, ids.ProductID)
		assert.NotEmpty(t, ids.PriceID)
	}
	assert.Equal(t, 1, f.processor.createdSettings, "webhook registered once")

	// An unchanged catalog skips the remote scan and webhook calls.
	listCalls := f.processor.listCalls
	require.NoError(t, f.svc.Sync(context.Background(), SyncOptions{
		Policy:             SyncAutoApply,
		WebhookDestination: "https://volt.example/payments/webhook",
	}))
	assert.Equal(t, listCalls, f.processor.listCalls)
	assert.Equal(t, 1, f.processor.createdSettings)
	assert.Zero(t, f.processor.updatedSettings)
}

func TestSyncDryRunAppliesNothing(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.svc.Sync(context.Background(), SyncOptions{
		Policy:             SyncDryRun,
		WebhookDestination: "https://volt.example/payments/webhook",
	}))
	assert.Empty(t, f.processor.products)
	assert.Zero(t, f.processor.createdSettings)
}

func TestSyncPromptDeclined(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.svc.Sync(context.Background(), SyncOptions{
		Policy:  SyncPrompt,
		Confirm: func(string) bool { return false },
	}))
	assert.Empty(t, f.processor.products)

	require.NoError(t, f.svc.Sync(context.Background(), SyncOptions{
		Policy:  SyncPrompt,
		Confirm: func(string) bool { return true },
	}))
	assert.Len(t, f.processor.products, 3)
}

// seedTransaction registers a paid transaction with one line item per
// given (localID, quantity) pair.
func (f *engineFixture) seedTransaction(t *testing.T, txnID, uid string, items ...paddle.LineItem) *paddle.Transaction {
	t.Helper()
	txn := &paddle.Transaction{
		ID:         txnID,
		Status:     "completed",
		CustomerID: "ctm_1",
		CustomData: map[string]any{"uid": uid},
		Details: &paddle.TransactionDetails{
			LineItems: items,
			Totals:    &paddle.Totals{CurrencyCode: "USD"},
		},
	}
	f.processor.customers["ctm_1"] = &paddle.Customer{ID: "ctm_1", Name: "Alice", Email: "alice@example.com"}
	f.processor.transactions[txnID] = txn
	return txn
}

func lineItem(id, priceID string, quantity int, total string) paddle.LineItem {
	return paddle.LineItem{
		ID:       id,
		PriceID:  priceID,
		Quantity: quantity,
		Totals: paddle.LineItemTotals{
			Subtotal: total,
			Total:    total,
		},
	}
}

func TestTransactionPaidCreatesPayment(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	f.seedTransaction(t, "txn_1", "usr_alice",
		lineItem("txnitm_1", f.priceID(t, "gadget"), 2, "2000"))

	ev := &paddle.TransactionEvent{
		Type:        paddle.EventTransactionPaid,
		Transaction: paddle.Transaction{ID: "txn_1"},
	}
	require.NoError(t, f.svc.HandleEvent(ctx, ev))

	p, err := f.payments.GetByTransactionID(ctx, "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "usr_alice", p.UID)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "Alice", p.Name)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "gadget", p.Items[0].ProductID)
	assert.Equal(t, int64(1000), p.Items[0].Total, "stored per unit")
	assert.Equal(t, 1, f.hooks.payments)

	// Re-delivery is a no-op.
	require.NoError(t, f.svc.HandleEvent(ctx, ev))
	assert.Equal(t, 1, f.hooks.payments)
}

func TestTransactionPaidBusinessContactWins(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	txn := f.seedTransaction(t, "txn_1", "usr_alice",
		lineItem("txnitm_1", f.priceID(t, "gadget"), 1, "1000"))
	txn.BusinessID = "biz_1"
	f.processor.businesses["biz_1"] = &paddle.Business{
		ID: "biz_1", Name: "Alice GmbH", ContactEmail: "billing@alice.example",
	}

	require.NoError(t, f.svc.HandleEvent(ctx, &paddle.TransactionEvent{
		Type:        paddle.EventTransactionPaid,
		Transaction: paddle.Transaction{ID: "txn_1"},
	}))

	p, err := f.payments.GetByTransactionID(ctx, "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "billing@alice.example", p.Email)
	assert.Equal(t, "Alice GmbH", p.Name)
}

func TestTransactionPaidHookFailureDoesNotAbort(t *testing.T) {
	f := syncedFixture(t)
	f.hooks.panicHooks = true
	ctx := context.Background()

	f.seedTransaction(t, "txn_1", "usr_alice",
		lineItem("txnitm_1", f.priceID(t, "gadget"), 1, "1000"))

	require.NoError(t, f.svc.HandleEvent(ctx, &paddle.TransactionEvent{
		Type:        paddle.EventTransactionPaid,
		Transaction: paddle.Transaction{ID: "txn_1"},
	}))

	_, err := f.payments.GetByTransactionID(ctx, "txn_1")
	assert.NoError(t, err, "payment persisted despite hook panic")
}

func activateSubscription(t *testing.T, f *engineFixture, uid, extID, planID string) {
	t.Helper()
	ev := &paddle.SubscriptionEvent{
		Type: paddle.EventSubscriptionActivated,
		Subscription: paddle.Subscription{
			ID:         extID,
			Status:     "active",
			CustomerID: "ctm_1",
			CustomData: map[string]any{"uid": uid},
			Items: []paddle.SubscriptionItem{
				{Price: paddle.Price{ID: f.priceID(t, planID)}, Status: "active"},
			},
		},
	}
	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))
}

func TestSubscriptionActivation(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	activateSubscription(t, f, "usr_alice", "sub_ext_1", "pro_month")

	entries, err := f.active.ListByUID(ctx, "usr_alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pro_month", entries[0].PlanID)
	assert.Equal(t, "sub_ext_1", entries[0].ExternalSubscriptionID)
	assert.Equal(t, []string{"usr_alice:pro_month"}, f.hooks.activated)

	sub, err := f.subs.GetByExternalID(ctx, "sub_ext_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)

	subscribed, err := f.svc.Subscribed(ctx, "usr_alice", "sub_0")
	require.NoError(t, err)
	assert.True(t, subscribed, "family id resolves through the index")
}

func TestSubscriptionActivationUnresolvablePriceSkipped(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	ev := &paddle.SubscriptionEvent{
		Type: paddle.EventSubscriptionActivated,
		Subscription: paddle.Subscription{
			ID:         "sub_ext_9",
			CustomData: map[string]any{"uid": "usr_alice"},
			Items: []paddle.SubscriptionItem{
				{Price: paddle.Price{ID: "pri_unknown"}},
			},
		},
	}
	require.NoError(t, f.svc.HandleEvent(ctx, ev), "unresolvable product is logged, not fatal")

	entries, err := f.active.ListByUID(ctx, "usr_alice")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubscriptionCancellationWebhook(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	activateSubscription(t, f, "usr_alice", "sub_ext_1", "pro_month")

	ev := &paddle.SubscriptionEvent{
		Type:         paddle.EventSubscriptionCanceled,
		Subscription: paddle.Subscription{ID: "sub_ext_1"},
	}
	require.NoError(t, f.svc.HandleEvent(ctx, ev))

	entries, err := f.active.ListByUID(ctx, "usr_alice")
	require.NoError(t, err)
	assert.Empty(t, entries)

	sub, err := f.subs.GetByExternalID(ctx, "sub_ext_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, sub.Status)
	assert.Equal(t, []string{"usr_alice:sub_ext_1"}, f.hooks.canceled)

	// A cancellation for a record that was never created is a bug.
	assert.Error(t, f.svc.HandleEvent(ctx, &paddle.SubscriptionEvent{
		Type:         paddle.EventSubscriptionCanceled,
		Subscription: paddle.Subscription{ID: "sub_ext_unknown"},
	}))
}

func TestSiblingPlanExclusivity(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	// Alice holds the monthly plan.
	activateSubscription(t, f, "usr_alice", "sub_ext_1", "pro_month")

	// She buys the yearly plan of the same family.
	f.seedTransaction(t, "txn_2", "usr_alice",
		lineItem("txnitm_2", f.priceID(t, "pro_year"), 1, "5000"))
	require.NoError(t, f.svc.HandleEvent(ctx, &paddle.TransactionEvent{
		Type:        paddle.EventTransactionPaid,
		Transaction: paddle.Transaction{ID: "txn_2"},
	}))

	require.Len(t, f.processor.cancellations, 1)
	assert.Equal(t, cancelCall{subscriptionID: "sub_ext_1", immediate: true}, f.processor.cancellations[0])

	activateSubscription(t, f, "usr_alice", "sub_ext_2", "pro_year")

	entries, err := f.active.ListByUID(ctx, "usr_alice")
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one active plan per family")
	assert.Equal(t, "pro_year", entries[0].PlanID)
}

// paidPayment delivers a transaction.paid with three gadget line items
// and returns the stored payment.
func paidThreeItemPayment(t *testing.T, f *engineFixture, txnID string) *payment.Payment {
	t.Helper()
	ctx := context.Background()
	f.seedTransaction(t, txnID, "usr_alice",
		lineItem("itm_a", f.priceID(t, "gadget"), 1, "1000"),
		lineItem("itm_b", f.priceID(t, "gadget"), 1, "1000"),
		lineItem("itm_c", f.priceID(t, "gadget"), 1, "1000"))
	require.NoError(t, f.svc.HandleEvent(ctx, &paddle.TransactionEvent{
		Type:        paddle.EventTransactionPaid,
		Transaction: paddle.Transaction{ID: txnID},
	}))
	p, err := f.payments.GetByTransactionID(ctx, txnID)
	require.NoError(t, err)
	return p
}

func TestRefundSubsetOfItems(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()
	p := paidThreeItemPayment(t, f, "txn_1")

	got, err := f.svc.Refund(ctx, "usr_alice", p.ID, []string{"itm_a", "itm_b"})
	require.NoError(t, err)

	require.Len(t, f.processor.adjustments, 1)
	assert.ElementsMatch(t, []string{"itm_a", "itm_b"}, f.processor.adjustments[0].itemIDs)

	assert.Len(t, got.ItemsWithStatus(payment.ItemRefunding), 2)
	assert.Len(t, got.ItemsWithStatus(payment.ItemPaid), 1)
	assert.Equal(t, 1, f.hooks.refunds)
}

func TestRefundExcludesAlreadyRefundedItems(t *testing.T) {
	f := syncedFixture(t)
	f.processor.adjustmentStatus = paddle.AdjustmentApproved
	ctx := context.Background()
	p := paidThreeItemPayment(t, f, "txn_1")

	_, err := f.svc.Refund(ctx, "usr_alice", p.ID, []string{"itm_a"})
	require.NoError(t, err)

	// itm_a is refunded now; asking again must not reach the processor.
	_, err = f.svc.Refund(ctx, "usr_alice", p.ID, []string{"itm_a"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Len(t, f.processor.adjustments, 1)

	// A whole-payment refund covers only the remaining two.
	_, err = f.svc.Refund(ctx, "usr_alice", p.ID, nil)
	require.NoError(t, err)
	require.Len(t, f.processor.adjustments, 2)
	assert.ElementsMatch(t, []string{"itm_b", "itm_c"}, f.processor.adjustments[1].itemIDs)
}

func TestRefundOwnershipIsChecked(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()
	p := paidThreeItemPayment(t, f, "txn_1")

	_, err := f.svc.Refund(ctx, "usr_mallory", p.ID, nil)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.svc.GetPayment(ctx, "usr_mallory", p.ID)
	assert.True(t, errors.IsNotFound(err))
}

func adjustmentEvent(txnID, action, status string, itemIDs ...string) *paddle.AdjustmentEvent {
	items := make([]paddle.AdjustmentItem, len(itemIDs))
	for i, id := range itemIDs {
		items[i] = paddle.AdjustmentItem{ItemID: id, Type: "full"}
	}
	return &paddle.AdjustmentEvent{
		Type: paddle.EventAdjustmentUpdated,
		Adjustment: paddle.Adjustment{
			ID: "adj_ev", Action: action, Status: status,
			TransactionID: txnID, Items: items,
		},
	}
}

func TestAdjustmentLifecycle(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()
	p := paidThreeItemPayment(t, f, "txn_1")

	// Pending adjustments are ignored.
	require.NoError(t, f.svc.HandleEvent(ctx,
		adjustmentEvent("txn_1", paddle.AdjustmentRefund, paddle.AdjustmentPendingApproval, "itm_a")))
	got, err := f.payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.ItemsWithStatus(payment.ItemPaid), 3)

	// Approval flips the items and cancels the associated subscription.
	f.processor.transactions["txn_1"].SubscriptionID = "sub_ext_1"
	activateSubscription(t, f, "usr_alice", "sub_ext_1", "pro_month")

	require.NoError(t, f.svc.HandleEvent(ctx,
		adjustmentEvent("txn_1", paddle.AdjustmentRefund, paddle.AdjustmentApproved, "itm_a", "itm_b")))

	got, err = f.payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.ItemsWithStatus(payment.ItemRefunded), 2)
	assert.Len(t, got.ItemsWithStatus(payment.ItemPaid), 1)
	assert.Equal(t, 1, f.hooks.refunds)
	require.NotEmpty(t, f.processor.cancellations)
	assert.Equal(t, cancelCall{subscriptionID: "sub_ext_1", immediate: true},
		f.processor.cancellations[len(f.processor.cancellations)-1])

	// Re-delivery changes nothing further.
	cancels := len(f.processor.cancellations)
	require.NoError(t, f.svc.HandleEvent(ctx,
		adjustmentEvent("txn_1", paddle.AdjustmentRefund, paddle.AdjustmentApproved, "itm_a", "itm_b")))
	assert.Equal(t, cancels, len(f.processor.cancellations))
	assert.Equal(t, 1, f.hooks.refunds)
}

func TestChargebackReverseRevertsItems(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()
	p := paidThreeItemPayment(t, f, "txn_1")

	require.NoError(t, f.svc.HandleEvent(ctx,
		adjustmentEvent("txn_1", paddle.AdjustmentChargeback, paddle.AdjustmentApproved, "itm_a")))
	got, err := f.payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.ItemsWithStatus(payment.ItemRefunded), 1)

	require.NoError(t, f.svc.HandleEvent(ctx,
		adjustmentEvent("txn_1", paddle.AdjustmentChargebackReverse, paddle.AdjustmentReversed, "itm_a")))
	got, err = f.payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.ItemsWithStatus(payment.ItemPaid), 3, "chargeback reversal restores paid")
}

func TestCancelSubscriptionByProduct(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	err := f.svc.CancelSubscription(ctx, "usr_alice", "sub_0")
	assert.ErrorIs(t, err, subscription.ErrNothingToCancel)

	activateSubscription(t, f, "usr_alice", "sub_ext_1", "pro_month")

	require.NoError(t, f.svc.CancelSubscription(ctx, "usr_alice", "sub_0"))
	require.Len(t, f.processor.cancellations, 1)
	assert.Equal(t, cancelCall{subscriptionID: "sub_ext_1", immediate: false}, f.processor.cancellations[0])

	sub, err := f.subs.GetByExternalID(ctx, "sub_ext_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelling, sub.Status)

	// The index entry stays until the cancellation webhook lands.
	entries, err := f.active.ListByUID(ctx, "usr_alice")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, f.svc.CancelSubscription(ctx, "usr_alice", "no_such_product"))
}

func TestListPaymentsSubsets(t *testing.T) {
	f := syncedFixture(t)
	f.processor.adjustmentStatus = paddle.AdjustmentApproved
	ctx := context.Background()

	p1 := paidThreeItemPayment(t, f, "txn_1")
	_ = paidThreeItemPayment(t, f, "txn_2")

	_, err := f.svc.Refund(ctx, "usr_alice", p1.ID, []string{"itm_a"})
	require.NoError(t, err)

	refundable, err := f.svc.ListRefundable(ctx, "usr_alice", 0, 0)
	require.NoError(t, err)
	assert.Len(t, refundable, 2, "p1 still has refundable items")

	refunded, err := f.svc.ListRefunded(ctx, "usr_alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, refunded, 1)
	assert.Equal(t, p1.ID, refunded[0].ID)

	refunding, err := f.svc.ListRefunding(ctx, "usr_alice", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, refunding)
}

func TestInitCart(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	resolved, err := f.svc.InitCart(ctx, []CartItem{
		{ProductID: "gadget", Quantity: 2},
		{ProductID: "pro_month", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, f.priceID(t, "gadget"), resolved[0].PriceID)
	assert.Equal(t, 2, resolved[0].Quantity)

	_, err = f.svc.InitCart(ctx, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = f.svc.InitCart(ctx, []CartItem{{ProductID: "bogus", Quantity: 1}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = f.svc.InitCart(ctx, []CartItem{{ProductID: "gadget", Quantity: 0}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestPurgeUser(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	paidThreeItemPayment(t, f, "txn_1")
	activateSubscription(t, f, "usr_alice", "sub_ext_1", "pro_month")

	require.NoError(t, f.svc.PurgeUser(ctx, "usr_alice"))

	payments, err := f.svc.ListPayments(ctx, "usr_alice", 0, 0, "")
	require.NoError(t, err)
	assert.Empty(t, payments)

	entries, err := f.active.ListByUID(ctx, "usr_alice")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
