package paddle

// API resource shapes, limited to the fields the engine reads or
// writes. Money amounts are decimal strings of minor units, as the
// processor sends them.

type Product struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	TaxCategory string         `json:"tax_category,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Status      string         `json:"status,omitempty"`
	CustomData  map[string]any `json:"custom_data,omitempty"`
	Prices      []Price        `json:"prices,omitempty"`
}

type Price struct {
	ID           string         `json:"id,omitempty"`
	ProductID    string         `json:"product_id,omitempty"`
	Description  string         `json:"description,omitempty"`
	UnitPrice    Money          `json:"unit_price"`
	BillingCycle *BillingCycle  `json:"billing_cycle,omitempty"`
	Status       string         `json:"status,omitempty"`
	CustomData   map[string]any `json:"custom_data,omitempty"`
}

type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type BillingCycle struct {
	Interval  string `json:"interval"`
	Frequency int    `json:"frequency"`
}

type Transaction struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	CustomerID     string            `json:"customer_id"`
	BusinessID     string            `json:"business_id"`
	SubscriptionID string            `json:"subscription_id"`
	CustomData     map[string]any    `json:"custom_data"`
	Items          []TransactionItem `json:"items"`
	Details        *TransactionDetails `json:"details"`
	Adjustments    []Adjustment      `json:"adjustments"`
}

type TransactionItem struct {
	Price    Price `json:"price"`
	Quantity int   `json:"quantity"`
}

type TransactionDetails struct {
	LineItems []LineItem `json:"line_items"`
	Totals    *Totals    `json:"totals"`
}

// LineItem carries the per-line computed amounts. The id here is the
// external item id refunds reference.
type LineItem struct {
	ID        string          `json:"id"`
	PriceID   string          `json:"price_id"`
	Quantity  int             `json:"quantity"`
	Totals    LineItemTotals  `json:"totals"`
	Product   *Product        `json:"product"`
}

type LineItemTotals struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

type Totals struct {
	Subtotal     string `json:"subtotal"`
	Tax          string `json:"tax"`
	Discount     string `json:"discount"`
	Total        string `json:"total"`
	CurrencyCode string `json:"currency_code"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Business struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
}

type Subscription struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	CustomerID string             `json:"customer_id"`
	CustomData map[string]any     `json:"custom_data"`
	Items      []SubscriptionItem `json:"items"`
}

type SubscriptionItem struct {
	Price  Price  `json:"price"`
	Status string `json:"status"`
}

// Adjustment is the refund/chargeback family resource.
type Adjustment struct {
	ID            string           `json:"id"`
	Action        string           `json:"action"`
	Status        string           `json:"status"`
	TransactionID string           `json:"transaction_id"`
	Items         []AdjustmentItem `json:"items"`
}

type AdjustmentItem struct {
	ItemID string `json:"item_id"`
	Type   string `json:"type"`
}

// Adjustment actions.
const (
	AdjustmentRefund            = "refund"
	AdjustmentChargeback        = "chargeback"
	AdjustmentChargebackReverse = "chargeback_reverse"
)

// Adjustment statuses.
const (
	AdjustmentPendingApproval = "pending_approval"
	AdjustmentApproved        = "approved"
	AdjustmentRejected        = "rejected"
	AdjustmentReversed        = "reversed"
)

type NotificationSetting struct {
	ID               string   `json:"id,omitempty"`
	Description      string   `json:"description"`
	Destination      string   `json:"destination"`
	Type             string   `json:"type"`
	Active           bool     `json:"active"`
	SubscribedEvents []string `json:"subscribed_events,omitempty"`
}

// notificationSettingEvents is the wire shape the API returns, where
// subscribed events are objects.
type notificationSettingResource struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	Destination      string `json:"destination"`
	Type             string `json:"type"`
	Active           bool   `json:"active"`
	SubscribedEvents []struct {
		Name string `json:"name"`
	} `json:"subscribed_events"`
}
