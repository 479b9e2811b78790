package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"volt/internal/shared/errors"
	"volt/internal/shared/logger"
)

const (
	liveBaseURL    = "https://api.paddle.com"
	sandboxBaseURL = "https://sandbox-api.paddle.com"

	requestTimeout = 30 * time.Second
)

// Client is a minimal REST client for the payment processor. Each call
// is bounded by a timeout and retried once on transport failure; 4xx
// and 5xx responses are never retried.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Interface
}

func NewClient(apiKey string, sandbox bool, log logger.Interface) *Client {
	baseURL := liveBaseURL
	if sandbox {
		baseURL = sandboxBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: log.Named("paddle"),
	}
}

// envelope is the processor's standard response wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *struct {
		Pagination *struct {
			HasMore bool   `json:"has_more"`
			Next    string `json:"next"`
		} `json:"pagination"`
	} `json:"meta"`
}

type apiError struct {
	Error struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		// Single retry on transport failure only.
		c.logger.Warnw("processor request failed, retrying once", "method", method, "path", path, "error", err)
		resp, err = c.send(ctx, method, path, payload)
		if err != nil {
			return errors.NewExternalServiceError(
				fmt.Sprintf("payment processor unreachable: %v", err), 0).WithCause(err)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewExternalServiceError("failed to read processor response", 0).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Detail != "" {
			return errors.NewExternalServiceError(apiErr.Error.Detail, resp.StatusCode)
		}
		return errors.NewExternalServiceError(
			fmt.Sprintf("request failed [%d]", resp.StatusCode), resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.NewExternalServiceError("malformed processor response", resp.StatusCode).WithCause(err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.NewExternalServiceError("malformed processor payload", resp.StatusCode).WithCause(err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// ListActiveProducts fetches all active products with their prices,
// following pagination.
func (c *Client) ListActiveProducts(ctx context.Context) ([]Product, error) {
	var all []Product
	after := ""
	for {
		path := "/products?status=active&include=prices&per_page=200"
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}

		var page []Product
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) < 200 {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

// CreateProduct registers a product remotely and returns it with the
// assigned id.
func (c *Client) CreateProduct(ctx context.Context, p Product) (Product, error) {
	var created Product
	err := c.do(ctx, http.MethodPost, "/products", p, &created)
	return created, err
}

// UpdateProduct patches a remote product.
func (c *Client) UpdateProduct(ctx context.Context, productID string, p Product) (Product, error) {
	var updated Product
	err := c.do(ctx, http.MethodPatch, "/products/"+productID, p, &updated)
	return updated, err
}

// CreatePrice registers a price for a product.
func (c *Client) CreatePrice(ctx context.Context, p Price) (Price, error) {
	var created Price
	err := c.do(ctx, http.MethodPost, "/prices", p, &created)
	return created, err
}

// UpdatePrice patches a remote price.
func (c *Client) UpdatePrice(ctx context.Context, priceID string, p Price) (Price, error) {
	var updated Price
	err := c.do(ctx, http.MethodPatch, "/prices/"+priceID, p, &updated)
	return updated, err
}

// GetTransaction fetches a transaction with line items and adjustments.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	var txn Transaction
	err := c.do(ctx, http.MethodGet,
		"/transactions/"+transactionID+"?include=adjustments", nil, &txn)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetCustomer fetches a customer record.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var cust Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+customerID, nil, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// GetBusiness fetches the business contact attached to a customer.
func (c *Client) GetBusiness(ctx context.Context, customerID, businessID string) (*Business, error) {
	var biz Business
	err := c.do(ctx, http.MethodGet,
		"/customers/"+customerID+"/businesses/"+businessID, nil, &biz)
	if err != nil {
		return nil, err
	}
	return &biz, nil
}

// CreateAdjustment requests a refund for the given transaction items,
// always full-amount per item.
func (c *Client) CreateAdjustment(ctx context.Context, transactionID string, itemIDs []string) (*Adjustment, error) {
	items := make([]AdjustmentItem, len(itemIDs))
	for i, id := range itemIDs {
		items[i] = AdjustmentItem{ItemID: id, Type: "full"}
	}
	body := map[string]any{
		"action":         AdjustmentRefund,
		"transaction_id": transactionID,
		"reason":         "requested by customer",
		"items":          items,
	}

	var adj Adjustment
	if err := c.do(ctx, http.MethodPost, "/adjustments", body, &adj); err != nil {
		return nil, err
	}
	return &adj, nil
}

// CancelSubscription schedules or immediately executes a cancellation.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error {
	effective := "next_billing_period"
	if immediate {
		effective = "immediately"
	}
	body := map[string]any{"effective_from": effective}
	return c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/cancel", body, nil)
}

// ListNotificationSettings fetches existing webhook subscriptions.
func (c *Client) ListNotificationSettings(ctx context.Context) ([]NotificationSetting, error) {
	var resources []notificationSettingResource
	if err := c.do(ctx, http.MethodGet, "/notification-settings", nil, &resources); err != nil {
		return nil, err
	}

	settings := make([]NotificationSetting, len(resources))
	for i, r := range resources {
		s := NotificationSetting{
			ID:          r.ID,
			Description: r.Description,
			Destination: r.Destination,
			Type:        r.Type,
			Active:      r.Active,
		}
		for _, ev := range r.SubscribedEvents {
			s.SubscribedEvents = append(s.SubscribedEvents, ev.Name)
		}
		settings[i] = s
	}
	return settings, nil
}

// CreateNotificationSetting registers a webhook subscription.
func (c *Client) CreateNotificationSetting(ctx context.Context, s NotificationSetting) error {
	return c.do(ctx, http.MethodPost, "/notification-settings", s, nil)
}

// UpdateNotificationSetting patches an existing webhook subscription.
func (c *Client) UpdateNotificationSetting(ctx context.Context, settingID string, s NotificationSetting) error {
	return c.do(ctx, http.MethodPatch, "/notification-settings/"+settingID, s, nil)
}
