package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	paymentapp "volt/internal/application/payment"
	"volt/internal/domain/payment"
	"volt/internal/interfaces/http/middleware"
	"volt/internal/shared/errors"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

// PaymentHandler serves the customer-facing payment and subscription
// endpoints.
type PaymentHandler struct {
	payments *paymentapp.Service
	log      logger.Interface
}

func NewPaymentHandler(payments *paymentapp.Service, log logger.Interface) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log.Named("payment_handler")}
}

type initCartRequest struct {
	Items []paymentapp.CartItem `json:"items" validate:"required,min=1,dive"`
}

// InitCart validates a cart and resolves external price ids for the
// client-side checkout.
func (h *PaymentHandler) InitCart(c *gin.Context) {
	var req initCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	resolved, err := h.payments.InitCart(c.Request.Context(), req.Items)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"items": resolved})
}

// Products lists the catalog.
func (h *PaymentHandler) Products(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"products": h.payments.Catalog().Products(),
	})
}

// GetPayment returns one payment by id.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "id is required")
		return
	}

	p, err := h.payments.GetPayment(c.Request.Context(), middleware.CurrentUID(c), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", p)
}

// listParams reads the shared days/limit/status pagination query.
// Malformed numbers are rejected, not coerced to zero.
func listParams(c *gin.Context) (days, limit int, status payment.Status, err error) {
	if days, err = intQuery(c, "days"); err != nil {
		return 0, 0, "", err
	}
	if limit, err = intQuery(c, "limit"); err != nil {
		return 0, 0, "", err
	}
	return days, limit, payment.Status(c.Query("status")), nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(name + " must be a non-negative integer")
	}
	return n, nil
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	days, limit, status, err := listParams(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	payments, err := h.payments.ListPayments(c.Request.Context(), middleware.CurrentUID(c), days, limit, status)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"payments": payments})
}

func (h *PaymentHandler) ListRefundable(c *gin.Context) {
	h.listSubset(c, h.payments.ListRefundable)
}

func (h *PaymentHandler) ListRefunded(c *gin.Context) {
	h.listSubset(c, h.payments.ListRefunded)
}

func (h *PaymentHandler) ListRefunding(c *gin.Context) {
	h.listSubset(c, h.payments.ListRefunding)
}

func (h *PaymentHandler) listSubset(c *gin.Context, list func(ctx context.Context, uid string, days, limit int) ([]*payment.Payment, error)) {
	days, limit, _, err := listParams(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	payments, err := list(c.Request.Context(), middleware.CurrentUID(c), days, limit)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"payments": payments})
}

type refundRequest struct {
	PaymentID string   `json:"payment_id" validate:"required"`
	ItemIDs   []string `json:"item_ids"`
}

// Refund requests a full-amount refund for a payment or a subset of
// its line items.
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	p, err := h.payments.Refund(c.Request.Context(), middleware.CurrentUID(c), req.PaymentID, req.ItemIDs)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "refund requested", p)
}

// CancelSubscription cancels the caller's subscription to a product at
// the end of the billing period.
func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	product := c.Query("product")
	if product == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "product is required")
		return
	}
	if err := h.payments.CancelSubscription(c.Request.Context(), middleware.CurrentUID(c), product); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "subscription cancellation scheduled")
}

func (h *PaymentHandler) ActiveSubscriptions(c *gin.Context) {
	entries, err := h.payments.ActiveSubscriptions(c.Request.Context(), middleware.CurrentUID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"subscriptions": entries})
}

// Subscribed reports whether the caller holds an active plan of the
// product.
func (h *PaymentHandler) Subscribed(c *gin.Context) {
	product := c.Query("product")
	if product == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "product is required")
		return
	}
	subscribed, err := h.payments.Subscribed(c.Request.Context(), middleware.CurrentUID(c), product)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"subscribed": subscribed})
}
