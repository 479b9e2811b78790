package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	paymentapp "volt/internal/application/payment"
	"volt/internal/infrastructure/paddle"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

// WebhookHandler receives processor event notifications. Authenticity is
// established by source IP and signature; once a request is authentic it
// is always acknowledged 200 so the processor does not retry events we
// failed on internally.
type WebhookHandler struct {
	payments *paymentapp.Service
	verifier *paddle.WebhookVerifier
	log      logger.Interface
}

func NewWebhookHandler(payments *paymentapp.Service, verifier *paddle.WebhookVerifier, log logger.Interface) *WebhookHandler {
	return &WebhookHandler{payments: payments, verifier: verifier, log: log.Named("webhook_handler")}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	if err := h.verifier.VerifySource(c.ClientIP()); err != nil {
		h.log.Warnw("webhook from unexpected source", "ip", c.ClientIP())
		utils.ErrorResponseWithError(c, err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warnw("failed to read webhook body", "error", err)
		utils.ErrorResponse(c, 400, "invalid request body")
		return
	}

	if err := h.verifier.VerifySignature(c.GetHeader("X-Signature"), body); err != nil {
		h.log.Warnw("webhook signature rejected", "ip", c.ClientIP())
		utils.ErrorResponseWithError(c, err)
		return
	}

	ev, err := paddle.DecodeEvent(body)
	if err != nil {
		h.log.Errorw("failed to decode webhook event", "error", err)
		utils.OKResponse(c, "OK")
		return
	}

	if err := h.payments.HandleEvent(c.Request.Context(), ev); err != nil {
		h.log.Errorw("webhook event processing failed",
			"event_type", ev.EventType(),
			"error", err,
		)
	}
	utils.OKResponse(c, "OK")
}
