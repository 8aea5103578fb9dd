package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"visadesk/internal/service"
)

// maxWebhookBodyBytes caps provider payloads.
const maxWebhookBodyBytes = int64(65536)

const signatureHeader = "Stripe-Signature"

// WebhookProcessor applies a raw provider notification. *service.Reconciler satisfies it.
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler handles provider notifications.
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleWebhook handles POST /payment/webhook. The body is read raw so the
// signature is checked against the exact bytes the provider signed.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: Failed to read body")
		return
	}

	err = h.processor.Handle(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	switch {
	case err == nil:
		respondJSON(c, http.StatusOK, gin.H{"received": true})
	case errors.Is(err, service.ErrSignatureVerification), errors.Is(err, service.ErrPayloadParse):
		c.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
	default:
		// Processing failures are retried by the provider.
		c.String(http.StatusInternalServerError, "Webhook Error: processing failed")
	}
}
