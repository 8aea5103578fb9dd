package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"visadesk/internal/currency"
	"visadesk/internal/service"
)

// ApplicationHandler exposes the payment view of visa applications.
type ApplicationHandler struct {
	ledger *service.Ledger
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(ledger *service.Ledger) *ApplicationHandler {
	return &ApplicationHandler{ledger: ledger}
}

// ApplicationPaymentResponse is the HTTP response for an application's payment.
type ApplicationPaymentResponse struct {
	ApplicationID   string          `json:"applicationId"`
	StripeSessionID string          `json:"stripeSessionId,omitempty"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// GetPayment handles GET /v1/applications/:id/payment
func (h *ApplicationHandler) GetPayment(c *gin.Context) {
	record, err := h.ledger.FindByApplicationID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ApplicationPaymentResponse{
		ApplicationID:   record.ApplicationID,
		StripeSessionID: record.StripeSessionID,
		Status:          string(record.Status),
		Amount:          record.Amount,
		Currency:        currency.Display(record.Currency),
		UpdatedAt:       record.UpdatedAt,
	})
}
