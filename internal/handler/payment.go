package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"visadesk/internal/domain"
	"visadesk/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// PaymentHandler handles HTTP requests for card charges and hosted checkout.
type PaymentHandler struct {
	charges   *service.ChargeService
	checkouts *service.CheckoutService
	status    *service.StatusService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(charges *service.ChargeService, checkouts *service.CheckoutService, status *service.StatusService) *PaymentHandler {
	return &PaymentHandler{
		charges:   charges,
		checkouts: checkouts,
		status:    status,
	}
}

// providerIdempotencyKey scopes the client's Idempotency-Key to one operation,
// matching the per-route scope of the response cache. Stripe keys are account
// wide, so one client key reused on two routes must not collide there.
func providerIdempotencyKey(c *gin.Context, operation string) string {
	key := c.GetHeader(idempotencyHeader)
	if key == "" {
		return ""
	}
	return operation + ":" + key
}

// ProcessPaymentRequest is the HTTP request body for a direct charge.
type ProcessPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CardNumber      string          `json:"cardNumber"`
	ExpMonth        string          `json:"expMonth"`
	ExpYear         string          `json:"expYear"`
	CVC             string          `json:"cvc"`
	PaymentMethodID string          `json:"paymentMethodId"`
}

// ChargeResponse is the HTTP response for a direct charge.
type ChargeResponse struct {
	PaymentIntentID string          `json:"paymentIntentId"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ClientSecret    string          `json:"clientSecret,omitempty"`
	PaymentMethodID string          `json:"paymentMethodId,omitempty"`
}

// CreateCheckoutRequest is the HTTP request body for a checkout session.
type CreateCheckoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	SuccessURL    string          `json:"successUrl"`
	CancelURL     string          `json:"cancelUrl"`
	ApplicationID string          `json:"applicationId"`
}

// CheckoutResponse is the HTTP response for a created checkout session.
type CheckoutResponse struct {
	CheckoutURL string          `json:"checkoutUrl"`
	SessionID   string          `json:"sessionId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Message     string          `json:"message"`
}

// PaymentStatusResponse is the HTTP response for a checkout status check.
type PaymentStatusResponse struct {
	SessionID       string          `json:"sessionId"`
	PaymentStatus   string          `json:"paymentStatus"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
}

// ProcessPayment handles POST /payment/process
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chargeReq := service.ChargeRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  providerIdempotencyKey(c, "process"),
	}
	if req.CardNumber != "" {
		chargeReq.Card = &domain.Card{
			Number:   req.CardNumber,
			ExpMonth: req.ExpMonth,
			ExpYear:  req.ExpYear,
			CVC:      req.CVC,
		}
	}

	charge, err := h.charges.Charge(c.Request.Context(), chargeReq)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, "PAYMENT_SUCCESS", ChargeResponse{
		PaymentIntentID: charge.IntentID,
		Status:          charge.Status,
		Amount:          charge.Amount,
		Currency:        charge.Currency,
		ClientSecret:    charge.ClientSecret,
		PaymentMethodID: charge.PaymentMethodID,
	})
}

// CreateCheckout handles POST /payment/checkout
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.checkouts.CreateSession(c.Request.Context(), service.CheckoutRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		ApplicationID:  req.ApplicationID,
		IdempotencyKey: providerIdempotencyKey(c, "checkout"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, "CHECKOUT_CREATED", CheckoutResponse{
		CheckoutURL: result.CheckoutURL,
		SessionID:   result.SessionID,
		Amount:      result.Amount,
		Currency:    result.Currency,
		Message:     "Click on checkoutUrl to open Stripe payment page",
	})
}

// CheckStatus handles GET /payment/success?session_id=
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Session ID is required"})
		return
	}

	status, err := h.status.Check(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, "PAYMENT_STATUS", PaymentStatusResponse{
		SessionID:       status.SessionID,
		PaymentStatus:   string(status.PaymentStatus),
		PaymentIntentID: status.PaymentIntentID,
		Amount:          status.Amount,
		Currency:        status.Currency,
		CustomerEmail:   status.CustomerEmail,
	})
}

// Cancel handles GET /payment/cancel. The ledger is not touched.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	respondSuccess(c, "PAYMENT_CANCELLED", gin.H{"status": "cancelled"})
}
