package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"visadesk/internal/domain"
	"visadesk/internal/repository"
	"visadesk/internal/service"
	"visadesk/internal/tests"
)

const testWebhookSecret = "whsec_handler_test"

type handlerFixture struct {
	intents      *tests.MockIntentAPI
	sessions     *tests.MockSessionAPI
	applications *tests.MockApplicationRepository
	router       *gin.Engine
}

func newHandlerFixture(rawCards bool) *handlerFixture {
	gin.SetMode(gin.TestMode)
	logger, _ := tests.NewTestLogger()

	f := &handlerFixture{
		intents:      tests.NewMockIntentAPI(),
		sessions:     tests.NewMockSessionAPI(),
		applications: tests.NewMockApplicationRepository(),
	}

	charges := service.NewChargeService(f.intents, service.ChargeConfig{
		BaseCurrency:   "aed",
		ReturnURL:      "https://visadesk.test/payment/",
		RawCardEnabled: rawCards,
	}, logger)
	checkouts := service.NewCheckoutService(f.sessions, f.applications, nil, service.CheckoutConfig{
		BaseCurrency: "aed",
		SuccessURL:   "https://visadesk.test/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    "https://visadesk.test/payment/cancel",
	}, logger)
	ledger := service.NewLedger(f.applications, tests.NewMockPublisher(), logger)
	status := service.NewStatusService(checkouts, ledger, logger)
	reconciler := service.NewReconciler(ledger, tests.NewMockWebhookEventRepository(), tests.NewMockEventStore(), testWebhookSecret, logger)

	payments := NewPaymentHandler(charges, checkouts, status)
	webhooks := NewWebhookHandler(reconciler)
	applications := NewApplicationHandler(ledger)

	r := gin.New()
	r.POST("/payment/process", payments.ProcessPayment)
	r.POST("/payment/checkout", payments.CreateCheckout)
	r.GET("/payment/success", payments.CheckStatus)
	r.GET("/payment/cancel", payments.Cancel)
	r.POST("/payment/webhook", webhooks.HandleWebhook)
	r.GET("/v1/applications/:id/payment", applications.GetPayment)
	f.router = r

	return f
}

func (f *handlerFixture) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func submitted(id, sessionID string) *domain.ApplicationPayment {
	return &domain.ApplicationPayment{
		ApplicationID:   id,
		StripeSessionID: sessionID,
		Status:          domain.ApplicationStatusSubmitted,
		UpdatedAt:       time.Now(),
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("application x: %w", repository.ErrNotFound), http.StatusNotFound},
		{"validation", &service.PaymentError{Kind: service.ErrValidation, Message: "bad"}, http.StatusBadRequest},
		{"provider rejected", &service.PaymentError{Kind: service.ErrProviderRejected}, http.StatusBadRequest},
		{"invalid session id", service.ErrInvalidSessionID, http.StatusBadRequest},
		{"signature", service.ErrSignatureVerification, http.StatusBadRequest},
		{"card declined", &service.PaymentError{Kind: service.ErrCardDeclined}, http.StatusPaymentRequired},
		{"already attached", repository.ErrSessionAlreadyAttached, http.StatusConflict},
		{"duplicate", repository.ErrDuplicate, http.StatusConflict},
		{"session creation", &service.PaymentError{Kind: service.ErrSessionCreationFailed}, http.StatusBadGateway},
		{"unknown provider", &service.PaymentError{Kind: service.ErrUnknownProvider}, http.StatusBadGateway},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestProcessPayment(t *testing.T) {
	t.Run("tokenized payment method", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodPost, "/payment/process",
			[]byte(`{"amount":25.5,"currency":"usd","paymentMethodId":"pm_card_visa"}`),
			map[string]string{"Idempotency-Key": "key-1"})

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "PAYMENT_SUCCESS", body["message"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "pi_test_1", data["paymentIntentId"])
		assert.Equal(t, "USD", data["currency"])

		params := f.intents.LastParams()
		assert.Equal(t, int64(2550), stripe.Int64Value(params.Amount))
		assert.Equal(t, "pm_card_visa", stripe.StringValue(params.PaymentMethod))
		assert.Equal(t, "process:key-1", stripe.StringValue(params.IdempotencyKey))
	})

	t.Run("missing amount", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodPost, "/payment/process", []byte(`{"paymentMethodId":"pm_card_visa"}`), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Amount must be greater than zero", decodeBody(t, w)["error"])
		assert.Equal(t, int32(0), f.intents.NewCallCount)
	})

	t.Run("raw card disabled", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodPost, "/payment/process",
			[]byte(`{"amount":20,"currency":"usd","cardNumber":"4242424242424242","expMonth":"12","expYear":"2030","cvc":"123"}`), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int32(0), f.intents.NewCallCount)
	})

	t.Run("card declined", func(t *testing.T) {
		f := newHandlerFixture(true)
		f.intents.Error = &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."}
		w := f.do(http.MethodPost, "/payment/process",
			[]byte(`{"amount":20,"currency":"usd","cardNumber":"4000000000000002","expMonth":"12","expYear":"2030","cvc":"123"}`), nil)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, "Payment failed: Your card was declined.", decodeBody(t, w)["error"])
	})

	t.Run("no idempotency key forwarded when absent", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodPost, "/payment/process", []byte(`{"amount":20,"currency":"usd","paymentMethodId":"pm_card_visa"}`), nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, f.intents.LastParams().IdempotencyKey)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodPost, "/payment/process", []byte(`{"amount":`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateCheckout(t *testing.T) {
	t.Run("binds application", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.applications.AddApplication(submitted("app-1", ""))

		w := f.do(http.MethodPost, "/payment/checkout", []byte(`{"amount":20,"applicationId":"app-1"}`),
			map[string]string{"Idempotency-Key": "key-1"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "checkout:key-1", stripe.StringValue(f.sessions.LastParams().IdempotencyKey))
		body := decodeBody(t, w)
		assert.Equal(t, "CHECKOUT_CREATED", body["message"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "cs_test_a", data["sessionId"])
		assert.Equal(t, "AED", data["currency"])
		assert.Equal(t, "cs_test_a", f.applications.GetApplication("app-1").StripeSessionID)
	})

	t.Run("application already attached", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.applications.AddApplication(submitted("app-1", "cs_existing"))

		w := f.do(http.MethodPost, "/payment/checkout", []byte(`{"amount":20,"applicationId":"app-1"}`), nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, int32(0), f.sessions.NewCallCount)
	})

	t.Run("unknown application", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodPost, "/payment/checkout", []byte(`{"amount":20,"applicationId":"missing"}`), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.sessions.NewError = &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "upstream unavailable"}
		w := f.do(http.MethodPost, "/payment/checkout", []byte(`{"amount":20}`), nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestCheckStatus(t *testing.T) {
	t.Run("session id required", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodGet, "/payment/success", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Session ID is required", decodeBody(t, w)["error"])
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newHandlerFixture(false)
		w := f.do(http.MethodGet, "/payment/success?session_id=cs_missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("paid session settles application", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.applications.AddApplication(submitted("app-1", "cs_1"))
		f.sessions.AddSession(&stripe.CheckoutSession{
			ID:            "cs_1",
			Status:        stripe.CheckoutSessionStatusComplete,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			AmountTotal:   20,
			Currency:      stripe.CurrencyAED,
		})

		w := f.do(http.MethodGet, "/payment/success?session_id=cs_1", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "PAYMENT_STATUS", body["message"])
		assert.Equal(t, "paid", body["data"].(map[string]any)["paymentStatus"])
		assert.Equal(t, domain.ApplicationStatusSuccess, f.applications.GetApplication("app-1").Status)
	})
}

func TestCancel(t *testing.T) {
	f := newHandlerFixture(false)
	f.applications.AddApplication(submitted("app-1", "cs_1"))

	w := f.do(http.MethodGet, "/payment/cancel", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PAYMENT_CANCELLED", decodeBody(t, w)["message"])
	assert.Equal(t, domain.ApplicationStatusSubmitted, f.applications.GetApplication("app-1").Status)
}

func TestHandleWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session"}}}`)
	signature := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	}).Header

	t.Run("valid event", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.applications.AddApplication(submitted("app-1", "cs_1"))

		w := f.do(http.MethodPost, "/payment/webhook", payload, map[string]string{"Stripe-Signature": signature})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["received"])
		assert.Equal(t, domain.ApplicationStatusSuccess, f.applications.GetApplication("app-1").Status)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.applications.AddApplication(submitted("app-1", "cs_1"))

		w := f.do(http.MethodPost, "/payment/webhook", payload, map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "Webhook Error: "))
		assert.Equal(t, domain.ApplicationStatusSubmitted, f.applications.GetApplication("app-1").Status)
	})

	t.Run("ledger failure is retryable", func(t *testing.T) {
		f := newHandlerFixture(false)
		f.applications.AddApplication(submitted("app-1", "cs_1"))
		f.applications.GetBySessionIDError = errors.New("db down")

		w := f.do(http.MethodPost, "/payment/webhook", payload, map[string]string{"Stripe-Signature": signature})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Webhook Error: processing failed", w.Body.String())
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newHandlerFixture(false)
		big := bytes.Repeat([]byte("a"), int(maxWebhookBodyBytes)+1)

		w := f.do(http.MethodPost, "/payment/webhook", big, map[string]string{"Stripe-Signature": signature})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Webhook Error: Failed to read body", w.Body.String())
	})
}

func TestGetApplicationPayment(t *testing.T) {
	f := newHandlerFixture(false)
	app := submitted("app-1", "cs_1")
	app.Currency = "aed"
	f.applications.AddApplication(app)

	w := f.do(http.MethodGet, "/v1/applications/app-1/payment", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "cs_1", body["stripeSessionId"])
	assert.Equal(t, "Request Submitted", body["status"])
	assert.Equal(t, "AED", body["currency"])

	w = f.do(http.MethodGet, "/v1/applications/missing/payment", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
