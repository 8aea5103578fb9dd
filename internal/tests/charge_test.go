package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"visadesk/internal/domain"
	"visadesk/internal/service"
)

func newChargeService(intents *MockIntentAPI, rawCard bool) *service.ChargeService {
	logger, _ := NewTestLogger()
	return service.NewChargeService(intents, service.ChargeConfig{
		BaseCurrency:   "aed",
		ReturnURL:      "http://localhost:4000/",
		RawCardEnabled: rawCard,
	}, logger)
}

func testCard() *domain.Card {
	return &domain.Card{Number: "4242 4242 4242 4242", ExpMonth: "12", ExpYear: "2030", CVC: "123"}
}

func TestCharge_RejectsBelowMinimumWithoutCallingProvider(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, true)

	_, err := charges.Charge(context.Background(), service.ChargeRequest{
		Amount:   dec("0.30"),
		Currency: "usd",
		Card:     testCard(),
	})

	require.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, "Amount must be at least 0.50 USD", err.Error())
	assert.Equal(t, int32(0), intents.NewCallCount)

	var perr *service.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Amount.Equal(dec("0.30")))
	assert.Equal(t, "usd", perr.Currency)
}

func TestCharge_RejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, true)

	for _, amount := range []string{"0", "-5"} {
		_, err := charges.Charge(context.Background(), service.ChargeRequest{Amount: dec(amount), Card: testCard()})
		assert.ErrorIs(t, err, service.ErrValidation, amount)
	}
	assert.Equal(t, int32(0), intents.NewCallCount)
}

func TestCharge_ConvertsAmountAndDefaultsCurrency(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		amount    string
		currency  string
		wantUnits int64
		wantCode  string
	}{
		{"usd scales", "20", "USD", 2000, "usd"},
		{"aed zero decimal", "20", "aed", 20, "aed"},
		{"default currency", "20", "", 20, "aed"},
		{"usd one dollar passes", "1", "usd", 100, "usd"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			intents := NewMockIntentAPI()
			charges := newChargeService(intents, false)

			_, err := charges.Charge(context.Background(), service.ChargeRequest{
				Amount:          dec(tc.amount),
				Currency:        tc.currency,
				PaymentMethodID: "pm_card_visa",
			})
			require.NoError(t, err)

			params := intents.LastParams()
			require.NotNil(t, params)
			assert.Equal(t, tc.wantUnits, *params.Amount)
			assert.Equal(t, tc.wantCode, *params.Currency)
			assert.True(t, *params.Confirm)
		})
	}
}

func TestCharge_RawCardDisabledIsRejectedLocally(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, false)

	_, err := charges.Charge(context.Background(), service.ChargeRequest{Amount: dec("20"), Currency: "aed", Card: testCard()})

	require.ErrorIs(t, err, service.ErrProviderRejected)
	assert.Contains(t, err.Error(), "Raw card data APIs are not enabled")
	assert.Equal(t, int32(0), intents.NewCallCount)
}

func TestCharge_RawCardEnabledSendsInlineCardData(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, true)

	_, err := charges.Charge(context.Background(), service.ChargeRequest{
		Amount:         dec("20"),
		Currency:       "usd",
		Card:           testCard(),
		IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)

	params := intents.LastParams()
	require.NotNil(t, params.Extra)
	assert.Equal(t, "card", params.Extra.Get("payment_method_data[type]"))
	assert.Equal(t, "4242424242424242", params.Extra.Get("payment_method_data[card][number]"))
	assert.Equal(t, "12", params.Extra.Get("payment_method_data[card][exp_month]"))
	assert.Equal(t, "2030", params.Extra.Get("payment_method_data[card][exp_year]"))
	assert.Equal(t, "123", params.Extra.Get("payment_method_data[card][cvc]"))
	assert.Equal(t, "http://localhost:4000/", *params.ReturnURL)
	require.NotNil(t, params.IdempotencyKey)
	assert.Equal(t, "idem-1", *params.IdempotencyKey)
	assert.NotNil(t, params.Context)
}

func TestCharge_InvalidExpiryIsValidationError(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, true)

	card := testCard()
	card.ExpMonth = "13"
	_, err := charges.Charge(context.Background(), service.ChargeRequest{Amount: dec("20"), Card: card})

	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, int32(0), intents.NewCallCount)
}

func TestCharge_RequiresCardOrPaymentMethod(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, true)

	_, err := charges.Charge(context.Background(), service.ChargeRequest{Amount: dec("20")})

	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, int32(0), intents.NewCallCount)
}

func TestCharge_PaymentMethodReference(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	intents.Intent = &stripe.PaymentIntent{
		ID:            "pi_123",
		Status:        stripe.PaymentIntentStatusSucceeded,
		ClientSecret:  "pi_123_secret",
		Amount:        2000,
		Currency:      stripe.CurrencyUSD,
		PaymentMethod: &stripe.PaymentMethod{ID: "pm_123"},
	}
	charges := newChargeService(intents, false)

	charge, err := charges.Charge(context.Background(), service.ChargeRequest{
		Amount:          dec("20"),
		Currency:        "usd",
		PaymentMethodID: "pm_123",
	})
	require.NoError(t, err)

	assert.Equal(t, "pm_123", *intents.LastParams().PaymentMethod)
	assert.Nil(t, intents.LastParams().Extra)
	assert.Equal(t, "pi_123", charge.IntentID)
	assert.Equal(t, "succeeded", charge.Status)
	assert.True(t, charge.Amount.Equal(dec("20")))
	assert.Equal(t, "USD", charge.Currency)
	assert.Equal(t, "pm_123", charge.PaymentMethodID)
	assert.Equal(t, "pi_123_secret", charge.ClientSecret)
}

func TestCharge_ClassifiesProviderErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		providerErr error
		wantKind    error
		wantMessage string
	}{
		{
			name:        "card declined",
			providerErr: &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."},
			wantKind:    service.ErrCardDeclined,
			wantMessage: "Payment failed: Your card was declined.",
		},
		{
			name: "raw card data disabled",
			providerErr: &stripe.Error{
				Type: stripe.ErrorTypeInvalidRequest,
				Msg:  "Sending credit card numbers directly to the Stripe API is generally unsafe. To continue processing use Stripe.js or enable raw card data APIs.",
			},
			wantKind: service.ErrProviderRejected,
		},
		{
			name:        "network failure",
			providerErr: errors.New("dial tcp: i/o timeout"),
			wantKind:    service.ErrUnknownProvider,
			wantMessage: "Payment processing failed: dial tcp: i/o timeout",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			intents := NewMockIntentAPI()
			intents.Error = tc.providerErr
			charges := newChargeService(intents, true)

			_, err := charges.Charge(context.Background(), service.ChargeRequest{Amount: dec("20"), Currency: "usd", Card: testCard()})

			require.ErrorIs(t, err, tc.wantKind)
			assert.ErrorIs(t, err, tc.providerErr)
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, err.Error())
			}
			assert.Equal(t, int32(1), intents.NewCallCount)

			var perr *service.PaymentError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "usd", perr.Currency)
			assert.NotEmpty(t, perr.ProviderMessage)
		})
	}
}

func TestCharge_RejectsAmountFinerThanMinorUnit(t *testing.T) {
	t.Parallel()
	intents := NewMockIntentAPI()
	charges := newChargeService(intents, true)

	_, err := charges.Charge(context.Background(), service.ChargeRequest{
		Amount:          dec("10.005"),
		Currency:        "usd",
		PaymentMethodID: "pm_card_visa",
	})
	require.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, "Amount must have at most 2 decimal places for USD", err.Error())

	_, err = charges.Charge(context.Background(), service.ChargeRequest{
		Amount:          dec("2.5"),
		Currency:        "aed",
		PaymentMethodID: "pm_card_visa",
	})
	require.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, "Amount must be a whole number of AED", err.Error())

	assert.Equal(t, int32(0), intents.NewCallCount)
}
