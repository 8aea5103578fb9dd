package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"

	"visadesk/internal/currency"
	"visadesk/internal/domain"
)

// IntentCreator is the part of the Stripe payment intent client used for direct charges.
// *paymentintent.Client satisfies it.
type IntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// ChargeConfig holds the charge service settings.
type ChargeConfig struct {
	BaseCurrency   string
	ReturnURL      string
	RawCardEnabled bool
}

// ChargeService creates and confirms payment intents in a single provider call.
type ChargeService struct {
	intents IntentCreator
	cfg     ChargeConfig
	logger  logrus.FieldLogger
}

// NewChargeService creates a new ChargeService.
func NewChargeService(intents IntentCreator, cfg ChargeConfig, logger logrus.FieldLogger) *ChargeService {
	return &ChargeService{
		intents: intents,
		cfg:     cfg,
		logger:  logger,
	}
}

// ChargeRequest contains the parameters for a direct charge.
// Exactly one of Card or PaymentMethodID is used; PaymentMethodID wins when both are set.
type ChargeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	Card            *domain.Card
	PaymentMethodID string
	IdempotencyKey  string
}

// Charge validates the amount, then creates and confirms a payment intent.
// Provider failures are classified into ErrCardDeclined, ErrProviderRejected or ErrUnknownProvider.
func (s *ChargeService) Charge(ctx context.Context, req ChargeRequest) (*domain.Charge, error) {
	code := currency.Resolve(req.Currency, s.cfg.BaseCurrency)

	if err := checkAmount(req.Amount, code); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:    stripe.Int64(currency.ToSmallestUnit(req.Amount, code)),
		Currency:  stripe.String(code),
		Confirm:   stripe.Bool(true),
		ReturnURL: stripe.String(s.cfg.ReturnURL),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	switch {
	case req.PaymentMethodID != "":
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
	case req.Card != nil:
		if !s.cfg.RawCardEnabled {
			return nil, &PaymentError{
				Kind:     ErrProviderRejected,
				Message:  rawCardRemediation,
				Amount:   req.Amount,
				Currency: code,
			}
		}
		if err := attachCard(params, req.Card); err != nil {
			return nil, validationError(req.Amount, code, err.Error())
		}
	default:
		return nil, validationError(req.Amount, code, "Card details or payment_method_id are required")
	}

	segment := newrelic.FromContext(ctx).StartSegment("stripe/payment_intents.create")
	intent, err := s.intents.New(params)
	segment.End()
	if err != nil {
		perr := classifyChargeError(err, req.Amount, code)
		s.logger.WithFields(logrus.Fields{
			"amount":   req.Amount.String(),
			"currency": code,
			"kind":     perr.Kind.Error(),
		}).WithError(err).Warn("payment intent failed")
		newrelic.FromContext(ctx).NoticeError(perr)
		return nil, perr
	}

	charge := &domain.Charge{
		IntentID:     intent.ID,
		Status:       string(intent.Status),
		ClientSecret: intent.ClientSecret,
		Amount:       currency.FromSmallestUnit(intent.Amount, string(intent.Currency)),
		Currency:     currency.Display(string(intent.Currency)),
	}
	if intent.PaymentMethod != nil {
		charge.PaymentMethodID = intent.PaymentMethod.ID
	}

	s.logger.WithFields(logrus.Fields{
		"intent_id": charge.IntentID,
		"status":    charge.Status,
		"amount":    charge.Amount.String(),
		"currency":  charge.Currency,
	}).Info("payment intent created")

	return charge, nil
}

// attachCard puts raw card data on the intent as inline payment method data.
func attachCard(params *stripe.PaymentIntentParams, card *domain.Card) error {
	number := strings.Join(strings.Fields(card.Number), "")
	if number == "" {
		return errors.New("Card number is required")
	}
	month, err := strconv.Atoi(strings.TrimSpace(card.ExpMonth))
	if err != nil || month < 1 || month > 12 {
		return errors.New("Card expiry month is invalid")
	}
	year, err := strconv.Atoi(strings.TrimSpace(card.ExpYear))
	if err != nil || year <= 0 {
		return errors.New("Card expiry year is invalid")
	}

	params.AddExtra("payment_method_data[type]", "card")
	params.AddExtra("payment_method_data[card][number]", number)
	params.AddExtra("payment_method_data[card][exp_month]", strconv.Itoa(month))
	params.AddExtra("payment_method_data[card][exp_year]", strconv.Itoa(year))
	params.AddExtra("payment_method_data[card][cvc]", strings.TrimSpace(card.CVC))
	return nil
}

func classifyChargeError(err error, amount decimal.Decimal, code string) *PaymentError {
	perr := &PaymentError{
		Amount:   amount,
		Currency: code,
		Err:      err,
	}

	var stripeErr *stripe.Error
	errors.As(err, &stripeErr)
	msg := providerMessage(err)
	perr.ProviderMessage = msg

	switch {
	case strings.Contains(strings.ToLower(msg), "raw card data"):
		perr.Kind = ErrProviderRejected
		perr.Message = rawCardRemediation
	case stripeErr != nil && stripeErr.Type == stripe.ErrorTypeCard:
		perr.Kind = ErrCardDeclined
		perr.Message = "Payment failed: " + msg
	default:
		perr.Kind = ErrUnknownProvider
		perr.Message = "Payment processing failed: " + msg
	}
	return perr
}
