package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"

	"visadesk/internal/currency"
	"visadesk/internal/domain"
	"visadesk/internal/redis"
	"visadesk/internal/repository"
)

// SessionAPI is the part of the Stripe checkout session client used here.
// *session.Client from stripe-go satisfies it.
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CheckoutConfig holds checkout defaults.
type CheckoutConfig struct {
	BaseCurrency string
	SuccessURL   string
	CancelURL    string
}

// CheckoutService creates and reads hosted checkout sessions.
type CheckoutService struct {
	sessions     SessionAPI
	applications repository.ApplicationRepository
	cache        redis.SessionCacheInterface
	cfg          CheckoutConfig
	logger       logrus.FieldLogger
}

// NewCheckoutService creates a new CheckoutService. cache may be nil.
func NewCheckoutService(
	sessions SessionAPI,
	applications repository.ApplicationRepository,
	cache redis.SessionCacheInterface,
	cfg CheckoutConfig,
	logger logrus.FieldLogger,
) *CheckoutService {
	return &CheckoutService{
		sessions:     sessions,
		applications: applications,
		cache:        cache,
		cfg:          cfg,
		logger:       logger,
	}
}

// CheckoutRequest contains the parameters for a new checkout session.
type CheckoutRequest struct {
	Amount         decimal.Decimal
	Currency       string
	SuccessURL     string
	CancelURL      string
	ApplicationID  string // optional; binds the session to a visa application
	IdempotencyKey string
}

// CheckoutResult is the redirect target for the customer.
type CheckoutResult struct {
	CheckoutURL string
	SessionID   string
	Amount      decimal.Decimal
	Currency    string
}

// CreateSession validates the amount and creates a single-line-item checkout session.
// When ApplicationID is set the session id, amount and currency are attached to it.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	code := currency.Resolve(req.Currency, s.cfg.BaseCurrency)

	if err := checkAmount(req.Amount, code); err != nil {
		return nil, err
	}

	if req.ApplicationID != "" {
		application, err := s.applications.GetByID(ctx, req.ApplicationID)
		if err != nil {
			return nil, err
		}
		if application.HasSession() {
			return nil, repository.ErrSessionAlreadyAttached
		}
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.cfg.SuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.cfg.CancelURL
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(code),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Payment"),
						Description: stripe.String(fmt.Sprintf("Payment of %s %s", req.Amount.String(), currency.Display(code))),
					},
					UnitAmount: stripe.Int64(currency.ToSmallestUnit(req.Amount, code)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Currency:   stripe.String(code),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.ApplicationID != "" {
		params.ClientReferenceID = stripe.String(req.ApplicationID)
		params.AddMetadata("application_id", req.ApplicationID)
	}

	segment := newrelic.FromContext(ctx).StartSegment("stripe/checkout_sessions.create")
	session, err := s.sessions.New(params)
	segment.End()
	if err != nil {
		perr := &PaymentError{
			Kind:            ErrSessionCreationFailed,
			Message:         "Checkout session creation failed: " + providerMessage(err),
			Amount:          req.Amount,
			Currency:        code,
			ProviderMessage: providerMessage(err),
			Err:             err,
		}
		s.logger.WithFields(logrus.Fields{
			"amount":         req.Amount.String(),
			"currency":       code,
			"application_id": req.ApplicationID,
		}).WithError(err).Error("checkout session creation failed")
		newrelic.FromContext(ctx).NoticeError(perr)
		return nil, perr
	}

	logger := s.logger.WithFields(logrus.Fields{
		"session_id":     session.ID,
		"application_id": req.ApplicationID,
	})
	logger.Info("checkout session created")

	if req.ApplicationID != "" {
		if err := s.applications.AttachSession(ctx, req.ApplicationID, session.ID, req.Amount, code); err != nil {
			logger.WithError(err).Error("failed to attach checkout session to application")
			return nil, fmt.Errorf("attach session %s to application %s: %w", session.ID, req.ApplicationID, err)
		}
	}

	return &CheckoutResult{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		Amount:      req.Amount,
		Currency:    currency.Display(code),
	}, nil
}

// RetrieveSession reads a checkout session. Settled sessions are served from cache when available.
func (s *CheckoutService) RetrieveSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	if s.cache != nil {
		cached, err := s.cache.GetSession(ctx, sessionID)
		if err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Debug("session cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	segment := newrelic.FromContext(ctx).StartSegment("stripe/checkout_sessions.retrieve")
	raw, err := s.sessions.Get(sessionID, params)
	segment.End()
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("checkout session %s: %w", sessionID, repository.ErrNotFound)
		}
		return nil, &PaymentError{
			Kind:            ErrUnknownProvider,
			Message:         "Failed to retrieve checkout session: " + providerMessage(err),
			ProviderMessage: providerMessage(err),
			Err:             err,
		}
	}

	session := toCheckoutSession(raw, s.cfg.BaseCurrency)

	if s.cache != nil {
		if err := s.cache.SetSession(ctx, session); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Debug("session cache write failed")
		}
	}

	return session, nil
}

func toCheckoutSession(raw *stripe.CheckoutSession, fallbackCurrency string) *domain.CheckoutSession {
	session := &domain.CheckoutSession{
		ID:            raw.ID,
		URL:           raw.URL,
		Status:        domain.CheckoutSessionStatus(raw.Status),
		PaymentStatus: domain.CheckoutPaymentStatus(raw.PaymentStatus),
		AmountTotal:   raw.AmountTotal,
		Currency:      currency.Resolve(string(raw.Currency), fallbackCurrency),
		CustomerEmail: raw.CustomerEmail,
	}
	if session.CustomerEmail == "" && raw.CustomerDetails != nil {
		session.CustomerEmail = raw.CustomerDetails.Email
	}
	if raw.PaymentIntent != nil {
		session.PaymentIntentID = raw.PaymentIntent.ID
	}
	return session
}

// providerMessage prefers the human-readable message of a Stripe error.
func providerMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
