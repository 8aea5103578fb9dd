package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"visadesk/internal/currency"
	"visadesk/internal/domain"
)

// SessionRetriever reads checkout sessions. *CheckoutService satisfies it.
type SessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
}

// StatusService answers the customer's return from hosted checkout.
type StatusService struct {
	sessions SessionRetriever
	ledger   *Ledger
	logger   logrus.FieldLogger
}

// NewStatusService creates a new StatusService.
func NewStatusService(sessions SessionRetriever, ledger *Ledger, logger logrus.FieldLogger) *StatusService {
	return &StatusService{
		sessions: sessions,
		ledger:   ledger,
		logger:   logger,
	}
}

// PaymentStatus is the customer-facing view of a checkout session.
type PaymentStatus struct {
	SessionID       string
	PaymentStatus   domain.CheckoutPaymentStatus
	PaymentIntentID string
	Amount          decimal.Decimal // display units
	Currency        string          // upper case
	CustomerEmail   string
	Outcome         Outcome // empty unless the ledger was consulted
}

// Check retrieves the session and, when it is paid, moves the bound application to success.
// Ledger failures are logged but do not fail the check; the webhook remains authoritative.
func (s *StatusService) Check(ctx context.Context, sessionID string) (*PaymentStatus, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	session, err := s.sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &PaymentStatus{
		SessionID:       session.ID,
		PaymentStatus:   session.PaymentStatus,
		PaymentIntentID: session.PaymentIntentID,
		Amount:          currency.FromSmallestUnit(session.AmountTotal, session.Currency),
		Currency:        currency.Display(session.Currency),
		CustomerEmail:   session.CustomerEmail,
	}

	if session.IsPaid() {
		outcome, err := s.ledger.UpdateStatus(ctx, session.ID, domain.ApplicationStatusSuccess, SourcePoll)
		if err != nil {
			s.logger.WithError(err).WithField("session_id", session.ID).Error("failed to record paid checkout session")
		} else {
			result.Outcome = outcome
		}
	}

	return result, nil
}
