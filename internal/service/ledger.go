package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"visadesk/internal/domain"
	"visadesk/internal/events"
	"visadesk/internal/repository"
)

// Outcome describes what a ledger update did.
type Outcome string

const (
	// OutcomeApplied means the record moved to the requested status.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means the record was already in the requested status.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeIgnored means the record sits in a different terminal status and was left alone.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnknownSession means no application carries the session id.
	OutcomeUnknownSession Outcome = "unknown_session"
)

// Update sources recorded on published events.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceSweeper = "sweeper"
)

// Ledger owns the payment status of visa applications.
// Terminal statuses are sticky: success and failed are never overwritten.
type Ledger struct {
	applications repository.ApplicationRepository
	publisher    events.Publisher
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewLedger creates a new Ledger. publisher may be nil.
func NewLedger(applications repository.ApplicationRepository, publisher events.Publisher, logger logrus.FieldLogger) *Ledger {
	return &Ledger{
		applications: applications,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// FindBySessionID returns the application bound to sessionID or repository.ErrNotFound.
func (l *Ledger) FindBySessionID(ctx context.Context, sessionID string) (*domain.ApplicationPayment, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	return l.applications.GetBySessionID(ctx, sessionID)
}

// FindByApplicationID returns the payment view of an application.
func (l *Ledger) FindByApplicationID(ctx context.Context, applicationID string) (*domain.ApplicationPayment, error) {
	if applicationID == "" {
		return nil, ErrInvalidApplicationID
	}
	return l.applications.GetByID(ctx, applicationID)
}

// UpdateStatus moves the application bound to sessionID to a terminal status.
// An unknown session is logged and reported as OutcomeUnknownSession with a nil error.
func (l *Ledger) UpdateStatus(ctx context.Context, sessionID string, status domain.ApplicationStatus, source string) (Outcome, error) {
	if sessionID == "" {
		return "", ErrInvalidSessionID
	}
	if !status.IsTerminal() {
		return "", ErrInvalidStatus
	}

	logger := l.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"status":     status,
		"source":     source,
	})

	current, err := l.applications.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("no application found for checkout session")
			return OutcomeUnknownSession, nil
		}
		return "", err
	}

	if current.Status.IsTerminal() {
		return l.settledOutcome(logger, current.Status, status), nil
	}

	applied, err := l.applications.TransitionStatus(ctx, sessionID, status)
	if err != nil {
		return "", err
	}

	if !applied {
		// Lost a race with a concurrent update; report what the winner left behind.
		latest, err := l.applications.GetBySessionID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logger.Warn("application disappeared during status update")
				return OutcomeUnknownSession, nil
			}
			return "", err
		}
		return l.settledOutcome(logger, latest.Status, status), nil
	}

	logger.WithField("application_id", current.ApplicationID).Info("application payment status updated")
	l.publish(ctx, domain.PaymentStatusChanged{
		ApplicationID: current.ApplicationID,
		SessionID:     sessionID,
		From:          current.Status,
		To:            status,
		Source:        source,
		OccurredAt:    l.now().UTC(),
	})

	return OutcomeApplied, nil
}

func (l *Ledger) settledOutcome(logger logrus.FieldLogger, current, requested domain.ApplicationStatus) Outcome {
	if current == requested {
		logger.Debug("application payment status already applied")
		return OutcomeAlreadyApplied
	}
	logger.WithField("current_status", current).Warn("ignoring status change on settled application")
	return OutcomeIgnored
}

func (l *Ledger) publish(ctx context.Context, change domain.PaymentStatusChanged) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, change); err != nil {
		l.logger.WithError(err).WithField("session_id", change.SessionID).Error("failed to publish payment status change")
	}
}
