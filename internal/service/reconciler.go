package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"visadesk/internal/domain"
	"visadesk/internal/redis"
	"visadesk/internal/repository"
)

// Reconciler applies provider webhook notifications to the ledger.
type Reconciler struct {
	ledger    *Ledger
	audit     repository.WebhookEventRepository
	processed redis.EventStoreInterface
	secret    string
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewReconciler creates a new Reconciler. audit and processed may be nil.
// An empty secret accepts unsigned payloads and must only be used in development.
func NewReconciler(
	ledger *Ledger,
	audit repository.WebhookEventRepository,
	processed redis.EventStoreInterface,
	secret string,
	logger logrus.FieldLogger,
) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		audit:     audit,
		processed: processed,
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}
}

// Verifying reports whether signatures are checked.
func (r *Reconciler) Verifying() bool {
	return r.secret != ""
}

// Handle verifies, decodes and applies one webhook delivery.
// It returns ErrSignatureVerification or ErrPayloadParse for requests that must be rejected;
// any other error is a processing failure the provider should retry.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := r.decode(payload, signature)
	if err != nil {
		return err
	}

	logger := r.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	var target domain.ApplicationStatus
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		target = domain.ApplicationStatusSuccess
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		target = domain.ApplicationStatusFailed
	default:
		logger.Debug("ignoring webhook event")
		return nil
	}

	sessionID, err := sessionIDFromEvent(event)
	if err != nil {
		logger.WithError(err).Error("failed to decode checkout session from webhook")
		return err
	}
	logger = logger.WithField("session_id", sessionID)

	if r.alreadyProcessed(ctx, event.ID, logger) {
		logger.Info("webhook event already processed")
		return nil
	}

	r.record(ctx, event, sessionID, payload, logger)

	outcome, err := r.ledger.UpdateStatus(ctx, sessionID, target, SourceWebhook)
	if err != nil {
		logger.WithError(err).Error("failed to apply webhook event")
		return fmt.Errorf("apply %s for session %s: %w", event.Type, sessionID, err)
	}
	logger.WithField("outcome", outcome).Info("webhook event applied")

	if r.processed != nil && event.ID != "" {
		if err := r.processed.MarkProcessed(ctx, event.ID); err != nil {
			logger.WithError(err).Warn("failed to mark webhook event processed")
		}
	}

	return nil
}

func (r *Reconciler) decode(payload []byte, signature string) (*stripe.Event, error) {
	if r.secret != "" {
		if signature == "" {
			r.logger.Error("webhook signature header missing")
			return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrSignatureVerification)
		}
		event, err := webhook.ConstructEventWithOptions(payload, signature, r.secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			r.logger.WithError(err).Error("webhook signature verification failed")
			return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
		}
		return &event, nil
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		r.logger.WithError(err).Error("failed to parse webhook body")
		return nil, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: event type missing", ErrPayloadParse)
	}
	return &event, nil
}

func sessionIDFromEvent(event *stripe.Event) (string, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return "", fmt.Errorf("%w: event data missing", ErrPayloadParse)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	if session.ID == "" {
		return "", fmt.Errorf("%w: checkout session id missing", ErrPayloadParse)
	}
	return session.ID, nil
}

func (r *Reconciler) alreadyProcessed(ctx context.Context, eventID string, logger logrus.FieldLogger) bool {
	if r.processed == nil || eventID == "" {
		return false
	}
	seen, err := r.processed.IsProcessed(ctx, eventID)
	if err != nil {
		logger.WithError(err).Warn("processed event lookup failed")
		return false
	}
	return seen
}

// record stores the audit row. Failures never block the ledger update.
func (r *Reconciler) record(ctx context.Context, event *stripe.Event, sessionID string, payload []byte, logger logrus.FieldLogger) {
	if r.audit == nil || event.ID == "" {
		return
	}
	err := r.audit.Create(ctx, &domain.WebhookEvent{
		ID:              uuid.New().String(),
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		SessionID:       sessionID,
		Payload:         json.RawMessage(payload),
		ReceivedAt:      r.now().UTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicate):
		// An earlier delivery stored the row but may have failed before the
		// ledger; the update below is idempotent, so it still runs.
		logger.Debug("webhook event redelivered")
	default:
		logger.WithError(err).Warn("failed to record webhook event")
	}
}
