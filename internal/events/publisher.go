// Package events delivers payment outcome notifications to downstream consumers.
package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"visadesk/internal/domain"
)

// EventType names a published event.
type EventType string

const (
	EventPaymentSucceeded EventType = "PAYMENT_SUCCEEDED"
	EventPaymentFailed    EventType = "PAYMENT_FAILED"
)

// TypeOf returns the event type for a status change.
func TypeOf(change domain.PaymentStatusChanged) EventType {
	if change.To == domain.ApplicationStatusFailed {
		return EventPaymentFailed
	}
	return EventPaymentSucceeded
}

// Publisher delivers payment status changes.
type Publisher interface {
	Publish(ctx context.Context, change domain.PaymentStatusChanged) error
}

// LogPublisher writes events to the log. Used when no queue is configured.
type LogPublisher struct {
	logger logrus.FieldLogger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the change.
func (p *LogPublisher) Publish(ctx context.Context, change domain.PaymentStatusChanged) error {
	p.logger.WithFields(logrus.Fields{
		"event":          TypeOf(change),
		"application_id": change.ApplicationID,
		"session_id":     change.SessionID,
		"from":           change.From,
		"to":             change.To,
		"source":         change.Source,
	}).Info("payment status changed")
	return nil
}
