package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"visadesk/internal/config"
	"visadesk/internal/events"
)

// NewPublisher selects the payment outcome publisher: SQS when a queue is configured,
// otherwise the log.
func NewPublisher(ctx context.Context, cfg config.EventsConfig, logger logrus.FieldLogger) (events.Publisher, error) {
	if cfg.SQSQueueURL == "" {
		logger.Info("no events queue configured, payment outcomes go to the log")
		return events.NewLogPublisher(logger), nil
	}

	client, err := events.NewSQSClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.WithField("queue", cfg.SQSQueueURL).Info("publishing payment outcomes to SQS")
	return events.NewSQSPublisher(client, cfg.SQSQueueURL), nil
}
