package app

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"visadesk/internal/config"
)

// NewStripeClient creates a Stripe API client bound to the configured key.
// Every call is bounded by the configured timeout and never retried by the SDK.
// SDK logs go through logger, which satisfies stripe.LeveledLoggerInterface.
func NewStripeClient(cfg config.StripeConfig, logger *logrus.Logger) *client.API {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger,
	})
	return client.New(cfg.SecretKey, backends)
}
