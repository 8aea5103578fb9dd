package app

import (
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"visadesk/internal/config"
)

// NewNewRelic starts the APM agent when enabled. It returns nil when disabled or
// when the agent fails to start; every consumer treats nil as "not instrumented".
func NewNewRelic(cfg config.NewRelicConfig, logger logrus.FieldLogger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.WithError(err).Warn("failed to initialize New Relic")
		return nil
	}

	logger.WithField("app", cfg.AppName).Info("New Relic enabled")
	return nrApp
}
