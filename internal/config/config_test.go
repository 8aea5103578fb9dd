package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_TIMEOUT", "")
	t.Setenv("BASE_URL", "")
	t.Setenv("PAYMENT_BASE_CURRENCY", "")
	t.Setenv("PAYMENT_RAW_CARD_ENABLED", "")

	cfg := Load()

	assert.Equal(t, 20*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, "aed", cfg.Payment.BaseCurrency)
	assert.False(t, cfg.Payment.RawCardEnabled)
	assert.Equal(t, "http://localhost:4000/payment/success?session_id={CHECKOUT_SESSION_ID}", cfg.Payment.SuccessURL())
	assert.Equal(t, "http://localhost:4000/payment/cancel", cfg.Payment.CancelURL())
	assert.ErrorIs(t, cfg.Validate(), ErrMissingStripeKey)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("STRIPE_TIMEOUT", "5s")
	t.Setenv("BASE_URL", "https://visa.example.com/")
	t.Setenv("PAYMENT_BASE_CURRENCY", "USD")
	t.Setenv("PAYMENT_RAW_CARD_ENABLED", "true")
	t.Setenv("RECONCILER_BATCH_SIZE", "10")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "whsec_abc", cfg.Stripe.WebhookSecret)
	assert.Equal(t, 5*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, "usd", cfg.Payment.BaseCurrency)
	assert.True(t, cfg.Payment.RawCardEnabled)
	assert.Equal(t, 10, cfg.Reconciler.BatchSize)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "https://visa.example.com/payment/cancel", cfg.Payment.CancelURL())
}

func TestDatabaseConfig(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "visas")
	t.Setenv("DB_MAX_OPEN_CONNS", "40")
	t.Setenv("DB_CONN_MAX_LIFETIME", "")

	cfg := Load().Database

	assert.Equal(t, 40, cfg.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Contains(t, cfg.DSN(), "host=db.internal")
	assert.Contains(t, cfg.DSN(), "dbname=visas")
	assert.Equal(t, "nrpostgres", cfg.DriverName(true))
	assert.Equal(t, "postgres", cfg.DriverName(false))
}
