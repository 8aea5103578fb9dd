package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Stripe     StripeConfig
	Payment    PaymentConfig
	Reconciler ReconcilerConfig
	Events     EventsConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// DriverName picks the database/sql driver: "nrpostgres" when queries should be
// traced by New Relic, plain "postgres" otherwise.
func (c DatabaseConfig) DriverName(instrumented bool) string {
	if instrumented {
		return "nrpostgres"
	}
	return "postgres"
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string // optional; empty means unauthenticated webhooks (dev only)
	Timeout       time.Duration
}

// PaymentConfig holds checkout and charge defaults.
type PaymentConfig struct {
	BaseURL        string
	BaseCurrency   string
	RawCardEnabled bool
}

// SuccessURL is the default checkout success redirect. Stripe fills in the placeholder.
func (p PaymentConfig) SuccessURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
}

// ReturnURL is where the customer lands after a 3-D Secure challenge on a direct charge.
func (p PaymentConfig) ReturnURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/"
}

// CancelURL is the default checkout cancel redirect.
func (p PaymentConfig) CancelURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/payment/cancel"
}

// ReconcilerConfig holds the pending-session sweeper settings.
type ReconcilerConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
}

// EventsConfig holds payment outcome publishing settings.
type EventsConfig struct {
	SQSQueueURL     string
	AWSRegion       string
	AccessKeyID     string
	SecretAccessKey string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// ErrMissingStripeKey is returned by Validate when no API key is configured.
var ErrMissingStripeKey = errors.New("STRIPE_SECRET_KEY is required")

// Load loads configuration from environment variables, reading a .env file first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "4000"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "visadesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "visadesk-payments"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Timeout:       getDurationEnv("STRIPE_TIMEOUT", 20*time.Second),
		},
		Payment: PaymentConfig{
			BaseURL:        getEnv("BASE_URL", "http://localhost:4000"),
			BaseCurrency:   strings.ToLower(getEnv("PAYMENT_BASE_CURRENCY", "aed")),
			RawCardEnabled: getBoolEnv("PAYMENT_RAW_CARD_ENABLED", false),
		},
		Reconciler: ReconcilerConfig{
			Interval:  getDurationEnv("RECONCILER_INTERVAL", time.Minute),
			MinAge:    getDurationEnv("RECONCILER_MIN_AGE", 15*time.Minute),
			BatchSize: getIntEnv("RECONCILER_BATCH_SIZE", 50),
		},
		Events: EventsConfig{
			SQSQueueURL:     getEnv("EVENTS_SQS_QUEUE_URL", ""),
			AWSRegion:       getEnv("AWS_REGION", "me-central-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate checks settings the process cannot run without.
func (c *Config) Validate() error {
	if c.Stripe.SecretKey == "" {
		return ErrMissingStripeKey
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := cast.ToBoolE(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := cast.ToDurationE(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
