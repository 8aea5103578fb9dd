package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"visadesk/internal/app"
	"visadesk/internal/config"
	"visadesk/internal/events"
	"visadesk/internal/handler"
	internalRedis "visadesk/internal/redis"
	"visadesk/internal/repository/postgres"
	"visadesk/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Amounts are rendered as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	nrApp := app.NewNewRelic(cfg.NewRelic, logger)

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	publisher, err := app.NewPublisher(ctx, cfg.Events, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize event publisher")
	}

	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set; webhooks are accepted without signature verification")
	}
	if cfg.Payment.RawCardEnabled {
		logger.Warn("raw card data charging is enabled; this path is not PCI compliant and is meant for development")
	}

	server := wireServer(db, redisClient, nrApp, publisher, logger, cfg)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher events.Publisher,
	logger *logrus.Logger,
	cfg *config.Config,
) *http.Server {
	// Initialize Redis stores.
	cacheStore := internalRedis.NewCacheStore(redisClient)
	eventStore := internalRedis.NewEventStore(redisClient)

	// Initialize repositories.
	applicationRepo := postgres.NewApplicationRepository(db)
	webhookEventRepo := postgres.NewWebhookEventRepository(db)

	// Initialize the provider client.
	stripeClient := app.NewStripeClient(cfg.Stripe, logger)

	// Initialize services.
	ledger := service.NewLedger(applicationRepo, publisher, logger)
	chargeService := service.NewChargeService(stripeClient.PaymentIntents, service.ChargeConfig{
		BaseCurrency:   cfg.Payment.BaseCurrency,
		ReturnURL:      cfg.Payment.ReturnURL(),
		RawCardEnabled: cfg.Payment.RawCardEnabled,
	}, logger)
	checkoutService := service.NewCheckoutService(stripeClient.CheckoutSessions, applicationRepo, cacheStore, service.CheckoutConfig{
		BaseCurrency: cfg.Payment.BaseCurrency,
		SuccessURL:   cfg.Payment.SuccessURL(),
		CancelURL:    cfg.Payment.CancelURL(),
	}, logger)
	statusService := service.NewStatusService(checkoutService, ledger, logger)
	reconciler := service.NewReconciler(ledger, webhookEventRepo, eventStore, cfg.Stripe.WebhookSecret, logger)

	// Initialize handlers.
	paymentHandler := handler.NewPaymentHandler(chargeService, checkoutService, statusService)
	webhookHandler := handler.NewWebhookHandler(reconciler)
	applicationHandler := handler.NewApplicationHandler(ledger)

	router := app.NewRouter(app.RouterDeps{
		PaymentHandler:     paymentHandler,
		WebhookHandler:     webhookHandler,
		ApplicationHandler: applicationHandler,
		RedisClient:        redisClient,
		NewRelicApp:        nrApp,
		Logger:             logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
