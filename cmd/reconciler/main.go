package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"visadesk/internal/app"
	"visadesk/internal/config"
	internalRedis "visadesk/internal/redis"
	"visadesk/internal/repository/postgres"
	"visadesk/internal/service"
)

// The reconciler settles applications whose checkout was paid but whose
// success webhook never arrived.
func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	nrApp := app.NewNewRelic(cfg.NewRelic, logger)

	db, err := app.NewDatabase(initCtx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	redisClient, err := app.NewRedisClient(initCtx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	publisher, err := app.NewPublisher(initCtx, cfg.Events, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize event publisher")
	}

	applicationRepo := postgres.NewApplicationRepository(db)
	stripeClient := app.NewStripeClient(cfg.Stripe, logger)

	ledger := service.NewLedger(applicationRepo, publisher, logger)
	checkoutService := service.NewCheckoutService(
		stripeClient.CheckoutSessions,
		applicationRepo,
		internalRedis.NewCacheStore(redisClient),
		service.CheckoutConfig{
			BaseCurrency: cfg.Payment.BaseCurrency,
			SuccessURL:   cfg.Payment.SuccessURL(),
			CancelURL:    cfg.Payment.CancelURL(),
		},
		logger,
	)
	sweeper := service.NewSweeper(applicationRepo, checkoutService, ledger, service.SweeperConfig{
		Interval:  cfg.Reconciler.Interval,
		MinAge:    cfg.Reconciler.MinAge,
		BatchSize: cfg.Reconciler.BatchSize,
	}, logger)

	logger.WithField("interval", cfg.Reconciler.Interval.String()).Info("reconciler started")
	if err := sweeper.Run(ctx); err != nil {
		logger.WithError(err).Error("reconciler stopped with error")
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	logger.Info("reconciler exited")
}
