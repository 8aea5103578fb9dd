package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"visadesk/internal/domain"
	"visadesk/internal/repository"
)

// SweeperConfig holds the pending-session sweep settings.
type SweeperConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked int
	Settled int
	Errors  int
}

// Sweeper settles applications whose success webhook never arrived.
// It only ever marks success; failure is left to the webhook.
type Sweeper struct {
	applications repository.ApplicationRepository
	sessions     SessionRetriever
	ledger       *Ledger
	cfg          SweeperConfig
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	applications repository.ApplicationRepository,
	sessions SessionRetriever,
	ledger *Ledger,
	cfg SweeperConfig,
	logger logrus.FieldLogger,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Sweeper{
		applications: applications,
		sessions:     sessions,
		ledger:       ledger,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("sweep failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep checks one batch of stale pending applications against the provider.
// Every checked record is stamped, so consecutive sweeps walk the whole backlog
// instead of re-reading the same oldest rows.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	pending, err := s.applications.ListPending(ctx, s.now().Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	for _, record := range pending {
		if ctx.Err() != nil {
			break
		}
		result.Checked++

		logger := s.logger.WithFields(logrus.Fields{
			"application_id": record.ApplicationID,
			"session_id":     record.StripeSessionID,
		})

		// Stamp before asking the provider so that rows which stay pending, or
		// keep failing, move to the back of the next batch.
		if err := s.applications.MarkChecked(ctx, record.ApplicationID, s.now()); err != nil {
			logger.WithError(err).Warn("failed to stamp reconcile check")
		}

		session, err := s.sessions.RetrieveSession(ctx, record.StripeSessionID)
		if err != nil {
			result.Errors++
			logger.WithError(err).Warn("failed to retrieve checkout session")
			continue
		}
		if !session.IsPaid() {
			continue
		}

		outcome, err := s.ledger.UpdateStatus(ctx, record.StripeSessionID, domain.ApplicationStatusSuccess, SourceSweeper)
		if err != nil {
			result.Errors++
			logger.WithError(err).Warn("failed to settle paid checkout session")
			continue
		}
		if outcome == OutcomeApplied {
			result.Settled++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"checked": result.Checked,
		"settled": result.Settled,
		"errors":  result.Errors,
	}).Info("sweep finished")

	return result, nil
}
