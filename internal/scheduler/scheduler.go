package scheduler

import (
	"context"
	"errors"
	"fmt"

	"wedgietracker/ingestion/internal/ingest"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner performs one ingestion run
type Runner interface {
	Run(ctx context.Context, trigger string) (*ingest.Summary, error)
}

// Scheduler triggers ingestion runs on a cron schedule
type Scheduler struct {
	spec   string
	runner Runner
	cron   *cron.Cron
}

// NewScheduler creates a scheduler for the given cron spec.
// Overlapping ticks are skipped while a run is still going.
func NewScheduler(spec string, runner Runner) *Scheduler {
	logger := cron.PrintfLogger(&log.Logger)
	return &Scheduler{
		spec:   spec,
		runner: runner,
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
	}
}

// Start registers the ingestion job and starts the cron loop. Runs use ctx,
// so cancelling it aborts a run in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Msg("Ingestion scheduled")

	return nil
}

// RunNow performs one run immediately, outside the cron loop
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.runner.Run(ctx, "cron")
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		log.Info().Msg("Skipping scheduled ingestion, a run is already in progress")
	case err != nil:
		log.Error().Err(err).Msg("Scheduled ingestion failed")
	}
}

// Stop stops the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	log.Info().Msg("Scheduler stopped")
}
