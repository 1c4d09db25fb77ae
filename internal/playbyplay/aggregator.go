// Package playbyplay fetches per-game action logs and reduces them into
// field-goal-attempt and possession counts.
package playbyplay

import (
	"context"
	"sync"
	"time"

	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// Defaults used when Options fields are zero
const (
	DefaultBatchSize  = 5
	DefaultBatchPause = time.Second
	DefaultTimeBudget = 25 * time.Second
)

// Fetcher retrieves the action log of one game
type Fetcher interface {
	FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayResponse, error)
}

// Options tunes batching and the wall-clock budget
type Options struct {
	BatchSize  int
	BatchPause time.Duration
	TimeBudget time.Duration
}

// Result is the summed output of one aggregation
type Result struct {
	models.GameTotals
	Processed      int
	Failed         int
	Skipped        int
	BudgetExceeded bool
}

// Aggregator fetches action logs in fixed-size concurrent batches
type Aggregator struct {
	fetcher Fetcher
	opts    Options
	now     func() time.Time
}

// NewAggregator creates an aggregator. A zero batch size or budget falls back to
// the defaults; a zero pause disables the delay between batches.
func NewAggregator(fetcher Fetcher, opts Options) *Aggregator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = DefaultTimeBudget
	}
	return &Aggregator{
		fetcher: fetcher,
		opts:    opts,
		now:     time.Now,
	}
}

type fetchResult struct {
	gameID string
	pbp    *models.PlayByPlayResponse
	err    error
}

// Aggregate fetches and reduces the given games.
//
// The time budget is checked once per game, before reducing it. When it runs
// out the sums accumulated so far are returned without error; requests already
// in flight are allowed to finish. A failed fetch excludes that game only.
// The only error returned is context cancellation, alongside the partial result.
func (a *Aggregator) Aggregate(ctx context.Context, gameIDs []string) (Result, error) {
	var res Result
	if len(gameIDs) == 0 {
		return res, nil
	}

	start := a.now()
	deadline := start.Add(a.opts.TimeBudget)

	for i := 0; i < len(gameIDs); i += a.opts.BatchSize {
		end := i + a.opts.BatchSize
		if end > len(gameIDs) {
			end = len(gameIDs)
		}

		if i > 0 {
			if err := pause(ctx, a.opts.BatchPause); err != nil {
				res.Skipped += len(gameIDs) - i
				return res, err
			}
		}

		if a.now().After(deadline) {
			a.budgetExceeded(&res, len(gameIDs)-i, start)
			return res, nil
		}

		batch := a.fetchBatch(ctx, gameIDs[i:end])

		for j, fr := range batch {
			if a.now().After(deadline) {
				a.budgetExceeded(&res, len(gameIDs)-(i+j), start)
				return res, nil
			}

			if fr.err != nil {
				res.Failed++
				metrics.RecordPlayByPlayFailure()
				log.Warn().
					Err(fr.err).
					Str("game_id", fr.gameID).
					Msg("Failed to fetch play-by-play, excluding game")
				continue
			}

			totals := CountActions(fr.pbp.Game.Actions)
			res.Add(totals)
			res.Processed++

			log.Debug().
				Str("game_id", fr.gameID).
				Int("fga", totals.FieldGoalAttempts).
				Int("possessions", totals.Possessions).
				Msg("Play-by-play aggregated")
		}

		if err := ctx.Err(); err != nil {
			res.Skipped += len(gameIDs) - end
			return res, err
		}
	}

	log.Info().
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("fga", res.FieldGoalAttempts).
		Int("possessions", res.Possessions).
		Dur("duration", a.now().Sub(start)).
		Msg("Play-by-play aggregation complete")

	return res, nil
}

// fetchBatch fetches all members of a batch concurrently, preserving order
func (a *Aggregator) fetchBatch(ctx context.Context, ids []string) []fetchResult {
	results := make([]fetchResult, len(ids))

	var wg sync.WaitGroup
	for idx, id := range ids {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			pbp, err := a.fetcher.FetchPlayByPlay(ctx, id)
			results[idx] = fetchResult{gameID: id, pbp: pbp, err: err}
		}(idx, id)
	}
	wg.Wait()

	return results
}

func (a *Aggregator) budgetExceeded(res *Result, remaining int, start time.Time) {
	res.BudgetExceeded = true
	res.Skipped += remaining
	metrics.RecordPlayByPlayBudgetExceeded()
	log.Warn().
		Dur("budget", a.opts.TimeBudget).
		Dur("elapsed", a.now().Sub(start)).
		Int("processed", res.Processed).
		Int("skipped", remaining).
		Msg("Play-by-play time budget exhausted, returning partial totals")
}

// CountActions reduces one game's action log in emitted order.
//
// A possession is counted whenever the possession value differs from the
// previous action's value and is not 0. A 0 never counts but still becomes
// the previous value for the next action.
func CountActions(actions []models.Action) models.GameTotals {
	var totals models.GameTotals

	previousPossession := 0
	possession := 0 // unset behaves as 0
	for _, action := range actions {
		previousPossession = possession
		possession = action.Possession

		if action.IsFieldGoal == 1 {
			totals.FieldGoalAttempts++
		}

		if possession != previousPossession && possession != 0 {
			totals.Possessions++
		}
	}

	return totals
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
