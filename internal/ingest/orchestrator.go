// Package ingest runs one pull of the league feeds into the global state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"
	"wedgietracker/ingestion/internal/playbyplay"
	"wedgietracker/ingestion/internal/repository"
	"wedgietracker/ingestion/internal/schedule"
	"wedgietracker/ingestion/internal/state"

	"github.com/rs/zerolog/log"
)

// ErrRunInProgress is returned when a run is triggered while another is active
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Syncer selects newly completed games
type Syncer interface {
	Sync(ctx context.Context, seasonName string) (*schedule.Result, error)
}

// Aggregator reduces play-by-play logs of the given games
type Aggregator interface {
	Aggregate(ctx context.Context, gameIDs []string) (playbyplay.Result, error)
}

// StateStore is the subset of the state store used by a run
type StateStore interface {
	Get(ctx context.Context) (*models.GlobalState, error)
	ApplyIngestion(ctx context.Context, d state.IngestionDelta) (*models.GlobalState, int, error)
}

// Summary describes one completed run
type Summary struct {
	SeasonName     string              `json:"seasonName"`
	NewGames       int                 `json:"newGames"`
	KnownGames     int                 `json:"knownGames"`
	InsertedGames  int                 `json:"insertedGames"`
	MinutesDelta   int                 `json:"minutesDelta"`
	FGA            int                 `json:"fga"`
	Possessions    int                 `json:"possessions"`
	Processed      int                 `json:"processed"`
	Failed         int                 `json:"failed"`
	Skipped        int                 `json:"skipped"`
	BudgetExceeded bool                `json:"budgetExceeded"`
	LiveGames      bool                `json:"liveGames"`
	Duration       time.Duration       `json:"duration"`
	State          *models.GlobalState `json:"state"`
}

// Orchestrator coordinates synchronization, aggregation and the state write
type Orchestrator struct {
	syncer        Syncer
	aggregator    Aggregator
	store         StateStore
	defaultSeason string

	running sync.Mutex
}

// NewOrchestrator creates an orchestrator. defaultSeason is used while no
// season is active.
func NewOrchestrator(syncer Syncer, aggregator Aggregator, store StateStore, defaultSeason string) *Orchestrator {
	return &Orchestrator{
		syncer:        syncer,
		aggregator:    aggregator,
		store:         store,
		defaultSeason: defaultSeason,
	}
}

// Run performs one ingestion. Only one run executes at a time per
// orchestrator; a concurrent call returns ErrRunInProgress immediately.
// A schedule failure aborts the run before anything is written.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*Summary, error) {
	if !o.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.running.Unlock()

	start := time.Now()
	log.Info().Str("trigger", trigger).Msg("Starting ingestion run")

	summary, err := o.run(ctx)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordSync(trigger, "error", duration.Seconds())
		metrics.RecordError("ingest", "run_failed")
		log.Error().Err(err).Str("trigger", trigger).Dur("duration", duration).Msg("Ingestion run failed")
		return nil, err
	}

	summary.Duration = duration
	metrics.RecordSync(trigger, "success", duration.Seconds())
	metrics.RecordGamesIngested(summary.InsertedGames)

	log.Info().
		Str("trigger", trigger).
		Str("season", summary.SeasonName).
		Int("new_games", summary.NewGames).
		Int("inserted_games", summary.InsertedGames).
		Int("known_games", summary.KnownGames).
		Int("fga", summary.FGA).
		Int("possessions", summary.Possessions).
		Bool("budget_exceeded", summary.BudgetExceeded).
		Dur("duration", duration).
		Msg("Ingestion run complete")

	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context) (*Summary, error) {
	season, err := o.activeSeason(ctx)
	if err != nil {
		return nil, err
	}

	synced, err := o.syncer.Sync(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("schedule sync failed: %w", err)
	}

	var agg playbyplay.Result
	if ids := synced.NewGameIDs(); len(ids) > 0 {
		agg, err = o.aggregator.Aggregate(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("play-by-play aggregation aborted: %w", err)
		}
	}

	gs, inserted, err := o.store.ApplyIngestion(ctx, state.IngestionDelta{
		SeasonName:  season,
		NewGames:    synced.NewGames,
		FGA:         agg.FieldGoalAttempts,
		Possessions: agg.Possessions,
		LiveGames:   synced.LiveGames,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply ingestion: %w", err)
	}

	return &Summary{
		SeasonName:     season,
		NewGames:       len(synced.NewGames),
		KnownGames:     synced.KnownGames,
		InsertedGames:  inserted,
		MinutesDelta:   synced.MinutesDelta,
		FGA:            agg.FieldGoalAttempts,
		Possessions:    agg.Possessions,
		Processed:      agg.Processed,
		Failed:         agg.Failed,
		Skipped:        agg.Skipped,
		BudgetExceeded: agg.BudgetExceeded,
		LiveGames:      synced.LiveGames,
		State:          gs,
	}, nil
}

// activeSeason resolves the season to ingest into
func (o *Orchestrator) activeSeason(ctx context.Context) (string, error) {
	gs, err := o.store.Get(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to read global state: %w", err)
	}
	if gs != nil && gs.ActiveSeason != "" {
		return gs.ActiveSeason, nil
	}
	if o.defaultSeason == "" {
		return "", errors.New("no active season and no default season configured")
	}
	return o.defaultSeason, nil
}
