// Package state owns every write to the global state row. Each operation runs
// in one transaction that locks the row, applies its change, recomputes the
// forecasts from the post-change counts and persists the result.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"
	"wedgietracker/ingestion/internal/pace"
	"wedgietracker/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// Write paths, used as metric labels
const (
	PathPush      = "push"
	PathIngestion = "ingestion"
	PathReplace   = "replace"
	PathWedgie    = "wedgie"
	PathPurge     = "purge"
	PathReassign  = "reassign"
)

var (
	// ErrInvalidInput is returned for inputs rejected before any write
	ErrInvalidInput = errors.New("invalid input")

	// ErrSeasonChanged is returned when the active season moved while an
	// ingestion run was in flight
	ErrSeasonChanged = errors.New("active season changed during run")
)

// Repository runs locked transactions and reads the committed state
type Repository interface {
	InTx(ctx context.Context, fn func(tx repository.StateTx) error) error
	GetGlobalState(ctx context.Context) (*models.GlobalState, error)
}

// SummaryCache caches the public summary. Implementations return nil, nil on a
// miss and ignore a SetSummary whose version is older than the cached one.
type SummaryCache interface {
	GetSummary(ctx context.Context) (*models.Summary, error)
	SetSummary(ctx context.Context, s *models.Summary, version time.Time) error
	InvalidateSummary(ctx context.Context) error
}

// Mutation changes the locked state inside a transaction
type Mutation func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error

// Options configures forecasting
type Options struct {
	EstimatedGames int
	ExcludedSeason string // reserved bucket never used as history
}

// Store is the single writer of the global state
type Store struct {
	repo  Repository
	cache SummaryCache
	opts  Options
}

// NewStore creates a store. cache may be nil.
func NewStore(repo Repository, cache SummaryCache, opts Options) *Store {
	if opts.EstimatedGames <= 0 {
		opts.EstimatedGames = pace.DefaultEstimatedGames
	}
	return &Store{repo: repo, cache: cache, opts: opts}
}

// Apply runs mutate against the locked row, recomputes the forecasts and
// persists. Nothing is written when mutate or any later step fails.
func (s *Store) Apply(ctx context.Context, path string, mutate Mutation) (*models.GlobalState, error) {
	var committed *models.GlobalState

	err := s.repo.InTx(ctx, func(tx repository.StateTx) error {
		gs, err := tx.LockGlobalState(ctx)
		if err != nil {
			return err
		}

		if err := mutate(ctx, tx, gs); err != nil {
			return err
		}

		if err := s.recompute(ctx, tx, gs); err != nil {
			return err
		}

		if err := tx.SaveGlobalState(ctx, gs); err != nil {
			return err
		}

		committed = gs
		return nil
	})
	if err != nil {
		metrics.RecordStateWrite(path, "error")
		metrics.RecordError("state", path)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	metrics.RecordStateWrite(path, "success")
	metrics.UpdateState(committed.TotalWedgies, committed.LiveGames,
		committed.SimplePace, committed.RegressionMeanPace, committed.MedianPace)
	s.publish(ctx, committed)

	log.Info().
		Str("path", path).
		Str("season", committed.ActiveSeason).
		Int("wedgies", committed.TotalWedgies).
		Int("games", committed.TotalGames).
		Int("simple_pace", committed.SimplePace).
		Int("regression_mean_pace", committed.RegressionMeanPace).
		Int("median_pace", committed.MedianPace).
		Msg("Global state updated")

	return committed, nil
}

// recompute derives the three forecasts from the counts in gs
func (s *Store) recompute(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
	tallies, err := tx.SeasonTallies(ctx)
	if err != nil {
		return err
	}

	history := pace.Qualifying(
		pace.SubstituteLive(tallies, gs.ActiveSeason, gs.TotalWedgies),
		s.opts.ExcludedSeason,
	)

	f := pace.Compute(pace.Input{
		Wedgies:        gs.TotalWedgies,
		Games:          gs.TotalGames,
		EstimatedGames: s.opts.EstimatedGames,
		Historical:     history,
	})

	gs.SimplePace = f.SimplePace
	gs.RegressionMeanPace = f.RegressionMeanPace
	gs.MedianPace = f.MedianPace
	return nil
}

// publish replaces the cached summary with the committed one. When that fails
// the entry is dropped so readers rebuild it from the row.
func (s *Store) publish(ctx context.Context, gs *models.GlobalState) {
	if s.cache == nil {
		return
	}
	summary := gs.Summary()
	err := s.cache.SetSummary(ctx, &summary, gs.UpdatedAt)
	if err == nil {
		return
	}
	log.Warn().Err(err).Msg("Failed to publish summary, invalidating")
	if err := s.cache.InvalidateSummary(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate summary cache")
	}
}

// Get returns the committed state
func (s *Store) Get(ctx context.Context) (*models.GlobalState, error) {
	return s.repo.GetGlobalState(ctx)
}

// Summary returns the public view, served from cache when possible
func (s *Store) Summary(ctx context.Context) (*models.Summary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Summary cache read failed, falling back to database")
		} else if cached != nil {
			return cached, nil
		}
	}

	gs, err := s.repo.GetGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	summary := gs.Summary()

	if s.cache != nil {
		if err := s.cache.SetSummary(ctx, &summary, gs.UpdatedAt); err != nil {
			log.Warn().Err(err).Msg("Failed to cache summary")
		}
	}

	return &summary, nil
}

// IngestionDelta is the outcome of one pull run
type IngestionDelta struct {
	SeasonName  string
	NewGames    []*models.Game
	FGA         int
	Possessions int
	LiveGames   bool
}

// ApplyIngestion upserts the season, inserts the new games and adds the
// deltas. Only games actually inserted count toward totals; the number of
// inserted games is returned alongside the state. The run is rejected with
// ErrSeasonChanged when the locked row names a different active season.
func (s *Store) ApplyIngestion(ctx context.Context, d IngestionDelta) (*models.GlobalState, int, error) {
	if d.SeasonName == "" {
		return nil, 0, fmt.Errorf("%w: season name is required", ErrInvalidInput)
	}

	var inserted int
	gs, err := s.Apply(ctx, PathIngestion, func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
		if gs.ActiveSeason != "" && gs.ActiveSeason != d.SeasonName {
			return fmt.Errorf("%w: run resolved %q, state has %q", ErrSeasonChanged, d.SeasonName, gs.ActiveSeason)
		}

		if err := tx.UpsertSeason(ctx, d.SeasonName); err != nil {
			return err
		}

		games, err := tx.InsertGames(ctx, d.NewGames)
		if err != nil {
			return err
		}
		inserted = len(games)

		if err := tx.IncrementSeasonGames(ctx, d.SeasonName, inserted); err != nil {
			return err
		}

		minutes := 0
		for _, g := range games {
			minutes += g.MinutesPlayed
		}

		if gs.ActiveSeason == "" {
			gs.ActiveSeason = d.SeasonName
		}
		gs.TotalGames += inserted
		gs.TotalMinutes += minutes
		gs.TotalFGA += d.FGA
		gs.TotalPoss += d.Possessions
		gs.LiveGames = d.LiveGames
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return gs, inserted, nil
}

// ApplyPush applies a trusted push. Numeric fields replace the stored value
// when present and positive; NewLiveGames is applied whenever present. Pushed
// games are inserted and counted toward their season only.
func (s *Store) ApplyPush(ctx context.Context, in models.PushInput) (*models.GlobalState, error) {
	return s.Apply(ctx, PathPush, func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
		setPositive(&gs.TotalWedgies, in.NewWedgieCount)
		setPositive(&gs.TotalGames, in.NewTotalGamesCount)
		setPositive(&gs.TotalMinutes, in.NewTotalMinutes)
		setPositive(&gs.TotalPoss, in.NewTotalPoss)
		setPositive(&gs.TotalFGA, in.NewTotalFGA)
		if in.NewLiveGames != nil {
			gs.LiveGames = *in.NewLiveGames
		}

		if len(in.NewGames) == 0 {
			return nil
		}

		bySeason := make(map[string][]*models.Game)
		var order []string
		for i := range in.NewGames {
			game := in.NewGames[i].ToGame()
			if game.Name == "" {
				return fmt.Errorf("%w: pushed game %d has no name", ErrInvalidInput, i)
			}
			if game.SeasonName == "" {
				game.SeasonName = gs.ActiveSeason
			}
			if game.SeasonName == "" {
				return fmt.Errorf("%w: pushed game %q has no season and no season is active", ErrInvalidInput, game.Name)
			}
			if game.GameDate.IsZero() {
				game.GameDate = time.Now().UTC()
			}
			if _, ok := bySeason[game.SeasonName]; !ok {
				order = append(order, game.SeasonName)
			}
			bySeason[game.SeasonName] = append(bySeason[game.SeasonName], game)
		}

		for _, season := range order {
			if err := tx.UpsertSeason(ctx, season); err != nil {
				return err
			}
			inserted, err := tx.InsertGames(ctx, bySeason[season])
			if err != nil {
				return err
			}
			if err := tx.IncrementSeasonGames(ctx, season, len(inserted)); err != nil {
				return err
			}
		}
		return nil
	})
}

func setPositive(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

// Replace overwrites every stored counter. Forecasts are recomputed, never taken from input.
func (s *Store) Replace(ctx context.Context, in models.GlobalStateInput) (*models.GlobalState, error) {
	if in.ActiveSeason == "" {
		return nil, fmt.Errorf("%w: active season is required", ErrInvalidInput)
	}

	return s.Apply(ctx, PathReplace, func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
		if err := tx.UpsertSeason(ctx, in.ActiveSeason); err != nil {
			return err
		}

		gs.ActiveSeason = in.ActiveSeason
		gs.TotalWedgies = in.TotalWedgies
		gs.TotalGames = in.TotalGames
		gs.TotalMinutes = in.TotalMinutes
		gs.TotalFGA = in.TotalFGA
		gs.TotalPoss = in.TotalPoss
		gs.LiveGames = in.LiveGames
		return nil
	})
}

// RecordWedgie creates or updates a wedgie. When it belongs to the active
// season that season is recounted, and the stored total is raised if the
// recount is higher. This path never lowers the total.
func (s *Store) RecordWedgie(ctx context.Context, w *models.Wedgie, create bool) (*models.GlobalState, error) {
	if w.SeasonName == "" {
		return nil, fmt.Errorf("%w: season name is required", ErrInvalidInput)
	}

	return s.Apply(ctx, PathWedgie, func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
		if err := tx.UpsertSeason(ctx, w.SeasonName); err != nil {
			return err
		}

		if create {
			if err := tx.CreateWedgie(ctx, w); err != nil {
				return err
			}
		} else if err := tx.UpdateWedgie(ctx, w); err != nil {
			return err
		}

		if w.SeasonName != gs.ActiveSeason {
			return nil
		}

		count, err := tx.CountSeasonWedgies(ctx, w.SeasonName)
		if err != nil {
			return err
		}
		if count > gs.TotalWedgies {
			gs.TotalWedgies = count
		}
		return nil
	})
}

// PurgeGamesBefore deletes games dated before the cutoff and recounts the
// affected seasons. It returns the number of deleted games.
func (s *Store) PurgeGamesBefore(ctx context.Context, before time.Time) (int64, *models.GlobalState, error) {
	var deleted int64
	gs, err := s.Apply(ctx, PathPurge, func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
		n, seasons, err := tx.PurgeGamesBefore(ctx, before)
		if err != nil {
			return err
		}
		deleted = n
		return tx.RecountSeasonGames(ctx, seasons)
	})
	if err != nil {
		return 0, nil, err
	}
	return deleted, gs, nil
}

// ReassignGamesAfter moves games dated after the cutoff into season and
// recounts both the source seasons and the target. It returns the number of
// moved games.
func (s *Store) ReassignGamesAfter(ctx context.Context, after time.Time, season string) (int64, *models.GlobalState, error) {
	if season == "" {
		return 0, nil, fmt.Errorf("%w: season name is required", ErrInvalidInput)
	}

	var moved int64
	gs, err := s.Apply(ctx, PathReassign, func(ctx context.Context, tx repository.StateTx, gs *models.GlobalState) error {
		if err := tx.UpsertSeason(ctx, season); err != nil {
			return err
		}
		n, seasons, err := tx.ReassignGamesAfter(ctx, after, season)
		if err != nil {
			return err
		}
		moved = n
		return tx.RecountSeasonGames(ctx, append(seasons, season))
	})
	if err != nil {
		return 0, nil, err
	}
	return moved, gs, nil
}
