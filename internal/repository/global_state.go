package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wedgietracker/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// StateTx is the set of operations available while the global state row is locked
type StateTx interface {
	LockGlobalState(ctx context.Context) (*models.GlobalState, error)
	SaveGlobalState(ctx context.Context, gs *models.GlobalState) error

	UpsertSeason(ctx context.Context, name string) error
	IncrementSeasonGames(ctx context.Context, name string, n int) error
	RecountSeasonGames(ctx context.Context, names []string) error
	SeasonTallies(ctx context.Context) ([]models.SeasonTally, error)

	// InsertGames skips games whose name already exists and returns the inserted ones
	InsertGames(ctx context.Context, games []*models.Game) ([]*models.Game, error)
	PurgeGamesBefore(ctx context.Context, before time.Time) (int64, []string, error)
	ReassignGamesAfter(ctx context.Context, after time.Time, season string) (int64, []string, error)

	CreateWedgie(ctx context.Context, w *models.Wedgie) error
	UpdateWedgie(ctx context.Context, w *models.Wedgie) error
	CountSeasonWedgies(ctx context.Context, season string) (int, error)
}

const globalStateColumns = `
	id, active_season, total_wedgies, total_games, total_minutes, total_fga, total_poss,
	live_games, simple_pace, regression_mean_pace, median_pace, updated_at
`

// GetGlobalState reads the singleton row without locking it
func (db *Database) GetGlobalState(ctx context.Context) (*models.GlobalState, error) {
	return scanGlobalState(db.Pool.QueryRow(ctx,
		`SELECT `+globalStateColumns+` FROM global_state WHERE id = $1`,
		models.GlobalStateID,
	))
}

func scanGlobalState(row pgx.Row) (*models.GlobalState, error) {
	var gs models.GlobalState
	err := row.Scan(
		&gs.ID, &gs.ActiveSeason, &gs.TotalWedgies, &gs.TotalGames, &gs.TotalMinutes,
		&gs.TotalFGA, &gs.TotalPoss, &gs.LiveGames,
		&gs.SimplePace, &gs.RegressionMeanPace, &gs.MedianPace, &gs.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("global state: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global state: %w", err)
	}
	return &gs, nil
}

// pgStateTx implements StateTx on a pgx transaction
type pgStateTx struct {
	tx pgx.Tx
}

func (t *pgStateTx) LockGlobalState(ctx context.Context) (*models.GlobalState, error) {
	// The row normally exists from Migrate; create it if someone deleted it
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO global_state (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		models.GlobalStateID,
	); err != nil {
		return nil, fmt.Errorf("failed to ensure global state row: %w", err)
	}

	return scanGlobalState(t.tx.QueryRow(ctx,
		`SELECT `+globalStateColumns+` FROM global_state WHERE id = $1 FOR UPDATE`,
		models.GlobalStateID,
	))
}

func (t *pgStateTx) SaveGlobalState(ctx context.Context, gs *models.GlobalState) error {
	query := `
		UPDATE global_state SET
			active_season = $2,
			total_wedgies = $3,
			total_games = $4,
			total_minutes = $5,
			total_fga = $6,
			total_poss = $7,
			live_games = $8,
			simple_pace = $9,
			regression_mean_pace = $10,
			median_pace = $11,
			updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING updated_at
	`

	err := t.tx.QueryRow(ctx, query,
		models.GlobalStateID, gs.ActiveSeason, gs.TotalWedgies, gs.TotalGames, gs.TotalMinutes,
		gs.TotalFGA, gs.TotalPoss, gs.LiveGames,
		gs.SimplePace, gs.RegressionMeanPace, gs.MedianPace,
	).Scan(&gs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save global state: %w", err)
	}

	gs.ID = models.GlobalStateID
	return nil
}

func (t *pgStateTx) UpsertSeason(ctx context.Context, name string) error {
	return upsertSeason(ctx, t.tx, name)
}

func (t *pgStateTx) IncrementSeasonGames(ctx context.Context, name string, n int) error {
	return incrementSeasonGames(ctx, t.tx, name, n)
}

func (t *pgStateTx) RecountSeasonGames(ctx context.Context, names []string) error {
	return recountSeasonGames(ctx, t.tx, names)
}

func (t *pgStateTx) SeasonTallies(ctx context.Context) ([]models.SeasonTally, error) {
	return seasonTallies(ctx, t.tx)
}

func (t *pgStateTx) InsertGames(ctx context.Context, games []*models.Game) ([]*models.Game, error) {
	return insertGames(ctx, t.tx, games)
}

func (t *pgStateTx) PurgeGamesBefore(ctx context.Context, before time.Time) (int64, []string, error) {
	return purgeGamesBefore(ctx, t.tx, before)
}

func (t *pgStateTx) ReassignGamesAfter(ctx context.Context, after time.Time, season string) (int64, []string, error) {
	return reassignGamesAfter(ctx, t.tx, after, season)
}

func (t *pgStateTx) CreateWedgie(ctx context.Context, w *models.Wedgie) error {
	return createWedgie(ctx, t.tx, w)
}

func (t *pgStateTx) UpdateWedgie(ctx context.Context, w *models.Wedgie) error {
	return updateWedgie(ctx, t.tx, w)
}

func (t *pgStateTx) CountSeasonWedgies(ctx context.Context, season string) (int, error) {
	return countSeasonWedgies(ctx, t.tx, season)
}
