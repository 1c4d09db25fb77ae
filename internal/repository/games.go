package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// GameRepository handles game database operations
type GameRepository struct {
	db *Database
}

// ExistingGameNames returns the subset of names already stored
func (r *GameRepository) ExistingGameNames(ctx context.Context, names []string) (map[string]bool, error) {
	start := time.Now()
	existing := make(map[string]bool)
	if len(names) == 0 {
		return existing, nil
	}

	rows, err := r.db.Pool.Query(ctx, `SELECT name FROM games WHERE name = ANY($1)`, names)
	if err != nil {
		metrics.RecordDBQuery("select", "games", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to query existing games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan game name: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game names: %w", err)
	}

	metrics.RecordDBQuery("select", "games", "success", time.Since(start).Seconds())
	return existing, nil
}

// GetByName retrieves a game by its dedup name
func (r *GameRepository) GetByName(ctx context.Context, name string) (*models.Game, error) {
	query := `
		SELECT id, game_id, name, game_date, season_name, minutes_played, created_at
		FROM games
		WHERE name = $1
	`

	var game models.Game
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(
		&game.ID, &game.GameID, &game.Name, &game.GameDate,
		&game.SeasonName, &game.MinutesPlayed, &game.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// CountBySeason returns the live number of game rows in a season
func (r *GameRepository) CountBySeason(ctx context.Context, season string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE season_name = $1`, season).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

func insertGames(ctx context.Context, q querier, games []*models.Game) ([]*models.Game, error) {
	query := `
		INSERT INTO games (game_id, name, game_date, season_name, minutes_played, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))
		ON CONFLICT (name) DO NOTHING
		RETURNING id, created_at
	`

	inserted := make([]*models.Game, 0, len(games))
	for _, game := range games {
		// a zero CreatedAt lets the database stamp the row
		var createdAt *time.Time
		if !game.CreatedAt.IsZero() {
			createdAt = &game.CreatedAt
		}

		err := q.QueryRow(ctx, query,
			game.GameID, game.Name, game.GameDate, game.SeasonName, game.MinutesPlayed, createdAt,
		).Scan(&game.ID, &game.CreatedAt)

		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().Str("name", game.Name).Msg("Game already stored, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert game %q: %w", game.Name, err)
		}

		inserted = append(inserted, game)
	}

	return inserted, nil
}

func purgeGamesBefore(ctx context.Context, q querier, before time.Time) (int64, []string, error) {
	rows, err := q.Query(ctx, `DELETE FROM games WHERE game_date < $1 RETURNING season_name`, before)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to purge games: %w", err)
	}
	return collectSeasons(rows)
}

func reassignGamesAfter(ctx context.Context, q querier, after time.Time, season string) (int64, []string, error) {
	query := `
		WITH moved AS (
			SELECT id, season_name AS old_season
			FROM games
			WHERE game_date > $1 AND season_name <> $2
			FOR UPDATE
		)
		UPDATE games g
		SET season_name = $2
		FROM moved
		WHERE g.id = moved.id
		RETURNING moved.old_season
	`

	rows, err := q.Query(ctx, query, after, season)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reassign games: %w", err)
	}
	return collectSeasons(rows)
}

// collectSeasons counts returned rows and the distinct season names among them
func collectSeasons(rows pgx.Rows) (int64, []string, error) {
	defer rows.Close()

	var n int64
	seen := make(map[string]bool)
	var seasons []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, nil, fmt.Errorf("failed to scan season name: %w", err)
		}
		n++
		if !seen[name] {
			seen[name] = true
			seasons = append(seasons, name)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("error iterating affected games: %w", err)
	}

	return n, seasons, nil
}
