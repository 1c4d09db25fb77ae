package repository

import (
	"context"
	"errors"
	"fmt"

	"wedgietracker/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// SeasonRepository handles season database operations
type SeasonRepository struct {
	db *Database
}

// GetByName retrieves a season by name
func (r *SeasonRepository) GetByName(ctx context.Context, name string) (*models.Season, error) {
	query := `
		SELECT id, name, total_games, created_at, updated_at
		FROM seasons
		WHERE name = $1
	`

	var season models.Season
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(
		&season.ID, &season.Name, &season.TotalGames, &season.CreatedAt, &season.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("season %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get season: %w", err)
	}

	return &season, nil
}

// Tallies returns every season's live wedgie count and cached game count
func (r *SeasonRepository) Tallies(ctx context.Context) ([]models.SeasonTally, error) {
	return seasonTallies(ctx, r.db.Pool)
}

func upsertSeason(ctx context.Context, q querier, name string) error {
	_, err := q.Exec(ctx, `INSERT INTO seasons (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("failed to upsert season %q: %w", name, err)
	}
	return nil
}

func incrementSeasonGames(ctx context.Context, q querier, name string, n int) error {
	if n == 0 {
		return nil
	}

	tag, err := q.Exec(ctx,
		`UPDATE seasons SET total_games = total_games + $2, updated_at = NOW() WHERE name = $1`,
		name, n,
	)
	if err != nil {
		return fmt.Errorf("failed to increment season games: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("season %q: %w", name, ErrNotFound)
	}
	return nil
}

func recountSeasonGames(ctx context.Context, q querier, names []string) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		UPDATE seasons s
		SET total_games = (SELECT COUNT(*) FROM games g WHERE g.season_name = s.name),
		    updated_at = NOW()
		WHERE s.name = ANY($1)
	`
	if _, err := q.Exec(ctx, query, names); err != nil {
		return fmt.Errorf("failed to recount season games: %w", err)
	}
	return nil
}

func seasonTallies(ctx context.Context, q querier) ([]models.SeasonTally, error) {
	query := `
		SELECT s.name, COALESCE(w.wedgies, 0), s.total_games
		FROM seasons s
		LEFT JOIN (
			SELECT season_name, COUNT(*) AS wedgies
			FROM wedgies
			GROUP BY season_name
		) w ON w.season_name = s.name
		ORDER BY s.name
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query season tallies: %w", err)
	}
	defer rows.Close()

	var tallies []models.SeasonTally
	for rows.Next() {
		var t models.SeasonTally
		if err := rows.Scan(&t.Name, &t.Wedgies, &t.TotalGames); err != nil {
			return nil, fmt.Errorf("failed to scan season tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating season tallies: %w", err)
	}

	return tallies, nil
}
