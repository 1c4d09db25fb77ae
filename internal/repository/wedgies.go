package repository

import (
	"context"
	"errors"
	"fmt"

	"wedgietracker/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// WedgieRepository handles wedgie database operations
type WedgieRepository struct {
	db *Database
}

// GetByID retrieves a wedgie by id
func (r *WedgieRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedgie, error) {
	query := `
		SELECT id, season_name, number, player, team, opponent, game_date, created_at, updated_at
		FROM wedgies
		WHERE id = $1
	`

	var w models.Wedgie
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.SeasonName, &w.Number, &w.Player, &w.Team, &w.Opponent,
		&w.GameDate, &w.CreatedAt, &w.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("wedgie %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wedgie: %w", err)
	}

	return &w, nil
}

func createWedgie(ctx context.Context, q querier, w *models.Wedgie) error {
	query := `
		INSERT INTO wedgies (id, season_name, number, player, team, opponent, game_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		w.ID, w.SeasonName, w.Number, w.Player, w.Team, w.Opponent, w.GameDate,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wedgie: %w", err)
	}

	log.Debug().
		Str("id", w.ID.String()).
		Str("season", w.SeasonName).
		Int("number", w.Number).
		Msg("Wedgie created")

	return nil
}

func updateWedgie(ctx context.Context, q querier, w *models.Wedgie) error {
	query := `
		UPDATE wedgies SET
			season_name = $2,
			number = $3,
			player = $4,
			team = $5,
			opponent = $6,
			game_date = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		w.ID, w.SeasonName, w.Number, w.Player, w.Team, w.Opponent, w.GameDate,
	).Scan(&w.CreatedAt, &w.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("wedgie %s: %w", w.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update wedgie: %w", err)
	}

	return nil
}

func countSeasonWedgies(ctx context.Context, q querier, season string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM wedgies WHERE season_name = $1`, season).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count wedgies: %w", err)
	}
	return count, nil
}
