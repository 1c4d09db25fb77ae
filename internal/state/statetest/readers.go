package statetest

import (
	"context"
	"fmt"

	"wedgietracker/ingestion/internal/models"
	"wedgietracker/ingestion/internal/repository"

	"github.com/google/uuid"
)

// SeasonReader serves season lookups from a Repository
type SeasonReader struct{ r *Repository }

// GameReader serves game lookups from a Repository
type GameReader struct{ r *Repository }

// WedgieReader serves wedgie lookups from a Repository
type WedgieReader struct{ r *Repository }

// Seasons returns a season reader over the committed rows
func (r *Repository) Seasons() SeasonReader { return SeasonReader{r} }

// GameRows returns a game reader over the committed rows
func (r *Repository) GameRows() GameReader { return GameReader{r} }

// Wedgies returns a wedgie reader over the committed rows
func (r *Repository) Wedgies() WedgieReader { return WedgieReader{r} }

func (s SeasonReader) GetByName(ctx context.Context, name string) (*models.Season, error) {
	season, ok := s.r.Season(name)
	if !ok {
		return nil, fmt.Errorf("season %q: %w", name, repository.ErrNotFound)
	}
	return &season, nil
}

func (s SeasonReader) Tallies(ctx context.Context) ([]models.SeasonTally, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return (&memTx{d: &s.r.data}).SeasonTallies(ctx)
}

func (g GameReader) GetByName(ctx context.Context, name string) (*models.Game, error) {
	g.r.mu.Lock()
	defer g.r.mu.Unlock()
	game, ok := g.r.data.games[name]
	if !ok {
		return nil, fmt.Errorf("game %q: %w", name, repository.ErrNotFound)
	}
	c := *game
	return &c, nil
}

func (g GameReader) CountBySeason(ctx context.Context, season string) (int, error) {
	g.r.mu.Lock()
	defer g.r.mu.Unlock()
	n := 0
	for _, game := range g.r.data.games {
		if game.SeasonName == season {
			n++
		}
	}
	return n, nil
}

func (w WedgieReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedgie, error) {
	w.r.mu.Lock()
	defer w.r.mu.Unlock()
	wedgie, ok := w.r.data.wedgies[id]
	if !ok {
		return nil, fmt.Errorf("wedgie %s: %w", id, repository.ErrNotFound)
	}
	c := *wedgie
	return &c, nil
}
