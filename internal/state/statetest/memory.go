// Package statetest provides an in-memory repository for tests of code that
// writes through the state store.
package statetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wedgietracker/ingestion/internal/models"
	"wedgietracker/ingestion/internal/repository"

	"github.com/google/uuid"
)

// Repository keeps all rows in memory. Transactions are serialized by a mutex
// and work on a copy that is only kept when the callback succeeds.
type Repository struct {
	mu   sync.Mutex
	data snapshot

	// FailSave makes the next transactions fail at the save step
	FailSave error
}

type snapshot struct {
	global  models.GlobalState
	seasons map[string]*models.Season
	games   map[string]*models.Game
	wedgies map[uuid.UUID]*models.Wedgie
	upserts map[string]int
	nextID  int
}

// NewRepository returns an empty repository holding a blank global state row
func NewRepository() *Repository {
	return &Repository{data: snapshot{
		global:  models.GlobalState{ID: models.GlobalStateID},
		seasons: make(map[string]*models.Season),
		games:   make(map[string]*models.Game),
		wedgies: make(map[uuid.UUID]*models.Wedgie),
		upserts: make(map[string]int),
		nextID:  1,
	}}
}

func (s snapshot) clone() snapshot {
	out := snapshot{
		global:  s.global,
		seasons: make(map[string]*models.Season, len(s.seasons)),
		games:   make(map[string]*models.Game, len(s.games)),
		wedgies: make(map[uuid.UUID]*models.Wedgie, len(s.wedgies)),
		upserts: make(map[string]int, len(s.upserts)),
		nextID:  s.nextID,
	}
	for k, v := range s.upserts {
		out.upserts[k] = v
	}
	for k, v := range s.seasons {
		c := *v
		out.seasons[k] = &c
	}
	for k, v := range s.games {
		c := *v
		out.games[k] = &c
	}
	for k, v := range s.wedgies {
		c := *v
		out.wedgies[k] = &c
	}
	return out
}

// InTx implements state.Repository
func (r *Repository) InTx(ctx context.Context, fn func(tx repository.StateTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.data.clone()
	if err := fn(&memTx{d: &work, failSave: r.FailSave}); err != nil {
		return err
	}
	r.data = work
	return nil
}

// GetGlobalState implements state.Repository
func (r *Repository) GetGlobalState(ctx context.Context) (*models.GlobalState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gs := r.data.global
	return &gs, nil
}

// ExistingGameNames implements schedule.GameIndex
func (r *Repository) ExistingGameNames(ctx context.Context, names []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, n := range names {
		if _, ok := r.data.games[n]; ok {
			out[n] = true
		}
	}
	return out, nil
}

// SeedSeason stores a season with a cached game count and the given number of wedgie rows
func (r *Repository) SeedSeason(name string, totalGames, wedgies int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.seasons[name] = &models.Season{ID: len(r.data.seasons) + 1, Name: name, TotalGames: totalGames}
	for i := 0; i < wedgies; i++ {
		id := uuid.New()
		r.data.wedgies[id] = &models.Wedgie{ID: id, SeasonName: name, Number: i + 1}
	}
}

// SeedGame stores a game row without touching any counter
func (r *Repository) SeedGame(g models.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.seasons[g.SeasonName]; !ok {
		r.data.seasons[g.SeasonName] = &models.Season{ID: len(r.data.seasons) + 1, Name: g.SeasonName}
	}
	g.ID = r.data.nextID
	r.data.nextID++
	r.data.games[g.Name] = &g
}

// SetGlobalState overwrites the global state row
func (r *Repository) SetGlobalState(gs models.GlobalState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gs.ID = models.GlobalStateID
	r.data.global = gs
}

// Season returns a copy of a stored season
func (r *Repository) Season(name string) (models.Season, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data.seasons[name]
	if !ok {
		return models.Season{}, false
	}
	return *s, true
}

// SeasonUpserts reports how many committed transactions upserted the season
func (r *Repository) SeasonUpserts(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.upserts[name]
}

// Games returns copies of all stored games ordered by name
func (r *Repository) Games() []models.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Game, 0, len(r.data.games))
	for _, g := range r.data.games {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type memTx struct {
	d        *snapshot
	failSave error
}

func (t *memTx) LockGlobalState(ctx context.Context) (*models.GlobalState, error) {
	gs := t.d.global
	return &gs, nil
}

func (t *memTx) SaveGlobalState(ctx context.Context, gs *models.GlobalState) error {
	if t.failSave != nil {
		return t.failSave
	}
	gs.ID = models.GlobalStateID
	gs.UpdatedAt = time.Now().UTC()
	t.d.global = *gs
	return nil
}

func (t *memTx) UpsertSeason(ctx context.Context, name string) error {
	t.d.upserts[name]++
	if _, ok := t.d.seasons[name]; !ok {
		t.d.seasons[name] = &models.Season{ID: len(t.d.seasons) + 1, Name: name, CreatedAt: time.Now().UTC()}
	}
	return nil
}

func (t *memTx) IncrementSeasonGames(ctx context.Context, name string, n int) error {
	if n == 0 {
		return nil
	}
	s, ok := t.d.seasons[name]
	if !ok {
		return fmt.Errorf("season %q: %w", name, repository.ErrNotFound)
	}
	s.TotalGames += n
	return nil
}

func (t *memTx) RecountSeasonGames(ctx context.Context, names []string) error {
	for _, name := range names {
		s, ok := t.d.seasons[name]
		if !ok {
			continue
		}
		count := 0
		for _, g := range t.d.games {
			if g.SeasonName == name {
				count++
			}
		}
		s.TotalGames = count
	}
	return nil
}

func (t *memTx) SeasonTallies(ctx context.Context) ([]models.SeasonTally, error) {
	counts := make(map[string]int)
	for _, w := range t.d.wedgies {
		counts[w.SeasonName]++
	}
	out := make([]models.SeasonTally, 0, len(t.d.seasons))
	for name, s := range t.d.seasons {
		out = append(out, models.SeasonTally{Name: name, Wedgies: counts[name], TotalGames: s.TotalGames})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) InsertGames(ctx context.Context, games []*models.Game) ([]*models.Game, error) {
	var inserted []*models.Game
	for _, g := range games {
		if _, ok := t.d.games[g.Name]; ok {
			continue
		}
		if _, ok := t.d.seasons[g.SeasonName]; !ok {
			return nil, fmt.Errorf("season %q does not exist", g.SeasonName)
		}
		g.ID = t.d.nextID
		t.d.nextID++
		if g.CreatedAt.IsZero() {
			g.CreatedAt = time.Now().UTC()
		}
		c := *g
		t.d.games[g.Name] = &c
		inserted = append(inserted, g)
	}
	return inserted, nil
}

func (t *memTx) PurgeGamesBefore(ctx context.Context, before time.Time) (int64, []string, error) {
	var n int64
	var seasons []string
	seen := make(map[string]bool)
	for name, g := range t.d.games {
		if !g.GameDate.Before(before) {
			continue
		}
		delete(t.d.games, name)
		n++
		if !seen[g.SeasonName] {
			seen[g.SeasonName] = true
			seasons = append(seasons, g.SeasonName)
		}
	}
	return n, seasons, nil
}

func (t *memTx) ReassignGamesAfter(ctx context.Context, after time.Time, season string) (int64, []string, error) {
	var n int64
	var seasons []string
	seen := make(map[string]bool)
	for _, g := range t.d.games {
		if !g.GameDate.After(after) || g.SeasonName == season {
			continue
		}
		if !seen[g.SeasonName] {
			seen[g.SeasonName] = true
			seasons = append(seasons, g.SeasonName)
		}
		g.SeasonName = season
		n++
	}
	return n, seasons, nil
}

func (t *memTx) CreateWedgie(ctx context.Context, w *models.Wedgie) error {
	if _, ok := t.d.wedgies[w.ID]; ok {
		return errors.New("duplicate wedgie id")
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	c := *w
	t.d.wedgies[w.ID] = &c
	return nil
}

func (t *memTx) UpdateWedgie(ctx context.Context, w *models.Wedgie) error {
	existing, ok := t.d.wedgies[w.ID]
	if !ok {
		return fmt.Errorf("wedgie %s: %w", w.ID, repository.ErrNotFound)
	}
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC()
	c := *w
	t.d.wedgies[w.ID] = &c
	return nil
}

func (t *memTx) CountSeasonWedgies(ctx context.Context, season string) (int, error) {
	n := 0
	for _, w := range t.d.wedgies {
		if w.SeasonName == season {
			n++
		}
	}
	return n, nil
}
