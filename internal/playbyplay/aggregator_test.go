package playbyplay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wedgietracker/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	logs     map[string][]models.Action
	fail     map[string]bool
	calls    []string
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (f *fakeFetcher) FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayResponse, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, gameID)
	f.mu.Unlock()

	if f.fail[gameID] {
		return nil, errors.New("upstream 500")
	}
	resp := &models.PlayByPlayResponse{}
	resp.Game.GameID = gameID
	resp.Game.Actions = f.logs[gameID]
	return resp, nil
}

func possessions(values ...int) []models.Action {
	actions := make([]models.Action, len(values))
	for i, v := range values {
		actions[i] = models.Action{ActionNumber: i + 1, Possession: v}
	}
	return actions
}

func TestCountActions_PossessionSentinel(t *testing.T) {
	// 0 -> 1 and 1 -> 2 count; 2 -> 0 never counts; 0 -> 2 counts because the
	// unassigned action became the previous value. A hand count that skips the
	// 0 sees 2 -> 2 and gets 2, but the per-action rule gives 3. Keep 3.
	totals := CountActions(possessions(0, 0, 1, 1, 2, 0, 2))
	assert.Equal(t, 3, totals.Possessions)
	assert.Equal(t, 0, totals.FieldGoalAttempts)

	// without the unassigned gap the same team keeps the ball
	totals = CountActions(possessions(0, 0, 1, 1, 2, 2))
	assert.Equal(t, 2, totals.Possessions)
}

func TestCountActions_ZeroNeverCounts(t *testing.T) {
	totals := CountActions(possessions(0, 0, 0))
	assert.Equal(t, 0, totals.Possessions)
}

func TestCountActions_FieldGoalsIndependent(t *testing.T) {
	actions := possessions(10, 10, 20, 0, 20)
	actions[0].IsFieldGoal = 1
	actions[1].IsFieldGoal = 1
	actions[3].IsFieldGoal = 1

	totals := CountActions(actions)
	assert.Equal(t, 3, totals.FieldGoalAttempts)
	assert.Equal(t, 3, totals.Possessions)
}

func TestCountActions_Empty(t *testing.T) {
	assert.Equal(t, models.GameTotals{}, CountActions(nil))
}

func TestAggregate_SumsGames(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]models.Action{
		"g1": possessions(1, 2),
		"g2": possessions(3, 3, 4),
	}}
	f.logs["g1"][0].IsFieldGoal = 1

	agg := NewAggregator(f, Options{BatchSize: 5})
	res, err := agg.Aggregate(context.Background(), []string{"g1", "g2"})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.FieldGoalAttempts)
	assert.Equal(t, 4, res.Possessions)
	assert.False(t, res.BudgetExceeded)
}

func TestAggregate_FailedFetchExcluded(t *testing.T) {
	f := &fakeFetcher{
		logs: map[string][]models.Action{"g1": possessions(1), "g2": possessions(1, 2), "g3": possessions(5)},
		fail: map[string]bool{"g2": true},
	}

	res, err := NewAggregator(f, Options{}).Aggregate(context.Background(), []string{"g1", "g2", "g3"})

	require.NoError(t, err, "a single failed game must not fail the run")
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Possessions)
}

func TestAggregate_BatchesBoundConcurrency(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]models.Action{}, delay: 5 * time.Millisecond}
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}

	res, err := NewAggregator(f, Options{BatchSize: 5, BatchPause: time.Millisecond}).Aggregate(context.Background(), ids)

	require.NoError(t, err)
	assert.Equal(t, 12, res.Processed)
	assert.Len(t, f.calls, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.maxSeen), int32(5))
}

func TestAggregate_BudgetReturnsPartial(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]models.Action{
		"g1": possessions(1), "g2": possessions(1), "g3": possessions(1),
	}}
	agg := NewAggregator(f, Options{BatchSize: 5, TimeBudget: 25 * time.Second})

	// each clock read advances 10s: start, then one check per game
	base := time.Now()
	var ticks int64
	agg.now = func() time.Time {
		n := atomic.AddInt64(&ticks, 1) - 1
		return base.Add(time.Duration(n) * 10 * time.Second)
	}

	res, err := agg.Aggregate(context.Background(), []string{"g1", "g2", "g3"})

	require.NoError(t, err, "budget expiry is a partial success")
	assert.True(t, res.BudgetExceeded)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Possessions)
	assert.Equal(t, 2, res.Skipped)
}

func TestAggregate_NoGames(t *testing.T) {
	f := &fakeFetcher{}
	res, err := NewAggregator(f, Options{}).Aggregate(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, f.calls)
}

func TestAggregate_ContextCancelledBetweenBatches(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]models.Action{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewAggregator(f, Options{BatchSize: 1, BatchPause: time.Second}).
		Aggregate(ctx, []string{"a", "b", "c"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, res.Processed+res.Skipped+res.Failed)
}
