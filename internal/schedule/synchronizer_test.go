package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedgietracker/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	schedule *models.ScheduleResponse
	err      error
}

func (f *fakeFeed) FetchSchedule(ctx context.Context) (*models.ScheduleResponse, error) {
	return f.schedule, f.err
}

type fakeIndex struct {
	names  map[string]bool
	asked  []string
	err    error
	called bool
}

func (f *fakeIndex) ExistingGameNames(ctx context.Context, names []string) (map[string]bool, error) {
	f.called = true
	f.asked = append(f.asked, names...)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, n := range names {
		if f.names[n] {
			out[n] = true
		}
	}
	return out, nil
}

func game(id string, status int, text, when, home, away string) models.ScheduleGameInput {
	return models.ScheduleGameInput{
		GameID:          id,
		GameStatus:      status,
		GameStatusText:  text,
		GameDateTimeUTC: when,
		HomeTeam:        models.TeamRef{TeamTricode: home},
		AwayTeam:        models.TeamRef{TeamTricode: away},
	}
}

func scheduleOf(games ...models.ScheduleGameInput) *models.ScheduleResponse {
	resp := &models.ScheduleResponse{}
	resp.LeagueSchedule.GameDates = []models.ScheduleDate{{GameDate: "10/23/2024 00:00:00", Games: games}}
	return resp
}

var cutoff = time.Date(2024, 10, 21, 0, 0, 0, 0, time.UTC)

func TestMinutesFromStatus(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"Final", 48},
		{"Final/OT", 53},
		{"Final/OT1", 53},
		{"Final/OT2", 58},
		{"Final/OT4", 68},
		{" Final/OT ", 53},
		{"Final/OT0", 48},
		{"Final - Forfeit", 48},
		{"", 48},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, MinutesFromStatus(tt.status))
		})
	}
}

func TestSync_EndToEnd(t *testing.T) {
	known := game("003", models.GameStatusFinal, "Final", "2024-10-23T02:00:00Z", "LAL", "MIN")
	feed := &fakeFeed{schedule: scheduleOf(
		game("001", models.GameStatusFinal, "Final/OT1", "2024-10-22T23:30:00Z", "BOS", "NYK"),
		game("002", models.GameStatusFinal, "Final", "2024-10-23T00:00:00Z", "GSW", "POR"),
		known,
	)}
	index := &fakeIndex{names: map[string]bool{known.DedupName(): true}}

	res, err := NewSynchronizer(feed, index, cutoff).Sync(context.Background(), "2024/25")
	require.NoError(t, err)

	assert.Equal(t, "2024/25", res.SeasonName)
	assert.Len(t, res.NewGames, 2)
	assert.Equal(t, 1, res.KnownGames)
	assert.Equal(t, 48+53, res.MinutesDelta)
	assert.Equal(t, []string{"001", "002"}, res.NewGameIDs())

	first := res.NewGames[0]
	assert.Equal(t, "BOS @ NYK - 2024-10-22T23:30:00Z", first.Name)
	assert.Equal(t, "2024/25", first.SeasonName)
	assert.Equal(t, 53, first.MinutesPlayed)
	assert.Equal(t, time.Date(2024, 10, 22, 23, 30, 0, 0, time.UTC), first.GameDate)
}

func TestSync_Filters(t *testing.T) {
	preseason := game("p", models.GameStatusFinal, "Final", "2024-10-25T00:00:00Z", "A", "B")
	preseason.GameLabel = models.LabelPreseason
	allStar := game("s", models.GameStatusFinal, "Final", "2025-02-16T01:00:00Z", "C", "D")
	allStar.WeekName = models.WeekAllStar

	feed := &fakeFeed{schedule: scheduleOf(
		game("old", models.GameStatusFinal, "Final", "2024-10-20T23:00:00Z", "E", "F"),
		game("edge", models.GameStatusFinal, "Final", "2024-10-21T00:00:00Z", "E", "F"),
		game("scheduled", models.GameStatusScheduled, "7:30 pm ET", "2024-11-01T23:30:00Z", "G", "H"),
		game("live", models.GameStatusInProgress, "Q3 5:12", "2024-11-01T23:30:00Z", "I", "J"),
		preseason,
		allStar,
		game("ok", models.GameStatusFinal, "Final", "2024-11-01T00:00:00Z", "K", "L"),
	)}

	res, err := NewSynchronizer(feed, &fakeIndex{}, cutoff).Sync(context.Background(), "2024/25")
	require.NoError(t, err)

	require.Len(t, res.NewGames, 1)
	assert.Equal(t, "ok", res.NewGames[0].GameID)
	assert.True(t, res.LiveGames)
	assert.Equal(t, 48, res.MinutesDelta)
}

func TestSync_NoLiveGames(t *testing.T) {
	feed := &fakeFeed{schedule: scheduleOf(
		game("a", models.GameStatusScheduled, "7:00 pm ET", "2024-11-01T23:00:00Z", "A", "B"),
	)}
	index := &fakeIndex{}

	res, err := NewSynchronizer(feed, index, cutoff).Sync(context.Background(), "2024/25")
	require.NoError(t, err)

	assert.False(t, res.LiveGames)
	assert.Empty(t, res.NewGames)
	assert.False(t, index.called, "no candidates means no lookup")
}

func TestSync_DuplicateFeedEntriesCountedOnce(t *testing.T) {
	g := game("dup", models.GameStatusFinal, "Final/OT", "2024-11-01T00:00:00Z", "A", "B")
	feed := &fakeFeed{schedule: scheduleOf(g, g)}

	res, err := NewSynchronizer(feed, &fakeIndex{}, cutoff).Sync(context.Background(), "2024/25")
	require.NoError(t, err)

	assert.Len(t, res.NewGames, 1)
	assert.Equal(t, 53, res.MinutesDelta)
}

func TestSync_BadTimestampSkipped(t *testing.T) {
	feed := &fakeFeed{schedule: scheduleOf(
		game("bad", models.GameStatusFinal, "Final", "not-a-time", "A", "B"),
	)}

	res, err := NewSynchronizer(feed, &fakeIndex{}, cutoff).Sync(context.Background(), "2024/25")
	require.NoError(t, err)

	assert.Empty(t, res.NewGames)
	assert.Equal(t, 1, res.SkippedGames)
}

func TestSync_FeedFailureAborts(t *testing.T) {
	feed := &fakeFeed{err: errors.New("connection refused")}
	index := &fakeIndex{}

	res, err := NewSynchronizer(feed, index, cutoff).Sync(context.Background(), "2024/25")

	assert.Error(t, err)
	assert.Nil(t, res)
	assert.False(t, index.called)
}

func TestSync_IndexFailureAborts(t *testing.T) {
	feed := &fakeFeed{schedule: scheduleOf(
		game("a", models.GameStatusFinal, "Final", "2024-11-01T00:00:00Z", "A", "B"),
	)}

	_, err := NewSynchronizer(feed, &fakeIndex{err: errors.New("db down")}, cutoff).Sync(context.Background(), "2024/25")
	assert.Error(t, err)
}
