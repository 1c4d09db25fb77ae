// Package schedule turns the league schedule feed into newly completed games.
package schedule

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"wedgietracker/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	regulationMinutes = 48
	overtimeMinutes   = 5
)

var overtimePattern = regexp.MustCompile(`/OT(\d*)`)

// Feed provides the league schedule
type Feed interface {
	FetchSchedule(ctx context.Context) (*models.ScheduleResponse, error)
}

// GameIndex reports which dedup names are already stored
type GameIndex interface {
	ExistingGameNames(ctx context.Context, names []string) (map[string]bool, error)
}

// Result is the outcome of one synchronization
type Result struct {
	SeasonName   string
	NewGames     []*models.Game
	KnownGames   int
	SkippedGames int // completed games dropped for a bad timestamp
	LiveGames    bool
	MinutesDelta int
}

// NewGameIDs returns the feed ids of the newly discovered games
func (r *Result) NewGameIDs() []string {
	ids := make([]string, len(r.NewGames))
	for i, g := range r.NewGames {
		ids[i] = g.GameID
	}
	return ids
}

// Synchronizer selects completed games after a cutoff that are not yet stored
type Synchronizer struct {
	feed   Feed
	index  GameIndex
	cutoff time.Time
}

// NewSynchronizer creates a synchronizer. Games dated on or before cutoff are ignored.
func NewSynchronizer(feed Feed, index GameIndex, cutoff time.Time) *Synchronizer {
	return &Synchronizer{feed: feed, index: index, cutoff: cutoff}
}

// Sync fetches the schedule once and returns the games that still need ingesting.
// Any feed or lookup error aborts the synchronization.
func (s *Synchronizer) Sync(ctx context.Context, seasonName string) (*Result, error) {
	schedule, err := s.feed.FetchSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule feed unavailable: %w", err)
	}

	res := &Result{SeasonName: seasonName}

	type candidate struct {
		input   models.ScheduleGameInput
		minutes int
	}
	var candidates []candidate
	seen := make(map[string]bool)

	for _, date := range schedule.LeagueSchedule.GameDates {
		for _, game := range date.Games {
			if game.IsLive() {
				res.LiveGames = true
			}

			if !game.IsCompleted() || game.IsExhibition() {
				continue
			}

			gameTime, err := game.GameTime()
			if err != nil {
				log.Warn().Err(err).Str("game_id", game.GameID).Msg("Skipping completed game with unparseable time")
				res.SkippedGames++
				continue
			}
			if !gameTime.After(s.cutoff) {
				continue
			}

			name := game.DedupName()
			if seen[name] {
				continue
			}
			seen[name] = true

			candidates = append(candidates, candidate{input: game, minutes: MinutesFromStatus(game.GameStatusText)})
		}
	}

	if len(candidates) == 0 {
		return res, nil
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.input.DedupName()
	}

	existing, err := s.index.ExistingGameNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing games: %w", err)
	}

	for _, c := range candidates {
		if existing[c.input.DedupName()] {
			res.KnownGames++
			continue
		}
		res.NewGames = append(res.NewGames, c.input.ToGame(seasonName, c.minutes))
		res.MinutesDelta += c.minutes
	}

	log.Info().
		Str("season", seasonName).
		Int("new_games", len(res.NewGames)).
		Int("known_games", res.KnownGames).
		Int("minutes_delta", res.MinutesDelta).
		Bool("live_games", res.LiveGames).
		Msg("Schedule synchronized")

	return res, nil
}

// MinutesFromStatus derives minutes played from a completed game's status text.
// "Final" is regulation, "Final/OT" one overtime, "Final/OTn" n overtimes.
func MinutesFromStatus(statusText string) int {
	match := overtimePattern.FindStringSubmatch(strings.TrimSpace(statusText))
	if match == nil {
		return regulationMinutes
	}

	periods := 1
	if match[1] != "" {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 {
			return regulationMinutes
		}
		periods = n
	}

	return regulationMinutes + overtimeMinutes*periods
}
