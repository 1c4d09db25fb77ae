package models

import (
	"fmt"
	"time"
)

// Feed game status codes
const (
	GameStatusScheduled  = 1
	GameStatusInProgress = 2
	GameStatusFinal      = 3
)

// Schedule labels that never count toward season totals
const (
	LabelPreseason = "Preseason"
	WeekAllStar    = "All-Star"
)

// Game represents a completed game counted toward a season
type Game struct {
	ID            int       `db:"id" json:"id"`
	GameID        string    `db:"game_id" json:"gameId"` // Feed identifier
	Name          string    `db:"name" json:"name"`      // Dedup key: "HOME @ AWAY - datetime"
	GameDate      time.Time `db:"game_date" json:"gameDate"`
	SeasonName    string    `db:"season_name" json:"seasonName"`
	MinutesPlayed int       `db:"minutes_played" json:"minutesPlayed"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ScheduleResponse is the top-level schedule feed document
type ScheduleResponse struct {
	LeagueSchedule struct {
		SeasonYear string         `json:"seasonYear"`
		GameDates  []ScheduleDate `json:"gameDates"`
	} `json:"leagueSchedule"`
}

// ScheduleDate is one date bucket of the schedule feed
type ScheduleDate struct {
	GameDate string              `json:"gameDate"`
	Games    []ScheduleGameInput `json:"games"`
}

// TeamRef identifies a team inside a schedule entry
type TeamRef struct {
	TeamID      int    `json:"teamId"`
	TeamTricode string `json:"teamTricode"`
}

// ScheduleGameInput is a single game as emitted by the schedule feed
type ScheduleGameInput struct {
	GameID          string  `json:"gameId"`
	GameStatus      int     `json:"gameStatus"`
	GameStatusText  string  `json:"gameStatusText"`
	GameLabel       string  `json:"gameLabel"`
	WeekName        string  `json:"weekName"`
	GameDateTimeUTC string  `json:"gameDateTimeUTC"`
	HomeTeam        TeamRef `json:"homeTeam"`
	AwayTeam        TeamRef `json:"awayTeam"`
}

// DedupName returns the unique name used to detect already ingested games
func (gi *ScheduleGameInput) DedupName() string {
	return GameName(gi.HomeTeam.TeamTricode, gi.AwayTeam.TeamTricode, gi.GameDateTimeUTC)
}

// GameTime parses the feed timestamp
func (gi *ScheduleGameInput) GameTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, gi.GameDateTimeUTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid game time %q for game %s: %w", gi.GameDateTimeUTC, gi.GameID, err)
	}
	return t, nil
}

// IsCompleted returns true if the feed marks the game as final
func (gi *ScheduleGameInput) IsCompleted() bool {
	return gi.GameStatus == GameStatusFinal
}

// IsLive returns true if the game is currently being played
func (gi *ScheduleGameInput) IsLive() bool {
	return gi.GameStatus == GameStatusInProgress
}

// IsExhibition returns true for preseason and All-Star games
func (gi *ScheduleGameInput) IsExhibition() bool {
	return gi.GameLabel == LabelPreseason || gi.WeekName == WeekAllStar
}

// ToGame converts a schedule entry into a Game row for the given season
func (gi *ScheduleGameInput) ToGame(seasonName string, minutes int) *Game {
	game := &Game{
		GameID:        gi.GameID,
		Name:          gi.DedupName(),
		SeasonName:    seasonName,
		MinutesPlayed: minutes,
	}

	if gameTime, err := gi.GameTime(); err == nil {
		game.GameDate = gameTime
	}

	return game
}

// GameName builds the dedup name shared by ingestion and push paths
func GameName(home, away, dateTime string) string {
	return fmt.Sprintf("%s @ %s - %s", home, away, dateTime)
}

// PushedGame is a game row reported by the trusted push endpoint
type PushedGame struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	SeasonName string    `json:"seasonName"`
}

// ToGame converts a pushed game into a Game row
func (pg *PushedGame) ToGame() *Game {
	return &Game{
		GameID:     pg.ID,
		Name:       pg.Name,
		GameDate:   pg.CreatedAt,
		SeasonName: pg.SeasonName,
		CreatedAt:  pg.CreatedAt,
	}
}
