package models

import "time"

// GlobalStateID is the primary key of the singleton row
const GlobalStateID = 1

// GlobalState is the site-wide aggregate of running totals and forecasts
type GlobalState struct {
	ID           int    `db:"id" json:"-"`
	ActiveSeason string `db:"active_season" json:"activeSeason"`

	// Running totals
	TotalWedgies int  `db:"total_wedgies" json:"totalWedgies"`
	TotalGames   int  `db:"total_games" json:"totalGames"`
	TotalMinutes int  `db:"total_minutes" json:"totalMinutes"`
	TotalFGA     int  `db:"total_fga" json:"totalFGA"`
	TotalPoss    int  `db:"total_poss" json:"totalPoss"`
	LiveGames    bool `db:"live_games" json:"liveGames"`

	// Forecasts (derived from the totals above)
	SimplePace         int `db:"simple_pace" json:"simplePace"`
	RegressionMeanPace int `db:"regression_mean_pace" json:"regressionMeanPace"`
	MedianPace         int `db:"median_pace" json:"medianPace"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Summary returns the public view of the state
func (gs *GlobalState) Summary() Summary {
	return Summary{
		CurrentTotalWedgies: gs.TotalWedgies,
		LiveGames:           gs.LiveGames,
	}
}

// Summary is the unauthenticated public view of GlobalState
type Summary struct {
	CurrentTotalWedgies int  `json:"currentTotalWedgies"`
	LiveGames           bool `json:"liveGames"`
}

// PushInput is the body accepted from the trusted push endpoint.
// Numeric fields are applied only when present and positive; NewLiveGames is
// applied whenever present.
type PushInput struct {
	NewWedgieCount     *int         `json:"newWedgieCount,omitempty"`
	NewTotalGamesCount *int         `json:"newTotalGamesCount,omitempty"`
	NewLiveGames       *bool        `json:"newLiveGames,omitempty"`
	NewGames           []PushedGame `json:"newGames,omitempty"`
	NewTotalMinutes    *int         `json:"newTotalMinutes,omitempty"`
	NewTotalPoss       *int         `json:"newTotalPoss,omitempty"`
	NewTotalFGA        *int         `json:"newTotalFGA,omitempty"`
}

// GlobalStateInput is the full replacement accepted from administrators.
// Forecasts are not accepted; they are recomputed from the counters.
type GlobalStateInput struct {
	ActiveSeason string `json:"activeSeason" binding:"required"`
	TotalWedgies int    `json:"totalWedgies" binding:"gte=0"`
	TotalGames   int    `json:"totalGames" binding:"gte=0"`
	TotalMinutes int    `json:"totalMinutes" binding:"gte=0"`
	TotalFGA     int    `json:"totalFGA" binding:"gte=0"`
	TotalPoss    int    `json:"totalPoss" binding:"gte=0"`
	LiveGames    bool   `json:"liveGames"`
}
