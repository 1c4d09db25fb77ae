// Package pace computes season-end wedgie forecasts from running totals.
package pace

import (
	"math"

	"wedgietracker/ingestion/internal/models"
)

// DefaultEstimatedGames is the number of regular season games in a league year
const DefaultEstimatedGames = 1230

// Input holds everything a forecast depends on
type Input struct {
	Wedgies        int // cumulative wedgies in the active season
	Games          int // cumulative games in the active season
	EstimatedGames int
	Historical     []models.SeasonTally
}

// Forecast holds the three pace numbers
type Forecast struct {
	SimplePace            int
	RegressionMeanPace    int
	MedianPace            int
	AverageHistoricalRate float64
	GamesRemaining        int
}

// Compute returns the forecast for the given input. It never panics: zero games
// or zero qualifying seasons resolve to 0 through guards.
func Compute(in Input) Forecast {
	simple := Simple(in.EstimatedGames, in.Wedgies, in.Games)
	remaining := GamesRemaining(in.EstimatedGames, in.Games)
	avgRate := AverageRate(in.Historical)
	regression := round(float64(in.Wedgies) + avgRate*float64(remaining))

	return Forecast{
		SimplePace:            simple,
		RegressionMeanPace:    regression,
		MedianPace:            Median(simple, regression),
		AverageHistoricalRate: avgRate,
		GamesRemaining:        remaining,
	}
}

// Simple projects the current per-game rate over the estimated season length
func Simple(estimatedGames, wedgies, games int) int {
	if games <= 0 {
		return 0
	}
	return round(float64(estimatedGames) * float64(wedgies) / float64(games))
}

// GamesRemaining is the estimated number of games left in the season.
// With no games played it equals estimatedGames.
func GamesRemaining(estimatedGames, games int) int {
	if games <= 0 {
		return estimatedGames
	}
	return estimatedGames - games
}

// AverageRate is the unweighted mean of per-season wedgies/games rates.
// Every season counts once regardless of how many games it contained.
func AverageRate(tallies []models.SeasonTally) float64 {
	var sum float64
	n := 0
	for _, t := range tallies {
		if t.TotalGames <= 0 {
			continue
		}
		sum += float64(t.Wedgies) / float64(t.TotalGames)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Median averages the two estimates. It is the arithmetic mean of two values,
// kept under its historical name.
func Median(simple, regression int) int {
	return round(float64(simple+regression) / 2)
}

// SubstituteLive returns a copy of tallies where the active season's stored
// wedgie count is replaced by the live cumulative count.
func SubstituteLive(tallies []models.SeasonTally, activeSeason string, liveWedgies int) []models.SeasonTally {
	out := make([]models.SeasonTally, len(tallies))
	copy(out, tallies)
	for i := range out {
		if out[i].Name == activeSeason {
			out[i].Wedgies = liveWedgies
		}
	}
	return out
}

// Qualifying filters tallies down to seasons usable as history
func Qualifying(tallies []models.SeasonTally, excluded string) []models.SeasonTally {
	out := make([]models.SeasonTally, 0, len(tallies))
	for _, t := range tallies {
		if t.TotalGames <= 0 || t.Name == excluded {
			continue
		}
		out = append(out, t)
	}
	return out
}

func round(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
