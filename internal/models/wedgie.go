package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wedgie is a single recorded event of the ball getting stuck between rim and backboard
type Wedgie struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SeasonName string    `db:"season_name" json:"seasonName"`
	Number     int       `db:"number" json:"number"`
	Player     string    `db:"player" json:"player"`
	Team       string    `db:"team" json:"team"`
	Opponent   string    `db:"opponent" json:"opponent"`
	GameDate   time.Time `db:"game_date" json:"gameDate"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// WedgieInput is used for creating/updating wedgies from the admin API
type WedgieInput struct {
	SeasonName string `json:"seasonName" binding:"required"`
	Number     int    `json:"number" binding:"gte=0"`
	Player     string `json:"player" binding:"required"`
	Team       string `json:"team"`
	Opponent   string `json:"opponent"`
	GameDate   string `json:"gameDate"` // ISO 8601 format
}

// ToWedgie converts the input into a Wedgie with the given id. GameDate may be
// empty, RFC3339 or YYYY-MM-DD; anything else is an error.
func (wi *WedgieInput) ToWedgie(id uuid.UUID) (*Wedgie, error) {
	w := &Wedgie{
		ID:         id,
		SeasonName: wi.SeasonName,
		Number:     wi.Number,
		Player:     wi.Player,
		Team:       wi.Team,
		Opponent:   wi.Opponent,
	}

	if wi.GameDate == "" {
		return w, nil
	}
	if gameTime, err := time.Parse(time.RFC3339, wi.GameDate); err == nil {
		w.GameDate = gameTime
	} else if day, err := time.Parse(time.DateOnly, wi.GameDate); err == nil {
		w.GameDate = day
	} else {
		return nil, fmt.Errorf("invalid gameDate %q: want RFC3339 or YYYY-MM-DD", wi.GameDate)
	}

	return w, nil
}
