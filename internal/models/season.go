package models

import "time"

// Season is a named bucket of games and wedgies for one competitive year.
// TotalGames is a cached counter: it is incremented during ingestion and fully
// recounted only by the bulk maintenance operations.
type Season struct {
	ID         int       `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	TotalGames int       `db:"total_games" json:"totalGames"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// SeasonTally pairs a season's live wedgie count with its cached game count
type SeasonTally struct {
	Name       string `db:"name" json:"name"`
	Wedgies    int    `db:"wedgies" json:"wedgies"`
	TotalGames int    `db:"total_games" json:"totalGames"`
}
