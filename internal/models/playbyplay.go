package models

// PlayByPlayResponse is the per-game action log document
type PlayByPlayResponse struct {
	Game struct {
		GameID  string   `json:"gameId"`
		Actions []Action `json:"actions"`
	} `json:"game"`
}

// Action is a single play-by-play entry
type Action struct {
	ActionNumber int    `json:"actionNumber"`
	ActionType   string `json:"actionType"`
	IsFieldGoal  int    `json:"isFieldGoal"`
	Possession   int    `json:"possession"` // 0 means unassigned
}

// GameTotals holds the counts reduced from one or more action logs
type GameTotals struct {
	FieldGoalAttempts int `json:"fieldGoalAttempts"`
	Possessions       int `json:"possessions"`
}

// Add accumulates another set of totals
func (t *GameTotals) Add(other GameTotals) {
	t.FieldGoalAttempts += other.FieldGoalAttempts
	t.Possessions += other.Possessions
}
