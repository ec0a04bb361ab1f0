package models

import "time"

// OddsTick is one immutable odds observation for a match. Ticks are
// append-only; nothing in the pipeline updates or deletes them.
type OddsTick struct {
	MatchID   int64     `json:"match_id"`
	Timestamp time.Time `json:"timestamp"`
	Bookmaker string    `json:"bookmaker"`
	Market    string    `json:"market"` // "1x2", "total", "handicap"
	HomeOdds  float64   `json:"home_odds"`
	DrawOdds  float64   `json:"draw_odds"`
	AwayOdds  float64   `json:"away_odds"`
}

// MatchEvent is one immutable in-play event observation (goal, card,
// corner, substitution...).
type MatchEvent struct {
	MatchID   int64     `json:"match_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	TeamID    int64     `json:"team_id"`
	Player    string    `json:"player,omitempty"`
	Minute    int       `json:"minute"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
}

// TeamStatLine is one immutable team-statistics snapshot.
type TeamStatLine struct {
	MatchID     int64     `json:"match_id"`
	Timestamp   time.Time `json:"timestamp"`
	TeamID      int64     `json:"team_id"`
	Possession  float64   `json:"possession"`
	Shots       int       `json:"shots"`
	ShotsOnGoal int       `json:"shots_on_goal"`
	Corners     int       `json:"corners"`
	Fouls       int       `json:"fouls"`
	YellowCards int       `json:"yellow_cards"`
	RedCards    int       `json:"red_cards"`
}
