package models

import "time"

// OddsSnapshot is the per-minute compacted odds view: last observed values
// plus the delta against the previous minute bucket.
type OddsSnapshot struct {
	HomeOdds  float64 `json:"home_odds"`
	DrawOdds  float64 `json:"draw_odds"`
	AwayOdds  float64 `json:"away_odds"`
	HomeDelta float64 `json:"home_delta"`
	DrawDelta float64 `json:"draw_delta"`
	AwayDelta float64 `json:"away_delta"`
}

// EventCounts summarizes in-play events inside one frame bucket.
type EventCounts struct {
	Goals   int `json:"goals"`
	Cards   int `json:"cards"`
	Corners int `json:"corners"`
	Total   int `json:"total"`
}

// TeamStatSnapshot is the most recent stat line for one side of a match.
type TeamStatSnapshot struct {
	TeamID      int64   `json:"team_id"`
	Possession  float64 `json:"possession"`
	Shots       int     `json:"shots"`
	ShotsOnGoal int     `json:"shots_on_goal"`
	Corners     int     `json:"corners"`
}

// FrameSummary is the one-minute compacted view of a match's state, composed
// from the rolling views every aggregation cycle. It is derived data and is
// never persisted by the pipeline itself.
type FrameSummary struct {
	Bucket    time.Time         `json:"bucket"`
	MatchID   int64             `json:"match_id"`
	Status    string            `json:"status"`
	Minute    int               `json:"minute"`
	HomeScore int               `json:"home_score"`
	AwayScore int               `json:"away_score"`
	Odds      OddsSnapshot      `json:"odds"`
	Events    EventCounts       `json:"events"`
	HomeStats *TeamStatSnapshot `json:"home_stats,omitempty"`
	AwayStats *TeamStatSnapshot `json:"away_stats,omitempty"`
}

// FrameRow is the raw per-minute row read back from the combined match-live
// compacted view, before team attribution and composition.
type FrameRow struct {
	Bucket    time.Time
	MatchID   int64
	HomeScore int
	AwayScore int
	Odds      OddsSnapshot
	Events    EventCounts
}
