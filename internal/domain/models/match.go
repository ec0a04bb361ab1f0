package models

import "time"

// Match statuses considered live for collection purposes.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusHalftime  = "halftime"
	StatusOvertime  = "overtime"
	StatusPenalties = "penalties"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// Match is a tracked fixture. The core only reads matches; the match
// registry owns their lifecycle.
type Match struct {
	ID         int64     `json:"id"`
	HomeTeamID int64     `json:"home_team_id"`
	AwayTeamID int64     `json:"away_team_id"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	Status     string    `json:"status"`
	Minute     int       `json:"minute"`
	KickoffAt  time.Time `json:"kickoff_at"`
}

// IsLive reports whether the match status belongs to the live set.
func (m Match) IsLive() bool {
	switch m.Status {
	case StatusLive, StatusHalftime, StatusOvertime, StatusPenalties:
		return true
	}
	return false
}
