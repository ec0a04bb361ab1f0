package models

import "time"

// Notification channel names. The set is fixed and process-wide; channels
// are never created dynamically.
const (
	ChannelOddsTicks  = "odds-ticks"
	ChannelEventTicks = "event-ticks"
	ChannelStatTicks  = "stat-ticks"
	ChannelMatchFrame = "match-frame"
	ChannelFrameBatch = "frame-batch"
)

// OddsNotification carries the newest odds slice for one match.
type OddsNotification struct {
	MatchID   int64      `json:"match_id"`
	Timestamp time.Time  `json:"timestamp"`
	Odds      []OddsTick `json:"odds"`
}

// EventNotification carries the newest event slice for one match.
type EventNotification struct {
	MatchID   int64        `json:"match_id"`
	Timestamp time.Time    `json:"timestamp"`
	Events    []MatchEvent `json:"events"`
}

// StatNotification carries the newest stat slice for one match.
type StatNotification struct {
	MatchID   int64          `json:"match_id"`
	Timestamp time.Time      `json:"timestamp"`
	Stats     []TeamStatLine `json:"stats"`
}

// FrameBatchNotification lists the matches covered by one aggregation
// cycle, for consumers that only need to know something changed.
type FrameBatchNotification struct {
	Timestamp  time.Time `json:"timestamp"`
	MatchCount int       `json:"match_count"`
	MatchIDs   []int64   `json:"match_ids"`
}
