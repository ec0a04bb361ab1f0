package repository

import (
	"context"
	"time"

	"MatchPulse/internal/domain/models"
)

// MatchSource lists the fixtures the collector should poll. Backed by the
// match registry, which owns match lifecycle.
type MatchSource interface {
	// ActiveMatches returns live matches ordered by kickoff time.
	ActiveMatches(ctx context.Context) ([]models.Match, error)
	// Match resolves a single fixture by id.
	Match(ctx context.Context, id int64) (*models.Match, error)
}

// TickStore persists and queries the three append-only time-series tables.
type TickStore interface {
	StoreOdds(ctx context.Context, ticks []models.OddsTick) error
	StoreEvents(ctx context.Context, events []models.MatchEvent) error
	StoreStats(ctx context.Context, stats []models.TeamStatLine) error

	// RecentlyActiveMatches returns the de-duplicated ids of matches that
	// produced at least one tick in any category since the cutoff.
	RecentlyActiveMatches(ctx context.Context, since time.Time) ([]int64, error)

	// OddsHistory reads stored odds ticks for a match inside [from, to),
	// oldest first, capped at limit rows.
	OddsHistory(ctx context.Context, matchID int64, from, to time.Time, limit int) ([]models.OddsTick, error)

	// Cleanup deletes ticks older than the per-category retention windows
	// and returns deleted-row counts keyed by table.
	Cleanup(ctx context.Context, retention map[Category]time.Duration) (map[string]int64, error)

	Health(ctx context.Context) error
}

// FrameStore reads the rolling compacted views and triggers their refresh.
type FrameStore interface {
	// RefreshViews re-materializes the compacted views over the trailing
	// window. Idempotent; safe to call every cycle.
	RefreshViews(ctx context.Context, window time.Duration) error

	// LatestFrameRow returns the most recent combined per-minute row for a
	// match, or nil when none exists.
	LatestFrameRow(ctx context.Context, matchID int64) (*models.FrameRow, error)

	// LatestTeamStats returns up to n most recent per-team stat rows for a
	// match from the stat progression view.
	LatestTeamStats(ctx context.Context, matchID int64, n int) ([]models.TeamStatLine, error)
}

// Publisher pushes JSON payloads to named notification channels.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
	Close() error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordTicksStored(category string, n int)
	RecordFetchError(category string)
	RecordCycleDuration(cycle string, seconds float64)
	RecordPublish(channel string)
	RecordError(kind string)
	SetLiveConnections(n int)
}
