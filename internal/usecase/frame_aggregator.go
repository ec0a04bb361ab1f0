package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MatchPulse/internal/domain/models"
	drepo "MatchPulse/internal/domain/repository"
	applogger "MatchPulse/pkg/logger"
)

// AggregatorConfig bounds the aggregation cycle.
type AggregatorConfig struct {
	ActivityWindow time.Duration // trailing window for "recently active"
	FrameWindow    time.Duration // max age of a usable compacted row
	RefreshWindow  time.Duration // trailing window the views cover
	CleanupModulo  int           // housekeeping runs when minute%modulo == 0
	Retention      map[drepo.Category]time.Duration
}

// DefaultAggregatorConfig returns the production defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		ActivityWindow: 10 * time.Minute,
		FrameWindow:    2 * time.Minute,
		RefreshWindow:  2 * time.Hour,
		CleanupModulo:  10,
		Retention: map[drepo.Category]time.Duration{
			drepo.CategoryOdds:   7 * 24 * time.Hour,
			drepo.CategoryEvents: 14 * 24 * time.Hour,
			drepo.CategoryStats:  7 * 24 * time.Hour,
		},
	}
}

// FrameAggregator compacts raw ticks into per-minute summary frames and
// publishes them: refresh the rolling views, find recently active matches,
// compose one FrameSummary per match with a fresh compacted row, publish
// each frame plus one batch notification.
type FrameAggregator struct {
	ticks   drepo.TickStore
	frames  drepo.FrameStore
	matches drepo.MatchSource
	pub     drepo.Publisher
	metrics drepo.Metrics
	logger  *applogger.Logger
	cfg     AggregatorConfig
	now     func() time.Time

	lastCleanup time.Time
}

// NewFrameAggregator creates a FrameAggregator.
func NewFrameAggregator(
	ticks drepo.TickStore,
	frames drepo.FrameStore,
	matches drepo.MatchSource,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg AggregatorConfig,
) *FrameAggregator {
	if cfg.CleanupModulo < 1 {
		cfg.CleanupModulo = 10
	}
	return &FrameAggregator{
		ticks:   ticks,
		frames:  frames,
		matches: matches,
		pub:     pub,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RunCycle executes one aggregation cycle.
func (a *FrameAggregator) RunCycle(ctx context.Context) error {
	start := a.now()

	// View refresh failures are isolated inside the store; an error here
	// means no view refreshed at all, which still should not kill the
	// composition step (stale views are readable).
	if err := a.frames.RefreshViews(ctx, a.cfg.RefreshWindow); err != nil {
		a.metrics.RecordError("refresh_views")
		a.logger.Error("view refresh failed", applogger.Error(err))
	}

	ids, err := a.ticks.RecentlyActiveMatches(ctx, start.Add(-a.cfg.ActivityWindow))
	if err != nil {
		a.metrics.RecordError("recently_active")
		return fmt.Errorf("recently active matches: %w", err)
	}

	summaries := make([]models.FrameSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := a.ComposeFrame(ctx, id)
		if err != nil {
			a.metrics.RecordError("compose_frame")
			a.logger.Warn("frame composition failed",
				applogger.Int64("match_id", id),
				applogger.Error(err),
			)
			continue
		}
		if summary == nil {
			// No compacted row inside the freshness window: the match is
			// silently absent from this cycle's batch.
			continue
		}
		summaries = append(summaries, *summary)
	}

	for _, s := range summaries {
		a.publish(ctx, models.ChannelMatchFrame, s)
	}
	batch := models.FrameBatchNotification{
		Timestamp:  start,
		MatchCount: len(summaries),
		MatchIDs:   make([]int64, 0, len(summaries)),
	}
	for _, s := range summaries {
		batch.MatchIDs = append(batch.MatchIDs, s.MatchID)
	}
	a.publish(ctx, models.ChannelFrameBatch, batch)

	a.maybeCleanup(ctx)

	elapsed := a.now().Sub(start)
	a.metrics.RecordCycleDuration("aggregator", elapsed.Seconds())
	a.logger.Info("aggregation cycle done",
		applogger.Int("active", len(ids)),
		applogger.Int("frames", len(summaries)),
		applogger.Duration("elapsed_ms", elapsed),
	)
	return nil
}

// ComposeFrame builds the FrameSummary for one match from the compacted
// views. Returns (nil, nil) when the newest compacted row is older than the
// freshness window. Composition is pure over the rows it reads: unchanged
// rows yield an identical summary.
func (a *FrameAggregator) ComposeFrame(ctx context.Context, matchID int64) (*models.FrameSummary, error) {
	row, err := a.frames.LatestFrameRow(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("latest frame row: %w", err)
	}
	if row == nil || a.now().Sub(row.Bucket) > a.cfg.FrameWindow {
		return nil, nil
	}

	match, err := a.matches.Match(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("resolve match: %w", err)
	}

	summary := &models.FrameSummary{
		Bucket:    row.Bucket,
		MatchID:   matchID,
		Status:    match.Status,
		Minute:    match.Minute,
		HomeScore: row.HomeScore,
		AwayScore: row.AwayScore,
		Odds:      row.Odds,
		Events:    row.Events,
	}

	// A handful of recent rows, newest first. Attribution is by team id
	// against the fixture; only the newest row per side is kept, so a team
	// landing in two buckets cannot shadow the other side's snapshot.
	statRows, err := a.frames.LatestTeamStats(ctx, matchID, 4)
	if err != nil {
		return nil, fmt.Errorf("latest team stats: %w", err)
	}
	for _, sr := range statRows {
		snap := &models.TeamStatSnapshot{
			TeamID:      sr.TeamID,
			Possession:  sr.Possession,
			Shots:       sr.Shots,
			ShotsOnGoal: sr.ShotsOnGoal,
			Corners:     sr.Corners,
		}
		switch sr.TeamID {
		case match.HomeTeamID:
			if summary.HomeStats == nil {
				summary.HomeStats = snap
			}
		case match.AwayTeamID:
			if summary.AwayStats == nil {
				summary.AwayStats = snap
			}
		}
	}

	return summary, nil
}

// maybeCleanup runs retention housekeeping on minute-modulo boundaries at
// most once per boundary. Failures are logged per table inside the store
// and never abort the cycle.
func (a *FrameAggregator) maybeCleanup(ctx context.Context) {
	now := a.now()
	if now.Minute()%a.cfg.CleanupModulo != 0 {
		return
	}
	if now.Sub(a.lastCleanup) < time.Minute {
		return
	}

	deleted, err := a.ticks.Cleanup(ctx, a.cfg.Retention)
	if err != nil {
		a.metrics.RecordError("cleanup")
		a.logger.Warn("tick cleanup failed", applogger.Error(err))
		return
	}
	a.lastCleanup = now

	tables := make([]string, 0, len(deleted))
	for t := range deleted {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		a.logger.Info("tick cleanup",
			applogger.String("table", t),
			applogger.Int64("deleted", deleted[t]),
		)
	}
}

// publish is best-effort, mirroring the collector's semantics.
func (a *FrameAggregator) publish(ctx context.Context, channel string, payload interface{}) {
	if err := a.pub.Publish(ctx, channel, payload); err != nil {
		a.metrics.RecordError("publish")
		a.logger.Warn("publish failed",
			applogger.String("channel", channel),
			applogger.Error(err),
		)
		return
	}
	a.metrics.RecordPublish(channel)
}
