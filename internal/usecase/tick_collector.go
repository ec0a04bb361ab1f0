package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MatchPulse/internal/domain/models"
	drepo "MatchPulse/internal/domain/repository"
	"MatchPulse/internal/service/provider"
	applogger "MatchPulse/pkg/logger"
)

// Source is the upstream adapter the collector fetches categories from.
// Each fetch classifies its outcome explicitly so a failed category is
// distinguishable from a genuinely empty one.
type Source interface {
	FetchOdds(ctx context.Context, matchID int64) provider.Result[models.OddsTick]
	FetchEvents(ctx context.Context, matchID int64) provider.Result[models.MatchEvent]
	FetchStats(ctx context.Context, matchID int64) provider.Result[models.TeamStatLine]
}

// Exporter mirrors stored ticks to an archival stream. Optional; export
// failures never affect collection.
type Exporter interface {
	ExportOdds(ctx context.Context, ticks []models.OddsTick)
	ExportEvents(ctx context.Context, events []models.MatchEvent)
	ExportStats(ctx context.Context, stats []models.TeamStatLine)
}

// CollectorConfig bounds the collector's per-cycle behavior.
type CollectorConfig struct {
	Concurrency int           // max matches processed at once
	TailSize    int           // newest entries carried in a notification
	KickoffBack time.Duration // collection window behind now
	KickoffFwd  time.Duration // collection window ahead of now
}

// DefaultCollectorConfig returns the production defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Concurrency: 5,
		TailSize:    10,
		KickoffBack: 4 * time.Hour,
		KickoffFwd:  1 * time.Hour,
	}
}

// TickCollector runs the per-cycle collection: list active matches, fan out
// per match under the concurrency cap, fetch all three categories per match
// concurrently, persist non-empty categories and publish their newest tail.
type TickCollector struct {
	source  Source
	matches drepo.MatchSource
	store   drepo.TickStore
	pub     drepo.Publisher
	metrics drepo.Metrics
	logger  *applogger.Logger
	cfg     CollectorConfig
	now     func() time.Time

	exporter Exporter // optional
}

// SetExporter attaches an archival export sink.
func (c *TickCollector) SetExporter(e Exporter) { c.exporter = e }

// NewTickCollector creates a TickCollector.
func NewTickCollector(
	source Source,
	matches drepo.MatchSource,
	store drepo.TickStore,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg CollectorConfig,
) *TickCollector {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TailSize < 1 {
		cfg.TailSize = 10
	}
	return &TickCollector{
		source:  source,
		matches: matches,
		store:   store,
		pub:     pub,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RunCycle executes one collection cycle. A failure to list active matches
// aborts the cycle; a failure inside one match's processing is logged and
// isolated from the others.
func (c *TickCollector) RunCycle(ctx context.Context) error {
	start := c.now()

	active, err := c.matches.ActiveMatches(ctx)
	if err != nil {
		c.metrics.RecordError("list_active_matches")
		return fmt.Errorf("list active matches: %w", err)
	}
	active = c.filterCollectable(active)
	if len(active) == 0 {
		c.logger.Debug("no active matches this cycle")
		return nil
	}

	// Bounded fan-out across matches; the previous cycle's fan-out has
	// fully resolved before the scheduler starts this one, so at most
	// Concurrency*3 fetches are outstanding at any instant.
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, m := range active {
		wg.Add(1)
		go func(m models.Match) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if err := c.collectMatch(ctx, m); err != nil {
				c.metrics.RecordError("collect_match")
				c.logger.Error("match collection failed",
					applogger.Int64("match_id", m.ID),
					applogger.Error(err),
				)
			}
		}(m)
	}
	wg.Wait()

	elapsed := c.now().Sub(start)
	c.metrics.RecordCycleDuration("collector", elapsed.Seconds())
	c.logger.Info("collection cycle done",
		applogger.Int("matches", len(active)),
		applogger.Duration("elapsed_ms", elapsed),
	)
	return nil
}

// filterCollectable keeps matches in the live status set whose kickoff
// falls inside the collection window around now.
func (c *TickCollector) filterCollectable(matches []models.Match) []models.Match {
	now := c.now()
	out := matches[:0]
	for _, m := range matches {
		if !m.IsLive() {
			continue
		}
		if m.KickoffAt.Before(now.Add(-c.cfg.KickoffBack)) || m.KickoffAt.After(now.Add(c.cfg.KickoffFwd)) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// collectMatch fetches all three categories concurrently, persists the
// non-empty ones and publishes one notification per non-empty category.
// A category failure empties that category only; a persistence failure
// propagates so the cycle driver can log it per match.
func (c *TickCollector) collectMatch(ctx context.Context, m models.Match) error {
	var (
		odds   provider.Result[models.OddsTick]
		events provider.Result[models.MatchEvent]
		stats  provider.Result[models.TeamStatLine]
	)

	// Fixed three-way fan-out: the categories race independently.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); odds = c.source.FetchOdds(ctx, m.ID) }()
	go func() { defer wg.Done(); events = c.source.FetchEvents(ctx, m.ID) }()
	go func() { defer wg.Done(); stats = c.source.FetchStats(ctx, m.ID) }()
	wg.Wait()

	oddsData := resolve(c, m.ID, drepo.CategoryOdds, odds)
	eventData := resolve(c, m.ID, drepo.CategoryEvents, events)
	statData := resolve(c, m.ID, drepo.CategoryStats, stats)

	now := c.now()

	if len(oddsData) > 0 {
		if err := c.store.StoreOdds(ctx, oddsData); err != nil {
			return fmt.Errorf("store odds: %w", err)
		}
		c.metrics.RecordTicksStored(string(drepo.CategoryOdds), len(oddsData))
		c.publish(ctx, models.ChannelOddsTicks, models.OddsNotification{
			MatchID:   m.ID,
			Timestamp: now,
			Odds:      tail(oddsData, c.cfg.TailSize),
		})
		if c.exporter != nil {
			c.exporter.ExportOdds(ctx, oddsData)
		}
	}
	if len(eventData) > 0 {
		if err := c.store.StoreEvents(ctx, eventData); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		c.metrics.RecordTicksStored(string(drepo.CategoryEvents), len(eventData))
		c.publish(ctx, models.ChannelEventTicks, models.EventNotification{
			MatchID:   m.ID,
			Timestamp: now,
			Events:    tail(eventData, c.cfg.TailSize),
		})
		if c.exporter != nil {
			c.exporter.ExportEvents(ctx, eventData)
		}
	}
	if len(statData) > 0 {
		if err := c.store.StoreStats(ctx, statData); err != nil {
			return fmt.Errorf("store stats: %w", err)
		}
		c.metrics.RecordTicksStored(string(drepo.CategoryStats), len(statData))
		c.publish(ctx, models.ChannelStatTicks, models.StatNotification{
			MatchID:   m.ID,
			Timestamp: now,
			Stats:     tail(statData, c.cfg.TailSize),
		})
		if c.exporter != nil {
			c.exporter.ExportStats(ctx, statData)
		}
	}

	c.logger.Debug("match collected",
		applogger.Int64("match_id", m.ID),
		applogger.Int("odds", len(oddsData)),
		applogger.Int("events", len(eventData)),
		applogger.Int("stats", len(statData)),
	)
	return nil
}

// publish is best-effort: a failed publish is logged and dropped, the next
// cycle re-converges subscribers.
func (c *TickCollector) publish(ctx context.Context, channel string, payload interface{}) {
	if err := c.pub.Publish(ctx, channel, payload); err != nil {
		c.metrics.RecordError("publish")
		c.logger.Warn("publish failed",
			applogger.String("channel", channel),
			applogger.Error(err),
		)
		return
	}
	c.metrics.RecordPublish(channel)
}

// resolve flattens a fetch result into data, recording and logging an
// upstream failure as an emptied category.
func resolve[T any](c *TickCollector, matchID int64, cat drepo.Category, r provider.Result[T]) []T {
	switch r.Status {
	case provider.StatusOK:
		return r.Data
	case provider.StatusError:
		c.metrics.RecordFetchError(string(cat))
		c.logger.Warn("category fetch failed",
			applogger.Int64("match_id", matchID),
			applogger.String("category", string(cat)),
			applogger.Error(r.Err),
		)
	}
	return nil
}

// tail returns the newest n entries, assuming ascending order.
func tail[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
