package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MatchPulse/internal/domain/models"
	drepo "MatchPulse/internal/domain/repository"
	"MatchPulse/internal/service/provider"
	applogger "MatchPulse/pkg/logger"
)

type fakeSource struct {
	mu     sync.Mutex
	odds   map[int64]provider.Result[models.OddsTick]
	events map[int64]provider.Result[models.MatchEvent]
	stats  map[int64]provider.Result[models.TeamStatLine]

	inFlight int32
	peak     int32
	delay    time.Duration

	matches []models.Match
	listErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		odds:   make(map[int64]provider.Result[models.OddsTick]),
		events: make(map[int64]provider.Result[models.MatchEvent]),
		stats:  make(map[int64]provider.Result[models.TeamStatLine]),
	}
}

func (s *fakeSource) FetchOdds(_ context.Context, matchID int64) provider.Result[models.OddsTick] {
	// Odds is fetched exactly once per match, so its concurrency equals the
	// per-match fan-out width.
	cur := atomic.AddInt32(&s.inFlight, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if cur <= p || atomic.CompareAndSwapInt32(&s.peak, p, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.odds[matchID]; ok {
		return r
	}
	return provider.Empty[models.OddsTick]()
}

func (s *fakeSource) FetchEvents(_ context.Context, matchID int64) provider.Result[models.MatchEvent] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.events[matchID]; ok {
		return r
	}
	return provider.Empty[models.MatchEvent]()
}

func (s *fakeSource) FetchStats(_ context.Context, matchID int64) provider.Result[models.TeamStatLine] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.stats[matchID]; ok {
		return r
	}
	return provider.Empty[models.TeamStatLine]()
}

func (s *fakeSource) ActiveMatches(context.Context) ([]models.Match, error) {
	return s.matches, s.listErr
}

func (s *fakeSource) Match(_ context.Context, id int64) (*models.Match, error) {
	for _, m := range s.matches {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, errors.New("match not found")
}

type fakeTickStore struct {
	mu     sync.Mutex
	odds   []models.OddsTick
	events []models.MatchEvent
	stats  []models.TeamStatLine

	oddsErr map[int64]error
	active  []int64
}

func newFakeTickStore() *fakeTickStore {
	return &fakeTickStore{oddsErr: make(map[int64]error)}
}

func (s *fakeTickStore) StoreOdds(_ context.Context, ticks []models.OddsTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ticks) > 0 {
		if err := s.oddsErr[ticks[0].MatchID]; err != nil {
			return err
		}
	}
	s.odds = append(s.odds, ticks...)
	return nil
}

func (s *fakeTickStore) StoreEvents(_ context.Context, events []models.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeTickStore) StoreStats(_ context.Context, stats []models.TeamStatLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, stats...)
	return nil
}

func (s *fakeTickStore) RecentlyActiveMatches(context.Context, time.Time) ([]int64, error) {
	return s.active, nil
}

func (s *fakeTickStore) OddsHistory(_ context.Context, matchID int64, from, to time.Time, limit int) ([]models.OddsTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OddsTick
	for _, o := range s.odds {
		if o.MatchID == matchID && !o.Timestamp.Before(from) && o.Timestamp.Before(to) && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeTickStore) Cleanup(context.Context, map[drepo.Category]time.Duration) (map[string]int64, error) {
	return nil, nil
}

func (s *fakeTickStore) Health(context.Context) error { return nil }

type published struct {
	channel string
	payload interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{channel: channel, payload: payload})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) onChannel(channel string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.channel == channel {
			out = append(out, m)
		}
	}
	return out
}

type nopMetrics struct {
	mu          sync.Mutex
	fetchErrors map[string]int
}

func newNopMetrics() *nopMetrics {
	return &nopMetrics{fetchErrors: make(map[string]int)}
}

func (m *nopMetrics) RecordTicksStored(string, int) {}
func (m *nopMetrics) RecordFetchError(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors[category]++
}
func (m *nopMetrics) RecordCycleDuration(string, float64) {}
func (m *nopMetrics) RecordPublish(string)                {}
func (m *nopMetrics) RecordError(string)                  {}
func (m *nopMetrics) SetLiveConnections(int)              {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func liveMatch(id int64) models.Match {
	return models.Match{
		ID:         id,
		HomeTeamID: id*10 + 1,
		AwayTeamID: id*10 + 2,
		Status:     models.StatusLive,
		KickoffAt:  time.Now().Add(-30 * time.Minute),
	}
}

func oddsTicks(matchID int64, n int) []models.OddsTick {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	out := make([]models.OddsTick, n)
	for i := range out {
		out[i] = models.OddsTick{
			MatchID:   matchID,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Bookmaker: "bk1",
			Market:    "1x2",
			HomeOdds:  1.8,
			DrawOdds:  3.4,
			AwayOdds:  4.2,
		}
	}
	return out
}

func newTestCollector(src *fakeSource, store *fakeTickStore, pub *fakePublisher, m *nopMetrics, t *testing.T, cfg CollectorConfig) *TickCollector {
	t.Helper()
	return NewTickCollector(src, src, store, pub, m, testLogger(t), cfg)
}

func TestRunCycleBoundsConcurrency(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond
	for id := int64(1); id <= 5; id++ {
		src.matches = append(src.matches, liveMatch(id))
		src.odds[id] = provider.OK(oddsTicks(id, 1))
	}

	cfg := DefaultCollectorConfig()
	cfg.Concurrency = 2
	store := newFakeTickStore()
	c := newTestCollector(src, store, &fakePublisher{}, newNopMetrics(), t, cfg)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if got := atomic.LoadInt32(&src.peak); got > 2 {
		t.Errorf("peak match concurrency = %d, want <= 2", got)
	}
	if got := len(store.odds); got != 5 {
		t.Errorf("stored odds for %d matches, want 5", got)
	}
}

func TestRunCycleIsolatesCategoryFailure(t *testing.T) {
	const matchID = 1035048

	src := newFakeSource()
	src.matches = []models.Match{liveMatch(matchID)}
	src.odds[matchID] = provider.OK(oddsTicks(matchID, 3))
	src.events[matchID] = provider.Failed[models.MatchEvent](errors.New("upstream 503"))
	src.stats[matchID] = provider.OK([]models.TeamStatLine{{
		MatchID: matchID, Timestamp: time.Now(), TeamID: 7, Possession: 54.0,
	}})

	store := newFakeTickStore()
	pub := &fakePublisher{}
	metrics := newNopMetrics()
	c := newTestCollector(src, store, pub, metrics, t, DefaultCollectorConfig())

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(store.odds) != 3 {
		t.Errorf("stored %d odds, want 3", len(store.odds))
	}
	if len(store.events) != 0 {
		t.Errorf("stored %d events, want 0 after fetch failure", len(store.events))
	}
	if len(store.stats) != 1 {
		t.Errorf("stored %d stats, want 1", len(store.stats))
	}
	if n := len(pub.onChannel(models.ChannelOddsTicks)); n != 1 {
		t.Errorf("odds notifications = %d, want 1", n)
	}
	if n := len(pub.onChannel(models.ChannelEventTicks)); n != 0 {
		t.Errorf("event notifications = %d, want 0", n)
	}
	if n := len(pub.onChannel(models.ChannelStatTicks)); n != 1 {
		t.Errorf("stat notifications = %d, want 1", n)
	}
	if metrics.fetchErrors[string(drepo.CategoryEvents)] != 1 {
		t.Errorf("event fetch errors = %d, want 1", metrics.fetchErrors[string(drepo.CategoryEvents)])
	}
}

func TestRunCycleIsolatesMatchFailure(t *testing.T) {
	src := newFakeSource()
	for id := int64(1); id <= 3; id++ {
		src.matches = append(src.matches, liveMatch(id))
		src.odds[id] = provider.OK(oddsTicks(id, 2))
	}

	store := newFakeTickStore()
	store.oddsErr[2] = errors.New("insert timeout")
	c := newTestCollector(src, store, &fakePublisher{}, newNopMetrics(), t, DefaultCollectorConfig())

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle should isolate per-match failures, got %v", err)
	}

	got := make(map[int64]int)
	for _, o := range store.odds {
		got[o.MatchID]++
	}
	if got[1] != 2 || got[3] != 2 {
		t.Errorf("matches 1 and 3 should still store their odds, got %v", got)
	}
	if got[2] != 0 {
		t.Errorf("match 2 stored %d odds despite insert failure", got[2])
	}
}

func TestRunCycleNotificationCarriesNewestTail(t *testing.T) {
	const matchID int64 = 42

	src := newFakeSource()
	src.matches = []models.Match{liveMatch(matchID)}
	ticks := oddsTicks(matchID, 25)
	src.odds[matchID] = provider.OK(ticks)

	cfg := DefaultCollectorConfig()
	cfg.TailSize = 10
	store := newFakeTickStore()
	pub := &fakePublisher{}
	c := newTestCollector(src, store, pub, newNopMetrics(), t, cfg)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(store.odds) != 25 {
		t.Fatalf("stored %d odds, want all 25", len(store.odds))
	}
	msgs := pub.onChannel(models.ChannelOddsTicks)
	if len(msgs) != 1 {
		t.Fatalf("odds notifications = %d, want 1", len(msgs))
	}
	n, ok := msgs[0].payload.(models.OddsNotification)
	if !ok {
		t.Fatalf("payload type %T, want OddsNotification", msgs[0].payload)
	}
	if len(n.Odds) != 10 {
		t.Fatalf("notification carries %d odds, want 10", len(n.Odds))
	}
	if !n.Odds[len(n.Odds)-1].Timestamp.Equal(ticks[24].Timestamp) {
		t.Errorf("notification tail should end with the newest tick")
	}
}

func TestFilterCollectable(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	store := newFakeTickStore()
	src := newFakeSource()
	c := newTestCollector(src, store, &fakePublisher{}, newNopMetrics(), t, DefaultCollectorConfig())
	c.now = func() time.Time { return now }

	in := []models.Match{
		{ID: 1, Status: models.StatusLive, KickoffAt: now.Add(-1 * time.Hour)},
		{ID: 2, Status: models.StatusHalftime, KickoffAt: now.Add(-2 * time.Hour)},
		{ID: 3, Status: models.StatusScheduled, KickoffAt: now.Add(30 * time.Minute)},
		{ID: 4, Status: models.StatusLive, KickoffAt: now.Add(-5 * time.Hour)},
		{ID: 5, Status: models.StatusLive, KickoffAt: now.Add(2 * time.Hour)},
		{ID: 6, Status: models.StatusFinished, KickoffAt: now.Add(-1 * time.Hour)},
		{ID: 7, Status: models.StatusPenalties, KickoffAt: now.Add(-3 * time.Hour)},
	}
	got := c.filterCollectable(in)

	want := []int64{1, 2, 7}
	if len(got) != len(want) {
		t.Fatalf("filtered to %d matches, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("match[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestTail(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5}
	if got := tail(xs, 2); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("tail(5 elems, 2) = %v", got)
	}
	if got := tail(xs, 10); len(got) != 5 {
		t.Errorf("tail(5 elems, 10) = %v, want all", got)
	}
}
