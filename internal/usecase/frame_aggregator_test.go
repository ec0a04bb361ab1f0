package usecase

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"MatchPulse/internal/domain/models"
	drepo "MatchPulse/internal/domain/repository"
)

type fakeFrameStore struct {
	mu      sync.Mutex
	rows    map[int64]*models.FrameRow
	stats   map[int64][]models.TeamStatLine
	refresh int
}

func newFakeFrameStore() *fakeFrameStore {
	return &fakeFrameStore{
		rows:  make(map[int64]*models.FrameRow),
		stats: make(map[int64][]models.TeamStatLine),
	}
}

func (s *fakeFrameStore) RefreshViews(context.Context, time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh++
	return nil
}

func (s *fakeFrameStore) LatestFrameRow(_ context.Context, matchID int64) (*models.FrameRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[matchID], nil
}

func (s *fakeFrameStore) LatestTeamStats(_ context.Context, matchID int64, n int) ([]models.TeamStatLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.stats[matchID]
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

type cleanupTrackingStore struct {
	*fakeTickStore
	mu    sync.Mutex
	calls int
}

func (s *cleanupTrackingStore) Cleanup(context.Context, map[drepo.Category]time.Duration) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return map[string]int64{"odds_ticks": 120, "event_ticks": 30}, nil
}

func newTestAggregator(t *testing.T, ticks drepo.TickStore, frames drepo.FrameStore, src *fakeSource, pub *fakePublisher) *FrameAggregator {
	t.Helper()
	return NewFrameAggregator(ticks, frames, src, pub, newNopMetrics(), testLogger(t), DefaultAggregatorConfig())
}

func frameRow(matchID int64, bucket time.Time) *models.FrameRow {
	return &models.FrameRow{
		Bucket:    bucket,
		MatchID:   matchID,
		HomeScore: 1,
		AwayScore: 0,
		Odds:      models.OddsSnapshot{HomeOdds: 1.8, DrawOdds: 3.4, AwayOdds: 4.2, HomeDelta: -0.05},
		Events:    models.EventCounts{Goals: 1, Corners: 3, Total: 4},
	}
}

func TestComposeFrameDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	const matchID int64 = 9

	src := newFakeSource()
	src.matches = []models.Match{liveMatch(matchID)}
	frames := newFakeFrameStore()
	frames.rows[matchID] = frameRow(matchID, now.Add(-time.Minute))
	frames.stats[matchID] = []models.TeamStatLine{
		{MatchID: matchID, TeamID: 91, Possession: 58.5, Shots: 9, ShotsOnGoal: 4, Corners: 3},
		{MatchID: matchID, TeamID: 92, Possession: 41.5, Shots: 5, ShotsOnGoal: 1, Corners: 2},
	}

	a := newTestAggregator(t, newFakeTickStore(), frames, src, &fakePublisher{})
	a.now = func() time.Time { return now }

	first, err := a.ComposeFrame(context.Background(), matchID)
	if err != nil {
		t.Fatalf("ComposeFrame: %v", err)
	}
	second, err := a.ComposeFrame(context.Background(), matchID)
	if err != nil {
		t.Fatalf("ComposeFrame: %v", err)
	}
	if first == nil || second == nil {
		t.Fatal("expected a summary for a fresh row")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("composition over unchanged rows differs:\n%+v\n%+v", first, second)
	}
}

func TestComposeFrameExcludesStaleRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	const matchID int64 = 9

	src := newFakeSource()
	src.matches = []models.Match{liveMatch(matchID)}
	frames := newFakeFrameStore()

	a := newTestAggregator(t, newFakeTickStore(), frames, src, &fakePublisher{})
	a.now = func() time.Time { return now }

	cases := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"fresh", time.Minute, true},
		{"exactly at the window", 2 * time.Minute, true},
		{"just past the window", 2*time.Minute + time.Second, false},
		{"long stale", time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frames.rows[matchID] = frameRow(matchID, now.Add(-tc.age))
			s, err := a.ComposeFrame(context.Background(), matchID)
			if err != nil {
				t.Fatalf("ComposeFrame: %v", err)
			}
			if got := s != nil; got != tc.want {
				t.Errorf("included = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComposeFrameNoRow(t *testing.T) {
	a := newTestAggregator(t, newFakeTickStore(), newFakeFrameStore(), newFakeSource(), &fakePublisher{})

	s, err := a.ComposeFrame(context.Background(), 404)
	if err != nil {
		t.Fatalf("ComposeFrame: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil summary for a match with no compacted row")
	}
}

func TestComposeFrameAttributesTeamStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	const matchID int64 = 9

	m := liveMatch(matchID)
	src := newFakeSource()
	src.matches = []models.Match{m}
	frames := newFakeFrameStore()
	frames.rows[matchID] = frameRow(matchID, now.Add(-time.Minute))
	frames.stats[matchID] = []models.TeamStatLine{
		{MatchID: matchID, TeamID: m.AwayTeamID, Possession: 41.5, Shots: 5},
		{MatchID: matchID, TeamID: m.HomeTeamID, Possession: 58.5, Shots: 9},
	}

	a := newTestAggregator(t, newFakeTickStore(), frames, src, &fakePublisher{})
	a.now = func() time.Time { return now }

	s, err := a.ComposeFrame(context.Background(), matchID)
	if err != nil {
		t.Fatalf("ComposeFrame: %v", err)
	}
	if s.HomeStats == nil || s.HomeStats.TeamID != m.HomeTeamID {
		t.Errorf("home stats misattributed: %+v", s.HomeStats)
	}
	if s.AwayStats == nil || s.AwayStats.TeamID != m.AwayTeamID {
		t.Errorf("away stats misattributed: %+v", s.AwayStats)
	}
	if s.HomeStats.Possession != 58.5 {
		t.Errorf("home possession = %v, want 58.5", s.HomeStats.Possession)
	}
}

func TestComposeFrameKeepsNewestRowPerTeam(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	const matchID int64 = 9

	m := liveMatch(matchID)
	src := newFakeSource()
	src.matches = []models.Match{m}
	frames := newFakeFrameStore()
	frames.rows[matchID] = frameRow(matchID, now.Add(-time.Minute))
	// Newest first: the home team appears twice because its latest row
	// landed in a newer bucket. The stale duplicate must not overwrite
	// the fresh snapshot.
	frames.stats[matchID] = []models.TeamStatLine{
		{MatchID: matchID, TeamID: m.HomeTeamID, Possession: 60.0, Shots: 11},
		{MatchID: matchID, TeamID: m.AwayTeamID, Possession: 40.0, Shots: 4},
		{MatchID: matchID, TeamID: m.HomeTeamID, Possession: 55.0, Shots: 8},
	}

	a := newTestAggregator(t, newFakeTickStore(), frames, src, &fakePublisher{})
	a.now = func() time.Time { return now }

	s, err := a.ComposeFrame(context.Background(), matchID)
	if err != nil {
		t.Fatalf("ComposeFrame: %v", err)
	}
	if s.HomeStats == nil || s.HomeStats.Possession != 60.0 || s.HomeStats.Shots != 11 {
		t.Errorf("home stats = %+v, want the newest row (possession 60, shots 11)", s.HomeStats)
	}
	if s.AwayStats == nil || s.AwayStats.Possession != 40.0 {
		t.Errorf("away stats = %+v, want possession 40", s.AwayStats)
	}
}

func TestRunCycleBatchCoversComposedMatches(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)

	src := newFakeSource()
	src.matches = []models.Match{liveMatch(1), liveMatch(2), liveMatch(3)}
	ticks := newFakeTickStore()
	ticks.active = []int64{1, 2, 3}
	frames := newFakeFrameStore()
	frames.rows[1] = frameRow(1, now.Add(-time.Minute))
	frames.rows[2] = frameRow(2, now.Add(-time.Hour)) // stale, excluded
	frames.rows[3] = frameRow(3, now.Add(-30*time.Second))
	pub := &fakePublisher{}

	a := newTestAggregator(t, ticks, frames, src, pub)
	a.now = func() time.Time { return now }

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if frames.refresh != 1 {
		t.Errorf("view refreshes = %d, want 1", frames.refresh)
	}
	if n := len(pub.onChannel(models.ChannelMatchFrame)); n != 2 {
		t.Errorf("match-frame notifications = %d, want 2", n)
	}
	batches := pub.onChannel(models.ChannelFrameBatch)
	if len(batches) != 1 {
		t.Fatalf("frame-batch notifications = %d, want 1", len(batches))
	}
	batch, ok := batches[0].payload.(models.FrameBatchNotification)
	if !ok {
		t.Fatalf("payload type %T, want FrameBatchNotification", batches[0].payload)
	}
	if batch.MatchCount != 2 {
		t.Errorf("batch match count = %d, want 2", batch.MatchCount)
	}
	if !reflect.DeepEqual(batch.MatchIDs, []int64{1, 3}) {
		t.Errorf("batch match ids = %v, want [1 3]", batch.MatchIDs)
	}
}

func TestMaybeCleanupRunsOnModuloBoundary(t *testing.T) {
	src := newFakeSource()
	ticks := &cleanupTrackingStore{fakeTickStore: newFakeTickStore()}

	a := newTestAggregator(t, ticks, newFakeFrameStore(), src, &fakePublisher{})

	boundary := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	offBoundary := boundary.Add(3 * time.Minute)

	a.now = func() time.Time { return offBoundary }
	a.maybeCleanup(context.Background())
	if ticks.calls != 0 {
		t.Fatalf("cleanup ran at minute %d, want modulo-10 boundaries only", offBoundary.Minute())
	}

	a.now = func() time.Time { return boundary }
	a.maybeCleanup(context.Background())
	if ticks.calls != 1 {
		t.Fatalf("cleanup calls = %d, want 1", ticks.calls)
	}

	// Same boundary minute again: suppressed.
	a.now = func() time.Time { return boundary.Add(20 * time.Second) }
	a.maybeCleanup(context.Background())
	if ticks.calls != 1 {
		t.Fatalf("cleanup ran twice inside one boundary minute")
	}

	// Next boundary fires again.
	a.now = func() time.Time { return boundary.Add(10 * time.Minute) }
	a.maybeCleanup(context.Background())
	if ticks.calls != 2 {
		t.Fatalf("cleanup calls = %d, want 2 after the next boundary", ticks.calls)
	}
}
