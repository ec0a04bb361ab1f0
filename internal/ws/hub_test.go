package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"MatchPulse/internal/domain/models"
	applogger "MatchPulse/pkg/logger"
)

type fakeBus struct {
	msgs     chan BusMessage
	channels []string
	stopped  bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{msgs: make(chan BusMessage, 16)}
}

func (b *fakeBus) Subscribe(_ context.Context, channels ...string) (<-chan BusMessage, func() error, error) {
	b.channels = channels
	return b.msgs, func() error {
		b.stopped = true
		return nil
	}, nil
}

type hubMetrics struct {
	live int
}

func (m *hubMetrics) RecordTicksStored(string, int)       {}
func (m *hubMetrics) RecordFetchError(string)             {}
func (m *hubMetrics) RecordCycleDuration(string, float64) {}
func (m *hubMetrics) RecordPublish(string)                {}
func (m *hubMetrics) RecordError(string)                  {}
func (m *hubMetrics) SetLiveConnections(n int)            { m.live = n }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestHub(t *testing.T) (*Hub, *fakeBus) {
	t.Helper()
	bus := newFakeBus()
	return NewHub(bus, &hubMetrics{}, testLogger(t)), bus
}

// register wires a connection into the hub the way Attach does, minus the
// write pump (tests drain the send channel directly).
func register(h *Hub, c *Conn, matchID int64, admin bool) {
	c.fixedMatch = matchID
	c.admin = admin
	h.mu.Lock()
	h.open[c] = struct{}{}
	if admin {
		h.admin[c] = struct{}{}
	}
	h.mu.Unlock()
	if matchID > 0 {
		h.reg.Subscribe(c, matchID)
	}
}

func drain(t *testing.T, c *Conn) []outbound {
	t.Helper()
	var out []outbound
	for {
		select {
		case raw := <-c.send:
			var msg outbound
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal outbound: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func oddsPayload(matchID int64) []byte {
	return []byte(fmt.Sprintf(`{"match_id":%d,"timestamp":"2026-03-01T20:00:00Z","odds":[]}`, matchID))
}

func TestRouteScopesToSubscribedMatch(t *testing.T) {
	h, _ := newTestHub(t)

	c1, c2, c3 := newConn(nil), newConn(nil), newConn(nil)
	register(h, c1, 100, false)
	register(h, c2, 100, false)
	register(h, c3, 200, false)

	h.route(BusMessage{Channel: models.ChannelOddsTicks, Payload: oddsPayload(100)})

	for i, c := range []*Conn{c1, c2} {
		msgs := drain(t, c)
		if len(msgs) != 1 {
			t.Fatalf("conn %d received %d messages, want 1", i+1, len(msgs))
		}
		if msgs[0].Type != models.ChannelOddsTicks {
			t.Errorf("conn %d envelope type = %q", i+1, msgs[0].Type)
		}
		var scope struct {
			MatchID int64 `json:"match_id"`
		}
		if err := json.Unmarshal(msgs[0].Data, &scope); err != nil || scope.MatchID != 100 {
			t.Errorf("conn %d payload not forwarded verbatim: %s", i+1, msgs[0].Data)
		}
	}
	if msgs := drain(t, c3); len(msgs) != 0 {
		t.Errorf("match 200 subscriber received %d messages from match 100", len(msgs))
	}
}

func TestRouteFrameBatchReachesEveryConnection(t *testing.T) {
	h, _ := newTestHub(t)

	subscribed := newConn(nil)
	free := newConn(nil)
	register(h, subscribed, 100, false)
	register(h, free, 0, false)

	h.route(BusMessage{
		Channel: models.ChannelFrameBatch,
		Payload: []byte(`{"timestamp":"2026-03-01T20:00:00Z","match_count":1,"match_ids":[100]}`),
	})

	for name, c := range map[string]*Conn{"subscribed": subscribed, "free": free} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0].Type != models.ChannelFrameBatch {
			t.Errorf("%s connection: got %d messages", name, len(msgs))
		}
	}
}

func TestRouteRespectsDataTypeFilter(t *testing.T) {
	h, _ := newTestHub(t)

	c := newConn(nil)
	register(h, c, 100, false)
	c.setDataTypes([]string{models.ChannelOddsTicks})

	h.route(BusMessage{Channel: models.ChannelStatTicks, Payload: oddsPayload(100)})
	if msgs := drain(t, c); len(msgs) != 0 {
		t.Errorf("filtered channel delivered %d messages", len(msgs))
	}

	h.route(BusMessage{Channel: models.ChannelOddsTicks, Payload: oddsPayload(100)})
	if msgs := drain(t, c); len(msgs) != 1 {
		t.Errorf("admitted channel delivered %d messages, want 1", len(msgs))
	}
}

func TestRouteFrameChannelBypassesDataTypeFilter(t *testing.T) {
	h, _ := newTestHub(t)

	c := newConn(nil)
	register(h, c, 100, false)
	c.setDataTypes([]string{models.ChannelOddsTicks})

	h.route(BusMessage{Channel: models.ChannelMatchFrame, Payload: oddsPayload(100)})

	msgs := drain(t, c)
	if len(msgs) != 1 {
		t.Fatalf("match-frame delivered %d messages to a filtered connection, want 1", len(msgs))
	}
	if msgs[0].Type != models.ChannelMatchFrame {
		t.Errorf("envelope type = %q, want %q", msgs[0].Type, models.ChannelMatchFrame)
	}
}

func TestRouteDropsOnlyFailedConnections(t *testing.T) {
	h, _ := newTestHub(t)

	healthy := newConn(nil)
	stuck := newConn(nil)
	register(h, healthy, 100, false)
	register(h, stuck, 100, false)

	// Saturate the stuck connection's buffer so its delivery fails.
	for i := 0; i < sendBufferSize; i++ {
		stuck.send <- []byte("{}")
	}

	h.route(BusMessage{Channel: models.ChannelOddsTicks, Payload: oddsPayload(100)})

	if msgs := drain(t, healthy); len(msgs) != 1 {
		t.Errorf("healthy connection received %d messages, want 1", len(msgs))
	}
	if _, ok := h.reg.MatchFor(stuck); ok {
		t.Error("stuck connection should be removed from the registry")
	}
	if conns := h.reg.ConnsFor(100); len(conns) != 1 {
		t.Errorf("match group holds %d connections, want 1", len(conns))
	}
}

func TestRouteMatchFrameCopiesToAdmin(t *testing.T) {
	h, _ := newTestHub(t)

	admin := newConn(nil)
	register(h, admin, 0, true)

	h.route(BusMessage{Channel: models.ChannelMatchFrame, Payload: oddsPayload(100)})

	msgs := drain(t, admin)
	if len(msgs) != 1 || msgs[0].Type != models.ChannelMatchFrame {
		t.Errorf("admin received %d messages", len(msgs))
	}
}

func TestSnapshotCountsOpenAndPerMatch(t *testing.T) {
	h, _ := newTestHub(t)

	a, b, c := newConn(nil), newConn(nil), newConn(nil)
	register(h, a, 100, false)
	register(h, b, 100, false)
	register(h, c, 200, false)
	monitor := newConn(nil)
	register(h, monitor, 0, true)

	s := h.Snapshot()
	if s.TotalConnections != 4 {
		t.Errorf("total = %d, want 4 including the unaffiliated monitor", s.TotalConnections)
	}
	if s.MatchesWithConnections != 2 {
		t.Errorf("matches = %d, want 2", s.MatchesWithConnections)
	}
	if s.PerMatch[100] != 2 || s.PerMatch[200] != 1 {
		t.Errorf("per-match = %v, want {100:2 200:1}", s.PerMatch)
	}

	h.Drop(b)
	s = h.Snapshot()
	if s.TotalConnections != 3 || s.PerMatch[100] != 1 {
		t.Errorf("after drop: total=%d per-match=%v", s.TotalConnections, s.PerMatch)
	}
}

func TestStartRoutesBusMessagesUntilStop(t *testing.T) {
	h, bus := newTestHub(t)

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
	if len(bus.channels) != 5 {
		t.Fatalf("subscribed to %d channels, want 5", len(bus.channels))
	}

	c := newConn(nil)
	register(h, c, 100, false)

	bus.msgs <- BusMessage{Channel: models.ChannelOddsTicks, Payload: oddsPayload(100)}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.send:
			var msg outbound
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type != models.ChannelOddsTicks {
				t.Fatalf("envelope type = %q", msg.Type)
			}
			h.Stop()
			if !bus.stopped {
				t.Error("Stop should tear down the bus subscription")
			}
			return
		case <-deadline:
			t.Fatal("routed message never arrived")
		}
	}
}
