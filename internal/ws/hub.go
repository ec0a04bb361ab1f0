package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"MatchPulse/internal/domain/models"
	drepo "MatchPulse/internal/domain/repository"
	applogger "MatchPulse/pkg/logger"
)

// BusMessage is one notification received from the channel bus.
type BusMessage struct {
	Channel string
	Payload []byte
}

// BusSubscriber abstracts the channel bus so the hub can be tested without
// a live broker. The returned stop function tears the subscription down.
type BusSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, func() error, error)
}

// Hub routes channel notifications to registered connections. It is an
// explicitly constructed service with a Start/Stop lifecycle; nothing in
// the package is a process-wide singleton.
type Hub struct {
	reg     *Registry
	bus     BusSubscriber
	logger  *applogger.Logger
	metrics drepo.Metrics

	statsInterval time.Duration

	mu    sync.Mutex
	open  map[*Conn]struct{}
	admin map[*Conn]struct{}

	cancel  context.CancelFunc
	busStop func() error
	wg      sync.WaitGroup
	started bool
}

// NewHub creates a Hub.
func NewHub(bus BusSubscriber, metrics drepo.Metrics, logger *applogger.Logger) *Hub {
	return &Hub{
		reg:           NewRegistry(),
		bus:           bus,
		logger:        logger,
		metrics:       metrics,
		statsInterval: 5 * time.Second,
		open:          make(map[*Conn]struct{}),
		admin:         make(map[*Conn]struct{}),
	}
}

// Registry exposes the subscription registry (used by endpoints and tests).
func (h *Hub) Registry() *Registry { return h.reg }

// Start subscribes to the notification channels and launches the routing
// and admin-stats loops.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return fmt.Errorf("hub already started")
	}
	h.started = true
	h.mu.Unlock()

	ctx, h.cancel = context.WithCancel(ctx)

	msgs, stop, err := h.bus.Subscribe(ctx,
		models.ChannelOddsTicks,
		models.ChannelEventTicks,
		models.ChannelStatTicks,
		models.ChannelMatchFrame,
		models.ChannelFrameBatch,
	)
	if err != nil {
		return fmt.Errorf("bus subscribe: %w", err)
	}
	h.busStop = stop

	h.wg.Add(2)
	go h.routeLoop(ctx, msgs)
	go h.statsLoop(ctx)

	h.logger.Info("websocket hub started")
	return nil
}

// Stop tears down the bus subscription and closes every connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	if h.busStop != nil {
		_ = h.busStop()
	}
	h.wg.Wait()

	h.mu.Lock()
	for c := range h.open {
		c.Close()
	}
	h.open = make(map[*Conn]struct{})
	h.admin = make(map[*Conn]struct{})
	h.mu.Unlock()
	h.reg = NewRegistry()

	h.logger.Info("websocket hub stopped")
}

// routeLoop consumes bus notifications and fans them out.
func (h *Hub) routeLoop(ctx context.Context, msgs <-chan BusMessage) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			h.route(m)
		}
	}
}

// envelopeFor wraps a verbatim channel payload with a type tag derived
// from the channel name.
func envelopeFor(channel string, payload []byte) []byte {
	b, err := json.Marshal(outbound{Type: channel, Data: json.RawMessage(payload)})
	if err != nil {
		return nil
	}
	return b
}

func (h *Hub) route(m BusMessage) {
	msg := envelopeFor(m.Channel, m.Payload)
	if msg == nil {
		return
	}

	switch m.Channel {
	case models.ChannelFrameBatch:
		// Aggregate channel: every open connection, regardless of match.
		h.broadcastAll(msg)
		return
	}

	var scope struct {
		MatchID int64 `json:"match_id"`
	}
	if err := json.Unmarshal(m.Payload, &scope); err != nil || scope.MatchID == 0 {
		h.logger.Warn("unscoped bus payload dropped",
			applogger.String("channel", m.Channel),
		)
		return
	}

	var failed []*Conn
	for _, c := range h.reg.ConnsFor(scope.MatchID) {
		if !c.wantsChannel(m.Channel) {
			continue
		}
		if !c.Send(msg) {
			// Delivery continues to the rest; this one is removed.
			failed = append(failed, c)
		}
	}
	// Admin connections see every match-frame for monitoring.
	if m.Channel == models.ChannelMatchFrame {
		h.broadcastAdmin(msg)
	}
	for _, c := range failed {
		h.Drop(c)
	}
}

func (h *Hub) broadcastAll(msg []byte) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.open))
	for c := range h.open {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if !c.Send(msg) {
			h.Drop(c)
		}
	}
}

func (h *Hub) broadcastAdmin(msg []byte) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.admin))
	for c := range h.admin {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if !c.Send(msg) {
			h.Drop(c)
		}
	}
}

// statsLoop pushes the connection-statistics snapshot to admin connections
// on a fixed interval.
func (h *Hub) statsLoop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := h.Snapshot()
			msg, err := json.Marshal(outbound{Type: "status", Data: mustRaw(snap)})
			if err != nil {
				continue
			}
			h.broadcastAdmin(msg)
		}
	}
}

// Snapshot reports total open connections plus per-match subscriber counts.
func (h *Hub) Snapshot() Stats {
	s := h.reg.Snapshot()
	h.mu.Lock()
	s.TotalConnections = len(h.open)
	h.mu.Unlock()
	return s
}

// Attach registers an accepted connection with the hub and starts its
// write pump. matchID > 0 binds the connection to a fixed match
// immediately; admin marks it as a monitor connection.
func (h *Hub) Attach(c *Conn, matchID int64, admin bool) {
	c.fixedMatch = matchID
	c.admin = admin

	h.mu.Lock()
	h.open[c] = struct{}{}
	if admin {
		h.admin[c] = struct{}{}
	}
	total := len(h.open)
	h.mu.Unlock()
	h.metrics.SetLiveConnections(total)

	if matchID > 0 {
		h.reg.Subscribe(c, matchID)
	}

	go c.writePump()

	est, _ := json.Marshal(outbound{Type: "connection_established", Data: mustRaw(map[string]interface{}{
		"match_id": matchID,
		"admin":    admin,
	})})
	c.Send(est)
}

// Drop removes a connection from the registry and the open set and closes
// it. Safe to call more than once.
func (h *Hub) Drop(c *Conn) {
	h.reg.Remove(c)

	h.mu.Lock()
	delete(h.open, c)
	delete(h.admin, c)
	total := len(h.open)
	h.mu.Unlock()
	h.metrics.SetLiveConnections(total)

	c.Close()
}

func mustRaw(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(b)
}
