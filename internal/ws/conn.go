package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Conn is one client connection. Outbound messages go through a buffered
// send channel drained by writePump; a full buffer or write error marks the
// connection dead and the hub removes it.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	// fixedMatch is non-zero when the connection was opened against a
	// match-scoped endpoint; re-subscription is rejected for those.
	fixedMatch int64
	admin      bool

	// dataTypes filters which tick channels are forwarded; empty means all.
	dataTypes map[string]bool
}

func newConn(wsc *websocket.Conn) *Conn {
	return &Conn{
		ws:   wsc,
		send: make(chan []byte, sendBufferSize),
	}
}

// Send enqueues a message. Returns false when the connection is closed or
// its buffer is full; the caller schedules removal. The mutex is held
// across the enqueue so Close cannot close the channel under an in-flight
// send; the select never blocks, so no caller waits on it.
func (c *Conn) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close marks the connection closed and closes the send channel once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// wantsChannel reports whether the data-type filter admits a channel.
// Only tick channels are filterable; frame channels always pass.
func (c *Conn) wantsChannel(channel string) bool {
	if !validDataTypes[channel] {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.dataTypes) == 0 {
		return true
	}
	return c.dataTypes[channel]
}

func (c *Conn) setDataTypes(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(types) == 0 {
		c.dataTypes = nil
		return
	}
	c.dataTypes = make(map[string]bool, len(types))
	for _, t := range types {
		c.dataTypes[t] = true
	}
}

// writePump drains the send channel onto the socket, interleaving pings.
// One writePump per connection; it owns all writes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
