package ws

import (
	"encoding/json"
	"fmt"

	"MatchPulse/internal/domain/models"
)

// inbound is the client-to-server message shape.
type inbound struct {
	Type      string   `json:"type"`
	MatchID   int64    `json:"match_id,omitempty"`
	DataTypes []string `json:"data_types,omitempty"`
}

// outbound is the server-to-client envelope. Forwarded channel payloads are
// carried verbatim under Data with Type set to the channel name.
type outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func errorMessage(format string, args ...interface{}) []byte {
	b, _ := json.Marshal(outbound{
		Type: "error",
		Data: mustRaw(map[string]string{"message": fmt.Sprintf(format, args...)}),
	})
	return b
}

var validDataTypes = map[string]bool{
	models.ChannelOddsTicks:  true,
	models.ChannelEventTicks: true,
	models.ChannelStatTicks:  true,
}

// HandleInbound processes one client message and sends any synchronous
// response on the connection. Malformed input and unknown types produce an
// error response without terminating the connection.
func (h *Hub) HandleInbound(c *Conn, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(errorMessage("malformed message: %v", err))
		return
	}

	switch msg.Type {
	case "ping":
		b, _ := json.Marshal(outbound{Type: "pong"})
		c.Send(b)

	case "subscribe":
		h.handleSubscribe(c, msg)

	case "unsubscribe":
		if msg.MatchID == 0 {
			c.Send(errorMessage("unsubscribe requires match_id"))
			return
		}
		h.reg.Unsubscribe(c, msg.MatchID)
		b, _ := json.Marshal(outbound{Type: "subscription_confirmed", Data: mustRaw(map[string]interface{}{
			"match_id":   msg.MatchID,
			"subscribed": false,
		})})
		c.Send(b)

	case "get_status":
		b, _ := json.Marshal(outbound{Type: "status", Data: mustRaw(h.Snapshot())})
		c.Send(b)

	case "":
		c.Send(errorMessage("message type is required"))

	default:
		c.Send(errorMessage("unrecognized message type %q", msg.Type))
	}
}

func (h *Hub) handleSubscribe(c *Conn, msg inbound) {
	for _, dt := range msg.DataTypes {
		if !validDataTypes[dt] {
			c.Send(errorMessage("unknown data type %q", dt))
			return
		}
	}
	c.setDataTypes(msg.DataTypes)

	if msg.MatchID != 0 {
		// Match-scoped endpoints are bound at connect time; only free
		// connections may pick or replace a match affinity.
		if c.fixedMatch != 0 && msg.MatchID != c.fixedMatch {
			c.Send(errorMessage("connection is bound to match %d", c.fixedMatch))
			return
		}
		h.reg.Subscribe(c, msg.MatchID)
	}

	matchID, _ := h.reg.MatchFor(c)
	b, _ := json.Marshal(outbound{Type: "subscription_confirmed", Data: mustRaw(map[string]interface{}{
		"match_id":   matchID,
		"subscribed": matchID != 0,
		"data_types": msg.DataTypes,
	})})
	c.Send(b)
}
