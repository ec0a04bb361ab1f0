package ws

import (
	"github.com/gorilla/websocket"

	applogger "MatchPulse/pkg/logger"
)

// Serve attaches an upgraded websocket connection to the hub and runs its
// read loop until the peer goes away. It blocks the caller (the HTTP
// handler goroutine), which is one task per open connection.
func (h *Hub) Serve(wsc *websocket.Conn, matchID int64, admin bool) {
	c := newConn(wsc)
	h.Attach(c, matchID, admin)
	defer h.Drop(c)

	wsc.SetReadLimit(4096)
	for {
		_, raw, err := wsc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", applogger.Error(err))
			}
			return
		}
		h.HandleInbound(c, raw)
	}
}
