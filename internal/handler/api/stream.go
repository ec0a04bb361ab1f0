package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MatchPulse/internal/ws"
	applogger "MatchPulse/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamHandler exposes the live websocket endpoints: one match-scoped
// stream and one admin monitor stream.
type StreamHandler struct {
	hub    *ws.Hub
	logger *applogger.Logger
}

// NewStreamHandler creates the websocket handler.
func NewStreamHandler(hub *ws.Hub, logger *applogger.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// RegisterRoutes registers the websocket routes.
func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/matches/:id", h.handleMatch)
	e.GET("/ws/live", h.handleLive)
	e.GET("/ws/admin", h.handleAdmin)
}

// handleMatch opens a connection bound to one match; it is subscribed
// immediately and cannot be re-pointed at another match.
func (h *StreamHandler) handleMatch(c echo.Context) error {
	matchID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || matchID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid match id")
	}

	wsc, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	h.hub.Serve(wsc, matchID, false)
	return nil
}

// handleLive opens a free connection; the client picks a match with a
// subscribe message and may replace the affinity later.
func (h *StreamHandler) handleLive(c echo.Context) error {
	wsc, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	h.hub.Serve(wsc, 0, false)
	return nil
}

// handleAdmin opens a monitor connection receiving the periodic
// connection-statistics snapshot and every match frame.
func (h *StreamHandler) handleAdmin(c echo.Context) error {
	wsc, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	h.hub.Serve(wsc, 0, true)
	return nil
}
