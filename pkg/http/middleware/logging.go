package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "MatchPulse/pkg/logger"
)

// RequestLogging logs one structured line per request. Websocket routes
// log on connection close, carrying the full session duration.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			l.Debug("http request",
				applogger.String("method", req.Method),
				applogger.String("path", req.URL.Path),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency_ms", time.Since(start)),
			)
			return err
		}
	}
}
