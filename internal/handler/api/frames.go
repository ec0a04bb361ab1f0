package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	drepo "MatchPulse/internal/domain/repository"
	"MatchPulse/internal/usecase"
	xhttp "MatchPulse/pkg/http"
	applogger "MatchPulse/pkg/logger"
	xutil "MatchPulse/pkg/util"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 5000
)

// FramesHandler exposes the small read API the monitor pages and probes
// use: the current frame for a match, stored odds history and a health
// endpoint.
type FramesHandler struct {
	agg    *usecase.FrameAggregator
	ticks  drepo.TickStore
	health func() error
	logger *applogger.Logger
}

// NewFramesHandler creates the read-API handler. health pings the backing
// stores.
func NewFramesHandler(agg *usecase.FrameAggregator, ticks drepo.TickStore, health func() error, logger *applogger.Logger) *FramesHandler {
	return &FramesHandler{agg: agg, ticks: ticks, health: health, logger: logger}
}

// RegisterRoutes registers the read API routes.
func (h *FramesHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/matches/:id/frame", h.getFrame)
	e.GET("/api/v1/matches/:id/odds", h.getOddsHistory)
	e.GET("/healthz", h.getHealth)
}

func matchIDParam(c echo.Context) (int64, error) {
	matchID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || matchID <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid match id")
	}
	return matchID, nil
}

type getFrameRequest struct {
	Pretty bool `query:"pretty" default:"false"`
}

func (h *FramesHandler) getFrame(c echo.Context) error {
	matchID, err := matchIDParam(c)
	if err != nil {
		return err
	}

	var req getFrameRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	summary, err := h.agg.ComposeFrame(c.Request().Context(), matchID)
	if err != nil {
		h.logger.Error("frame read failed",
			applogger.Int64("match_id", matchID),
			applogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("frame read failed").WithError(err))
	}
	if summary == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no current frame for match %d", matchID))
	}

	if req.Pretty {
		return c.JSONPretty(http.StatusOK, summary, "  ")
	}
	return xhttp.SuccessResponse(c, summary)
}

// getOddsHistory reads stored odds ticks inside an optional time range.
// Range bounds are aligned to minute boundaries to match the compacted
// views' bucketing.
func (h *FramesHandler) getOddsHistory(c echo.Context) error {
	matchID, err := matchIDParam(c)
	if err != nil {
		return err
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	if !to.After(from) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("to must be after from"))
	}
	from, to = xutil.AlignFromTo(from, to, "1m")

	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	ticks, err := h.ticks.OddsHistory(c.Request().Context(), matchID, from, to, limit)
	if err != nil {
		h.logger.Error("odds history read failed",
			applogger.Int64("match_id", matchID),
			applogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("odds history read failed").WithError(err))
	}

	return xhttp.ListResponse(c, ticks, int64(len(ticks)))
}

func (h *FramesHandler) getHealth(c echo.Context) error {
	if err := h.health(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
