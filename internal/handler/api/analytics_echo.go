package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"PetroPulse/internal/domain/models"
	domrepo "PetroPulse/internal/domain/repository"
	domsvc "PetroPulse/internal/domain/service"
	"PetroPulse/internal/service/ratelimit"
	"PetroPulse/internal/services/forecast"
	"PetroPulse/internal/usecase"
	xhttp "PetroPulse/pkg/http"
	xlogger "PetroPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AnalyticsEchoHandler exposes the analytics core over HTTP.
type AnalyticsEchoHandler struct {
	logger       *xlogger.Logger
	orch         *usecase.Orchestrator
	rl           *ratelimit.Limiter
	rateCapacity float64
	rateRefill   float64
	stream       *SnapshotStream
	health       func(ctx context.Context) error
	forecaster   domsvc.Forecaster
	store        domrepo.ModelStore
}

func NewAnalyticsEchoHandler(logger *xlogger.Logger, orch *usecase.Orchestrator, rateCapacity, rateRefill float64) *AnalyticsEchoHandler {
	return &AnalyticsEchoHandler{
		logger:       logger,
		orch:         orch,
		rl:           ratelimit.New(),
		rateCapacity: rateCapacity,
		rateRefill:   rateRefill,
	}
}

// SetStream attaches the websocket snapshot stream.
func (h *AnalyticsEchoHandler) SetStream(s *SnapshotStream) { h.stream = s }

// SetHealthCheck attaches a dependency health probe for /healthz.
func (h *AnalyticsEchoHandler) SetHealthCheck(fn func(ctx context.Context) error) { h.health = fn }

// SetModelStore enables serving forecasts from persisted model states
// when no snapshot has been computed since startup.
func (h *AnalyticsEchoHandler) SetModelStore(f domsvc.Forecaster, store domrepo.ModelStore) {
	h.forecaster = f
	h.store = store
}

func (h *AnalyticsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api")
	g.POST("/refresh", h.Refresh)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/summary", h.Summary)
	g.GET("/maintenance", h.Maintenance)
	g.GET("/forecast/:series", h.Forecast)

	if h.stream != nil {
		e.GET("/ws/snapshots", h.stream.Serve)
	}
}

func (h *AnalyticsEchoHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if !h.rl.Allow(c.RealIP()+":refresh", h.rateCapacity, h.rateRefill) {
		h.logger.Warn("refresh rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh rate limit exceeded"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Duration(req.TimeoutMS)*time.Millisecond)
	defer cancel()

	snap, err := h.orch.Refresh(ctx, req.Market, req.Equipment)
	if err != nil {
		h.logger.Error("refresh failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, refreshError(err))
	}

	return xhttp.SuccessResponse(c, snap)
}

func (h *AnalyticsEchoHandler) Snapshot(c echo.Context) error {
	state := h.orch.Status()
	body := map[string]interface{}{
		"state":    state,
		"snapshot": nil,
		"previous": nil,
	}
	if snap, ok := h.orch.CurrentSnapshot(); ok {
		body["snapshot"] = snap
	}
	if prev, ok := h.orch.PreviousSnapshot(); ok {
		body["previous"] = prev
	}
	return xhttp.DataResponse(c, http.StatusOK, body)
}

func (h *AnalyticsEchoHandler) Summary(c echo.Context) error {
	snap, ok := h.orch.CurrentSnapshot()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no snapshot computed yet"))
	}
	return xhttp.SuccessResponse(c, snap.Summary)
}

func (h *AnalyticsEchoHandler) Maintenance(c echo.Context) error {
	req := &models.MaintenanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, ok := h.orch.CurrentSnapshot()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no snapshot computed yet"))
	}

	items := snap.Maintenance
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return xhttp.ListResponse(c, items, int64(len(snap.Maintenance)))
}

// Forecast serves one series' forecast from the current snapshot, falling
// back to the persisted model state so a restarted instance can answer
// before its first refresh.
func (h *AnalyticsEchoHandler) Forecast(c echo.Context) error {
	seriesID := c.Param("series")

	if snap, ok := h.orch.CurrentSnapshot(); ok {
		for _, f := range snap.Forecasts {
			if f.SeriesID == seriesID {
				return xhttp.SuccessResponse(c, f)
			}
		}
	}

	if h.store == nil || h.forecaster == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no forecast for series "+seriesID))
	}

	var state forecast.ModelState
	found, err := h.store.LoadForecastState(seriesID, &state)
	if err != nil {
		h.logger.Error("model state load failed", xlogger.String("series", seriesID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("model state load failed").WithError(err))
	}
	if !found {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no forecast for series "+seriesID))
	}

	horizon := xhttp.ParseIntDefault(c.QueryParam("horizon"), 0)
	res, err := h.forecaster.Predict(&state, horizon)
	if err != nil {
		h.logger.Error("forecast from stored state failed", xlogger.String("series", seriesID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("forecast failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsEchoHandler) Healthz(c echo.Context) error {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// refreshError maps domain failures onto HTTP statuses: timeouts to 504,
// unusable input to 422, everything else to 500.
func refreshError(err error) error {
	if errors.Is(err, models.ErrRefreshTimeout) {
		return xhttp.GatewayTimeoutError(err.Error()).WithError(err)
	}

	var dq *models.DataQualityError
	var ih *models.InsufficientHistoryError
	if errors.As(err, &dq) || errors.As(err, &ih) {
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	}

	return xhttp.InternalError("refresh failed").WithError(err)
}
