package api

import (
	"context"
	"errors"
	"fmt"

	"Screener/internal/domain/models"
	domsvc "Screener/internal/domain/service"
	"Screener/internal/service/ratelimit"
	"Screener/internal/usecase"
	xhttp "Screener/pkg/http"
	xlogger "Screener/pkg/logger"
	"Screener/pkg/queue"
	"Screener/pkg/util"

	"github.com/labstack/echo/v4"
)

// ScreenerEchoHandler exposes screens, roster management and sync triggers.
type ScreenerEchoHandler struct {
	logger   *xlogger.Logger
	screener *usecase.Screener
	runner   *usecase.SyncRunner
	queue    queue.QueueService
	limiter  *ratelimit.Limiter
}

// NewScreenerEchoHandler builds the handler. q may be nil, in which case
// asynchronous syncs run in a background goroutine of this process.
func NewScreenerEchoHandler(logger *xlogger.Logger, screener *usecase.Screener, runner *usecase.SyncRunner, q queue.QueueService, limiter *ratelimit.Limiter) *ScreenerEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ScreenerEchoHandler{logger: logger, screener: screener, runner: runner, queue: q, limiter: limiter}
}

func (h *ScreenerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/universes", h.Universes)
	g.GET("/roster", h.Roster)
	g.POST("/roster/refresh", h.RefreshRoster, RateLimit(h.limiter))
	g.POST("/sync", h.Sync, RateLimit(h.limiter))
	g.GET("/sync/coverage", h.Coverage)
	g.GET("/screen", h.Screen)
	g.GET("/lookup", h.Lookup, RateLimit(h.limiter))
}

func (h *ScreenerEchoHandler) Health(c echo.Context) error {
	body := map[string]interface{}{
		"status":       "ok",
		"sync_running": h.runner.Engine().Running(),
	}
	if sr, ok := h.queue.(queue.StatsReporter); ok {
		if st, err := sr.Stats(c.Request().Context()); err == nil {
			body["queue"] = st
		} else {
			h.logger.Warn("queue stats unavailable", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, body)
}

func (h *ScreenerEchoHandler) Universes(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.screener.Universes())
}

func (h *ScreenerEchoHandler) Roster(c echo.Context) error {
	req := &models.UniverseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	roster, err := h.screener.Roster(c.Request().Context(), req.Universe)
	if err != nil {
		return h.fail(c, "roster", err)
	}
	return xhttp.ListResponse(c, roster, int64(len(roster)))
}

func (h *ScreenerEchoHandler) RefreshRoster(c echo.Context) error {
	req := &models.UniverseRequest{}
	if verr := xhttp.ReadQueryAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	roster, err := h.screener.RefreshRoster(c.Request().Context(), req.Universe)
	if err != nil {
		return h.fail(c, "roster refresh", err)
	}
	return xhttp.ListResponse(c, roster, int64(len(roster)))
}

func (h *ScreenerEchoHandler) Sync(c echo.Context) error {
	req := &models.SyncHTTPRequest{}
	if verr := xhttp.ReadQueryAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, ok := h.universe(req.Universe); !ok {
		return h.fail(c, "sync", fmt.Errorf("%w: %s", usecase.ErrUnknownUniverse, req.Universe))
	}
	sreq := models.SyncRequest{Universe: req.Universe, AsOf: req.AsOf}
	if sreq.AsOf == "" {
		sreq.AsOf = util.FormatDate(h.screener.Today())
	}

	if req.Async {
		if h.runner.Engine().Running() {
			return h.fail(c, "sync", usecase.ErrSyncInProgress)
		}
		return h.enqueue(c, sreq)
	}

	report, err := h.runner.Run(c.Request().Context(), sreq)
	if err != nil {
		return h.fail(c, "sync", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *ScreenerEchoHandler) enqueue(c echo.Context, req models.SyncRequest) error {
	data := xhttp.AcceptedResponseData{JobID: req.JobKey(), Queue: usecase.SyncJobType}
	if h.queue != nil {
		err := h.queue.PublishMessage(c.Request().Context(), usecase.SyncJobType, req)
		if errors.Is(err, queue.ErrDuplicate) {
			return xhttp.AcceptedResponse(c, data)
		}
		if err != nil {
			h.logger.Error("enqueue sync failed", xlogger.String("universe", req.Universe), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("could not queue sync").WithError(err))
		}
		return xhttp.AcceptedResponse(c, data)
	}

	data.Queue = "inline"
	go func(ctx context.Context) {
		if _, err := h.runner.Run(ctx, req); err != nil && !errors.Is(err, usecase.ErrSyncInProgress) {
			h.logger.Error("background sync failed", xlogger.String("universe", req.Universe), xlogger.Error(err))
		}
	}(context.WithoutCancel(c.Request().Context()))
	return xhttp.AcceptedResponse(c, data)
}

func (h *ScreenerEchoHandler) Coverage(c echo.Context) error {
	req := &models.CoverageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf := util.ParseDateDefault(req.AsOf, h.screener.Today())
	cov, err := h.screener.Coverage(c.Request().Context(), req.Universe, asOf)
	if err != nil {
		return h.fail(c, "coverage", err)
	}
	return xhttp.SuccessResponse(c, cov)
}

func (h *ScreenerEchoHandler) Screen(c echo.Context) error {
	req := &models.ScreenRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if c.QueryParam("min_roe") == "" {
		req.MinROE = models.DefaultMinROE
	}
	if c.QueryParam("max_peg") == "" {
		req.MaxPEG = models.DefaultMaxPEG
	}
	asOf := util.ParseDateDefault(req.AsOf, h.screener.Today())

	res, err := h.screener.Screen(c.Request().Context(), req.Universe, asOf, req.MinROE, req.MaxPEG)
	if err != nil {
		return h.fail(c, "screen", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScreenerEchoHandler) Lookup(c echo.Context) error {
	req := &models.LookupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.screener.Lookup(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "lookup", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *ScreenerEchoHandler) universe(name string) (string, bool) {
	for _, u := range h.screener.Universes() {
		if u == name {
			return u, true
		}
	}
	return "", false
}

// fail maps usecase errors onto the API error envelope.
func (h *ScreenerEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnknownUniverse):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	case errors.Is(err, usecase.ErrSyncInProgress):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a sync is already running").WithError(err))
	case errors.Is(err, domsvc.ErrFetch):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no metrics available").WithError(err))
	}
	h.logger.Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("Something went wrong").WithError(err))
}
