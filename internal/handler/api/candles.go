package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"TrendForge/internal/domain/models"
	domrepo "TrendForge/internal/domain/repository"
	"TrendForge/internal/usecase"
	xhttp "TrendForge/pkg/http"
	xlogger "TrendForge/pkg/logger"
)

// CandlesHandler exposes the candle query surface plus rule and
// rebuild administration.
type CandlesHandler struct {
	logger    *xlogger.Logger
	candles   *usecase.CandlesUseCase
	rules     *usecase.RuleAdmin
	scheduler *usecase.RebuildScheduler
}

func NewCandlesHandler(logger *xlogger.Logger, candles *usecase.CandlesUseCase, rules *usecase.RuleAdmin, scheduler *usecase.RebuildScheduler) *CandlesHandler {
	return &CandlesHandler{logger: logger, candles: candles, rules: rules, scheduler: scheduler}
}

func (h *CandlesHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/candles", h.GetCandles)

	rules := e.Group("/api/admin/rules")
	rules.GET("", h.Markets)
	rules.GET("/:market", h.CurrentRule)
	rules.GET("/:market/versions/:version", h.RuleVersion)
	rules.PUT("/:market", h.UpsertRule)

	rb := e.Group("/api/admin/rebuilds")
	rb.POST("/:market", h.RequestRebuild)
	rb.GET("/:id", h.GetRebuild)
	rb.POST("/:id/resume", h.ResumeRebuild)
	rb.POST("/:id/cancel", h.CancelRebuild)
}

func (h *CandlesHandler) GetCandles(c echo.Context) error {
	req := &models.CandleQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Market:    req.Market,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("candle query error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *CandlesHandler) Markets(c echo.Context) error {
	markets, err := h.rules.Markets(c.Request().Context())
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, markets, int64(len(markets)))
}

func (h *CandlesHandler) CurrentRule(c echo.Context) error {
	rule, err := h.rules.CurrentRule(c.Request().Context(), c.Param("market"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *CandlesHandler) RuleVersion(c echo.Context) error {
	version := xhttp.ParseIntDefault(c.Param("version"), 0)
	rule, err := h.rules.RuleVersion(c.Request().Context(), c.Param("market"), version)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *CandlesHandler) UpsertRule(c echo.Context) error {
	req := &models.UpsertRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	rule, err := h.rules.UpsertRule(c.Request().Context(), actor, role, c.Param("market"),
		req.Weights, req.Smoothing, req.SmoothingPeriod, req.Timeframes)
	if err != nil {
		h.logger.Error("rule upsert error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, rule)
}

func (h *CandlesHandler) RequestRebuild(c echo.Context) error {
	req := &models.RebuildRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	job, err := h.scheduler.Request(c.Request().Context(), actor, role, c.Param("market"),
		domrepo.Timeframe(req.Timeframe), models.EventTime(req.Start), models.EventTime(req.End), req.Force)
	if err != nil {
		h.logger.Error("rebuild request error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, job)
}

func (h *CandlesHandler) GetRebuild(c echo.Context) error {
	job, err := h.scheduler.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *CandlesHandler) ResumeRebuild(c echo.Context) error {
	actor, role := actorFrom(c)
	job, err := h.scheduler.Resume(c.Request().Context(), actor, role, c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *CandlesHandler) CancelRebuild(c echo.Context) error {
	actor, role := actorFrom(c)
	job, err := h.scheduler.Cancel(c.Request().Context(), actor, role, c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, job)
}
