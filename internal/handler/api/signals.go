package api

import (
	"github.com/labstack/echo/v4"

	"TrendForge/internal/domain/models"
	"TrendForge/internal/usecase"
	xhttp "TrendForge/pkg/http"
	xlogger "TrendForge/pkg/logger"
)

// SignalsHandler exposes signal intake, attestation and the admin
// review surface.
type SignalsHandler struct {
	logger *xlogger.Logger
	intake *usecase.SignalIntake
	engine *usecase.ConsensusEngine
}

func NewSignalsHandler(logger *xlogger.Logger, intake *usecase.SignalIntake, engine *usecase.ConsensusEngine) *SignalsHandler {
	return &SignalsHandler{logger: logger, intake: intake, engine: engine}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/signals")
	g.POST("", h.Ingest)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/attestations", h.Attest)
	g.GET("/:id/audit", h.Audit)

	admin := e.Group("/api/admin/signals")
	admin.POST("/:id/approve", h.Approve)
	admin.POST("/:id/reject", h.Reject)
	admin.POST("/:id/flag", h.Flag)
	admin.PUT("/:id/confidence", h.UpdateConfidence)

	cons := e.Group("/api/admin/consensus")
	cons.GET("/thresholds", h.GetThresholds)
	cons.PUT("/thresholds", h.UpdateThresholds)
	cons.POST("/sync", h.ForceSync)

	e.POST("/api/admin/maintenance", h.SetMaintenance)
}

func (h *SignalsHandler) Ingest(c echo.Context) error {
	req := &models.IngestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, err := h.intake.Ingest(c.Request().Context(), req.SourceKey, req.Symbol, models.EventTime(req.DetectedAt), req.Metrics)
	if err != nil {
		h.logger.Error("signal ingest error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, sig)
}

func (h *SignalsHandler) List(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	signals, err := h.engine.ListSignals(c.Request().Context(), models.SignalFilter{
		SourceKey:     req.SourceKey,
		Status:        models.SignalStatus(req.Status),
		MaxConfidence: req.MaxConfidence,
		MinRisk:       req.MinRisk,
		Limit:         req.Limit,
	})
	if err != nil {
		h.logger.Error("signal list error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}

func (h *SignalsHandler) Get(c echo.Context) error {
	sig, atts, err := h.engine.GetSignal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"signal":       sig,
		"attestations": atts,
	})
}

func (h *SignalsHandler) Attest(c echo.Context) error {
	req := &models.SubmitAttestationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.engine.SubmitAttestation(c.Request().Context(), c.Param("id"), req.NodeID, req.LocalConfidence, req.DeceptionFlag)
	if err != nil {
		h.logger.Error("attestation error",
			xlogger.String("signal_id", c.Param("id")),
			xlogger.String("node_id", req.NodeID),
			xlogger.Error(err),
		)
		return domainErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *SignalsHandler) Audit(c echo.Context) error {
	entries, err := h.engine.AuditTrail(c.Request().Context(), "signal", c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *SignalsHandler) Approve(c echo.Context) error {
	req := &models.SignalDecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	sig, err := h.engine.ApproveSignal(c.Request().Context(), actor, role, c.Param("id"), req.Reason)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsHandler) Reject(c echo.Context) error {
	req := &models.SignalDecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	sig, err := h.engine.RejectSignal(c.Request().Context(), actor, role, c.Param("id"), req.Reason)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsHandler) Flag(c echo.Context) error {
	req := &models.SignalDecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	sig, err := h.engine.FlagSignal(c.Request().Context(), actor, role, c.Param("id"), req.Reason)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsHandler) GetThresholds(c echo.Context) error {
	th, err := h.engine.CurrentThresholds(c.Request().Context())
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, th)
}

func (h *SignalsHandler) UpdateThresholds(c echo.Context) error {
	req := &models.UpdateThresholdsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	th, err := h.engine.UpdateThresholds(c.Request().Context(), actor, role,
		req.MinAttestors, req.AutoApproveThreshold, req.RiskCeiling, req.Reason)
	if err != nil {
		h.logger.Error("thresholds update error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, th)
}

func (h *SignalsHandler) ForceSync(c echo.Context) error {
	actor, role := actorFrom(c)

	evaluated, err := h.engine.ForceSync(c.Request().Context(), actor, role)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"evaluated": evaluated})
}

func (h *SignalsHandler) SetMaintenance(c echo.Context) error {
	req := &models.MaintenanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	if err := h.intake.SetMaintenance(c.Request().Context(), actor, role, req.Enabled, req.Reason); err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"enabled": req.Enabled})
}

func (h *SignalsHandler) UpdateConfidence(c echo.Context) error {
	req := &models.UpdateConfidenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	sig, err := h.engine.UpdateSignalConfidence(c.Request().Context(), actor, role, c.Param("id"), req.Confidence, req.Reason)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}
