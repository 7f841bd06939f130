package api

import (
	"github.com/labstack/echo/v4"

	"TrendForge/internal/domain/models"
	"TrendForge/internal/usecase"
	xhttp "TrendForge/pkg/http"
	xlogger "TrendForge/pkg/logger"
)

// OracleHandler exposes the source and validator node registries.
type OracleHandler struct {
	logger   *xlogger.Logger
	registry *usecase.OracleRegistry
}

func NewOracleHandler(logger *xlogger.Logger, registry *usecase.OracleRegistry) *OracleHandler {
	return &OracleHandler{logger: logger, registry: registry}
}

func (h *OracleHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/admin/oracle")
	g.GET("/sources", h.ListSources)
	g.GET("/sources/:key", h.GetSource)
	g.POST("/sources", h.RegisterSource)
	g.PUT("/sources/:key/health", h.UpdateHealth)
	g.PUT("/sources/:key/mode", h.SetMode)

	g.GET("/nodes", h.ListNodes)
	g.POST("/nodes", h.AddNode)
	g.PUT("/nodes/:id/enabled", h.SetNodeEnabled)
	g.PUT("/nodes/:id/key", h.RotateNodeKey)
	g.POST("/nodes/:id/restart", h.RestartNode)
}

func (h *OracleHandler) ListSources(c echo.Context) error {
	sources, err := h.registry.ListSources(c.Request().Context())
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, sources, int64(len(sources)))
}

func (h *OracleHandler) GetSource(c echo.Context) error {
	src, err := h.registry.GetSource(c.Request().Context(), c.Param("key"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, src)
}

func (h *OracleHandler) RegisterSource(c echo.Context) error {
	req := &models.RegisterSourceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	src, err := h.registry.RegisterSource(c.Request().Context(), actor, role, req.SourceKey, models.SourceMode(req.Mode), "")
	if err != nil {
		h.logger.Error("source register error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, src)
}

func (h *OracleHandler) UpdateHealth(c echo.Context) error {
	req := &models.UpdateHealthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	src, err := h.registry.UpdateHealth(c.Request().Context(), actor, role, c.Param("key"),
		models.HealthStatus(req.Status), req.ConfidenceScore, req.DeceptionRisk)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, src)
}

func (h *OracleHandler) SetMode(c echo.Context) error {
	req := &models.SetModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	src, err := h.registry.SetMode(c.Request().Context(), actor, role, c.Param("key"), models.SourceMode(req.Mode))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, src)
}

func (h *OracleHandler) ListNodes(c echo.Context) error {
	nodes, err := h.registry.ListNodes(c.Request().Context())
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, nodes, int64(len(nodes)))
}

func (h *OracleHandler) AddNode(c echo.Context) error {
	req := &models.AddNodeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	// new nodes start at neutral trust
	node, err := h.registry.AddNode(c.Request().Context(), actor, role, req.NodeID, req.Region, req.KeyFingerprint, 50)
	if err != nil {
		h.logger.Error("node add error", xlogger.Error(err))
		return domainErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, node)
}

func (h *OracleHandler) SetNodeEnabled(c echo.Context) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	actor, role := actorFrom(c)

	node, err := h.registry.SetNodeEnabled(c.Request().Context(), actor, role, c.Param("id"), req.Enabled)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, node)
}

func (h *OracleHandler) RestartNode(c echo.Context) error {
	actor, role := actorFrom(c)

	node, err := h.registry.RestartNode(c.Request().Context(), actor, role, c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, node)
}

func (h *OracleHandler) RotateNodeKey(c echo.Context) error {
	req := &models.RotateNodeKeyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	actor, role := actorFrom(c)

	node, err := h.registry.RotateNodeKey(c.Request().Context(), actor, role, c.Param("id"), req.KeyFingerprint)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, node)
}
