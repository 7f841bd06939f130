package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"TrendForge/internal/domain/models"
	xhttp "TrendForge/pkg/http"
)

// Actor identity headers set by the back-office gateway. Authentication
// happens upstream; only the capability check lives in this service.
const (
	headerActor = "X-Actor"
	headerRole  = "X-Actor-Role"
)

func actorFrom(c echo.Context) (actor, role string) {
	return c.Request().Header.Get(headerActor), c.Request().Header.Get(headerRole)
}

// domainErrorResponse maps domain sentinel errors onto the API envelope.
func domainErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundResponse(c, err.Error())
	case errors.Is(err, models.ErrPermissionDenied):
		return xhttp.ForbiddenResponse(c, err.Error())
	case errors.Is(err, models.ErrDuplicate),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrRebuildInProgress):
		return xhttp.DataResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidSymbol),
		errors.Is(err, models.ErrInvalidSource):
		return xhttp.BadRequestResponse(c, err.Error())
	default:
		return xhttp.AppErrorResponse(c, err)
	}
}
