package api

import (
	"github.com/labstack/echo/v4"

	xhttp "TrendForge/pkg/http"
)

// Composite registers multiple route groups as one handler.
type Composite struct {
	handlers []xhttp.Handler
}

func NewComposite(handlers ...xhttp.Handler) *Composite {
	return &Composite{handlers: handlers}
}

func (c *Composite) RegisterRoutes(e *echo.Echo) {
	for _, h := range c.handlers {
		h.RegisterRoutes(e)
	}
}
