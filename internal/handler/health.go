package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness check.  It reports the number of live pages so
// an operator can tell an idle kiosk from a busy one.
func (h *PageHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "pages": h.Registry.Len()})
}
