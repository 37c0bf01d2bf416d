package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/counter"
	"github.com/iliyamo/cinema-seat-checkout/internal/holdctl"
	"github.com/iliyamo/cinema-seat-checkout/internal/page"
	"github.com/iliyamo/cinema-seat-checkout/internal/ticket"
)

// writeError maps component errors to HTTP responses.
func writeError(c echo.Context, err error) error {
	var verr *counter.ValidationError
	var aerr *api.Error
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, page.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "page not found"})
	case errors.Is(err, holdctl.ErrEmptySelection):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "select at least one seat"})
	case errors.Is(err, page.ErrCheckoutDisabled), errors.Is(err, page.ErrNotCounter):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, holdctl.ErrClosed), errors.Is(err, checkout.ErrClosed):
		return c.JSON(http.StatusGone, echo.Map{"error": "page is closed"})
	case errors.Is(err, api.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
	case errors.Is(err, api.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": api.UserMessage(err, "seat already held")})
	case errors.Is(err, checkout.ErrHoldExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "hold expired, choose seats again"})
	case errors.Is(err, counter.ErrNoTicket), errors.Is(err, ticket.ErrNoQR):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.As(err, &aerr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": api.UserMessage(err, "booking service error")})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": api.UserMessage(err, "internal error")})
}
