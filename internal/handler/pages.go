package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/middleware"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/page"
)

// HeaderSession names the kiosk session a page belongs to.  Pages of the
// same session share the hold journal.
const HeaderSession = "X-Kiosk-Session"

// PageHandler exposes page instances to the kiosk front-end.  All methods
// assume JWTAuth has run.
type PageHandler struct {
	Deps     *page.Deps
	Registry *page.Registry
	Log      *logger.Logger
}

// NewPageHandler builds a handler; deps and registry must be non-nil.
func NewPageHandler(deps *page.Deps, registry *page.Registry, log *logger.Logger) *PageHandler {
	if deps == nil || registry == nil {
		panic("nil dependency passed to NewPageHandler")
	}
	return &PageHandler{Deps: deps, Registry: registry, Log: logger.Or(log).WithComponent("handler")}
}

type mountSeatsRequest struct {
	ShowtimeID   int64        `json:"showtimeId"`
	MovieID      int64        `json:"movieId"`
	Seats        []model.Seat `json:"seats"`
	MaxSelection int          `json:"maxSelection"`
}

type mountResponse struct {
	ID   string `json:"id"`
	View any    `json:"view"`
}

func who(c echo.Context) identity.Identity {
	id, _ := middleware.Identity(c)
	return id
}

func session(c echo.Context, id identity.Identity) string {
	if s := strings.TrimSpace(c.Request().Header.Get(HeaderSession)); s != "" {
		return s
	}
	return "user-" + strconv.FormatInt(id.UserID, 10)
}

// MountSeats handles POST /v1/pages/seats.
func (h *PageHandler) MountSeats(c echo.Context) error {
	return h.mountSeats(c, false)
}

func (h *PageHandler) mountSeats(c echo.Context, counter bool) error {
	var body mountSeatsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ShowtimeID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtimeId is required"})
	}
	id := who(c)
	sp, err := page.MountSeats(c.Request().Context(), h.Deps, page.SeatParams{
		ShowtimeID:   body.ShowtimeID,
		MovieID:      body.MovieID,
		Seats:        body.Seats,
		MaxSelection: body.MaxSelection,
		Identity:     id,
		Session:      session(c, id),
		Counter:      counter,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	pageID := h.Registry.Add(sp)
	h.Log.WithPage(pageID).Info("page mounted", "kind", "seats", "showtime_id", body.ShowtimeID)
	return c.JSON(http.StatusCreated, mountResponse{ID: pageID, View: sp.View()})
}

func (h *PageHandler) seatPage(c echo.Context) (*page.SeatPage, error) {
	return h.Registry.Seat(c.Param("id"), who(c))
}

// SeatView handles GET /v1/pages/:id.
func (h *PageHandler) SeatView(c echo.Context) error {
	sp, err := h.seatPage(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sp.View())
}

// Toggle handles POST /v1/pages/:id/seats/:seatId/toggle.
func (h *PageHandler) Toggle(c echo.Context) error {
	sp, err := h.seatPage(c)
	if err != nil {
		return writeError(c, err)
	}
	seatID, err := strconv.ParseInt(c.Param("seatId"), 10, 64)
	if err != nil || seatID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	res := sp.Toggle(seatID)
	return c.JSON(http.StatusOK, echo.Map{"result": res, "view": sp.View()})
}

// SeatBack handles POST /v1/pages/:id/back: clear the selection and
// release the hold.
func (h *PageHandler) SeatBack(c echo.Context) error {
	sp, err := h.seatPage(c)
	if err != nil {
		return writeError(c, err)
	}
	sp.Back(c.Request().Context())
	return c.JSON(http.StatusOK, sp.View())
}

type visibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// SeatVisibility handles POST /v1/pages/:id/visibility.
func (h *PageHandler) SeatVisibility(c echo.Context) error {
	sp, err := h.seatPage(c)
	if err != nil {
		return writeError(c, err)
	}
	var body visibilityRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sp.SetHidden(body.Hidden)
	return c.NoContent(http.StatusNoContent)
}

// CloseSeats handles DELETE /v1/pages/:id (unload).  The hold is released
// with keepalive delivery.
func (h *PageHandler) CloseSeats(c echo.Context) error {
	if _, err := h.seatPage(c); err != nil {
		return writeError(c, err)
	}
	h.Registry.Close(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

type checkoutRequest struct {
	Email string `json:"email"`
}

// Checkout handles POST /v1/pages/:id/checkout.  The seat page hands its
// hold to a new checkout page and is discarded.
func (h *PageHandler) Checkout(c echo.Context) error {
	sp, err := h.seatPage(c)
	if err != nil {
		return writeError(c, err)
	}
	var body checkoutRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	cp, err := sp.Checkout(c.Request().Context(), strings.TrimSpace(body.Email))
	if err != nil {
		return writeError(c, err)
	}
	seatPageID := c.Param("id")
	h.Registry.Close(seatPageID)
	checkoutID := h.Registry.Add(cp)
	h.Log.WithPage(checkoutID).Info("checkout mounted", "from", seatPageID)
	return c.JSON(http.StatusCreated, mountResponse{ID: checkoutID, View: cp.View()})
}

type mountCheckoutRequest struct {
	ShowtimeID    int64     `json:"showtimeId"`
	MovieID       int64     `json:"movieId"`
	BookingID     int64     `json:"bookingId"`
	BookingCode   string    `json:"bookingCode"`
	HoldToken     string    `json:"holdToken"`
	HoldExpiresAt time.Time `json:"holdExpiresAt"`
	SeatIDs       []int64   `json:"seatIds"`
	Email         string    `json:"email"`
}

// MountCheckout handles POST /v1/checkout: a checkout page opened
// directly (reload, deep link) from whatever identifies the purchase.
func (h *PageHandler) MountCheckout(c echo.Context) error {
	var body mountCheckoutRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ShowtimeID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtimeId is required"})
	}
	if body.BookingID == 0 && body.HoldToken == "" && len(body.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bookingId, holdToken or seatIds is required"})
	}
	id := who(c)
	cp := page.MountCheckout(c.Request().Context(), h.Deps, page.CheckoutParams{
		Params: checkout.Params{
			ShowtimeID:    body.ShowtimeID,
			MovieID:       body.MovieID,
			HoldToken:     body.HoldToken,
			HoldExpiresAt: body.HoldExpiresAt,
			SeatIDs:       body.SeatIDs,
			BookingID:     body.BookingID,
			BookingCode:   body.BookingCode,
			Email:         strings.TrimSpace(body.Email),
		},
		Identity: id,
		Session:  session(c, id),
	})
	checkoutID := h.Registry.Add(cp)
	return c.JSON(http.StatusCreated, mountResponse{ID: checkoutID, View: cp.View()})
}

func (h *PageHandler) checkoutPage(c echo.Context) (*page.CheckoutPage, error) {
	return h.Registry.Checkout(c.Param("id"), who(c))
}

// CheckoutView handles GET /v1/checkout/:id.
func (h *PageHandler) CheckoutView(c echo.Context) error {
	cp, err := h.checkoutPage(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cp.View())
}

// CheckoutQR handles GET /v1/checkout/:id/qr.png.
func (h *PageHandler) CheckoutQR(c echo.Context) error {
	cp, err := h.checkoutPage(c)
	if err != nil {
		return writeError(c, err)
	}
	png, err := cp.QR()
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// Regenerate handles POST /v1/checkout/:id/regenerate.  Failures are part
// of the returned view.
func (h *PageHandler) Regenerate(c echo.Context) error {
	cp, err := h.checkoutPage(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := cp.Regenerate(c.Request().Context()); err != nil {
		h.Log.WithPage(c.Param("id")).Info("regenerate failed", "error", err)
	}
	return c.JSON(http.StatusOK, cp.View())
}

// CheckoutBack handles POST /v1/checkout/:id/back.
func (h *PageHandler) CheckoutBack(c echo.Context) error {
	cp, err := h.checkoutPage(c)
	if err != nil {
		return writeError(c, err)
	}
	cp.Back(c.Request().Context())
	v := cp.View()
	h.Registry.Remove(c.Param("id"))
	return c.JSON(http.StatusOK, v)
}

// CheckoutVisibility handles POST /v1/checkout/:id/visibility.
func (h *PageHandler) CheckoutVisibility(c echo.Context) error {
	cp, err := h.checkoutPage(c)
	if err != nil {
		return writeError(c, err)
	}
	var body visibilityRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	cp.SetHidden(body.Hidden)
	return c.NoContent(http.StatusNoContent)
}

// CloseCheckout handles DELETE /v1/checkout/:id.
func (h *PageHandler) CloseCheckout(c echo.Context) error {
	if _, err := h.checkoutPage(c); err != nil {
		return writeError(c, err)
	}
	h.Registry.Close(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
