package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-checkout/internal/counter"
	"github.com/iliyamo/cinema-seat-checkout/internal/page"
)

// MountCounter handles POST /v1/staff/pages/seats: a seat page with the
// counter booking form.
func (h *PageHandler) MountCounter(c echo.Context) error {
	return h.mountSeats(c, true)
}

func (h *PageHandler) counterPage(c echo.Context) (*page.SeatPage, error) {
	sp, err := h.seatPage(c)
	if err != nil {
		return nil, err
	}
	if sp.Counter == nil {
		return nil, page.ErrNotCounter
	}
	return sp, nil
}

// CreateBooking handles POST /v1/staff/pages/:id/bookings.
func (h *PageHandler) CreateBooking(c echo.Context) error {
	sp, err := h.counterPage(c)
	if err != nil {
		return writeError(c, err)
	}
	var form counter.Form
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := sp.SubmitCounter(c.Request().Context(), form)
	if err != nil {
		return writeError(c, err)
	}
	res.TicketPDFBase64 = ""
	return c.JSON(http.StatusCreated, echo.Map{"booking": res, "view": sp.View()})
}

type transferRequest struct {
	Email string `json:"email"`
}

// RequestTransfer handles POST /v1/staff/pages/:id/transfer: ask for the
// bank-transfer QR of the last counter booking.
func (h *PageHandler) RequestTransfer(c echo.Context) error {
	sp, err := h.counterPage(c)
	if err != nil {
		return writeError(c, err)
	}
	var body transferRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := sp.Counter.RequestTransfer(c.Request().Context(), strings.TrimSpace(body.Email)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sp.View())
}

// Ticket handles GET /v1/staff/pages/:id/ticket and streams the printable
// ticket of the last counter booking.
func (h *PageHandler) Ticket(c echo.Context) error {
	sp, err := h.counterPage(c)
	if err != nil {
		return writeError(c, err)
	}
	pdf, err := sp.Counter.TicketPDF()
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// TransferQR handles GET /v1/staff/pages/:id/transfer/qr: the VietQR image
// of the pending bank transfer.
func (h *PageHandler) TransferQR(c echo.Context) error {
	sp, err := h.counterPage(c)
	if err != nil {
		return writeError(c, err)
	}
	png, err := sp.Counter.TransferQR()
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
