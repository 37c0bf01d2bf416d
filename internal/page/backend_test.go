package page

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// fakeBooking is an in-memory booking backend served over HTTP so page
// tests exercise the real API client.
type fakeBooking struct {
	clk       *clock.Fake
	srv       *httptest.Server
	paidAfter int // status polls answered Unpaid before Paid; 0 = never paid

	mu          sync.Mutex
	seats       []model.Seat
	holds       map[string]fakeHold
	holdSeq     int
	holdReqs    []api.HoldRequest
	released    []string
	releaseAll  int
	checkouts   []model.CheckoutRequest
	bookings    map[int64][]int64
	statusCalls int
	cancels     []int64
}

type fakeHold struct {
	user  int64
	seats []int64
}

func newFakeBooking(t *testing.T, clk *clock.Fake) *fakeBooking {
	t.Helper()
	fb := &fakeBooking{
		clk: clk,
		seats: []model.Seat{
			{ID: 1, RowLabel: "A", Number: 1, Label: "A1", Type: model.SeatStandard, Price: 90000, Status: model.SeatAvailable, Selectable: true},
			{ID: 2, RowLabel: "A", Number: 2, Label: "A2", Type: model.SeatStandard, Price: 90000, Status: model.SeatAvailable, Selectable: true},
			{ID: 3, RowLabel: "A", Number: 3, Label: "A3", Type: model.SeatVIP, Price: 120000, Status: model.SeatSold},
		},
		holds:    map[string]fakeHold{},
		bookings: map[int64][]int64{},
	}

	e := echo.New()
	e.HideBanner = true
	e.GET("/api/showtimes/:id/seat-map", fb.seatMap)
	e.POST("/api/showtimes/holds/release", fb.releaseAllHolds)
	e.POST("/api/showtimes/:id/holds", fb.acquire)
	e.DELETE("/api/showtimes/:id/holds/:token", fb.release)
	e.POST("/api/showtimes/:id/holds/:token/release", fb.release)
	e.POST("/api/payment/payos/checkout", fb.checkout)
	e.GET("/api/payment/status/:id", fb.status)
	e.POST("/api/bookings/:id/cancel", fb.cancel)

	fb.srv = httptest.NewServer(e)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBooking) URL() string { return fb.srv.URL }

func userOf(c echo.Context) (int64, bool) {
	raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer tok-")
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

func (fb *fakeBooking) seatMap(c echo.Context) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]model.Seat, len(fb.seats))
	copy(out, fb.seats)
	for i := range out {
		for _, h := range fb.holds {
			for _, id := range h.seats {
				if id == out[i].ID {
					user := h.user
					out[i].Status = model.SeatHeld
					out[i].HoldUserID = &user
					out[i].Selectable = false
				}
			}
		}
		for _, ids := range fb.bookings {
			for _, id := range ids {
				if id == out[i].ID {
					out[i].Status = model.SeatSold
					out[i].Selectable = false
				}
			}
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (fb *fakeBooking) acquire(c echo.Context) error {
	user, ok := userOf(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Unauthorized"})
	}
	var req api.HoldRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.holdReqs = append(fb.holdReqs, req)
	delete(fb.holds, req.PreviousHoldToken)
	fb.holdSeq++
	token := fmt.Sprintf("H-%d", fb.holdSeq)
	fb.holds[token] = fakeHold{user: user, seats: append([]int64(nil), req.SeatIDs...)}
	return c.JSON(http.StatusOK, api.HoldResponse{HoldToken: token, ExpiresAt: fb.clk.Now().Add(600 * time.Second)})
}

func (fb *fakeBooking) release(c echo.Context) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	token := c.Param("token")
	fb.released = append(fb.released, token)
	delete(fb.holds, token)
	return c.NoContent(http.StatusNoContent)
}

func (fb *fakeBooking) releaseAllHolds(c echo.Context) error {
	user, _ := userOf(c)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.releaseAll++
	for token, h := range fb.holds {
		if h.user == user {
			delete(fb.holds, token)
		}
	}
	return c.NoContent(http.StatusOK)
}

func (fb *fakeBooking) checkout(c echo.Context) error {
	var req model.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.checkouts = append(fb.checkouts, req)

	var bookingID int64
	switch {
	case req.BookingID != nil:
		bookingID = *req.BookingID
	case req.HoldToken != "":
		h, ok := fb.holds[req.HoldToken]
		if !ok {
			return c.JSON(http.StatusOK, model.PaymentSession{Success: false, Message: "Hold expired"})
		}
		delete(fb.holds, req.HoldToken)
		bookingID = 500 + int64(len(fb.bookings)) + 1
		fb.bookings[bookingID] = h.seats
	}
	var amount model.Amount
	for _, id := range fb.bookings[bookingID] {
		for _, s := range fb.seats {
			if s.ID == id {
				amount += s.Price
			}
		}
	}
	return c.JSON(http.StatusOK, model.PaymentSession{
		Success:         true,
		BookingID:       bookingID,
		BookingCode:     fmt.Sprintf("BK%d", bookingID),
		OrderCode:       "PAY123",
		Amount:          amount,
		QRBase64:        "iVBORw0KGgo=",
		TransferContent: fmt.Sprintf("BK%d", bookingID),
		ExpiresAt:       fb.clk.Now().Add(15 * time.Minute),
	})
}

func (fb *fakeBooking) status(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statusCalls++
	st := model.PaymentUnpaid
	if fb.paidAfter > 0 && fb.statusCalls >= fb.paidAfter {
		st = model.PaymentPaid
	}
	return c.JSON(http.StatusOK, model.PaymentStatusResponse{BookingID: id, Status: st})
}

func (fb *fakeBooking) cancel(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.cancels = append(fb.cancels, id)
	delete(fb.bookings, id)
	return c.JSON(http.StatusOK, model.CancelBookingResponse{BookingID: id, BookingStatus: model.BookingCancelled, PaymentStatus: model.PaymentUnpaid})
}

func (fb *fakeBooking) snapshot() (holdReqs []api.HoldRequest, checkouts []model.CheckoutRequest, cancels []int64) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]api.HoldRequest(nil), fb.holdReqs...),
		append([]model.CheckoutRequest(nil), fb.checkouts...),
		append([]int64(nil), fb.cancels...)
}

func (fb *fakeBooking) releases() (tokens []string, all int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.released...), fb.releaseAll
}
