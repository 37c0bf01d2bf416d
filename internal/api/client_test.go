package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

func newBackend(t *testing.T, register func(e *echo.Echo)) *Client {
	t.Helper()
	e := echo.New()
	register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithAccessToken("tok-1"), WithTimeout(2*time.Second))
}

func TestAcquireHoldSendsPreviousToken(t *testing.T) {
	var got HoldRequest
	var auth string
	exp := time.Date(2025, 5, 1, 10, 10, 0, 0, time.UTC)
	c := newBackend(t, func(e *echo.Echo) {
		e.POST("/api/showtimes/:id/holds", func(c echo.Context) error {
			auth = c.Request().Header.Get("Authorization")
			if err := c.Bind(&got); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, echo.Map{"holdToken": "h-2", "expiresAt": exp})
		})
	})

	resp, err := c.AcquireHold(context.Background(), HoldRequest{ShowtimeID: 9, SeatIDs: []int64{1, 2}, PreviousHoldToken: "h-1"})
	require.NoError(t, err)
	assert.Equal(t, "h-2", resp.HoldToken)
	assert.True(t, exp.Equal(resp.ExpiresAt))
	assert.Equal(t, "Bearer tok-1", auth)
	assert.Equal(t, HoldRequest{ShowtimeID: 9, SeatIDs: []int64{1, 2}, PreviousHoldToken: "h-1"}, got)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		target  error
		message string
	}{
		{name: "unauthenticated", status: http.StatusUnauthorized, body: echo.Map{"error": "unauthorized"}, target: ErrUnauthenticated, message: "unauthorized"},
		{name: "conflict by message", status: http.StatusBadRequest, body: echo.Map{"message": "Seat already held"}, target: ErrConflict, message: "Seat already held"},
		{name: "conflict by status", status: http.StatusConflict, body: echo.Map{"message": "taken"}, target: ErrConflict, message: "taken"},
		{name: "not found", status: http.StatusNotFound, body: echo.Map{}, target: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newBackend(t, func(e *echo.Echo) {
				e.POST("/api/showtimes/:id/holds", func(c echo.Context) error {
					return c.JSON(tc.status, tc.body)
				})
			})
			_, err := c.AcquireHold(context.Background(), HoldRequest{ShowtimeID: 1, SeatIDs: []int64{1}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target))
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestPlainTextErrorAndUserMessage(t *testing.T) {
	c := newBackend(t, func(e *echo.Echo) {
		e.POST("/api/staff/bookings", func(c echo.Context) error {
			return c.String(http.StatusUnprocessableEntity, "Ghế đã được bán")
		})
	})
	_, err := c.CreateStaffBooking(context.Background(), model.StaffBookingRequest{ShowtimeID: 1})
	require.Error(t, err)
	assert.Equal(t, "Ghế đã được bán", UserMessage(err, "fallback"))
	assert.Equal(t, "fallback", UserMessage(errors.New("dial tcp"), "fallback"))
}

func TestHoldReleaseVariants(t *testing.T) {
	var calls []string
	c := newBackend(t, func(e *echo.Echo) {
		e.DELETE("/api/showtimes/:id/holds/:token", func(c echo.Context) error {
			calls = append(calls, "DELETE "+c.Param("id")+" "+c.Param("token"))
			return c.NoContent(http.StatusNoContent)
		})
		e.POST("/api/showtimes/:id/holds/:token/release", func(c echo.Context) error {
			calls = append(calls, "BEACON "+c.Param("id")+" "+c.Param("token"))
			return c.NoContent(http.StatusNoContent)
		})
		e.POST("/api/showtimes/holds/release", func(c echo.Context) error {
			calls = append(calls, "ALL")
			return c.NoContent(http.StatusOK)
		})
	})
	ctx := context.Background()
	require.NoError(t, c.ReleaseHold(ctx, 3, "abc"))
	require.NoError(t, c.BeaconRelease(ctx, 3, "abc"))
	require.NoError(t, c.ReleaseAllHolds(ctx))
	assert.Equal(t, []string{"DELETE 3 abc", "BEACON 3 abc", "ALL"}, calls)
}

func TestSeatMapAndPaymentEndpoints(t *testing.T) {
	var checkout model.CheckoutRequest
	c := newBackend(t, func(e *echo.Echo) {
		e.GET("/api/showtimes/:id/seat-map", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, []byte(`[{"seatId":1,"seatLabel":"A1","seatType":"STANDARD","price":90000.00,"status":"AVAILABLE","selectable":true}]`))
		})
		e.POST("/api/payment/payos/checkout", func(c echo.Context) error {
			if err := c.Bind(&checkout); err != nil {
				return err
			}
			return c.JSONBlob(http.StatusOK, []byte(`{"success":true,"bookingId":55,"bookingCode":"BK55","orderCode":"PAY123","amount":180000,"qrBase64":"data:image/png;base64,AAA","transferContent":"BK55","expiresAt":"2025-05-01T10:15:00Z"}`))
		})
		e.GET("/api/payment/status/:id", func(c echo.Context) error {
			return c.JSON(http.StatusOK, echo.Map{"bookingId": 55, "status": "Paid"})
		})
		e.POST("/api/bookings/:id/cancel", func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
	})
	ctx := context.Background()

	seats, err := c.SeatMap(ctx, 7)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, model.Amount(90000), seats[0].Price)

	sess, err := c.CreatePaymentSession(ctx, model.CheckoutRequest{HoldToken: "h-1", Email: "a@b.vn"})
	require.NoError(t, err)
	assert.True(t, sess.Success)
	assert.Equal(t, int64(55), sess.BookingID)
	assert.Equal(t, model.Amount(180000), sess.Amount)
	assert.Equal(t, model.DefaultBankInfo, sess.Bank())
	assert.Equal(t, "h-1", checkout.HoldToken)
	assert.Nil(t, checkout.BookingID)

	st, err := c.PaymentStatus(ctx, 55)
	require.NoError(t, err)
	assert.True(t, st.Status.IsPaid())

	_, err = c.CancelBooking(ctx, 55)
	require.NoError(t, err, "empty 2xx bodies decode to the zero value")
}

func TestForUserSharesTransport(t *testing.T) {
	base := New("http://backend.local/", WithAccessToken("a"))
	other := base.ForUser("b")
	assert.Equal(t, "http://backend.local", other.BaseURL())
	assert.Same(t, base.http, other.http)
	assert.Equal(t, "a", base.token)
	assert.Equal(t, "b", other.token)
}
