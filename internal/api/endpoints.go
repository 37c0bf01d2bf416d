package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// SeatMap fetches the current seat-map snapshot of a showtime.
func (c *Client) SeatMap(ctx context.Context, showtimeID int64) ([]Seat, error) {
	var seats []Seat
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/showtimes/%d/seat-map", showtimeID), nil, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

// AcquireHold creates or replaces the user's hold.
func (c *Client) AcquireHold(ctx context.Context, req HoldRequest) (HoldResponse, error) {
	var resp HoldResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/showtimes/%d/holds", req.ShowtimeID), req, &resp)
	if err == nil && resp.HoldToken == "" {
		err = fmt.Errorf("hold response without token")
	}
	return resp, err
}

// ReleaseHold deletes a hold token.
func (c *Client) ReleaseHold(ctx context.Context, showtimeID int64, token string) error {
	return c.do(ctx, http.MethodDelete, holdPath(showtimeID, token), nil, nil)
}

// BeaconRelease is the POST variant of ReleaseHold, accepted by the backend
// for fire-and-forget delivery during teardown.
func (c *Client) BeaconRelease(ctx context.Context, showtimeID int64, token string) error {
	return c.do(ctx, http.MethodPost, holdPath(showtimeID, token)+"/release", nil, nil)
}

// ReleaseAllHolds releases every hold owned by the current session.
func (c *Client) ReleaseAllHolds(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/showtimes/holds/release", nil, nil)
}

// CreatePaymentSession converts a hold (or an existing booking) into a
// payment session.  A 2xx response with success=false is returned as is.
func (c *Client) CreatePaymentSession(ctx context.Context, req CheckoutRequest) (PaymentSession, error) {
	var resp PaymentSession
	err := c.do(ctx, http.MethodPost, "/api/payment/payos/checkout", req, &resp)
	return resp, err
}

// PaymentStatus polls the payment state of a booking.
func (c *Client) PaymentStatus(ctx context.Context, bookingID int64) (PaymentStatusResponse, error) {
	var resp PaymentStatusResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/payment/status/%d", bookingID), nil, &resp)
	return resp, err
}

// CancelBooking cancels an unpaid booking.
func (c *Client) CancelBooking(ctx context.Context, bookingID int64) (CancelBookingResponse, error) {
	var resp CancelBookingResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", bookingID), nil, &resp)
	return resp, err
}

// CreateStaffBooking books seats directly at the box office.
func (c *Client) CreateStaffBooking(ctx context.Context, req StaffBookingRequest) (StaffBookingResult, error) {
	var resp StaffBookingResult
	err := c.do(ctx, http.MethodPost, "/api/staff/bookings", req, &resp)
	return resp, err
}

// CreateStaffPaymentSession requests a transfer QR for a counter booking.
func (c *Client) CreateStaffPaymentSession(ctx context.Context, bookingID int64, email string) (PaymentSession, error) {
	var resp PaymentSession
	body := map[string]string{"email": email}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/staff/payment/bookings/%d/payos/checkout", bookingID), body, &resp)
	return resp, err
}

// StaffBookingStatus polls a counter booking.
func (c *Client) StaffBookingStatus(ctx context.Context, bookingID int64) (StaffBookingStatus, error) {
	var resp StaffBookingStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/staff/bookings/%d/status", bookingID), nil, &resp)
	return resp, err
}

func holdPath(showtimeID int64, token string) string {
	return fmt.Sprintf("/api/showtimes/%d/holds/%s", showtimeID, url.PathEscape(token))
}

var _ Backend = (*Client)(nil)
