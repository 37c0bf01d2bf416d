package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Backend lists every booking backend call the kiosk makes.  Components
// depend on narrower interfaces; Backend exists so fakes can be checked
// against the full surface.
type Backend interface {
	SeatMap(ctx context.Context, showtimeID int64) ([]Seat, error)
	AcquireHold(ctx context.Context, req HoldRequest) (HoldResponse, error)
	ReleaseHold(ctx context.Context, showtimeID int64, token string) error
	BeaconRelease(ctx context.Context, showtimeID int64, token string) error
	ReleaseAllHolds(ctx context.Context) error
	CreatePaymentSession(ctx context.Context, req CheckoutRequest) (PaymentSession, error)
	PaymentStatus(ctx context.Context, bookingID int64) (PaymentStatusResponse, error)
	CancelBooking(ctx context.Context, bookingID int64) (CancelBookingResponse, error)
	CreateStaffBooking(ctx context.Context, req StaffBookingRequest) (StaffBookingResult, error)
	CreateStaffPaymentSession(ctx context.Context, bookingID int64, email string) (PaymentSession, error)
	StaffBookingStatus(ctx context.Context, bookingID int64) (StaffBookingStatus, error)
}

// Client talks JSON over HTTP to the booking backend on behalf of one
// user.  It carries the user's access token and a cookie jar so session
// cookies set by the backend are replayed.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAccessToken sets the bearer token sent with every request.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New builds a client for baseURL (e.g. "https://cinema.example").
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForUser returns a copy of the client that authenticates as token.  The
// copy shares the transport and cookie jar.
func (c *Client) ForUser(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do sends a JSON request and decodes a JSON response into out (which may
// be nil).  Non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, path, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func newError(status int, path string, raw []byte) *Error {
	e := &Error{Status: status, Path: path}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Error
		}
	} else if txt := strings.TrimSpace(string(raw)); txt != "" && len(txt) < 512 {
		e.Message = txt
	}
	return e
}
