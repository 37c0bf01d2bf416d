// Package api defines the error values returned by the booking backend
// client.  These sentinel values let the hold controller and the checkout
// orchestrator distinguish failure scenarios without parsing messages:
// ErrUnauthenticated means the user must log in again, ErrConflict means
// another customer already holds (or bought) a requested seat.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when the backend answers 401.  Callers
// should prompt for login and never retry silently.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrConflict is returned when the requested seats are no longer
// available.  Callers should drop the selection and refresh the seat map.
var ErrConflict = errors.New("seat already held")

// ErrNotFound is returned for 404 responses (unknown showtime, booking or
// hold token).
var ErrNotFound = errors.New("not found")

// Error is a non-2xx backend response.  It matches the sentinels above via
// errors.Is so callers keep the backend message for display.
type Error struct {
	Status  int
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: %d %s", e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend %s: %d %s", e.Path, e.Status, e.Message)
}

// Is reports whether the response corresponds to target.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrConflict:
		return e.Status == http.StatusConflict || strings.Contains(strings.ToLower(e.Message), "already held")
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// UserMessage returns the text to show next to the control that failed.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
