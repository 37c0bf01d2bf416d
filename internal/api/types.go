package api

import (
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// Aliases keep call sites in this package short.
type (
	Seat                  = model.Seat
	CheckoutRequest       = model.CheckoutRequest
	PaymentSession        = model.PaymentSession
	PaymentStatusResponse = model.PaymentStatusResponse
	CancelBookingResponse = model.CancelBookingResponse
	StaffBookingRequest   = model.StaffBookingRequest
	StaffBookingResult    = model.StaffBookingResult
	StaffBookingStatus    = model.StaffBookingStatus
)

// HoldRequest asks the backend to hold seatIDs, atomically replacing the
// hold identified by PreviousHoldToken when present.
type HoldRequest struct {
	ShowtimeID        int64   `json:"showtimeId"`
	SeatIDs           []int64 `json:"seatIds"`
	PreviousHoldToken string  `json:"previousHoldToken,omitempty"`
}

// HoldResponse is the backend's answer to a hold request.
type HoldResponse struct {
	HoldToken string    `json:"holdToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}
