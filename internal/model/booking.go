package model

import "strings"

// PaymentStatus is the payment state of a booking.  Paid is terminal.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "Unpaid"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentRefunded PaymentStatus = "Refunded"
)

// IsPaid compares case-insensitively; the staff endpoints report "PAID".
func (p PaymentStatus) IsPaid() bool {
	return strings.EqualFold(string(p), string(PaymentPaid))
}

// BookingStatus mirrors the backend booking lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

// PaymentMethod selects how a booking is settled.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentVietQR   PaymentMethod = "VIETQR"
)

// PendingBooking is the unpaid booking the backend creates from a hold when
// a payment session is requested.  Its id becomes the sticky identity of
// the checkout page.
//
// Fields:
//  BookingID     – backend identifier used for status polls and cancels.
//  BookingCode   – human readable code, used in the confirmation URL.
//  ShowtimeID    – showtime of the booked seats.
//  SeatIDs       – booked seats.
//  PaymentStatus – Unpaid until the payment notification arrives.
//  Method        – payment method recorded on the booking.
//  Amount        – amount due.
type PendingBooking struct {
	BookingID     int64         `json:"bookingId"`
	BookingCode   string        `json:"bookingCode"`
	ShowtimeID    int64         `json:"showtimeId,omitempty"`
	SeatIDs       []int64       `json:"seatIds,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Method        PaymentMethod `json:"paymentMethod,omitempty"`
	Amount        Amount        `json:"amount"`
}

// PaymentStatusResponse is returned by the payment status poll.
type PaymentStatusResponse struct {
	BookingID int64         `json:"bookingId"`
	Status    PaymentStatus `json:"status"`
}

// CancelBookingResponse is returned when a pending booking is cancelled.
type CancelBookingResponse struct {
	BookingID     int64         `json:"bookingId"`
	BookingStatus BookingStatus `json:"bookingStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}
