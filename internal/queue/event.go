// Package queue defines the booking events published by the kiosk and the
// consumer that appends them to the ticket log.
package queue

import "time"

// Queue names.
const (
	BookingPaidQueue    = "booking.paid"
	CounterBookingQueue = "booking.counter"
)

// BookingPaidEvent is published when a checkout page observes a Paid
// status.  It carries enough to write a ticket log line without calling
// the backend again.
type BookingPaidEvent struct {
	BookingID   int64     `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	ShowtimeID  int64     `json:"showtime_id"`
	UserID      int64     `json:"user_id,omitempty"`
	SeatIDs     []int64   `json:"seat_ids"`
	OrderCode   string    `json:"order_code,omitempty"`
	Amount      int64     `json:"amount"`
	PaidAt      time.Time `json:"paid_at"`
}

// CounterBookingEvent is published when staff create a booking at the box
// office.
type CounterBookingEvent struct {
	BookingID     int64     `json:"booking_id"`
	BookingCode   string    `json:"booking_code"`
	ShowtimeID    int64     `json:"showtime_id"`
	StaffID       int64     `json:"staff_id,omitempty"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	SeatLabels    []string  `json:"seats"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   int64     `json:"total_amount"`
	FinalAmount   int64     `json:"final_amount"`
	CreatedAt     time.Time `json:"created_at"`
}
