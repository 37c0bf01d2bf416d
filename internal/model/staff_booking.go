package model

// StaffBookingRequest is submitted by the box-office counter flow.  The
// discount is a fraction in [0,1]; FinalPrice is the total the staff
// member saw when submitting and is re-checked by the backend.
type StaffBookingRequest struct {
	ShowtimeID      int64         `json:"showtimeId"`
	SeatIDs         []int64       `json:"seatIds"`
	FullName        string        `json:"fullName"`
	Phone           string        `json:"phone"`
	Email           string        `json:"email,omitempty"`
	DiscountPercent float64       `json:"discountPercent"`
	DiscountCode    string        `json:"discountCode,omitempty"`
	FinalPrice      Amount        `json:"finalPrice"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
}

// StaffBookingSeat is one line of a counter booking receipt.
type StaffBookingSeat struct {
	SeatLabel  string `json:"seatLabel"`
	FinalPrice Amount `json:"finalPrice"`
}

// StaffBookingResult is returned after a counter booking is created.
//
// Fields:
//  BookingID       – backend identifier, used by the transfer flow.
//  BookingCode     – printed on the ticket.
//  Seats           – seat labels with their discounted prices.
//  PaymentMethod   – CASH or TRANSFER.
//  PaymentStatus   – Paid for cash sales, Unpaid until a transfer lands.
//  BookingStatus   – backend booking status.
//  TotalAmount     – price before discount.
//  FinalAmount     – price after discount.
//  TicketPDFBase64 – printable ticket, when issued immediately.
type StaffBookingResult struct {
	BookingID       int64              `json:"bookingId"`
	BookingCode     string             `json:"bookingCode"`
	Seats           []StaffBookingSeat `json:"seats"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `json:"paymentStatus"`
	BookingStatus   BookingStatus      `json:"bookingStatus"`
	TotalAmount     Amount             `json:"totalAmount"`
	FinalAmount     Amount             `json:"finalAmount"`
	TicketPDFBase64 string             `json:"ticketPdfBase64,omitempty"`
}

// StaffBookingStatus is returned by the staff status poll.  Older backend
// builds report a single "status" field instead of paymentStatus.
type StaffBookingStatus struct {
	BookingStatus BookingStatus `json:"bookingStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Status        PaymentStatus `json:"status,omitempty"`
}

// IsPaid reports whether either status field says Paid.
func (s StaffBookingStatus) IsPaid() bool {
	return s.PaymentStatus.IsPaid() || s.Status.IsPaid()
}
