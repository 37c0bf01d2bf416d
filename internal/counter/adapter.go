// Package counter is the box-office variant of the seat page: staff pick
// seats on the same board and create the booking directly instead of
// handing the hold to the consumer checkout.
package counter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/notify"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
	"github.com/iliyamo/cinema-seat-checkout/internal/schedule"
	"github.com/iliyamo/cinema-seat-checkout/internal/selection"
	"github.com/iliyamo/cinema-seat-checkout/internal/ticket"
)

// ErrNoTicket is returned by TicketPDF when no printable ticket exists.
var ErrNoTicket = errors.New("no ticket issued")

const (
	msgBookingFailed  = "Could not create the counter booking."
	msgTransferFailed = "Could not create the VietQR payment code."
	msgCreated        = "Booking created."
	msgTransferWait   = "Pending booking created. The VietQR code is ready."
	msgTransferPaid   = "Payment received! Opening the booking..."
)

// Backend is the staff booking API.
type Backend interface {
	CreateStaffBooking(ctx context.Context, req model.StaffBookingRequest) (model.StaffBookingResult, error)
	CreateStaffPaymentSession(ctx context.Context, bookingID int64, email string) (model.PaymentSession, error)
	StaffBookingStatus(ctx context.Context, bookingID int64) (model.StaffBookingStatus, error)
}

// HoldReleaser clears the selection and gives back the seat hold.
type HoldReleaser interface {
	Back(ctx context.Context)
}

// Publisher receives counter booking events.
type Publisher interface {
	PublishCounterBooking(ctx context.Context, ev queue.CounterBookingEvent) error
}

// Config wires an Adapter.
type Config struct {
	ShowtimeID     int64
	StaffID        int64
	PollInterval   time.Duration
	RedirectDelay  time.Duration
	RequestTimeout time.Duration
	Clock          clock.Clock
	Logger         *logger.Logger
	Publisher      Publisher
}

// Adapter drives the staff booking form of one seat page.
type Adapter struct {
	sel       *selection.Selection
	holds     HoldReleaser
	backend   Backend
	notifier  notify.Notifier
	publisher Publisher
	validate  *validator.Validate
	clk       clock.Clock
	log       *logger.Logger

	showtimeID    int64
	staffID       int64
	redirectDelay time.Duration
	timeout       time.Duration

	poll *schedule.Interval

	mu       sync.Mutex
	last     *model.StaffBookingResult
	customer string
	issuedAt time.Time
	email    string
	transfer *model.PaymentSession
	paid     bool
	redirect clock.Timer
}

// New builds an adapter over the page's selection and hold controller.
func New(sel *selection.Selection, holds HoldReleaser, backend Backend, notifier notify.Notifier, cfg Config) *Adapter {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = 1500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	a := &Adapter{
		sel:           sel,
		holds:         holds,
		backend:       backend,
		notifier:      notifier,
		publisher:     cfg.Publisher,
		validate:      newValidator(),
		clk:           cfg.Clock,
		log:           logger.Or(cfg.Logger).WithComponent("counter").WithShowtime(cfg.ShowtimeID),
		showtimeID:    cfg.ShowtimeID,
		staffID:       cfg.StaffID,
		redirectDelay: cfg.RedirectDelay,
		timeout:       cfg.RequestTimeout,
	}
	a.poll = schedule.NewInterval(a.clk, cfg.PollInterval, a.pollOnce)
	return a
}

// CheckoutEnabled is false: staff never use the consumer checkout.
func (a *Adapter) CheckoutEnabled() bool { return false }

// BackLabel is the label of the back control on the counter screen.
func (a *Adapter) BackLabel() string { return "deselect" }

// Deselect clears the selection and releases the hold.
func (a *Adapter) Deselect(ctx context.Context) { a.holds.Back(ctx) }

// Totals returns the selection total and the discounted total.
func (a *Adapter) Totals(discount float64) (base, final model.Amount) {
	base = a.sel.Total()
	return base, FinalTotal(base, discount)
}

// Validate checks the form against the current selection without
// submitting it.
func (a *Adapter) Validate(f Form) error {
	f = f.normalize()
	if err := validateForm(a.validate, f); err != nil {
		return err
	}
	snap := a.sel.Snapshot()
	if snap.Empty() {
		return &ValidationError{Field: "seats", Message: "Please select at least one seat."}
	}
	if FinalTotal(snap.Total, f.DiscountPercent) <= 0 {
		return &ValidationError{Field: "total", Message: "The total amount must be greater than zero."}
	}
	return nil
}

// Submit creates the booking.  On success the hold is released and the
// selection cleared; TRANSFER bookings continue with a VietQR session.
func (a *Adapter) Submit(ctx context.Context, f Form) (model.StaffBookingResult, error) {
	f = f.normalize()
	if err := a.Validate(f); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			a.notifier.Notify(notify.Error, verr.Message)
		}
		return model.StaffBookingResult{}, err
	}
	snap := a.sel.Snapshot()
	req := model.StaffBookingRequest{
		ShowtimeID:      a.showtimeID,
		SeatIDs:         snap.IDs(),
		FullName:        f.FullName,
		Phone:           f.Phone,
		Email:           f.Email,
		DiscountPercent: f.DiscountPercent,
		DiscountCode:    f.DiscountCode,
		FinalPrice:      FinalTotal(snap.Total, f.DiscountPercent),
		PaymentMethod:   f.PaymentMethod,
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	res, err := a.backend.CreateStaffBooking(cctx, req)
	cancel()
	if err != nil {
		a.log.Warn("counter booking failed", "error", err)
		a.notifier.Notify(notify.Error, api.UserMessage(err, msgBookingFailed))
		return model.StaffBookingResult{}, fmt.Errorf("create staff booking: %w", err)
	}
	if res.PaymentMethod == "" {
		res.PaymentMethod = f.PaymentMethod
	}
	a.log.Info("counter booking created", "booking_id", res.BookingID, "booking_code", res.BookingCode, "method", res.PaymentMethod)

	a.holds.Back(ctx)

	a.mu.Lock()
	a.last = &res
	a.customer = f.FullName
	a.issuedAt = a.clk.Now()
	a.email = f.Email
	a.transfer = nil
	a.paid = res.PaymentStatus.IsPaid()
	a.mu.Unlock()

	a.publish(ctx, req, res)

	if f.PaymentMethod == model.PaymentTransfer && res.BookingID != 0 {
		a.notifier.Notify(notify.Info, msgTransferWait)
		if err := a.RequestTransfer(ctx, f.Email); err != nil {
			return res, err
		}
		return res, nil
	}
	a.notifier.Notify(notify.Success, msgCreated)
	a.notifier.Navigate(bookingPath(res.BookingCode))
	return res, nil
}

// RequestTransfer asks for the VietQR session of the last TRANSFER booking
// and starts watching its status.  email overrides the one entered on the
// form when not empty.
func (a *Adapter) RequestTransfer(ctx context.Context, email string) error {
	a.mu.Lock()
	last := a.last
	if strings.TrimSpace(email) == "" {
		email = a.email
	}
	a.mu.Unlock()
	email = strings.TrimSpace(email)

	if last == nil || last.BookingID == 0 {
		a.notifier.Notify(notify.Error, "There is no pending booking to pay.")
		return &ValidationError{Field: "booking", Message: "There is no pending booking to pay."}
	}
	if email == "" || !emailRe.MatchString(email) {
		verr := &ValidationError{Field: "email", Message: fieldMessages["email"]}
		if email == "" {
			verr.Message = "Email is required for bank transfer payments."
		}
		a.notifier.Notify(notify.Error, verr.Message)
		return verr
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	sess, err := a.backend.CreateStaffPaymentSession(cctx, last.BookingID, email)
	cancel()
	if err == nil && !sess.Success {
		msg := sess.Message
		if msg == "" {
			msg = msgTransferFailed
		}
		err = errors.New(msg)
		a.notifier.Notify(notify.Error, msg)
		return fmt.Errorf("staff payment session: %w", err)
	}
	if err != nil {
		a.notifier.Notify(notify.Error, api.UserMessage(err, msgTransferFailed))
		return fmt.Errorf("staff payment session: %w", err)
	}

	a.mu.Lock()
	a.email = email
	a.transfer = &sess
	a.mu.Unlock()
	a.poll.Stop()
	a.poll.Start()
	return nil
}

// TicketPDF returns the printable ticket of the last booking: the one the
// backend issued, or a locally rendered receipt when it sent none.
func (a *Adapter) TicketPDF() ([]byte, error) {
	a.mu.Lock()
	last := a.last
	rec := ticket.Receipt{ShowtimeID: a.showtimeID, Customer: a.customer, IssuedAt: a.issuedAt}
	a.mu.Unlock()
	if last == nil || (last.BookingCode == "" && last.TicketPDFBase64 == "") {
		return nil, ErrNoTicket
	}
	if last.TicketPDFBase64 == "" {
		rec.Booking = *last
		return ticket.ReceiptPDF(rec)
	}
	raw := last.TicketPDFBase64
	if i := strings.Index(raw, ","); i >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[i+1:]
	}
	pdf, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return pdf, nil
}

// TransferQR returns the PNG of the pending VietQR session.
func (a *Adapter) TransferQR() ([]byte, error) {
	a.mu.Lock()
	s := a.transfer
	a.mu.Unlock()
	if s == nil {
		return nil, ticket.ErrNoQR
	}
	return ticket.QRImage(*s)
}

// View is the render model of the counter panel.
type View struct {
	CheckoutEnabled bool                      `json:"checkoutEnabled"`
	BackLabel       string                    `json:"backLabel"`
	Booking         *model.StaffBookingResult `json:"booking,omitempty"`
	Transfer        *TransferView             `json:"transfer,omitempty"`
	Paid            bool                      `json:"paid"`
}

// TransferView is the VietQR panel of a TRANSFER booking.
type TransferView struct {
	OrderCode       string       `json:"orderCode"`
	BookingCode     string       `json:"bookingCode"`
	Amount          model.Amount `json:"amount"`
	QRBase64        string       `json:"qrBase64"`
	BankLine        string       `json:"bankLine"`
	TransferContent string       `json:"transferContent"`
}

// View returns the current render model.
func (a *Adapter) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := View{CheckoutEnabled: a.CheckoutEnabled(), BackLabel: a.BackLabel(), Paid: a.paid}
	if a.last != nil {
		res := *a.last
		res.TicketPDFBase64 = ""
		v.Booking = &res
	}
	if s := a.transfer; s != nil {
		code := s.BookingCode
		if code == "" && a.last != nil {
			code = a.last.BookingCode
		}
		v.Transfer = &TransferView{
			OrderCode:       s.OrderCode,
			BookingCode:     code,
			Amount:          s.Amount,
			QRBase64:        s.QRBase64,
			BankLine:        s.Bank().String(),
			TransferContent: s.TransferContent,
		}
	}
	return v
}

// Teardown stops the transfer poll and any pending redirect.
func (a *Adapter) Teardown() {
	a.poll.Stop()
	a.mu.Lock()
	if a.redirect != nil {
		a.redirect.Stop()
		a.redirect = nil
	}
	a.mu.Unlock()
}

func (a *Adapter) pollOnce() {
	a.mu.Lock()
	if a.paid || a.last == nil {
		a.mu.Unlock()
		return
	}
	id, code := a.last.BookingID, a.last.BookingCode
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	st, err := a.backend.StaffBookingStatus(ctx, id)
	if err != nil {
		a.log.Debug("transfer status poll skipped", "booking_id", id, "error", err)
		return
	}
	if !st.IsPaid() {
		return
	}
	a.poll.Stop()
	a.mu.Lock()
	a.paid = true
	if a.last != nil {
		a.last.PaymentStatus = model.PaymentPaid
	}
	a.redirect = a.clk.AfterFunc(a.redirectDelay, func() { a.notifier.Navigate(bookingPath(code)) })
	a.mu.Unlock()
	a.log.Info("transfer paid", "booking_id", id)
	a.notifier.Notify(notify.Success, msgTransferPaid)
}

func (a *Adapter) publish(ctx context.Context, req model.StaffBookingRequest, res model.StaffBookingResult) {
	if a.publisher == nil {
		return
	}
	labels := make([]string, 0, len(res.Seats))
	for _, s := range res.Seats {
		labels = append(labels, s.SeatLabel)
	}
	ev := queue.CounterBookingEvent{
		BookingID:     res.BookingID,
		BookingCode:   res.BookingCode,
		ShowtimeID:    a.showtimeID,
		StaffID:       a.staffID,
		CustomerName:  req.FullName,
		CustomerPhone: req.Phone,
		SeatLabels:    labels,
		PaymentMethod: string(res.PaymentMethod),
		PaymentStatus: string(res.PaymentStatus),
		TotalAmount:   int64(res.TotalAmount),
		FinalAmount:   int64(res.FinalAmount),
		CreatedAt:     a.clk.Now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if err := a.publisher.PublishCounterBooking(pctx, ev); err != nil {
		a.log.Warn("counter booking event not published", "error", err)
	}
}

func bookingPath(code string) string {
	if code == "" {
		return "/staff/pending-tickets"
	}
	return "/staff/bookings/" + url.PathEscape(code)
}
