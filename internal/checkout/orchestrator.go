// Package checkout turns a handed-off hold into a payment session and
// watches the resulting booking until it is paid.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/hold"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/notify"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
	"github.com/iliyamo/cinema-seat-checkout/internal/schedule"
)

var (
	// ErrHoldExpired means neither a booking nor a live hold backs the page.
	ErrHoldExpired = errors.New("hold expired, choose seats again")
	// ErrSessionRejected wraps a {success:false} checkout response.
	ErrSessionRejected = errors.New("payment session rejected")
	// ErrClosed is returned after Back or Teardown.
	ErrClosed = errors.New("checkout closed")
)

const (
	msgHoldExpired   = "Your seat hold has expired. Please choose your seats again."
	msgSessionFailed = "Could not create the VietQR payment code."
	msgQRExpired     = "The QR code has expired. Press regenerate to get a new one."
	msgPaid          = "Payment received! Redirecting to your tickets..."
)

// SessionError carries the message of a {success:false} response.
type SessionError struct{ Message string }

func (e *SessionError) Error() string { return "payment session rejected: " + e.Message }

func (e *SessionError) Unwrap() error { return ErrSessionRejected }

// Phase is the externally visible stage of a checkout page.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseAwaiting  Phase = "awaiting_payment"
	PhaseQRExpired Phase = "qr_expired"
	PhasePaid      Phase = "paid"
	PhaseFailed    Phase = "failed"
	PhaseExpired   Phase = "hold_expired"
	PhaseClosed    Phase = "closed"
)

// Backend is the payment API used by the orchestrator.
type Backend interface {
	CreatePaymentSession(ctx context.Context, req model.CheckoutRequest) (model.PaymentSession, error)
	PaymentStatus(ctx context.Context, bookingID int64) (model.PaymentStatusResponse, error)
	CancelBooking(ctx context.Context, bookingID int64) (model.CancelBookingResponse, error)
}

// HoldTransport re-acquires and releases holds.
type HoldTransport interface {
	AcquireOrRefresh(ctx context.Context, showtimeID int64, seatIDs []int64, previousToken string) (model.Hold, error)
	Release(ctx context.Context, showtimeID int64, token string, opts hold.ReleaseOptions)
}

// Publisher receives the paid-booking event.
type Publisher interface {
	PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error
}

// Params is what the seat page hands over.  Either BookingID or
// HoldToken identifies the purchase; SeatIDs allow re-acquiring a hold.
type Params struct {
	ShowtimeID    int64
	MovieID       int64
	HoldToken     string
	HoldExpiresAt time.Time
	SeatIDs       []int64
	BookingID     int64
	BookingCode   string
	Email         string
	UserID        int64
}

// Config tunes timers and collaborators.
type Config struct {
	PollInterval   time.Duration
	RedirectDelay  time.Duration
	RequestTimeout time.Duration
	Clock          clock.Clock
	Logger         *logger.Logger
	Publisher      Publisher
}

// Orchestrator is the checkout page of one purchase.
type Orchestrator struct {
	backend   Backend
	transport HoldTransport
	notifier  notify.Notifier
	publisher Publisher
	clk       clock.Clock
	log       *logger.Logger

	showtimeID    int64
	movieID       int64
	seatIDs       []int64
	email         string
	userID        int64
	redirectDelay time.Duration
	timeout       time.Duration

	poll *schedule.Interval

	mu          sync.Mutex
	phase       Phase
	holdToken   string
	holdExpires time.Time
	bookingID   int64
	bookingCode string
	session     *model.PaymentSession
	lastError   string
	hidden      bool
	paid        bool
	closed      bool
	holdCD      *schedule.Countdown
	qrCD        *schedule.Countdown
	redirect    clock.Timer

	wg sync.WaitGroup
}

// New builds an orchestrator; nothing happens until Start.
func New(backend Backend, transport HoldTransport, notifier notify.Notifier, p Params, cfg Config) *Orchestrator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RedirectDelay < 0 {
		cfg.RedirectDelay = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	o := &Orchestrator{
		backend:       backend,
		transport:     transport,
		notifier:      notifier,
		publisher:     cfg.Publisher,
		clk:           cfg.Clock,
		log:           logger.Or(cfg.Logger).WithComponent("checkout").WithShowtime(p.ShowtimeID),
		showtimeID:    p.ShowtimeID,
		movieID:       p.MovieID,
		seatIDs:       append([]int64(nil), p.SeatIDs...),
		email:         p.Email,
		userID:        p.UserID,
		redirectDelay: cfg.RedirectDelay,
		timeout:       cfg.RequestTimeout,
		phase:         PhaseLoading,
		holdToken:     p.HoldToken,
		holdExpires:   p.HoldExpiresAt,
		bookingID:     p.BookingID,
		bookingCode:   p.BookingCode,
	}
	o.poll = schedule.NewInterval(o.clk, cfg.PollInterval, o.pollOnce)
	return o
}

// Start establishes the purchase identity and requests the first payment
// session.  Errors are also surfaced through the notifier.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	stale := !o.holdExpires.IsZero() && !o.holdExpires.After(o.clk.Now())
	needHold := o.bookingID == 0 && (o.holdToken == "" || stale)
	o.mu.Unlock()

	if needHold {
		if err := o.reacquire(ctx); err != nil {
			return err
		}
	} else {
		o.mu.Lock()
		cd := o.startHoldCountdownLocked()
		o.mu.Unlock()
		if cd != nil {
			cd.Start()
		}
	}
	return o.requestSession(ctx, true)
}

// Regenerate replaces the displayed payment artifact.  Once a booking id
// is known the new session is requested for that booking; no competing
// booking is ever created.
func (o *Orchestrator) Regenerate(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.paid {
		o.mu.Unlock()
		return nil
	}
	if o.phase == PhaseExpired && o.bookingID == 0 {
		o.mu.Unlock()
		o.notifier.Notify(notify.Expired, msgHoldExpired)
		return ErrHoldExpired
	}
	bookingID := o.bookingID
	o.mu.Unlock()

	if bookingID != 0 {
		if st, err := o.status(ctx, bookingID); err == nil && st.Status.IsPaid() {
			o.markPaid()
			return nil
		}
	}

	o.mu.Lock()
	o.clearArtifactLocked()
	o.phase = PhaseLoading
	needHold := o.bookingID == 0 && o.holdToken == ""
	o.mu.Unlock()
	o.notifier.Countdown(notify.QRCountdown, "")

	if needHold {
		if err := o.reacquire(ctx); err != nil {
			return err
		}
	}
	return o.requestSession(ctx, true)
}

// Back cancels the pending booking (or releases the hold) and navigates
// to the seat selection of the same showtime.
func (o *Orchestrator) Back(ctx context.Context) {
	if o.cleanup(ctx, false, false) {
		o.notifier.Navigate(SeatSelectionPath(o.movieID, o.showtimeID))
	}
}

// TeardownOptions describes how the page goes away.
type TeardownOptions struct {
	// Reload keeps the hold: the same page is about to mount again.
	Reload bool
}

// Teardown runs the Back cleanup with keepalive delivery and returns
// without waiting for the backend.
func (o *Orchestrator) Teardown(opts TeardownOptions) {
	o.cleanup(context.Background(), true, opts.Reload)
}

// SetHidden pauses the payment poll while the page is not visible.
func (o *Orchestrator) SetHidden(hidden bool) {
	o.mu.Lock()
	o.hidden = hidden
	o.mu.Unlock()
	if hidden {
		o.poll.Pause()
		return
	}
	o.poll.Resume()
}

// Wait blocks until detached cleanup calls have finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// View is the render model of the checkout page.
type View struct {
	Phase           Phase        `json:"phase"`
	BookingID       int64        `json:"bookingId,omitempty"`
	BookingCode     string       `json:"bookingCode,omitempty"`
	HoldActive      bool         `json:"holdActive"`
	OrderCode       string       `json:"orderCode,omitempty"`
	Amount          model.Amount `json:"amount"`
	AmountText      string       `json:"amountText"`
	QRBase64        string       `json:"qrBase64,omitempty"`
	CheckoutURL     string       `json:"checkoutUrl,omitempty"`
	BankLine        string       `json:"bankLine"`
	TransferContent string       `json:"transferContent,omitempty"`
	QRCountdown     string       `json:"qrCountdown"`
	HoldCountdown   string       `json:"holdCountdown,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// View returns the current render model.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := View{
		Phase:       o.phase,
		BookingID:   o.bookingID,
		BookingCode: o.bookingCode,
		HoldActive:  o.holdToken != "",
		BankLine:    model.DefaultBankInfo.String(),
		QRCountdown: "--:--",
		Error:       o.lastError,
	}
	if s := o.session; s != nil {
		v.OrderCode = s.OrderCode
		v.Amount = s.Amount
		v.QRBase64 = s.QRBase64
		v.CheckoutURL = s.CheckoutURL
		v.BankLine = s.Bank().String()
		v.TransferContent = s.TransferContent
	}
	v.AmountText = v.Amount.String()
	if o.qrCD != nil {
		v.QRCountdown = o.qrCD.Text()
	}
	if o.holdCD != nil {
		v.HoldCountdown = o.holdCD.Text()
	}
	return v
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// BookingID returns the sticky booking id, 0 before the first session.
func (o *Orchestrator) BookingID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bookingID
}

// ConfirmationPath is where a paid booking is displayed.
func ConfirmationPath(bookingCode string) string {
	return "/movies/confirmation/" + url.PathEscape(bookingCode)
}

// SeatSelectionPath is the seat page of a showtime, or "/" without a movie.
func SeatSelectionPath(movieID, showtimeID int64) string {
	if movieID == 0 {
		return "/"
	}
	p := "/movies/" + strconv.FormatInt(movieID, 10)
	if showtimeID != 0 {
		p += "?showtimeId=" + strconv.FormatInt(showtimeID, 10)
	}
	return p
}

// reacquire establishes a fresh hold from the carried seat ids.  Failure
// halts the page with the hold-expired message.
func (o *Orchestrator) reacquire(ctx context.Context) error {
	o.mu.Lock()
	prev := o.holdToken
	o.mu.Unlock()
	if len(o.seatIDs) == 0 {
		o.halt(ErrHoldExpired)
		return ErrHoldExpired
	}
	h, err := o.acquire(ctx, prev)
	if err != nil {
		o.log.Info("hold re-acquire failed", "error", err)
		if errors.Is(err, api.ErrUnauthenticated) {
			o.notifier.PromptLogin()
		}
		o.halt(ErrHoldExpired)
		return fmt.Errorf("%w: %v", ErrHoldExpired, err)
	}
	o.mu.Lock()
	o.holdToken = h.Token
	o.holdExpires = h.ExpiresAt
	cd := o.startHoldCountdownLocked()
	o.mu.Unlock()
	if cd != nil {
		cd.Start()
	}
	return nil
}

func (o *Orchestrator) acquire(ctx context.Context, prev string) (model.Hold, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.transport.AcquireOrRefresh(ctx, o.showtimeID, o.seatIDs, prev)
}

// requestSession asks for a payment session.  With retry set, one failure
// is followed by a hold refresh and a second attempt.
func (o *Orchestrator) requestSession(ctx context.Context, retry bool) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	req := model.CheckoutRequest{Email: o.email}
	switch {
	case o.bookingID != 0:
		id := o.bookingID
		req.BookingID = &id
	case o.holdToken != "":
		req.HoldToken = o.holdToken
	default:
		o.mu.Unlock()
		o.halt(ErrHoldExpired)
		return ErrHoldExpired
	}
	o.lastError = ""
	o.mu.Unlock()

	sess, err := o.createSession(ctx, req)
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			o.notifier.PromptLogin()
			o.fail(err)
			return err
		}
		if retry {
			o.log.Info("payment session failed, retrying once", "error", err)
			o.mu.Lock()
			refresh := o.bookingID == 0
			closed := o.closed
			o.mu.Unlock()
			if closed {
				return ErrClosed
			}
			if refresh {
				if rerr := o.reacquire(ctx); rerr != nil {
					return rerr
				}
			}
			return o.requestSession(ctx, false)
		}
		o.fail(err)
		return err
	}

	o.mu.Lock()
	if o.closed {
		// Closed while the request was in flight: the booking it created
		// would otherwise keep the seats.
		orphan := sess.BookingID != 0 && sess.BookingID != o.bookingID && !o.paid
		if orphan {
			o.wg.Add(1)
		}
		o.mu.Unlock()
		if orphan {
			detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
			go func() {
				defer o.wg.Done()
				defer cancel()
				o.cancelPending(detached, sess.BookingID)
			}()
		}
		return ErrClosed
	}
	if sess.BookingID != 0 {
		o.bookingID = sess.BookingID
	}
	if sess.BookingCode != "" {
		o.bookingCode = sess.BookingCode
	}
	// The booking now owns the seats.
	o.holdToken = ""
	if o.holdCD != nil {
		o.holdCD.Stop()
		o.holdCD = nil
	}
	o.session = &sess
	o.phase = PhaseAwaiting
	var qr *schedule.Countdown
	if !sess.ExpiresAt.IsZero() {
		qr = schedule.NewCountdown(o.clk, sess.ExpiresAt,
			func(text string) { o.notifier.Countdown(notify.QRCountdown, text) },
			o.qrExpired,
		)
		o.qrCD = qr
	}
	hidden := o.hidden
	bookingID := o.bookingID
	o.mu.Unlock()

	o.notifier.Countdown(notify.HoldCountdown, "")
	o.log.Info("payment session ready", "booking_id", bookingID, "order_code", sess.OrderCode)
	if qr != nil {
		qr.Start()
	} else {
		o.notifier.Countdown(notify.QRCountdown, "--:--")
	}
	if bookingID != 0 {
		o.poll.Stop()
		o.poll.Start()
		if hidden {
			o.poll.Pause()
		}
	}
	return nil
}

func (o *Orchestrator) createSession(ctx context.Context, req model.CheckoutRequest) (model.PaymentSession, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	sess, err := o.backend.CreatePaymentSession(ctx, req)
	if err != nil {
		return sess, fmt.Errorf("create payment session: %w", err)
	}
	if !sess.Success || sess.QRBase64 == "" {
		msg := sess.Message
		if msg == "" {
			msg = msgSessionFailed
		}
		return sess, &SessionError{Message: msg}
	}
	return sess, nil
}

func (o *Orchestrator) status(ctx context.Context, bookingID int64) (model.PaymentStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.backend.PaymentStatus(ctx, bookingID)
}

func (o *Orchestrator) pollOnce() {
	o.mu.Lock()
	if o.closed || o.paid || o.bookingID == 0 {
		o.mu.Unlock()
		return
	}
	id := o.bookingID
	o.mu.Unlock()

	st, err := o.status(context.Background(), id)
	if err != nil {
		o.log.Debug("payment status poll skipped", "booking_id", id, "error", err)
		return
	}
	if st.Status.IsPaid() {
		o.markPaid()
	}
}

// markPaid stops every timer, announces success and schedules the
// redirect to the confirmation page.
func (o *Orchestrator) markPaid() {
	o.mu.Lock()
	if o.paid || o.closed {
		o.mu.Unlock()
		return
	}
	o.paid = true
	o.phase = PhasePaid
	o.lastError = ""
	o.stopTimersLocked()
	code := o.bookingCode
	ev := queue.BookingPaidEvent{
		BookingID:   o.bookingID,
		BookingCode: code,
		ShowtimeID:  o.showtimeID,
		UserID:      o.userID,
		SeatIDs:     append([]int64(nil), o.seatIDs...),
		PaidAt:      o.clk.Now().UTC(),
	}
	if o.session != nil {
		ev.OrderCode = o.session.OrderCode
		ev.Amount = int64(o.session.Amount)
	}
	o.redirect = o.clk.AfterFunc(o.redirectDelay, func() {
		if code != "" {
			o.notifier.Navigate(ConfirmationPath(code))
		}
	})
	o.mu.Unlock()

	o.log.Info("booking paid", "booking_id", ev.BookingID, "booking_code", code)
	o.notifier.Notify(notify.Success, msgPaid)
	if o.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		if err := o.publisher.PublishBookingPaid(ctx, ev); err != nil {
			o.log.Warn("booking paid event not published", "error", err)
		}
	}
}

func (o *Orchestrator) qrExpired() {
	o.mu.Lock()
	if o.closed || o.paid {
		o.mu.Unlock()
		return
	}
	o.poll.Stop()
	o.phase = PhaseQRExpired
	o.lastError = msgQRExpired
	o.mu.Unlock()
	o.notifier.Notify(notify.Expired, msgQRExpired)
}

func (o *Orchestrator) holdExpired() {
	o.mu.Lock()
	if o.closed || o.paid || o.bookingID != 0 || o.holdToken == "" {
		o.mu.Unlock()
		return
	}
	token := o.holdToken
	o.holdToken = ""
	o.holdCD = nil
	o.phase = PhaseExpired
	o.lastError = msgHoldExpired
	o.wg.Add(1)
	o.mu.Unlock()
	o.notifier.Notify(notify.Expired, msgHoldExpired)

	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		o.transport.Release(ctx, o.showtimeID, token, hold.ReleaseOptions{})
	}()
}

func (o *Orchestrator) startHoldCountdownLocked() *schedule.Countdown {
	if o.holdCD != nil {
		o.holdCD.Stop()
		o.holdCD = nil
	}
	if o.bookingID != 0 || o.holdToken == "" || o.holdExpires.IsZero() {
		return nil
	}
	o.holdCD = schedule.NewCountdown(o.clk, o.holdExpires,
		func(text string) { o.notifier.Countdown(notify.HoldCountdown, text) },
		o.holdExpired,
	)
	return o.holdCD
}

func (o *Orchestrator) clearArtifactLocked() {
	o.session = nil
	o.lastError = ""
	o.poll.Stop()
	if o.qrCD != nil {
		o.qrCD.Stop()
		o.qrCD = nil
	}
}

func (o *Orchestrator) stopTimersLocked() {
	o.poll.Stop()
	if o.qrCD != nil {
		o.qrCD.Stop()
	}
	if o.holdCD != nil {
		o.holdCD.Stop()
		o.holdCD = nil
	}
}

func (o *Orchestrator) halt(err error) {
	o.mu.Lock()
	o.phase = PhaseExpired
	o.lastError = msgHoldExpired
	o.mu.Unlock()
	o.log.Info("checkout halted", "error", err)
	o.notifier.Notify(notify.Error, msgHoldExpired)
}

func (o *Orchestrator) fail(err error) {
	msg := api.UserMessage(err, msgSessionFailed)
	var se *SessionError
	rejected := errors.As(err, &se)
	if rejected {
		msg = se.Message
	}
	o.mu.Lock()
	o.phase = PhaseFailed
	o.lastError = msg
	o.mu.Unlock()
	o.log.Warn("payment session failed", "error", err, "rejected", rejected)
	o.notifier.Notify(notify.Error, msg)
}

// cleanup cancels the booking or releases the hold exactly once.  It
// reports whether this call performed the cleanup.
func (o *Orchestrator) cleanup(ctx context.Context, keepalive, reload bool) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.closed = true
	o.phase = PhaseClosed
	o.stopTimersLocked()
	if o.redirect != nil && !o.paid {
		o.redirect.Stop()
	}
	paid := o.paid
	bookingID := o.bookingID
	token := o.holdToken
	o.holdToken = ""
	o.session = nil
	o.mu.Unlock()

	o.notifier.Countdown(notify.QRCountdown, "")
	o.notifier.Countdown(notify.HoldCountdown, "")
	switch {
	case paid:
	case bookingID != 0:
		if !keepalive {
			o.cancelPending(ctx, bookingID)
			break
		}
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer cancel()
			o.cancelPending(detached, bookingID)
		}()
	case token != "" && !reload:
		o.transport.Release(ctx, o.showtimeID, token, hold.ReleaseOptions{Keepalive: keepalive})
	}
	return true
}

// cancelPending cancels an unpaid booking.  A booking that turned Paid in
// the meantime, or whose status cannot be read, is left alone.
func (o *Orchestrator) cancelPending(ctx context.Context, bookingID int64) {
	st, err := o.status(ctx, bookingID)
	if err != nil {
		o.log.Debug("status check before cancel failed", "booking_id", bookingID, "error", err)
		return
	}
	if st.Status.IsPaid() {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if _, err := o.backend.CancelBooking(cctx, bookingID); err != nil {
		o.log.Debug("cancel booking failed", "booking_id", bookingID, "error", err)
		return
	}
	o.log.Info("pending booking cancelled", "booking_id", bookingID)
}
