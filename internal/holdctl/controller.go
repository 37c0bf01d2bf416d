// Package holdctl keeps the backend hold of a seat page in step with its
// selection.  A Controller observes the Selection, serialises acquire
// calls, runs the expiry countdown and owns the hold token until it is
// handed to checkout.
package holdctl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/hold"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/notify"
	"github.com/iliyamo/cinema-seat-checkout/internal/schedule"
	"github.com/iliyamo/cinema-seat-checkout/internal/selection"
)

var (
	// ErrClosed is returned by operations on a torn down controller.
	ErrClosed = errors.New("hold controller closed")
	// ErrEmptySelection is returned by HandOff when nothing is selected.
	ErrEmptySelection = errors.New("no seats selected")
)

const (
	msgLogin    = "Please log in to hold seats."
	msgConflict = "One or more seats were just taken by another customer. Please choose again."
	msgExpired  = "Your seat hold has expired. Please choose your seats again."
	msgFailed   = "Could not hold the selected seats. Please try again."
)

// Transport is the hold API the controller drives.
type Transport interface {
	AcquireOrRefresh(ctx context.Context, showtimeID int64, seatIDs []int64, previousToken string) (model.Hold, error)
	Release(ctx context.Context, showtimeID int64, token string, opts hold.ReleaseOptions)
}

// Refresher forces a seat-map refresh after a conflict.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config carries the per-page settings of a Controller.
type Config struct {
	ShowtimeID     int64
	Debounce       time.Duration // 0 syncs on the mutating goroutine
	RequestTimeout time.Duration
	Clock          clock.Clock
	Logger         *logger.Logger
}

// Controller is the hold state machine of one page instance.
type Controller struct {
	sel       *selection.Selection
	transport Transport
	refresher Refresher
	notifier  notify.Notifier
	clk       clock.Clock
	log       *logger.Logger

	showtimeID int64
	debounce   time.Duration
	timeout    time.Duration

	mu          sync.Mutex
	state       State
	hold        model.Hold
	holdVersion uint64
	countdown   *schedule.Countdown
	pending     clock.Timer
	inFlight    bool
	dirty       bool
	handingOff  bool
	seq         uint64
	unsubscribe func()

	wg sync.WaitGroup
}

// New builds a Controller and subscribes it to sel.  refresher and notifier
// may be nil.
func New(sel *selection.Selection, transport Transport, refresher Refresher, notifier notify.Notifier, cfg Config) *Controller {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	c := &Controller{
		sel:        sel,
		transport:  transport,
		refresher:  refresher,
		notifier:   notifier,
		clk:        cfg.Clock,
		log:        logger.Or(cfg.Logger).WithComponent("holdctl").WithShowtime(cfg.ShowtimeID),
		showtimeID: cfg.ShowtimeID,
		debounce:   cfg.Debounce,
		timeout:    cfg.RequestTimeout,
	}
	c.unsubscribe = sel.Subscribe(func(selection.Snapshot) { c.schedule() })
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Hold returns the current hold; the token is empty when none is held.
func (c *Controller) Hold() model.Hold {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hold
}

// Token returns the current hold token.
func (c *Controller) Token() string { return c.Hold().Token }

// Countdown returns the remaining hold time as MM:SS, or "" without a hold.
func (c *Controller) Countdown() string {
	c.mu.Lock()
	cd := c.countdown
	c.mu.Unlock()
	if cd == nil {
		return ""
	}
	return cd.Text()
}

// Sync schedules a synchronisation with the current selection.  Mount
// calls it after restoring a selection silently.
func (c *Controller) Sync() { c.schedule() }

// Flush runs any pending synchronisation now and waits for in-flight
// calls to finish.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()
	c.sync()
	c.wg.Wait()
}

// Wait blocks until in-flight acquire calls have completed.
func (c *Controller) Wait() { c.wg.Wait() }

// Back clears the selection and releases the hold, waiting for the
// release to complete.
func (c *Controller) Back(ctx context.Context) {
	c.sel.Clear()
	c.Flush()
}

// HandOff transfers the hold to checkout.  A hold matching the current
// selection is acquired synchronously when none is current.  Afterwards
// the controller never releases the token.
func (c *Controller) HandOff(ctx context.Context) (model.Hold, error) {
	c.mu.Lock()
	switch {
	case c.state == Closed:
		c.mu.Unlock()
		return model.Hold{}, ErrClosed
	case c.state == HandedOff:
		h := c.hold
		c.mu.Unlock()
		return h, nil
	}
	c.handingOff = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()

	c.wg.Wait()

	snap := c.sel.Snapshot()
	c.mu.Lock()
	if snap.Empty() {
		c.handingOff = false
		c.mu.Unlock()
		return model.Hold{}, ErrEmptySelection
	}
	h := c.hold
	if h.Token == "" || c.holdVersion != snap.Version {
		c.mu.Unlock()
		acquired, err := c.acquireNow(ctx, snap.IDs(), h.Token)
		if err != nil {
			c.mu.Lock()
			c.handingOff = false
			c.mu.Unlock()
			c.fail(err)
			return model.Hold{}, err
		}
		c.mu.Lock()
		h = acquired
		c.hold = acquired
	}
	c.state = HandedOff
	c.handingOff = false
	c.stopCountdownLocked()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	c.notifier.Countdown(notify.HoldCountdown, "")
	c.log.Info("hold handed off", "seats", len(h.SeatIDs))
	return h, nil
}

// Teardown discards the controller.  A hold it still owns is released
// with keepalive delivery; Teardown does not wait for the response.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	handed := c.state == HandedOff
	c.state = Closed
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.stopCountdownLocked()
	token := c.hold.Token
	if !handed {
		c.hold = model.Hold{}
	}
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if !handed && token != "" {
		c.transport.Release(context.Background(), c.showtimeID, token, hold.ReleaseOptions{Keepalive: true})
	}
}

func (c *Controller) schedule() {
	c.mu.Lock()
	if c.state == Closed || c.state == HandedOff || c.handingOff {
		c.mu.Unlock()
		return
	}
	if c.debounce <= 0 {
		c.mu.Unlock()
		c.sync()
		return
	}
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = c.clk.AfterFunc(c.debounce, c.sync)
	c.mu.Unlock()
}

// sync brings the backend hold in line with the selection.  At most one
// acquire is in flight; changes made meanwhile are picked up when it
// completes.
func (c *Controller) sync() {
	c.mu.Lock()
	c.pending = nil
	if c.state == Closed || c.state == HandedOff || c.handingOff {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.dirty = true
		c.mu.Unlock()
		return
	}
	snap := c.sel.Snapshot()
	if snap.Empty() {
		c.releaseLocked()
		return
	}
	c.inFlight = true
	c.dirty = false
	c.seq++
	seq, prev := c.seq, c.hold.Token
	c.state = Acquiring
	c.wg.Add(1)
	c.mu.Unlock()

	go c.acquire(seq, snap.Version, snap.IDs(), prev)
}

// releaseLocked gives back the current token after the selection became
// empty.  It is entered with c.mu held and returns with it released.
func (c *Controller) releaseLocked() {
	token := c.hold.Token
	c.hold = model.Hold{}
	c.holdVersion = 0
	c.stopCountdownLocked()
	if token == "" {
		if c.state == Acquiring || c.state == Held {
			c.state = Idle
		}
		c.mu.Unlock()
		return
	}
	c.state = Releasing
	c.mu.Unlock()

	c.notifier.Countdown(notify.HoldCountdown, "")
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.transport.Release(ctx, c.showtimeID, token, hold.ReleaseOptions{})

	c.mu.Lock()
	if c.state == Releasing {
		c.state = Idle
	}
	c.mu.Unlock()
}

func (c *Controller) acquire(seq, version uint64, ids []int64, prev string) {
	defer c.wg.Done()

	h, err := c.acquireNow(context.Background(), ids, prev)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.dirty = false
		if c.state == Closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.fail(err)
		return
	}

	// The backend has already swapped the previous token for this one.
	c.hold = h
	if c.state == Closed {
		c.hold = model.Hold{}
		c.mu.Unlock()
		c.transport.Release(context.Background(), c.showtimeID, h.Token, hold.ReleaseOptions{Keepalive: true})
		return
	}
	c.holdVersion = version
	if c.dirty || c.sel.Version() != version {
		c.log.Debug("selection changed during acquire", "seq", seq)
		c.dirty = false
		c.mu.Unlock()
		c.sync()
		return
	}
	c.state = Held
	cd := c.startCountdownLocked(h)
	c.mu.Unlock()
	cd.Start()
}

func (c *Controller) acquireNow(ctx context.Context, ids []int64, prev string) (model.Hold, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.transport.AcquireOrRefresh(ctx, c.showtimeID, ids, prev)
}

// fail applies the outcome of a failed acquire: the selection that
// depended on the hold is cleared in every case.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	switch {
	case errors.Is(err, api.ErrUnauthenticated):
		c.state = LoginRequired
	case errors.Is(err, api.ErrConflict):
		c.state = ConflictShown
	default:
		c.state = Idle
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case LoginRequired:
		c.log.Info("hold requires login")
		c.notifier.PromptLogin()
		c.notifier.Notify(notify.Error, msgLogin)
	case ConflictShown:
		c.log.Info("hold conflict", "error", err)
		c.notifier.Notify(notify.Conflict, msgConflict)
	default:
		c.log.Warn("hold acquire failed", "error", err)
		c.notifier.Notify(notify.Error, api.UserMessage(err, msgFailed))
	}
	c.sel.Clear()
	if state == LoginRequired {
		return
	}
	c.refresh()
	if state == ConflictShown {
		c.mu.Lock()
		if c.state == ConflictShown {
			c.state = Idle
		}
		c.mu.Unlock()
	}
}

func (c *Controller) refresh() {
	if c.refresher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.refresher.Refresh(ctx); err != nil {
		c.log.Debug("forced seat map refresh failed", "error", err)
	}
}

func (c *Controller) startCountdownLocked(h model.Hold) *schedule.Countdown {
	c.stopCountdownLocked()
	token := h.Token
	cd := schedule.NewCountdown(c.clk, h.ExpiresAt,
		func(text string) { c.notifier.Countdown(notify.HoldCountdown, text) },
		func() { c.expire(token) },
	)
	c.countdown = cd
	return cd
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
}

// expire handles the countdown reaching 00:00.  The local deadline is
// trusted even if the server has not expired the hold yet.
func (c *Controller) expire(token string) {
	c.mu.Lock()
	if c.state == Closed || c.state == HandedOff || c.hold.Token != token {
		c.mu.Unlock()
		return
	}
	c.hold = model.Hold{}
	c.holdVersion = 0
	c.countdown = nil
	c.state = Expired
	c.mu.Unlock()

	c.log.Info("hold expired")
	c.sel.Clear()
	c.notifier.Notify(notify.Expired, msgExpired)
	c.notifier.Countdown(notify.HoldCountdown, "")

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.transport.Release(ctx, c.showtimeID, token, hold.ReleaseOptions{})

	c.mu.Lock()
	if c.state == Expired {
		c.state = Idle
	}
	c.mu.Unlock()
}
