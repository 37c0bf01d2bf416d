package page

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/counter"
	"github.com/iliyamo/cinema-seat-checkout/internal/hold"
	"github.com/iliyamo/cinema-seat-checkout/internal/holdctl"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/notify"
	"github.com/iliyamo/cinema-seat-checkout/internal/seatmap"
	"github.com/iliyamo/cinema-seat-checkout/internal/selection"
)

var (
	// ErrCheckoutDisabled is returned by Checkout on counter pages.
	ErrCheckoutDisabled = errors.New("checkout is not available on the counter page")
	// ErrNotCounter is returned by counter operations on customer pages.
	ErrNotCounter = errors.New("page has no counter booking form")
)

const msgLimit = "You can select up to %d seats per booking."

// SeatParams describe the seat page being mounted.
type SeatParams struct {
	ShowtimeID int64
	MovieID    int64
	// Seats is the snapshot rendered with the page; empty means fetch it.
	Seats        []model.Seat
	MaxSelection int
	Identity     identity.Identity
	// Session names the kiosk session whose hold journal the page uses.
	Session string
	// Counter mounts the staff booking form instead of the checkout button.
	Counter bool
}

// SeatPage is one mounted seat-selection page.
type SeatPage struct {
	showtimeID int64
	movieID    int64
	ident      identity.Identity
	deps       *Deps
	backend    api.Backend
	log        *logger.Logger

	Notifier   *notify.Recorder
	Selection  *selection.Selection
	Board      *seatmap.Board
	Refresher  *seatmap.Refresher
	Transport  *hold.Transport
	Controller *holdctl.Controller
	Counter    *counter.Adapter

	mu     sync.Mutex
	hidden bool
	closed bool
}

// MountSeats builds a seat page and runs the mount sequence: release a
// hold left by an earlier page of the session, release every other hold of
// the user, paint the snapshot, start the seat-map poll and re-hold any
// restored selection.
func MountSeats(ctx context.Context, deps *Deps, p SeatParams) (*SeatPage, error) {
	if p.ShowtimeID <= 0 {
		return nil, fmt.Errorf("invalid showtime id %d", p.ShowtimeID)
	}
	if p.Counter && !p.Identity.IsStaff() {
		return nil, errors.New("counter page requires a staff account")
	}
	max := p.MaxSelection
	if max <= 0 {
		max = deps.Settings.MaxSelection
	}
	clk := deps.clock()
	log := logger.Or(deps.Logger).WithShowtime(p.ShowtimeID)
	backend := deps.Backend(p.Identity)
	rec := notify.NewRecorder()

	sp := &SeatPage{
		showtimeID: p.ShowtimeID,
		movieID:    p.MovieID,
		ident:      p.Identity,
		deps:       deps,
		backend:    backend,
		log:        log,
		Notifier:   rec,
		Selection:  selection.New(max),
	}
	sp.Board = seatmap.NewBoard(sp.Selection,
		seatmap.WithUserID(p.Identity.UserID),
		seatmap.WithPoster(deps.Settings.PosterURL),
		seatmap.WithLimitHandler(func(n int) { rec.Notify(notify.Limit, fmt.Sprintf(msgLimit, n)) }),
	)
	src := deps.source(backend)
	sp.Refresher = seatmap.NewRefresher(src, sp.Board, p.ShowtimeID, clk, deps.Settings.SeatMapRefresh, log)
	sp.Transport = newTransport(deps, backend, p.Session, log)
	sp.Controller = holdctl.New(sp.Selection, sp.Transport, sp.Refresher, rec, holdctl.Config{
		ShowtimeID:     p.ShowtimeID,
		Debounce:       deps.Settings.HoldSyncDebounce,
		RequestTimeout: deps.Settings.RequestTimeout,
		Clock:          clk,
		Logger:         log,
	})
	if p.Counter {
		sp.Counter = counter.New(sp.Selection, sp.Controller, backend, rec, counter.Config{
			ShowtimeID:     p.ShowtimeID,
			StaffID:        p.Identity.UserID,
			PollInterval:   deps.Settings.PaymentPoll,
			RequestTimeout: deps.Settings.RequestTimeout,
			Clock:          clk,
			Logger:         log,
			Publisher:      deps.Publisher,
		})
	}

	sp.Transport.ReleaseStored(ctx)
	sp.Transport.ReleaseAll(ctx)
	seats := p.Seats
	if len(seats) == 0 {
		fetched, err := src.SeatMap(ctx, p.ShowtimeID)
		if err != nil {
			log.Warn("initial seat map fetch failed", "error", err)
		}
		seats = fetched
	}
	sp.Board.Hydrate(seats)
	sp.Refresher.Start()
	if sp.Selection.Len() > 0 {
		sp.Controller.Sync()
	}
	log.Info("seat page mounted", "user_id", p.Identity.UserID, "seats", len(seats), "counter", p.Counter)
	return sp, nil
}

// ShowtimeID returns the showtime of the page.
func (sp *SeatPage) ShowtimeID() int64 { return sp.showtimeID }

// Owner returns the identity the page was mounted for.
func (sp *SeatPage) Owner() identity.Identity { return sp.ident }

// Toggle handles a click on a seat.
func (sp *SeatPage) Toggle(seatID int64) seatmap.ClickResult {
	return sp.Board.Click(seatID)
}

// Back clears the selection and releases the hold.
func (sp *SeatPage) Back(ctx context.Context) {
	sp.Controller.Back(ctx)
}

// SetHidden pauses the seat-map poll while the page is not visible.
func (sp *SeatPage) SetHidden(hidden bool) {
	sp.mu.Lock()
	if sp.closed || sp.hidden == hidden {
		sp.mu.Unlock()
		return
	}
	sp.hidden = hidden
	sp.mu.Unlock()
	if hidden {
		sp.Refresher.Pause()
		return
	}
	sp.Refresher.Resume()
}

// Wait blocks until background work of the page has finished.
func (sp *SeatPage) Wait() {
	sp.Controller.Wait()
	sp.Transport.Wait()
}

// Teardown stops every timer and releases the hold unless it was handed to
// a checkout page.
func (sp *SeatPage) Teardown() {
	sp.mu.Lock()
	if sp.closed {
		sp.mu.Unlock()
		return
	}
	sp.closed = true
	sp.mu.Unlock()
	sp.Refresher.Stop()
	sp.Controller.Teardown()
	if sp.Counter != nil {
		sp.Counter.Teardown()
	}
}

// Checkout hands the hold to a new checkout page and starts it.  The seat
// page stops polling but is not torn down; the caller discards it.
func (sp *SeatPage) Checkout(ctx context.Context, email string) (*CheckoutPage, error) {
	if sp.Counter != nil {
		return nil, ErrCheckoutDisabled
	}
	h, err := sp.Controller.HandOff(ctx)
	if err != nil {
		return nil, err
	}
	sp.Refresher.Stop()
	if email == "" {
		email = sp.ident.Email
	}
	cp := newCheckoutPage(sp.deps, sp.backend, sp.Transport, checkout.Params{
		ShowtimeID:    sp.showtimeID,
		MovieID:       sp.movieID,
		HoldToken:     h.Token,
		HoldExpiresAt: h.ExpiresAt,
		SeatIDs:       h.SeatIDs,
		Email:         email,
		UserID:        sp.ident.UserID,
	}, sp.ident)
	if err := cp.Orchestrator.Start(ctx); err != nil {
		sp.log.Warn("checkout start failed", "error", err)
	}
	return cp, nil
}

// SubmitCounter books the selected seats at the box office.
func (sp *SeatPage) SubmitCounter(ctx context.Context, f counter.Form) (model.StaffBookingResult, error) {
	if sp.Counter == nil {
		return model.StaffBookingResult{}, ErrNotCounter
	}
	return sp.Counter.Submit(ctx, f)
}

// SeatView is the render state of a seat page.
type SeatView struct {
	ShowtimeID      int64              `json:"showtimeId"`
	State           string             `json:"state"`
	Countdown       string             `json:"countdown,omitempty"`
	Seats           []seatmap.SeatView `json:"seats"`
	Selection       []selection.Item   `json:"selection"`
	Total           model.Amount       `json:"total"`
	TotalText       string             `json:"totalText"`
	Remaining       int                `json:"remaining"`
	CheckoutEnabled bool               `json:"checkoutEnabled"`
	BackLabel       string             `json:"backLabel"`
	Notices         notify.View        `json:"notices"`
	Counter         *counter.View      `json:"counter,omitempty"`
}

// View returns the render state.
func (sp *SeatPage) View() SeatView {
	snap := sp.Selection.Snapshot()
	v := SeatView{
		ShowtimeID:      sp.showtimeID,
		State:           sp.Controller.State().String(),
		Countdown:       sp.Controller.Countdown(),
		Seats:           sp.Board.View(),
		Selection:       snap.Items,
		Total:           snap.Total,
		TotalText:       snap.Total.String(),
		Remaining:       sp.Selection.Remaining(),
		CheckoutEnabled: len(snap.Items) > 0,
		BackLabel:       "back",
		Notices:         sp.Notifier.View(),
	}
	if sp.Counter != nil {
		cv := sp.Counter.View()
		v.Counter = &cv
		v.CheckoutEnabled = sp.Counter.CheckoutEnabled()
		v.BackLabel = sp.Counter.BackLabel()
	}
	return v
}
