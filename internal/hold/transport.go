// Package hold is the only code path that creates, refreshes or releases
// seat holds on the backend.  Every exit path of a page (navigation,
// teardown, logout, expiry, reselection) funnels through Transport.Release.
package hold

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/store"
)

// Backend is the subset of the booking API used for holds.
type Backend interface {
	AcquireHold(ctx context.Context, req api.HoldRequest) (api.HoldResponse, error)
	ReleaseHold(ctx context.Context, showtimeID int64, token string) error
	BeaconRelease(ctx context.Context, showtimeID int64, token string) error
	ReleaseAllHolds(ctx context.Context) error
}

// ReleaseOptions selects the delivery strategy of Release.
type ReleaseOptions struct {
	// Keepalive is set during teardown: the release is dispatched on a
	// detached context and Release returns without waiting.
	Keepalive bool
}

// Transport acquires and releases holds and keeps the hold journal in
// sync with the last token issued.
type Transport struct {
	backend       Backend
	journal       store.HoldJournal
	log           *logger.Logger
	beaconTimeout time.Duration

	wg sync.WaitGroup
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Transport) { t.log = l.WithComponent("hold") }
}

// WithBeaconTimeout bounds detached keepalive deliveries.
func WithBeaconTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.beaconTimeout = d
		}
	}
}

// NewTransport builds a Transport.  A nil journal means an in-memory one.
func NewTransport(backend Backend, journal store.HoldJournal, opts ...Option) *Transport {
	if journal == nil {
		journal = store.NewMemoryJournal()
	}
	t := &Transport{backend: backend, journal: journal, log: logger.Nop(), beaconTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AcquireOrRefresh holds seatIDs for showtimeID.  When previousToken is set
// the backend swaps it for the new hold atomically.  Errors match
// api.ErrUnauthenticated and api.ErrConflict where applicable.
func (t *Transport) AcquireOrRefresh(ctx context.Context, showtimeID int64, seatIDs []int64, previousToken string) (model.Hold, error) {
	ids := append([]int64(nil), seatIDs...)
	resp, err := t.backend.AcquireHold(ctx, api.HoldRequest{
		ShowtimeID:        showtimeID,
		SeatIDs:           ids,
		PreviousHoldToken: previousToken,
	})
	if err != nil {
		return model.Hold{}, fmt.Errorf("acquire hold: %w", err)
	}
	h := model.Hold{Token: resp.HoldToken, ShowtimeID: showtimeID, SeatIDs: ids, ExpiresAt: resp.ExpiresAt}
	if err := t.journal.Save(ctx, model.StoredHold{ShowtimeID: showtimeID, HoldToken: h.Token}); err != nil {
		t.log.Warn("hold journal save failed", "error", err)
	}
	return h, nil
}

// Release gives a hold back.  Failures are logged and swallowed: the
// backend expires abandoned holds on its own.
func (t *Transport) Release(ctx context.Context, showtimeID int64, token string, opts ReleaseOptions) {
	if showtimeID == 0 || token == "" {
		return
	}
	if !opts.Keepalive {
		if err := t.backend.ReleaseHold(ctx, showtimeID, token); err != nil {
			t.log.Debug("hold release failed", "showtime_id", showtimeID, "error", err)
			return
		}
		t.forget(ctx, token)
		return
	}

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.beaconTimeout)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		err := t.backend.BeaconRelease(detached, showtimeID, token)
		if err == nil {
			t.forget(detached, token)
			return
		}
		t.log.Debug("hold beacon failed, falling back", "showtime_id", showtimeID, "error", err)
		if err := t.backend.ReleaseHold(detached, showtimeID, token); err != nil {
			t.log.Debug("hold keepalive release failed", "showtime_id", showtimeID, "error", err)
			return
		}
		t.forget(detached, token)
	}()
}

// ReleaseAll releases every hold of the current session, best-effort.
func (t *Transport) ReleaseAll(ctx context.Context) {
	if err := t.backend.ReleaseAllHolds(ctx); err != nil {
		t.log.Debug("release all holds failed", "error", err)
	}
}

// ReleaseStored releases the hold recorded by a previous page, if any, and
// clears the record.
func (t *Transport) ReleaseStored(ctx context.Context) {
	rec, ok, err := t.journal.Load(ctx)
	if err != nil {
		t.log.Debug("hold journal load failed", "error", err)
		return
	}
	if !ok {
		return
	}
	t.Release(ctx, rec.ShowtimeID, rec.HoldToken, ReleaseOptions{})
	if err := t.journal.Clear(ctx); err != nil {
		t.log.Debug("hold journal clear failed", "error", err)
	}
}

// Wait blocks until detached keepalive releases have finished.
func (t *Transport) Wait() { t.wg.Wait() }

// forget clears the journal when it still records token.
func (t *Transport) forget(ctx context.Context, token string) {
	rec, ok, err := t.journal.Load(ctx)
	if err != nil || !ok || rec.HoldToken != token {
		return
	}
	if err := t.journal.Clear(ctx); err != nil {
		t.log.Debug("hold journal clear failed", "error", err)
	}
}
