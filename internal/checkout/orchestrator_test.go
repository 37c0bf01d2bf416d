package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/hold"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/notify"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
)

type sessionResult struct {
	sess model.PaymentSession
	err  error
}

type fakeBackend struct {
	mu          sync.Mutex
	results     []sessionResult
	requests    []model.CheckoutRequest
	statuses    []model.PaymentStatus
	statusCalls int
	cancels     []int64
}

func (f *fakeBackend) CreatePaymentSession(_ context.Context, req model.CheckoutRequest) (model.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.results) == 0 {
		return model.PaymentSession{}, errors.New("no session scripted")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.sess, r.err
}

func (f *fakeBackend) PaymentStatus(_ context.Context, bookingID int64) (model.PaymentStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	st := model.PaymentUnpaid
	if len(f.statuses) > 0 {
		st = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	return model.PaymentStatusResponse{BookingID: bookingID, Status: st}, nil
}

func (f *fakeBackend) CancelBooking(_ context.Context, bookingID int64) (model.CancelBookingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, bookingID)
	return model.CancelBookingResponse{BookingID: bookingID, BookingStatus: model.BookingCancelled}, nil
}

func (f *fakeBackend) snapshot() ([]model.CheckoutRequest, []int64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CheckoutRequest(nil), f.requests...), append([]int64(nil), f.cancels...), f.statusCalls
}

type fakeTransport struct {
	clk *clock.Fake
	ttl time.Duration
	err error

	mu       sync.Mutex
	n        int
	prevs    []string
	releases []hold.ReleaseOptions
	released []string
}

func (f *fakeTransport) AcquireOrRefresh(_ context.Context, showtimeID int64, ids []int64, prev string) (model.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prevs = append(f.prevs, prev)
	if f.err != nil {
		return model.Hold{}, f.err
	}
	f.n++
	return model.Hold{Token: fmt.Sprintf("r-%d", f.n), ShowtimeID: showtimeID, SeatIDs: ids, ExpiresAt: f.clk.Now().Add(f.ttl)}, nil
}

func (f *fakeTransport) Release(_ context.Context, _ int64, token string, opts hold.ReleaseOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, token)
	f.releases = append(f.releases, opts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingPaidEvent
}

func (p *recordingPublisher) PublishBookingPaid(_ context.Context, ev queue.BookingPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	clk *clock.Fake
	be  *fakeBackend
	tr  *fakeTransport
	rec *notify.Recorder
	pub *recordingPublisher
}

func newFixture() *fixture {
	clk := clock.NewFake(time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC))
	return &fixture{
		clk: clk,
		be:  &fakeBackend{},
		tr:  &fakeTransport{clk: clk, ttl: 10 * time.Minute},
		rec: notify.NewRecorder(),
		pub: &recordingPublisher{},
	}
}

func (f *fixture) session(id int64, code string) model.PaymentSession {
	return model.PaymentSession{
		Success:         true,
		BookingID:       id,
		BookingCode:     code,
		OrderCode:       "PAY123",
		Amount:          180000,
		QRBase64:        "data:image/png;base64,AAAA",
		TransferContent: "PAY123",
		ExpiresAt:       f.clk.Now().Add(15 * time.Minute),
	}
}

func (f *fixture) orchestrator(p Params) *Orchestrator {
	if p.ShowtimeID == 0 {
		p.ShowtimeID = 42
	}
	if p.Email == "" {
		p.Email = "guest@example.com"
	}
	return New(f.be, f.tr, f.rec, p, Config{
		PollInterval:  5 * time.Second,
		RedirectDelay: 2 * time.Second,
		Clock:         f.clk,
		Publisher:     f.pub,
	})
}

func TestStartRequestsSessionWithHoldToken(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	o := f.orchestrator(Params{HoldToken: "h-1", HoldExpiresAt: f.clk.Now().Add(5 * time.Minute), SeatIDs: []int64{1, 2}})

	require.NoError(t, o.Start(context.Background()))

	reqs, _, _ := f.be.snapshot()
	require.Len(t, reqs, 1)
	assert.Equal(t, "h-1", reqs[0].HoldToken)
	assert.Nil(t, reqs[0].BookingID)
	assert.Equal(t, "guest@example.com", reqs[0].Email)

	v := o.View()
	assert.Equal(t, PhaseAwaiting, v.Phase)
	assert.Equal(t, int64(55), v.BookingID)
	assert.Equal(t, "PAY123", v.OrderCode)
	assert.Equal(t, "180.000 ₫", v.AmountText)
	assert.Equal(t, model.DefaultBankInfo.String(), v.BankLine)
	assert.False(t, v.HoldActive)
	assert.Equal(t, "15:00", v.QRCountdown)
	assert.Empty(t, f.rec.CountdownText(notify.HoldCountdown))
}

func TestRegenerateReusesBookingID(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1, 2}})
	require.NoError(t, o.Start(context.Background()))

	require.NoError(t, o.Regenerate(context.Background()))
	require.NoError(t, o.Regenerate(context.Background()))

	reqs, cancels, _ := f.be.snapshot()
	require.Len(t, reqs, 3)
	for _, r := range reqs[1:] {
		require.NotNil(t, r.BookingID)
		assert.Equal(t, int64(55), *r.BookingID)
		assert.Empty(t, r.HoldToken)
	}
	assert.Empty(t, cancels)
	assert.Empty(t, f.tr.prevs, "no hold is re-acquired once a booking exists")
	assert.Equal(t, PhaseAwaiting, o.Phase())
}

func TestPaidRedirectsAfterDelay(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	f.be.statuses = []model.PaymentStatus{model.PaymentUnpaid, model.PaymentPaid}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1, 2}, UserID: 9})
	require.NoError(t, o.Start(context.Background()))

	f.clk.Advance(5 * time.Second)
	assert.Equal(t, PhaseAwaiting, o.Phase())
	f.clk.Advance(5 * time.Second)
	assert.Equal(t, PhasePaid, o.Phase())
	last, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Success, last.Kind)
	assert.Empty(t, f.rec.View().Navigation)

	f.clk.Advance(2 * time.Second)
	assert.Equal(t, "/movies/confirmation/BK55", f.rec.View().Navigation)

	_, _, polls := f.be.snapshot()
	f.clk.Advance(time.Minute)
	_, _, after := f.be.snapshot()
	assert.Equal(t, polls, after, "polling stops once paid")

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0]
	assert.Equal(t, int64(55), ev.BookingID)
	assert.Equal(t, "BK55", ev.BookingCode)
	assert.Equal(t, int64(180000), ev.Amount)
	assert.Equal(t, []int64{1, 2}, ev.SeatIDs)
	assert.Equal(t, int64(9), ev.UserID)
}

func TestSessionFailureRetriesOnceAfterRefreshingHold(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{
		{err: errors.New("connection reset")},
		{sess: f.session(55, "BK55")},
	}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1, 2}})

	require.NoError(t, o.Start(context.Background()))

	reqs, _, _ := f.be.snapshot()
	require.Len(t, reqs, 2)
	assert.Equal(t, "h-1", reqs[0].HoldToken)
	assert.Equal(t, "r-1", reqs[1].HoldToken)
	assert.Equal(t, []string{"h-1"}, f.tr.prevs)
}

func TestSessionFailureSurfacesAfterRetry(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: model.PaymentSession{Success: false, Message: "Seats no longer available"}}}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1, 2}})

	err := o.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionRejected)

	reqs, _, _ := f.be.snapshot()
	assert.Len(t, reqs, 2)
	v := o.View()
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.Equal(t, "Seats no longer available", v.Error)
	last, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Kind)
}

func TestStartWithoutIdentityReacquires(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	o := f.orchestrator(Params{SeatIDs: []int64{3}})

	require.NoError(t, o.Start(context.Background()))
	reqs, _, _ := f.be.snapshot()
	assert.Equal(t, "r-1", reqs[0].HoldToken)
	assert.Equal(t, []string{""}, f.tr.prevs)
}

func TestStartReacquiresWhenHoldAlreadyExpired(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(56, "BK56")}}
	o := f.orchestrator(Params{HoldToken: "stale", HoldExpiresAt: f.clk.Now().Add(-time.Second), SeatIDs: []int64{1, 2}})

	require.NoError(t, o.Start(context.Background()))
	assert.Equal(t, []string{"stale"}, f.tr.prevs)
	reqs, _, _ := f.be.snapshot()
	require.Len(t, reqs, 1)
	assert.Equal(t, "r-1", reqs[0].HoldToken)
	assert.Equal(t, PhaseAwaiting, o.Phase())
}

func TestStartHaltsWhenHoldCannotBeRestored(t *testing.T) {
	f := newFixture()
	f.tr.err = fmt.Errorf("acquire hold: %w", api.ErrConflict)
	o := f.orchestrator(Params{SeatIDs: []int64{3}})

	err := o.Start(context.Background())
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, PhaseExpired, o.Phase())
	reqs, _, _ := f.be.snapshot()
	assert.Empty(t, reqs)

	o2 := f.orchestrator(Params{})
	assert.ErrorIs(t, o2.Start(context.Background()), ErrHoldExpired)
}

func TestBackCancelsPendingBooking(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}, MovieID: 7})
	require.NoError(t, o.Start(context.Background()))

	o.Back(context.Background())

	_, cancels, _ := f.be.snapshot()
	assert.Equal(t, []int64{55}, cancels)
	assert.Empty(t, f.tr.released)
	assert.Equal(t, "/movies/7?showtimeId=42", f.rec.View().Navigation)
	assert.Equal(t, PhaseClosed, o.Phase())
	assert.ErrorIs(t, o.Regenerate(context.Background()), ErrClosed)
}

// blockingBackend parks CreatePaymentSession until release is closed.
type blockingBackend struct {
	*fakeBackend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) CreatePaymentSession(ctx context.Context, req model.CheckoutRequest) (model.PaymentSession, error) {
	close(b.entered)
	<-b.release
	return b.fakeBackend.CreatePaymentSession(ctx, req)
}

func TestBackDuringSessionRequestCancelsNewBooking(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(9, "BK9")}}
	be := &blockingBackend{fakeBackend: f.be, entered: make(chan struct{}), release: make(chan struct{})}
	o := New(be, f.tr, f.rec, Params{ShowtimeID: 42, HoldToken: "h1", SeatIDs: []int64{1}}, Config{Clock: f.clk})

	done := make(chan error, 1)
	go func() { done <- o.Start(context.Background()) }()
	<-be.entered
	o.Back(context.Background())
	close(be.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	o.Wait()
	_, cancels, _ := f.be.snapshot()
	assert.Equal(t, []int64{9}, cancels)
	assert.Equal(t, []string{"h1"}, f.tr.released)
	assert.Zero(t, o.BookingID())
}

func TestBackLeavesPaidBookingAlone(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	f.be.statuses = []model.PaymentStatus{"PAID"}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
	require.NoError(t, o.Start(context.Background()))

	o.Back(context.Background())

	_, cancels, _ := f.be.snapshot()
	assert.Empty(t, cancels)
	assert.Equal(t, "/", f.rec.View().Navigation)
}

func TestBackReleasesHoldWithoutBooking(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{err: errors.New("gateway down")}}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
	require.Error(t, o.Start(context.Background()))

	o.Back(context.Background())

	assert.Equal(t, []string{"r-1"}, f.tr.released)
	assert.Equal(t, []hold.ReleaseOptions{{}}, f.tr.releases)
}

func TestTeardownUsesKeepalive(t *testing.T) {
	t.Run("booking is cancelled in the background", func(t *testing.T) {
		f := newFixture()
		f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
		o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
		require.NoError(t, o.Start(context.Background()))

		o.Teardown(TeardownOptions{})
		o.Wait()

		_, cancels, _ := f.be.snapshot()
		assert.Equal(t, []int64{55}, cancels)
		assert.Empty(t, f.rec.View().Navigation)
	})
	t.Run("hold is released unless reloading", func(t *testing.T) {
		f := newFixture()
		f.be.results = []sessionResult{{err: errors.New("gateway down")}}
		o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
		require.Error(t, o.Start(context.Background()))
		o.Teardown(TeardownOptions{})
		assert.Equal(t, []hold.ReleaseOptions{{Keepalive: true}}, f.tr.releases)

		f2 := newFixture()
		f2.be.results = []sessionResult{{err: errors.New("gateway down")}}
		o2 := f2.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
		require.Error(t, o2.Start(context.Background()))
		o2.Teardown(TeardownOptions{Reload: true})
		assert.Empty(t, f2.tr.releases)
	})
}

func TestQRExpiryStopsPolling(t *testing.T) {
	f := newFixture()
	sess := f.session(55, "BK55")
	sess.ExpiresAt = f.clk.Now().Add(7 * time.Second)
	f.be.results = []sessionResult{{sess: sess}}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
	require.NoError(t, o.Start(context.Background()))

	f.clk.Advance(7 * time.Second)
	assert.Equal(t, PhaseQRExpired, o.Phase())
	assert.Equal(t, "00:00", f.rec.CountdownText(notify.QRCountdown))
	_, _, polls := f.be.snapshot()
	assert.Equal(t, 1, polls)

	f.clk.Advance(time.Minute)
	_, _, after := f.be.snapshot()
	assert.Equal(t, 1, after)

	f.be.mu.Lock()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	f.be.mu.Unlock()
	require.NoError(t, o.Regenerate(context.Background()))
	assert.Equal(t, PhaseAwaiting, o.Phase())
}

func TestHiddenPagePausesPolling(t *testing.T) {
	f := newFixture()
	f.be.results = []sessionResult{{sess: f.session(55, "BK55")}}
	o := f.orchestrator(Params{HoldToken: "h-1", SeatIDs: []int64{1}})
	require.NoError(t, o.Start(context.Background()))

	o.SetHidden(true)
	f.clk.Advance(time.Minute)
	_, _, polls := f.be.snapshot()
	assert.Zero(t, polls)

	o.SetHidden(false)
	f.clk.Advance(5 * time.Second)
	_, _, polls = f.be.snapshot()
	assert.Equal(t, 1, polls)
}

func TestHoldCountdownExpiresBeforeSession(t *testing.T) {
	f := newFixture()
	f.tr.ttl = 3 * time.Second
	f.be.results = []sessionResult{{err: errors.New("gateway down")}}
	o := f.orchestrator(Params{HoldToken: "h-1", HoldExpiresAt: f.clk.Now().Add(time.Minute), SeatIDs: []int64{1}})
	require.Error(t, o.Start(context.Background()))
	assert.True(t, o.View().HoldActive)
	assert.Equal(t, "00:03", f.rec.CountdownText(notify.HoldCountdown))

	f.clk.Advance(3 * time.Second)
	v := o.View()
	assert.False(t, v.HoldActive)
	assert.Equal(t, PhaseExpired, v.Phase)

	o.Wait()
	f.tr.mu.Lock()
	assert.Equal(t, []string{"r-1"}, f.tr.released)
	assert.Equal(t, []hold.ReleaseOptions{{}}, f.tr.releases)
	f.tr.mu.Unlock()

	assert.ErrorIs(t, o.Regenerate(context.Background()), ErrHoldExpired)
	reqs, _, _ := f.be.snapshot()
	assert.Len(t, reqs, 2)
}

func TestSeatSelectionPath(t *testing.T) {
	assert.Equal(t, "/", SeatSelectionPath(0, 42))
	assert.Equal(t, "/movies/7", SeatSelectionPath(7, 0))
	assert.Equal(t, "/movies/7?showtimeId=42", SeatSelectionPath(7, 42))
	assert.Equal(t, "/movies/confirmation/BK%2F1", ConfirmationPath("BK/1"))
}
