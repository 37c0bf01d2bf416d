package hold

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
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/store"
)

type fakeBackend struct {
	mu         sync.Mutex
	calls      []string
	requests   []api.HoldRequest
	acquireErr error
	beaconErr  error
	deleteErr  error
	next       int
}

func (f *fakeBackend) AcquireHold(_ context.Context, req api.HoldRequest) (api.HoldResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.acquireErr != nil {
		return api.HoldResponse{}, f.acquireErr
	}
	f.next++
	return api.HoldResponse{HoldToken: fmt.Sprintf("h-%d", f.next), ExpiresAt: time.Unix(600, 0)}, nil
}

func (f *fakeBackend) ReleaseHold(_ context.Context, showtimeID int64, token string) error {
	f.record("DELETE " + token)
	return f.deleteErr
}

func (f *fakeBackend) BeaconRelease(_ context.Context, showtimeID int64, token string) error {
	f.record("BEACON " + token)
	return f.beaconErr
}

func (f *fakeBackend) ReleaseAllHolds(context.Context) error {
	f.record("ALL")
	return nil
}

func (f *fakeBackend) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestAcquireOrRefreshJournals(t *testing.T) {
	be := &fakeBackend{}
	j := store.NewMemoryJournal()
	tr := NewTransport(be, j)
	ctx := context.Background()

	h, err := tr.AcquireOrRefresh(ctx, 5, []int64{1, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, "h-1", h.Token)
	assert.Equal(t, []int64{1, 2}, h.SeatIDs)

	h2, err := tr.AcquireOrRefresh(ctx, 5, []int64{1}, h.Token)
	require.NoError(t, err)
	assert.Equal(t, "h-1", be.requests[1].PreviousHoldToken)

	rec, ok, _ := j.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, model.StoredHold{ShowtimeID: 5, HoldToken: h2.Token}, rec)
}

func TestAcquireErrorsKeepSentinels(t *testing.T) {
	be := &fakeBackend{acquireErr: &api.Error{Status: 400, Message: "Seat already held"}}
	tr := NewTransport(be, nil)

	_, err := tr.AcquireOrRefresh(context.Background(), 5, []int64{1}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrConflict))
}

func TestReleaseNormalIsAwaited(t *testing.T) {
	be := &fakeBackend{}
	j := store.NewMemoryJournal()
	tr := NewTransport(be, j)
	ctx := context.Background()
	_, _ = tr.AcquireOrRefresh(ctx, 5, []int64{1}, "")

	tr.Release(ctx, 5, "h-1", ReleaseOptions{})

	assert.Equal(t, []string{"DELETE h-1"}, be.Calls())
	_, ok, _ := j.Load(ctx)
	assert.False(t, ok)
}

func TestReleaseSwallowsFailures(t *testing.T) {
	be := &fakeBackend{deleteErr: errors.New("offline")}
	j := store.NewMemoryJournal()
	tr := NewTransport(be, j)
	ctx := context.Background()
	_, _ = tr.AcquireOrRefresh(ctx, 5, []int64{1}, "")

	tr.Release(ctx, 5, "h-1", ReleaseOptions{})

	_, ok, _ := j.Load(ctx)
	assert.True(t, ok, "journal survives a failed release so the next mount retries")
}

func TestReleaseKeepalive(t *testing.T) {
	tests := []struct {
		name      string
		beaconErr error
		want      []string
	}{
		{name: "beacon delivered", want: []string{"BEACON h-9"}},
		{name: "beacon refused falls back to delete", beaconErr: errors.New("refused"), want: []string{"BEACON h-9", "DELETE h-9"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			be := &fakeBackend{beaconErr: tc.beaconErr}
			tr := NewTransport(be, nil)

			ctx, cancel := context.WithCancel(context.Background())
			tr.Release(ctx, 5, "h-9", ReleaseOptions{Keepalive: true})
			cancel() // the page is gone; delivery must not depend on its context
			tr.Wait()

			assert.Equal(t, tc.want, be.Calls())
		})
	}
}

func TestReleaseIgnoresEmptyToken(t *testing.T) {
	be := &fakeBackend{}
	tr := NewTransport(be, nil)
	tr.Release(context.Background(), 5, "", ReleaseOptions{})
	tr.Release(context.Background(), 0, "h-1", ReleaseOptions{Keepalive: true})
	tr.Wait()
	assert.Empty(t, be.Calls())
}

func TestReleaseStoredThenAll(t *testing.T) {
	be := &fakeBackend{}
	j := store.NewMemoryJournal()
	require.NoError(t, j.Save(context.Background(), model.StoredHold{ShowtimeID: 3, HoldToken: "old"}))
	tr := NewTransport(be, j)

	tr.ReleaseStored(context.Background())
	tr.ReleaseAll(context.Background())

	assert.Equal(t, []string{"DELETE old", "ALL"}, be.Calls())
	_, ok, _ := j.Load(context.Background())
	assert.False(t, ok)
}
