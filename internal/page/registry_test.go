package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
)

type stubPage struct {
	owner     identity.Identity
	teardowns int
}

func (s *stubPage) Owner() identity.Identity { return s.owner }
func (s *stubPage) Teardown()                { s.teardowns++ }

func TestRegistryOwnership(t *testing.T) {
	r := NewRegistry(clock.NewFake(time.Now()))
	sp := &SeatPage{ident: customer}
	id := r.Add(sp)

	got, err := r.Seat(id, customer)
	require.NoError(t, err)
	assert.Same(t, sp, got)

	_, err = r.Seat(id, identity.Identity{UserID: 8})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Checkout(id, customer)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Seat("missing", customer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistrySweepAndClose(t *testing.T) {
	clk := clock.NewFake(time.Now())
	r := NewRegistry(clk)
	idle := &stubPage{owner: customer}
	busy := &stubPage{owner: customer}
	r.Add(idle)
	busyID := r.Add(busy)

	clk.Advance(20 * time.Minute)
	_, _ = r.get(busyID, customer)
	clk.Advance(15 * time.Minute)

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, idle.teardowns)
	assert.Equal(t, 0, busy.teardowns)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Close(busyID))
	assert.False(t, r.Close(busyID))
	assert.Equal(t, 1, busy.teardowns)

	r.Add(&stubPage{owner: customer})
	r.Shutdown()
	assert.Equal(t, 0, r.Len())
}
