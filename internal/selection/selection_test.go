package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

func item(id int64, price model.Amount) Item {
	return Item{SeatID: id, Label: "S" + string(rune('A'+id)), Price: price}
}

func TestAddRemoveNotifiesOncePerMutation(t *testing.T) {
	s := New(0)
	var snaps []Snapshot
	unsub := s.Subscribe(func(snap Snapshot) { snaps = append(snaps, snap) })

	require.NoError(t, s.Add(item(1, 90000)))
	require.NoError(t, s.Add(item(1, 90000)))
	require.NoError(t, s.AddGroup([]Item{item(2, 60000), item(3, 60000)}))
	assert.True(t, s.Remove(2))
	assert.False(t, s.Remove(2))

	require.Len(t, snaps, 3, "no-op mutations do not notify")
	assert.Equal(t, []int64{1}, snaps[0].IDs())
	assert.Equal(t, []int64{1, 2, 3}, snaps[1].IDs())
	assert.Equal(t, model.Amount(210000), snaps[1].Total)
	assert.Equal(t, []int64{1, 3}, snaps[2].IDs())
	assert.Less(t, snaps[0].Version, snaps[2].Version)

	unsub()
	s.Clear()
	assert.Len(t, snaps, 3)
	assert.Zero(t, s.Len())
}

func TestCapacityIsAllOrNothing(t *testing.T) {
	s := New(6)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Add(item(i, 1)))
	}
	assert.Equal(t, 1, s.Remaining())

	err := s.AddGroup([]Item{item(10, 1), item(11, 1)})
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 5, s.Len())

	require.NoError(t, s.Add(item(6, 1)))
	assert.ErrorIs(t, s.Add(item(7, 1)), ErrCapacity)
	assert.Equal(t, 6, s.Len())
	assert.NoError(t, s.Add(item(6, 1)), "re-adding a selected seat needs no capacity")
}

func TestBatchEmitsSingleNotification(t *testing.T) {
	s := New(0)
	require.NoError(t, s.AddGroup([]Item{item(1, 100), item(2, 100), item(3, 100)}))
	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })

	changed := s.Batch(func(tx *Tx) {
		tx.Remove(1)
		tx.Update(2, "B2", 150)
		tx.Update(3, item(3, 100).Label, 100)
	})
	assert.True(t, changed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, model.Amount(250), s.Total())

	changed = s.Batch(func(tx *Tx) { tx.Update(2, "B2", 150) })
	assert.False(t, changed)
	assert.Equal(t, 1, calls)
}

func TestRestoreIsSilent(t *testing.T) {
	s := New(2)
	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })
	before := s.Version()

	s.Restore([]Item{item(1, 1), item(2, 1), item(3, 1)})

	assert.Zero(t, calls)
	assert.Equal(t, []int64{1, 2}, s.Snapshot().IDs())
	assert.Greater(t, s.Version(), before)
}
