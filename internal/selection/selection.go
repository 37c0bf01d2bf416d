// Package selection holds the page-local set of seats the user picked.  It
// is a plain observable value: every mutation produces exactly one change
// notification, delivered to subscribers after the lock is released.
package selection

import (
	"errors"
	"math"
	"sync"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// ErrCapacity is returned when adding seats would exceed the configured
// maximum.  Nothing is added in that case.
var ErrCapacity = errors.New("selection limit reached")

// Item is one selected seat.
type Item struct {
	SeatID int64        `json:"seatId"`
	Label  string       `json:"label"`
	Price  model.Amount `json:"price"`
}

// Snapshot is an immutable view of the selection.  Version increases on
// every mutation.
type Snapshot struct {
	Items   []Item       `json:"items"`
	Total   model.Amount `json:"total"`
	Version uint64       `json:"version"`
}

// IDs returns the selected seat ids in selection order.
func (s Snapshot) IDs() []int64 {
	ids := make([]int64, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.SeatID
	}
	return ids
}

// Empty reports whether nothing is selected.
func (s Snapshot) Empty() bool { return len(s.Items) == 0 }

// Selection is an ordered map of seat id to item with a capacity.
type Selection struct {
	mu       sync.Mutex
	capacity int
	order    []int64
	items    map[int64]Item
	version  uint64
	subs     map[int]func(Snapshot)
	nextSub  int
}

// New returns an empty selection.  capacity <= 0 means unlimited.
func New(capacity int) *Selection {
	return &Selection{capacity: capacity, items: map[int64]Item{}, subs: map[int]func(Snapshot){}}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Selection) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Capacity returns the configured maximum (0 = unlimited).
func (s *Selection) Capacity() int { return s.capacity }

// Add selects one seat.  Adding a seat already selected is a no-op.
func (s *Selection) Add(it Item) error {
	return s.AddGroup([]Item{it})
}

// AddGroup selects every item or none of them.  Items already selected do
// not count against the capacity.
func (s *Selection) AddGroup(items []Item) error {
	s.mu.Lock()
	missing := make([]Item, 0, len(items))
	seen := map[int64]bool{}
	for _, it := range items {
		if _, ok := s.items[it.SeatID]; ok || seen[it.SeatID] {
			continue
		}
		seen[it.SeatID] = true
		missing = append(missing, it)
	}
	if len(missing) == 0 {
		s.mu.Unlock()
		return nil
	}
	if len(missing) > s.remainingLocked() {
		s.mu.Unlock()
		return ErrCapacity
	}
	for _, it := range missing {
		s.putLocked(it)
	}
	s.commit()
	return nil
}

// Remove deselects one seat and reports whether it was selected.
func (s *Selection) Remove(id int64) bool {
	return s.RemoveGroup([]int64{id}) > 0
}

// RemoveGroup deselects every listed seat and returns how many were removed.
func (s *Selection) RemoveGroup(ids []int64) int {
	s.mu.Lock()
	n := 0
	for _, id := range ids {
		if s.deleteLocked(id) {
			n++
		}
	}
	if n == 0 {
		s.mu.Unlock()
		return 0
	}
	s.commit()
	return n
}

// Clear deselects everything.
func (s *Selection) Clear() {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	s.order = nil
	s.items = map[int64]Item{}
	s.commit()
}

// Restore replaces the content without notifying subscribers.  It is used
// to paint a selection carried over in the mount snapshot; the caller
// decides when to synchronise the hold.
func (s *Selection) Restore(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.items = map[int64]Item{}
	for _, it := range items {
		if s.capacity > 0 && len(s.order) >= s.capacity {
			break
		}
		if _, ok := s.items[it.SeatID]; !ok {
			s.putLocked(it)
		}
	}
	s.version++
}

// Tx batches mutations made during reconciliation.
type Tx struct {
	s       *Selection
	changed bool
}

// Has reports whether id is selected.
func (tx *Tx) Has(id int64) bool {
	_, ok := tx.s.items[id]
	return ok
}

// IDs returns the selected ids in selection order.
func (tx *Tx) IDs() []int64 {
	return append([]int64(nil), tx.s.order...)
}

// Remove deselects id.
func (tx *Tx) Remove(id int64) {
	if tx.s.deleteLocked(id) {
		tx.changed = true
	}
}

// Update refreshes the label and price of a selected seat.
func (tx *Tx) Update(id int64, label string, price model.Amount) {
	it, ok := tx.s.items[id]
	if !ok || (it.Label == label && it.Price == price) {
		return
	}
	it.Label, it.Price = label, price
	tx.s.items[id] = it
	tx.changed = true
}

// Batch runs fn with exclusive access and emits a single notification if
// anything changed.  It reports whether anything changed.
func (s *Selection) Batch(fn func(tx *Tx)) bool {
	s.mu.Lock()
	tx := &Tx{s: s}
	fn(tx)
	if !tx.changed {
		s.mu.Unlock()
		return false
	}
	s.commit()
	return true
}

// Has reports whether id is selected.
func (s *Selection) Has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of selected seats.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Remaining returns how many more seats may be added.
func (s *Selection) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

// Total returns the sum of the selected prices.
func (s *Selection) Total() model.Amount {
	return s.Snapshot().Total
}

// Version returns the mutation counter.
func (s *Selection) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns the current state.
func (s *Selection) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Selection) remainingLocked() int {
	if s.capacity <= 0 {
		return math.MaxInt
	}
	return s.capacity - len(s.order)
}

func (s *Selection) putLocked(it Item) {
	s.items[it.SeatID] = it
	s.order = append(s.order, it.SeatID)
}

func (s *Selection) deleteLocked(id int64) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, cur := range s.order {
		if cur == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Selection) snapshotLocked() Snapshot {
	snap := Snapshot{Items: make([]Item, 0, len(s.order)), Version: s.version}
	for _, id := range s.order {
		it := s.items[id]
		snap.Items = append(snap.Items, it)
		snap.Total += it.Price
	}
	return snap
}

// commit bumps the version, releases the lock and notifies subscribers.
// It must be called with s.mu held.
func (s *Selection) commit() {
	s.version++
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
