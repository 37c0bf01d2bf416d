// Package seatmap paints a showtime's seat grid, keeps it in step with the
// backend snapshot and turns clicks into Selection mutations.
package seatmap

import (
	"errors"
	"sync"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/selection"
)

// ClickResult describes what a click did.
type ClickResult string

const (
	Selected   ClickResult = "selected"
	Deselected ClickResult = "deselected"
	Ignored    ClickResult = "ignored"
	Rejected   ClickResult = "rejected"
)

// SeatView is the render model of one seat.
type SeatView struct {
	ID            int64            `json:"seatId"`
	Label         string           `json:"label"`
	Type          model.SeatType   `json:"type"`
	CoupleGroupID string           `json:"coupleGroupId,omitempty"`
	Price         model.Amount     `json:"price"`
	Status        model.SeatStatus `json:"status"`
	Selectable    bool             `json:"selectable"`
	Selected      bool             `json:"selected"`
	Poster        string           `json:"poster,omitempty"`
}

// Board is the seat grid of one page.
type Board struct {
	sel     *selection.Selection
	userID  int64
	poster  string
	onLimit func(max int)

	mu     sync.Mutex
	order  []int64
	seats  map[int64]model.Seat
	groups map[string][]int64
}

// BoardOption configures a Board.
type BoardOption func(*Board)

// WithUserID sets the identity compared against a seat's holder.
func WithUserID(id int64) BoardOption { return func(b *Board) { b.userID = id } }

// WithPoster sets the thumbnail painted on taken seats.
func WithPoster(url string) BoardOption { return func(b *Board) { b.poster = url } }

// WithLimitHandler is called when a click is rejected by the capacity.
func WithLimitHandler(fn func(max int)) BoardOption { return func(b *Board) { b.onLimit = fn } }

// NewBoard returns an empty board writing into sel.
func NewBoard(sel *selection.Selection, opts ...BoardOption) *Board {
	b := &Board{sel: sel, seats: map[int64]model.Seat{}, groups: map[string][]int64{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Selection returns the selection the board writes into.
func (b *Board) Selection() *selection.Selection { return b.sel }

// Hydrate paints the snapshot embedded in the page.  Seats flagged as
// selected are restored into the selection without a change notification.
func (b *Board) Hydrate(seats []model.Seat) {
	b.mu.Lock()
	b.replaceLocked(seats)
	var restore []selection.Item
	for _, id := range b.order {
		s := b.seats[id]
		if s.Selected && s.Status != model.SeatSold && s.Status != model.SeatDisabled {
			restore = append(restore, itemOf(s))
		}
	}
	b.mu.Unlock()
	if len(restore) > 0 {
		b.sel.Restore(restore)
	}
}

// Reconcile applies a fresh backend snapshot.  Selected seats that are no
// longer selectable, or missing from the snapshot, are dropped and label/price changes flow into the
// selection; at most one selection notification results.
func (b *Board) Reconcile(seats []model.Seat) {
	if len(seats) == 0 {
		return
	}
	b.mu.Lock()
	b.replaceLocked(seats)
	current := make(map[int64]model.Seat, len(b.seats))
	for id, s := range b.seats {
		current[id] = s
	}
	b.mu.Unlock()

	b.sel.Batch(func(tx *selection.Tx) {
		for _, id := range tx.IDs() {
			s, ok := current[id]
			if !ok {
				// gone from the layout
				tx.Remove(id)
				continue
			}
			if _, _, evict := b.evaluate(s, true); evict {
				tx.Remove(id)
				continue
			}
			tx.Update(id, s.DisplayLabel(), s.Price)
		}
	})
}

// Click toggles a seat (or its whole couple group).
func (b *Board) Click(seatID int64) ClickResult {
	b.mu.Lock()
	seat, ok := b.seats[seatID]
	if !ok {
		b.mu.Unlock()
		return Ignored
	}
	members := []model.Seat{seat}
	if seat.IsCouple() {
		members = members[:0]
		for _, id := range b.groups[seat.CoupleGroupID] {
			members = append(members, b.seats[id])
		}
	}
	b.mu.Unlock()

	anyUnselected := false
	for _, m := range members {
		inSel := b.sel.Has(m.ID)
		if _, selectable, _ := b.evaluate(m, inSel); !selectable {
			return Ignored
		}
		if !inSel {
			anyUnselected = true
		}
	}

	if !anyUnselected {
		ids := make([]int64, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}
		b.sel.RemoveGroup(ids)
		return Deselected
	}

	items := make([]selection.Item, len(members))
	for i, m := range members {
		items[i] = itemOf(m)
	}
	if err := b.sel.AddGroup(items); err != nil {
		if errors.Is(err, selection.ErrCapacity) && b.onLimit != nil {
			b.onLimit(b.sel.Capacity())
		}
		return Rejected
	}
	return Selected
}

// View returns the render model in snapshot order.
func (b *Board) View() []SeatView {
	b.mu.Lock()
	seats := make([]model.Seat, 0, len(b.order))
	for _, id := range b.order {
		seats = append(seats, b.seats[id])
	}
	b.mu.Unlock()

	out := make([]SeatView, 0, len(seats))
	for _, s := range seats {
		inSel := b.sel.Has(s.ID)
		status, selectable, _ := b.evaluate(s, inSel)
		v := SeatView{
			ID:            s.ID,
			Label:         s.DisplayLabel(),
			Type:          s.Type,
			CoupleGroupID: s.CoupleGroupID,
			Price:         s.Price,
			Status:        status,
			Selectable:    selectable,
			Selected:      inSel,
		}
		if b.poster != "" && (status == model.SeatSold || status == model.SeatHeld) {
			v.Poster = b.poster
		}
		out = append(out, v)
	}
	return out
}

// Seat returns the last known state of a seat.
func (b *Board) Seat(id int64) (model.Seat, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.seats[id]
	return s, ok
}

// evaluate computes the displayed status and clickability of a seat.  A
// seat HELD by the current user, or HELD and still in the local selection
// without a known foreign holder, displays as AVAILABLE.  evict is set for
// selected seats that can no longer be kept.
func (b *Board) evaluate(s model.Seat, inSel bool) (status model.SeatStatus, selectable, evict bool) {
	owns := s.HeldBy(b.userID)
	foreign := s.Status == model.SeatHeld && !owns && s.HoldUserID != nil && b.userID != 0
	status = s.Status
	if s.Status == model.SeatHeld && (owns || (inSel && !foreign)) {
		status = model.SeatAvailable
	}
	if inSel && status != model.SeatAvailable {
		return status, false, true
	}
	selectable = (status == model.SeatAvailable && s.Selectable) || inSel || owns
	return status, selectable, false
}

func (b *Board) replaceLocked(seats []model.Seat) {
	b.order = b.order[:0]
	b.seats = make(map[int64]model.Seat, len(seats))
	b.groups = map[string][]int64{}
	for _, s := range seats {
		if _, dup := b.seats[s.ID]; dup {
			continue
		}
		b.order = append(b.order, s.ID)
		b.seats[s.ID] = s
		if s.IsCouple() {
			b.groups[s.CoupleGroupID] = append(b.groups[s.CoupleGroupID], s.ID)
		}
	}
}

func itemOf(s model.Seat) selection.Item {
	return selection.Item{SeatID: s.ID, Label: s.DisplayLabel(), Price: s.Price}
}
