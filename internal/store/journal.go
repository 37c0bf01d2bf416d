// Package store persists the last hold a page acquired so the next page
// mount can release it if the previous page died without cleaning up.  It
// is a volatile cleanup aid, never a source of truth about seat state.
package store

import (
	"context"
	"sync"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// HoldJournal records at most one hold per browsing session.
type HoldJournal interface {
	Save(ctx context.Context, h model.StoredHold) error
	// Load returns the stored record; ok is false when nothing is stored.
	Load(ctx context.Context) (h model.StoredHold, ok bool, err error)
	Clear(ctx context.Context) error
}

// MemoryJournal is a process-local HoldJournal.
type MemoryJournal struct {
	mu  sync.Mutex
	rec *model.StoredHold
}

// NewMemoryJournal returns an empty journal.
func NewMemoryJournal() *MemoryJournal { return &MemoryJournal{} }

func (m *MemoryJournal) Save(_ context.Context, h model.StoredHold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &h
	return nil
}

func (m *MemoryJournal) Load(_ context.Context) (model.StoredHold, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return model.StoredHold{}, false, nil
	}
	return *m.rec, true, nil
}

func (m *MemoryJournal) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
