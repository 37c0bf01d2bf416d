package page

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
)

// ErrNotFound is returned for unknown or foreign page ids.
var ErrNotFound = errors.New("page not found")

// Page is what the registry needs from a mounted page.
type Page interface {
	Owner() identity.Identity
	Teardown()
}

type entry struct {
	page     Page
	lastSeen time.Time
}

// Registry keeps the live pages of the kiosk, keyed by a random id.
type Registry struct {
	clk clock.Clock

	mu    sync.Mutex
	pages map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{clk: clk, pages: map[string]*entry{}}
}

// Add registers p and returns its id.
func (r *Registry) Add(p Page) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.pages[id] = &entry{page: p, lastSeen: r.clk.Now()}
	r.mu.Unlock()
	return id
}

// Seat returns the seat page id owned by who.
func (r *Registry) Seat(id string, who identity.Identity) (*SeatPage, error) {
	p, err := r.get(id, who)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(*SeatPage)
	if !ok {
		return nil, ErrNotFound
	}
	return sp, nil
}

// Checkout returns the checkout page id owned by who.
func (r *Registry) Checkout(id string, who identity.Identity) (*CheckoutPage, error) {
	p, err := r.get(id, who)
	if err != nil {
		return nil, err
	}
	cp, ok := p.(*CheckoutPage)
	if !ok {
		return nil, ErrNotFound
	}
	return cp, nil
}

func (r *Registry) get(id string, who identity.Identity) (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pages[id]
	if !ok || e.page.Owner().UserID != who.UserID {
		return nil, ErrNotFound
	}
	e.lastSeen = r.clk.Now()
	return e.page, nil
}

// Remove forgets id without tearing the page down.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.pages, id)
	r.mu.Unlock()
}

// Close tears down and forgets id.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	e, ok := r.pages[id]
	delete(r.pages, id)
	r.mu.Unlock()
	if ok {
		e.page.Teardown()
	}
	return ok
}

// Len returns the number of live pages.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// Sweep tears down pages nobody has looked at for maxIdle, the server-side
// equivalent of a browser tab that was closed without an unload event.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.clk.Now().Add(-maxIdle)
	var stale []Page
	r.mu.Lock()
	for id, e := range r.pages {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.page)
			delete(r.pages, id)
		}
	}
	r.mu.Unlock()
	for _, p := range stale {
		p.Teardown()
	}
	return len(stale)
}

// Shutdown tears down every page.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	pages := r.pages
	r.pages = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range pages {
		e.page.Teardown()
	}
}
