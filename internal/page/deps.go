// Package page composes the seat, checkout and counter components into page
// instances.  A page is created on mount and discarded on navigation; the
// Registry keeps the live ones addressable by id for the kiosk API.
package page

import (
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/checkout"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/counter"
	"github.com/iliyamo/cinema-seat-checkout/internal/hold"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/seatmap"
	"github.com/iliyamo/cinema-seat-checkout/internal/store"
)

// Publisher receives booking events from checkout and counter pages.
type Publisher interface {
	checkout.Publisher
	counter.Publisher
}

// Settings are the timer and capacity knobs shared by all pages.
type Settings struct {
	MaxSelection     int
	SeatMapRefresh   time.Duration
	PaymentPoll      time.Duration
	HoldSyncDebounce time.Duration
	RedirectDelay    time.Duration
	RequestTimeout   time.Duration
	PosterURL        string
}

// SettingsFrom copies the page settings out of the kiosk configuration.
func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		MaxSelection:     cfg.MaxSelection,
		SeatMapRefresh:   cfg.SeatMapRefresh,
		PaymentPoll:      cfg.PaymentPoll,
		HoldSyncDebounce: cfg.HoldSyncDebounce,
		RedirectDelay:    cfg.RedirectDelay,
		RequestTimeout:   cfg.BackendTimeout,
		PosterURL:        cfg.PosterURL,
	}
}

// Deps are the collaborators every page is built from.
type Deps struct {
	// Backend returns the booking API acting as id.
	Backend   func(id identity.Identity) api.Backend
	Journals  *Journals
	Redis     *redis.Client
	Cache     config.SeatMapCacheConfig
	Publisher Publisher
	Clock     clock.Clock
	Logger    *logger.Logger
	Settings  Settings
}

// ClientBackend authenticates c as each page's user.
func ClientBackend(c *api.Client) func(identity.Identity) api.Backend {
	return func(id identity.Identity) api.Backend { return c.ForUser(id.Raw) }
}

func (d *Deps) clock() clock.Clock {
	if d.Clock == nil {
		return clock.New()
	}
	return d.Clock
}

func (d *Deps) source(backend api.Backend) seatmap.Source {
	return seatmap.NewCachedSource(backend, d.Redis, d.Cache, d.Logger)
}

// Journals hands out the hold journal of a kiosk session.  Sessions
// outlive pages so that the next mount can release a hold the previous
// page left behind.
type Journals struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	memory map[string]*store.MemoryJournal
}

// NewJournals keeps journals in Redis when rdb is set and in memory
// otherwise.
func NewJournals(rdb *redis.Client, prefix string, ttl time.Duration) *Journals {
	return &Journals{rdb: rdb, prefix: prefix, ttl: ttl, memory: map[string]*store.MemoryJournal{}}
}

// For returns the journal of session.
func (j *Journals) For(session string) store.HoldJournal {
	if j == nil {
		return store.NewMemoryJournal()
	}
	if j.rdb != nil {
		return store.NewRedisJournal(j.rdb, j.prefix, session, j.ttl)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	m, ok := j.memory[session]
	if !ok {
		m = store.NewMemoryJournal()
		j.memory[session] = m
	}
	return m
}

func newTransport(deps *Deps, backend api.Backend, session string, log *logger.Logger) *hold.Transport {
	return hold.NewTransport(backend, deps.Journals.For(session), hold.WithLogger(log))
}
