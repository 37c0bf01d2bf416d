// Package schedule provides explicitly owned timer handles: a repeating
// Interval for polling loops and a Countdown for hold and QR expiry.  The
// component that starts a handle is the only one that stops it.
package schedule

import (
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
)

// Interval calls fn every period until stopped.  It can be paused (e.g.
// while the page is hidden) and resumed without losing its configuration.
type Interval struct {
	clk    clock.Clock
	period time.Duration
	fn     func()

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64
	running bool
	paused  bool
}

// NewInterval builds a stopped Interval.
func NewInterval(clk clock.Clock, period time.Duration, fn func()) *Interval {
	if period <= 0 {
		period = time.Second
	}
	return &Interval{clk: clk, period: period, fn: fn}
}

// Start begins ticking.  The first call to fn happens one period from now.
func (i *Interval) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.running {
		return
	}
	i.running = true
	i.paused = false
	i.scheduleLocked()
}

// Stop cancels the interval.  A tick already executing is not interrupted.
func (i *Interval) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = false
	i.paused = false
	i.cancelLocked()
}

// Pause suspends ticking until Resume.
func (i *Interval) Pause() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running || i.paused {
		return
	}
	i.paused = true
	i.cancelLocked()
}

// Resume restarts a paused interval; the next tick is one period away.
func (i *Interval) Resume() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running || !i.paused {
		return
	}
	i.paused = false
	i.scheduleLocked()
}

// Active reports whether the interval is started and not paused.
func (i *Interval) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running && !i.paused
}

func (i *Interval) scheduleLocked() {
	i.gen++
	gen := i.gen
	i.timer = i.clk.AfterFunc(i.period, func() { i.tick(gen) })
}

func (i *Interval) cancelLocked() {
	i.gen++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

func (i *Interval) tick(gen uint64) {
	i.mu.Lock()
	if !i.running || i.paused || gen != i.gen {
		i.mu.Unlock()
		return
	}
	i.scheduleLocked()
	i.mu.Unlock()
	i.fn()
}
