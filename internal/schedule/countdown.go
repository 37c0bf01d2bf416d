package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
)

// Countdown mirrors a server-side deadline at one second resolution.  It
// reports the remaining time as MM:SS on every tick and calls onExpire
// exactly once, at the deadline itself, after a final "00:00" tick.
type Countdown struct {
	clk      clock.Clock
	deadline time.Time
	onTick   func(text string)
	onExpire func()

	mu      sync.Mutex
	timer   clock.Timer
	started bool
	done    bool
}

// NewCountdown builds a stopped countdown.  Either callback may be nil.
func NewCountdown(clk clock.Clock, deadline time.Time, onTick func(string), onExpire func()) *Countdown {
	return &Countdown{clk: clk, deadline: deadline, onTick: onTick, onExpire: onExpire}
}

// Start emits the current remaining time and schedules the next tick.  A
// deadline already in the past expires immediately.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.started || c.done {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	c.tick()
}

// Stop cancels the countdown without calling onExpire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Deadline returns the instant the countdown expires.
func (c *Countdown) Deadline() time.Time { return c.deadline }

// Remaining returns the time left, never negative.
func (c *Countdown) Remaining() time.Duration {
	if rem := c.deadline.Sub(c.clk.Now()); rem > 0 {
		return rem
	}
	return 0
}

// Text returns the remaining time formatted as MM:SS.
func (c *Countdown) Text() string { return FormatMMSS(c.Remaining()) }

// Expired reports whether onExpire has been (or is being) called.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done && c.Remaining() == 0
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	rem := c.Remaining()
	if rem <= 0 {
		c.done = true
		c.timer = nil
		c.mu.Unlock()
		if c.onTick != nil {
			c.onTick(FormatMMSS(0))
		}
		if c.onExpire != nil {
			c.onExpire()
		}
		return
	}
	// Land the final tick exactly on the deadline.
	next := rem % time.Second
	if next == 0 {
		next = time.Second
	}
	c.timer = c.clk.AfterFunc(next, c.tick)
	c.mu.Unlock()
	if c.onTick != nil {
		c.onTick(FormatMMSS(rem))
	}
}

// FormatMMSS renders d as minutes and seconds, rounding partial seconds up
// so the display only reads 00:00 once the deadline has passed.
func FormatMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
