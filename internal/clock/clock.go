// Package clock abstracts wall-clock time so page timers (hold countdowns,
// polls, redirects) can be driven deterministically in tests.
package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock provides the current time and one-shot callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from firing.  It reports whether the call
	// stopped a pending callback.
	Stop() bool
}

// Real is the wall clock.
type Real struct {
	c bclock.Clock
}

// New returns the real clock.
func New() Clock { return Real{c: bclock.New()} }

func (r Real) base() bclock.Clock {
	if r.c == nil {
		return bclock.New()
	}
	return r.c
}

func (r Real) Now() time.Time { return r.base().Now() }

func (r Real) AfterFunc(d time.Duration, f func()) Timer { return r.base().AfterFunc(d, f) }
