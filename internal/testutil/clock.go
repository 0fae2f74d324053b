// Package testutil holds deterministic fakes for engine and harness tests.
package testutil

import (
	"sync"
	"time"

	"github.com/roach88/tinj/internal/gpstime"
)

// FakeClock is a manually advanced time source.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// NewFakeClockGPS creates a clock reading the given GPS seconds.
func NewFakeClockGPS(seconds float64) *FakeClock {
	return NewFakeClock(gpstime.FromSeconds(seconds))
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// GPS returns the current fake time in GPS seconds.
func (c *FakeClock) GPS() float64 {
	return gpstime.ToSeconds(c.Now())
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Going backwards is allowed.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
