package engine

import (
	"sync/atomic"
	"time"
)

// Clock stamps ledger transitions with a strictly increasing seq.
//
// Wall time is not used for ordering: several transitions can happen
// within one clock tick. On restart the clock resumes from the ledger's
// highest seq so numbering never repeats.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies the absolute time every decision is made against.
type TimeSource interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
