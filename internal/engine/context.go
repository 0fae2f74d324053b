package engine

import (
	"errors"
	"time"

	"github.com/roach88/tinj/internal/payload"
	"github.com/roach88/tinj/internal/schedule"
	"github.com/roach88/tinj/internal/transport"
)

// Status tags the attempt held by an ExecutionContext.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// ExecutionContext is the state of the one attempt in flight. The machine
// owns it exclusively; Snapshot hands out copies.
type ExecutionContext struct {
	AttemptID  string
	Epoch      int64
	Event      *schedule.Event // copy of the scheduled event, nil when idle
	Payload    *payload.Waveform
	Stream     transport.Stream // non-nil only from ARM until a terminal state
	TrackingID string
	Status     Status
	Failure    *Failure
	StartedAt  time.Time

	sent bool // ACTIVE has handed the payload to the stream
}

// Idle reports whether no event is under execution.
func (c *ExecutionContext) Idle() bool {
	return c.Event == nil
}

// HasStream reports whether a stream handle is held.
func (c *ExecutionContext) HasStream() bool {
	return c.Stream != nil
}

// release aborts and closes the stream, if any, and drops the handle.
// Calling it again is a no-op.
func (c *ExecutionContext) release(abort bool) error {
	if c.Stream == nil {
		return nil
	}
	st := c.Stream
	c.Stream = nil

	var errs []error
	if abort {
		errs = append(errs, st.Abort())
	}
	errs = append(errs, st.Close())
	return errors.Join(errs...)
}
