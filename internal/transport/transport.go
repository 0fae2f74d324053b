// Package transport is the boundary to the excitation hardware.
//
// A Transport opens a Stream bound to an excitation channel and a start
// time. The engine is the only caller: it opens one stream per attempt,
// sends the payload once, and always closes or aborts it before leaving the
// attempt.
package transport

import (
	"context"
	"time"
)

// Payload is the data sent into a stream.
type Payload struct {
	Samples []float64
	// Scale multiplies every sample before it reaches the hardware.
	Scale float64
}

// Transport opens excitation streams.
type Transport interface {
	Open(ctx context.Context, channel string, sampleRate int, start time.Time) (Stream, error)
}

// Stream is an exclusive, in-progress excitation.
type Stream interface {
	// Send queues the payload. With blocking set it returns once the
	// hardware has played it out or ctx is done.
	Send(ctx context.Context, p Payload, blocking bool) error
	// Abort stops the excitation immediately. Safe to call more than once.
	Abort() error
	// Close releases the stream. Safe to call more than once.
	Close() error
	// IsOpen reports whether the stream still holds the channel.
	IsOpen() bool
}
