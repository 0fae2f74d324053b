package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrStreamClosed is returned by Send on a closed or aborted stream.
var ErrStreamClosed = errors.New("stream is closed")

// Simulated is a Transport that plays payloads against the wall clock
// without touching hardware. It backs dry runs and the dev node.
type Simulated struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewSimulated returns a simulated transport. now defaults to time.Now.
func NewSimulated(now func() time.Time) *Simulated {
	if now == nil {
		now = time.Now
	}
	return &Simulated{now: now, logger: slog.Default().With("component", "transport")}
}

func (s *Simulated) Open(_ context.Context, channel string, sampleRate int, start time.Time) (Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("open %s: sample rate must be positive", channel)
	}
	s.logger.Info("stream opened", "channel", channel, "rate", sampleRate, "start", start)
	return &simStream{
		sim:     s,
		channel: channel,
		rate:    sampleRate,
		start:   start,
		open:    true,
	}, nil
}

type simStream struct {
	sim     *Simulated
	channel string
	rate    int
	start   time.Time

	mu      sync.Mutex
	open    bool
	pending bool
	end     time.Time
}

func (st *simStream) Send(ctx context.Context, p Payload, blocking bool) error {
	st.mu.Lock()
	if !st.open {
		st.mu.Unlock()
		return ErrStreamClosed
	}
	d := time.Duration(len(p.Samples)) * time.Second / time.Duration(st.rate)
	st.end = st.start.Add(d)
	st.pending = true
	end := st.end
	st.mu.Unlock()

	st.sim.logger.Info("payload queued", "channel", st.channel, "samples", len(p.Samples), "scale", p.Scale, "end", end)
	if !blocking {
		return nil
	}

	wait := end.Sub(st.sim.now())
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	st.mu.Lock()
	st.open = false
	st.pending = false
	st.mu.Unlock()
	return nil
}

func (st *simStream) Abort() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.open {
		st.sim.logger.Warn("stream aborted", "channel", st.channel)
	}
	st.open = false
	st.pending = false
	return nil
}

func (st *simStream) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.open = false
	st.pending = false
	return nil
}

func (st *simStream) IsOpen() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.open && st.pending && !st.sim.now().Before(st.end) {
		st.open = false
		st.pending = false
	}
	return st.open
}
