package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/tinj/internal/transport"
)

// FakeTransport hands out FakeStreams and records every open.
type FakeTransport struct {
	mu sync.Mutex

	// OpenErr fails every Open.
	OpenErr error
	// SendErr fails every Send.
	SendErr error
	// StayOpen keeps streams open after a send completes.
	StayOpen bool
	// BlockSend makes blocking sends wait for ctx.
	BlockSend bool

	Streams []*FakeStream
}

// OpenCall is one recorded Open.
type OpenCall struct {
	Channel    string
	SampleRate int
	Start      time.Time
}

// Open returns a new FakeStream configured from the transport's fields.
func (t *FakeTransport) Open(_ context.Context, ch string, rate int, start time.Time) (transport.Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.OpenErr != nil {
		return nil, t.OpenErr
	}
	s := &FakeStream{
		Call:      OpenCall{Channel: ch, SampleRate: rate, Start: start},
		sendErr:   t.SendErr,
		stayOpen:  t.StayOpen,
		blockSend: t.BlockSend,
		open:      true,
	}
	t.Streams = append(t.Streams, s)
	return s, nil
}

// Last returns the most recently opened stream, or nil.
func (t *FakeTransport) Last() *FakeStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Streams) == 0 {
		return nil
	}
	return t.Streams[len(t.Streams)-1]
}

// FakeStream records what the engine did to it.
type FakeStream struct {
	Call OpenCall

	mu        sync.Mutex
	sendErr   error
	stayOpen  bool
	blockSend bool
	open      bool
	sent      []transport.Payload
	aborts    int
	closes    int
	sending   chan struct{}
}

// Sending returns a channel closed once a blocking Send has started.
func (s *FakeStream) Sending() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending == nil {
		s.sending = make(chan struct{})
	}
	return s.sending
}

func (s *FakeStream) Send(ctx context.Context, p transport.Payload, blocking bool) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return transport.ErrStreamClosed
	}
	if s.sendErr != nil {
		s.mu.Unlock()
		return s.sendErr
	}
	s.sent = append(s.sent, p)
	block := s.blockSend && blocking
	if block {
		if s.sending == nil {
			s.sending = make(chan struct{})
		}
		close(s.sending)
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	s.mu.Lock()
	if blocking && !s.stayOpen {
		s.open = false
	}
	s.mu.Unlock()
	return nil
}

func (s *FakeStream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
	s.open = false
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.open = false
	return nil
}

func (s *FakeStream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Sent returns the payloads sent so far.
func (s *FakeStream) Sent() []transport.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Payload(nil), s.sent...)
}

// Aborts returns how many times Abort was called.
func (s *FakeStream) Aborts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborts
}

// Closes returns how many times Close was called.
func (s *FakeStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
