// Package channel reads and writes named numeric process channels.
//
// The physical process exposes its state as named scalar channels (the veto
// time, the lock flag, the mode bitmask) and accepts a handful of legacy
// bookkeeping writes. Memory backs tests and dry runs; Redis backs a
// deployment where a bridge mirrors the real channels into Redis keys.
package channel

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a channel has never been written.
var ErrNotFound = errors.New("channel not found")

// Reader reads the current value of a channel.
type Reader interface {
	Read(ctx context.Context, name string) (float64, error)
}

// Writer writes a channel value.
type Writer interface {
	Write(ctx context.Context, name string, value float64) error
}

// ReadWriter is both.
type ReadWriter interface {
	Reader
	Writer
}

// Memory is an in-process channel table. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewMemory returns an empty table.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]float64)}
}

// Set stores a value without a context, for test setup.
func (m *Memory) Set(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// Get returns the value and whether it exists.
func (m *Memory) Get(name string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok
}

func (m *Memory) Read(_ context.Context, name string) (float64, error) {
	v, ok := m.Get(name)
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (m *Memory) Write(_ context.Context, name string, value float64) error {
	m.Set(name, value)
	return nil
}

// Names lists every channel that has a value, sorted.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
