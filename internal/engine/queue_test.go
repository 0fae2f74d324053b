package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tinj/internal/schedule"
)

func TestCommandQueue_FIFO(t *testing.T) {
	q := newCommandQueue()

	require.True(t, q.Enqueue(Command{Type: CommandReload, Events: []schedule.Event{{Index: 0}}}))
	require.True(t, q.Enqueue(Command{Type: CommandKill}))
	assert.Equal(t, 2, q.Len())

	c, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, CommandReload, c.Type)
	assert.Len(t, c.Events, 1)

	c, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, CommandKill, c.Type)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestCommandQueue_SignalCoalesces(t *testing.T) {
	q := newCommandQueue()
	q.Enqueue(Command{Type: CommandKill})
	q.Enqueue(Command{Type: CommandKill})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("second signal should have been coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestCommandQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newCommandQueue()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-q.Wait()
	}()

	q.Close()
	q.Close() // idempotent
	wg.Wait()

	assert.False(t, q.Enqueue(Command{Type: CommandKill}))
}

func TestCommandType_String(t *testing.T) {
	assert.Equal(t, "kill", CommandKill.String())
	assert.Equal(t, "reload", CommandReload.String())
	assert.Equal(t, "unknown", CommandType(0).String())
}
