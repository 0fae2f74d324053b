package engine

import (
	"sync"

	"github.com/roach88/tinj/internal/schedule"
)

// CommandType distinguishes operator commands.
type CommandType int

const (
	// CommandKill preempts the current state and tears down the stream.
	CommandKill CommandType = iota + 1
	// CommandReload swaps the schedule and starts a new epoch.
	CommandReload
)

func (c CommandType) String() string {
	switch c {
	case CommandKill:
		return "kill"
	case CommandReload:
		return "reload"
	}
	return "unknown"
}

// Command is a request delivered to the machine from another goroutine.
type Command struct {
	Type   CommandType
	Events []schedule.Event // CommandReload only
}

// commandQueue is a thread-safe FIFO of operator commands.
//
// Kill and RequestReload enqueue from signal handlers and the schedule
// watcher; the Run loop drains between steps. The signal channel lets Run
// wake up early from a poll wait when a command arrives.
type commandQueue struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]Command, 0, 4),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a command to the back of the queue.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(c Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.commands = append(q.commands, c)

	// Non-blocking: the buffer of 1 coalesces wakeups.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front command without blocking.
func (q *commandQueue) TryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return Command{}, false
	}

	c := q.commands[0]
	// Drop the event slice reference held by the backing array.
	q.commands[0] = Command{}

	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}

	return c, true
}

// Wait returns a channel that signals when commands may be available.
// It is closed by Close.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close rejects further commands and wakes any waiter.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
