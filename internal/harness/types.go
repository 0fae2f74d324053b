package harness

import (
	"github.com/roach88/tinj/internal/engine"
	"github.com/roach88/tinj/internal/store"
)

// TraceEvent is one state change seen during a run.
type TraceEvent struct {
	Seq     int64
	GPS     float64
	From    string
	To      string // rendered target, FAILURE(kind) for failures
	Attempt string
	Cause   string
}

// Annotation is one note appended to a tracking entry.
type Annotation struct {
	TrackingID string
	Text       string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is false when any assertion failed.
	Pass bool

	// Trace holds the state changes in step order.
	Trace []TraceEvent

	// Errors contains assertion failure messages.
	Errors []string

	// Final is the state the machine ended in.
	Final engine.State

	// Channels holds every process channel value at the end of the run.
	Channels map[string]float64

	// Annotations are in registration order, then append order.
	Annotations []Annotation

	// Attempts are the ledger rows, latest due first.
	Attempts []store.Attempt
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Channels: make(map[string]float64),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTransition appends a state change to the trace.
func (r *Result) AddTransition(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
