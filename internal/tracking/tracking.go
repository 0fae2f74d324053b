// Package tracking records injection attempts with the event-tracking
// service.
//
// Two trackers are provided: REST talks to a remote tracking service over
// HTTP, Local keeps entries in the sqlite ledger for nodes without one.
// Tracking failures are never fatal to an attempt beyond registration.
package tracking

import (
	"context"
	"errors"
)

// DefaultPipeline is the pipeline name injections are registered under.
const DefaultPipeline = "HardwareInjection"

// DefaultTag is the tag attached to annotations.
const DefaultTag = "analyst comments"

// ErrEmptyID is returned when the service accepts a registration but does
// not return an id.
var ErrEmptyID = errors.New("tracking service returned an empty id")

// Registration describes one injection to record.
type Registration struct {
	Group       string
	Pipeline    string
	Instruments []string
	Filename    string // metadata locator, may be empty
	Metadata    []byte
}

// Tracker registers injections and annotates them.
type Tracker interface {
	Register(ctx context.Context, r Registration) (string, error)
	Annotate(ctx context.Context, id, text string) error
}
