package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ParseError reports a malformed schedule record.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schedule line %d: %s: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("schedule line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Boundary says which gap of a pair violated the cadence.
type Boundary string

const (
	// StartToStart compares the due times of two consecutive events.
	StartToStart Boundary = "start-to-start"
	// EndToStart compares one event's completion with the next due time.
	EndToStart Boundary = "end-to-start"
)

// ConflictError reports two consecutive events that are too close.
type ConflictError struct {
	First    Event
	Second   Event
	Gap      time.Duration
	MinGap   time.Duration
	Boundary Boundary
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict (%s): %s and %s are %gs apart, need at least %gs",
		e.Boundary, e.First, e.Second, e.Gap.Seconds(), e.MinGap.Seconds())
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
