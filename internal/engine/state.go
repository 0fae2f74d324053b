package engine

import (
	"fmt"
	"time"
)

// State is one node of the execution state machine.
type State string

const (
	StateWait         State = "WAIT"
	StateAlertActive  State = "ALERT_ACTIVE"
	StateCadenceCheck State = "CADENCE_CHECK"
	StateRegister     State = "REGISTER"
	StateLoadPayload  State = "LOAD_PAYLOAD"
	StateArm          State = "ARM"
	StatePrewait      State = "PREWAIT"
	StateActive       State = "ACTIVE"
	StateSuccess      State = "SUCCESS"
	StateFailure      State = "FAILURE"
	StateKill         State = "KILL"
)

// States lists every state in lifecycle order.
func States() []State {
	return []State{
		StateWait, StateAlertActive, StateCadenceCheck, StateRegister,
		StateLoadPayload, StateArm, StatePrewait, StateActive,
		StateSuccess, StateFailure, StateKill,
	}
}

// InAttempt reports whether s is between candidate selection and the
// terminal state of an attempt.
func (s State) InAttempt() bool {
	switch s {
	case StateCadenceCheck, StateRegister, StateLoadPayload, StateArm, StatePrewait, StateActive:
		return true
	}
	return false
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure || s == StateKill
}

// Transition is the result of one Step. From == To means the machine
// stayed put (a poll that found nothing to do).
type Transition struct {
	Seq       int64 // zero for non-changing steps
	At        time.Time
	From      State
	To        State
	Failure   FailureKind // set when To is FAILURE or KILL
	AttemptID string
	Cause     string
}

// Changed reports whether the step moved to a different state.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Target renders the destination, with the failure kind for FAILURE.
func (t Transition) Target() string {
	if t.To == StateFailure && t.Failure != "" {
		return fmt.Sprintf("%s(%s)", t.To, t.Failure)
	}
	return string(t.To)
}

func (t Transition) String() string {
	s := fmt.Sprintf("%s -> %s", t.From, t.Target())
	if t.Cause != "" {
		s += ": " + t.Cause
	}
	return s
}
