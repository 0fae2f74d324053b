package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tinj/internal/schedule"
)

// FailureKind is the closed set of reasons an attempt can fail.
// Extend by adding a row here and in recoveries, never with ad-hoc strings.
type FailureKind string

const (
	// FailureScheduleConflict means the cadence check rejected the schedule.
	FailureScheduleConflict FailureKind = "ScheduleConflict"

	// FailureRegisterError means the tracking service refused the attempt.
	FailureRegisterError FailureKind = "RegisterError"

	// FailurePayloadReadError means the waveform could not be loaded.
	FailurePayloadReadError FailureKind = "PayloadReadError"

	// FailureArmError means the excitation stream could not be opened.
	FailureArmError FailureKind = "ArmError"

	// FailureVetoAbort means an external alert became live mid-attempt.
	FailureVetoAbort FailureKind = "VetoAbort"

	// FailureMissedWindow means the due time passed before the send.
	FailureMissedWindow FailureKind = "MissedWindow"

	// FailureModeLost means the process left the required mode while armed.
	FailureModeLost FailureKind = "ModeLost"

	// FailureSendError means the transport rejected the payload.
	FailureSendError FailureKind = "SendError"

	// FailureStreamNotClosed means the stream outlived duration + grace.
	FailureStreamNotClosed FailureKind = "StreamNotClosed"

	// FailureKillRequested means an operator killed the attempt.
	FailureKillRequested FailureKind = "KillRequested"
)

// Sentinel causes raised by the machine itself.
var (
	ErrVetoLive        = errors.New("external alert is live")
	ErrMissedWindow    = errors.New("due time passed before the arming lead was reached")
	ErrModeLost        = errors.New("process no longer permits injection")
	ErrStreamNotClosed = errors.New("stream still open after expected duration and grace")
	ErrKilled          = errors.New("killed by operator")
)

// ErrAlreadyRun is returned by a second call to Machine.Run.
var ErrAlreadyRun = errors.New("engine: Run already called on this machine")

// Failure is the terminal error of one attempt.
type Failure struct {
	Kind  FailureKind
	State State // state the failure was detected in
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return fmt.Sprintf("%s in %s", f.Kind, f.State)
	}
	return fmt.Sprintf("%s in %s: %v", f.Kind, f.State, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// IsFailure reports whether err is or wraps a Failure of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}

// Classify maps an error raised in state to its failure kind.
//
// Machine-raised sentinels win over the state mapping, so a veto seen in
// ARM is a VetoAbort rather than an ArmError. Returns "" for states that
// are not part of an attempt.
func Classify(state State, err error) FailureKind {
	var f *Failure
	switch {
	case errors.As(err, &f):
		return f.Kind
	case errors.Is(err, ErrKilled):
		return FailureKillRequested
	case errors.Is(err, ErrVetoLive):
		return FailureVetoAbort
	case errors.Is(err, ErrMissedWindow):
		return FailureMissedWindow
	case errors.Is(err, ErrModeLost):
		return FailureModeLost
	case errors.Is(err, ErrStreamNotClosed):
		return FailureStreamNotClosed
	case schedule.IsConflict(err):
		return FailureScheduleConflict
	}

	switch state {
	case StateCadenceCheck:
		return FailureScheduleConflict
	case StateRegister:
		return FailureRegisterError
	case StateLoadPayload:
		return FailurePayloadReadError
	case StateArm:
		return FailureArmError
	case StatePrewait:
		return FailureMissedWindow
	case StateActive:
		if errors.Is(err, context.DeadlineExceeded) {
			return FailureStreamNotClosed
		}
		return FailureSendError
	case StateKill:
		return FailureKillRequested
	}
	return ""
}

// RecoveryPath is what the machine does after a failure of one kind.
type RecoveryPath struct {
	// Outcome is the legacy outcome-channel code written on recovery.
	Outcome int
	// Annotate says whether the tracking entry, if any, gets a failure note.
	Annotate bool
	// Next is the state recovery returns to. ALERT_ACTIVE replaces it when
	// the veto is live at that moment.
	Next State
}

// Legacy outcome channel codes.
const (
	OutcomePending   = 0
	OutcomeSuccess   = 1
	OutcomeFailed    = -4
	OutcomeWrongMode = -5
	OutcomeUnlocked  = -6
	OutcomeKilled    = -11
)

var recoveries = map[FailureKind]RecoveryPath{
	FailureScheduleConflict: {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureRegisterError:    {Outcome: OutcomeFailed, Annotate: false, Next: StateWait},
	FailurePayloadReadError: {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureArmError:         {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureVetoAbort:        {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureMissedWindow:     {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureModeLost:         {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureSendError:        {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureStreamNotClosed:  {Outcome: OutcomeFailed, Annotate: true, Next: StateWait},
	FailureKillRequested:    {Outcome: OutcomeKilled, Annotate: true, Next: StateWait},
}

// Recovery returns the recovery path for kind. Unknown kinds get the
// generic failed path so the machine always returns to WAIT.
func Recovery(kind FailureKind) RecoveryPath {
	if r, ok := recoveries[kind]; ok {
		return r
	}
	return RecoveryPath{Outcome: OutcomeFailed, Annotate: true, Next: StateWait}
}

// FailureKinds lists every kind in declaration order.
func FailureKinds() []FailureKind {
	return []FailureKind{
		FailureScheduleConflict,
		FailureRegisterError,
		FailurePayloadReadError,
		FailureArmError,
		FailureVetoAbort,
		FailureMissedWindow,
		FailureModeLost,
		FailureSendError,
		FailureStreamNotClosed,
		FailureKillRequested,
	}
}
