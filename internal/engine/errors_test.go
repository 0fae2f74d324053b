package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tinj/internal/schedule"
)

func TestClassify(t *testing.T) {
	plain := errors.New("boom")
	tests := []struct {
		name  string
		state State
		err   error
		want  FailureKind
	}{
		{"conflict error anywhere", StateRegister, &schedule.ConflictError{}, FailureScheduleConflict},
		{"cadence state", StateCadenceCheck, plain, FailureScheduleConflict},
		{"register", StateRegister, plain, FailureRegisterError},
		{"payload", StateLoadPayload, plain, FailurePayloadReadError},
		{"arm", StateArm, plain, FailureArmError},
		{"veto wins over state", StateArm, fmt.Errorf("wrapped: %w", ErrVetoLive), FailureVetoAbort},
		{"prewait default", StatePrewait, plain, FailureMissedWindow},
		{"mode lost", StatePrewait, fmt.Errorf("%w: unlocked", ErrModeLost), FailureModeLost},
		{"send", StateActive, plain, FailureSendError},
		{"send deadline", StateActive, fmt.Errorf("send: %w", context.DeadlineExceeded), FailureStreamNotClosed},
		{"stream not closed", StateActive, ErrStreamNotClosed, FailureStreamNotClosed},
		{"killed", StateActive, errEngineStopped, FailureKillRequested},
		{"existing failure", StateWait, &Failure{Kind: FailureArmError}, FailureArmError},
		{"outside attempt", StateWait, plain, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.state, tt.err))
		})
	}
}

func TestRecovery_EveryKindReturnsToWait(t *testing.T) {
	for _, kind := range FailureKinds() {
		r := Recovery(kind)
		assert.Equal(t, StateWait, r.Next, kind)
		if kind == FailureKillRequested {
			assert.Equal(t, OutcomeKilled, r.Outcome)
		} else {
			assert.Equal(t, OutcomeFailed, r.Outcome, kind)
		}
	}
	assert.Equal(t, StateWait, Recovery("Unknown").Next)
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	f := &Failure{Kind: FailureVetoAbort, State: StatePrewait, Cause: ErrVetoLive}

	assert.Equal(t, "VetoAbort in PREWAIT: external alert is live", f.Error())
	assert.ErrorIs(t, f, ErrVetoLive)

	wrapped := fmt.Errorf("attempt: %w", f)
	assert.True(t, IsFailure(wrapped, FailureVetoAbort))
	assert.False(t, IsFailure(wrapped, FailureArmError))
	assert.False(t, IsFailure(errors.New("x"), FailureVetoAbort))
}

func TestState_Predicates(t *testing.T) {
	assert.True(t, StatePrewait.InAttempt())
	assert.False(t, StateWait.InAttempt())
	assert.True(t, StateKill.Terminal())
	assert.False(t, StateActive.Terminal())
}
