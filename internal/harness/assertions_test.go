package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, From: "WAIT", To: "CADENCE_CHECK", Attempt: "a1", Cause: "imminent <1100.000000 CBC>"},
		{Seq: 2, From: "CADENCE_CHECK", To: "REGISTER", Attempt: "a1", Cause: "cadence ok (0 pairs)"},
		{Seq: 3, From: "REGISTER", To: "FAILURE(RegisterError)", Attempt: "a1", Cause: "register: boom"},
		{Seq: 4, From: "FAILURE", To: "WAIT", Attempt: "a1", Cause: "recovered from RegisterError"},
	}
	r.Final = "WAIT"
	r.Channels["OUT"] = -4
	r.Annotations = []Annotation{{TrackingID: "T1", Text: "Injection failed (X): y"}}
	return r
}

func value(v float64) *float64 { return &v }

func TestAssertTraceContains(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceContains, To: "REGISTER"}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceContains, To: "FAILURE(RegisterError)", Cause: "boom"}))

	err := evaluate(r, Assertion{Type: AssertTraceContains, To: "FAILURE(RegisterError)", Cause: "timeout"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, ae.Expected, `"timeout"`)
}

func TestAssertTraceOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceOrder, States: []string{"CADENCE_CHECK", "WAIT"}}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceOrder, States: []string{"REGISTER", "FAILURE(RegisterError)", "WAIT"}}))

	err := evaluate(r, Assertion{Type: AssertTraceOrder, States: []string{"REGISTER", "CADENCE_CHECK"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing CADENCE_CHECK after [REGISTER]")
}

func TestAssertTraceCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceCount, To: "WAIT", Count: 1}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceCount, To: "SUCCESS", Count: 0}))

	err := evaluate(r, Assertion{Type: AssertTraceCount, To: "REGISTER", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entered 1 times")
}

func TestAssertFinalState(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, evaluate(r, Assertion{Type: AssertFinalState, State: "WAIT"}))
	assert.Error(t, evaluate(r, Assertion{Type: AssertFinalState, State: "KILL"}))
}

func TestAssertChannel(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, evaluate(r, Assertion{Type: AssertChannel, Channel: "OUT", Value: value(-4)}))

	err := evaluate(r, Assertion{Type: AssertChannel, Channel: "OUT", Value: value(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OUT = -4")

	err = evaluate(r, Assertion{Type: AssertChannel, Channel: "TYPE", Value: value(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never written")
}

func TestAssertAnnotation(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, evaluate(r, Assertion{Type: AssertAnnotation, Contains: "failed"}))
	assert.Error(t, evaluate(r, Assertion{Type: AssertAnnotation, Contains: "successful"}))
}

func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertFinalState, State: "WAIT"},
		{Type: AssertFinalState, State: "KILL"},
		{Type: AssertTraceCount, To: "WAIT", Count: 5},
	})
	assert.Len(t, errs, 2)
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalState,
		Expected: "KILL",
		Actual:   "WAIT",
		Trace:    sampleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: final_state")
	assert.Contains(t, msg, "[3] REGISTER -> FAILURE(RegisterError): register: boom")
}
