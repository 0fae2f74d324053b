package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s -> %s: %s\n", ev.Seq, ev.From, ev.To, ev.Cause)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages. An empty slice means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertChannel:
		return assertChannel(result, a)
	case AssertAnnotation:
		return assertAnnotation(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertTraceContains checks for a transition into a.To whose cause
// contains a.Cause.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.To == a.To && strings.Contains(ev.Cause, a.Cause) {
			return nil
		}
	}

	expected := a.To
	if a.Cause != "" {
		expected = fmt.Sprintf("%s with cause containing %q", a.To, a.Cause)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the targets appear in order. They need not
// be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.States) && ev.To == a.States[next] {
			next++
		}
	}
	if next == len(a.States) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("states in order: %v", a.States),
		Actual:   fmt.Sprintf("missing %s after %v", a.States[next], a.States[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that a.To is entered exactly a.Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.To == a.To {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s entered %d times", a.To, a.Count),
		Actual:   fmt.Sprintf("entered %d times", count),
		Trace:    trace,
	}
}

func assertFinalState(result *Result, a Assertion) error {
	if string(result.Final) == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: a.State,
		Actual:   string(result.Final),
		Trace:    result.Trace,
	}
}

func assertChannel(result *Result, a Assertion) error {
	v, ok := result.Channels[a.Channel]
	switch {
	case !ok:
		return &AssertionError{
			Type:     AssertChannel,
			Expected: fmt.Sprintf("%s = %g", a.Channel, *a.Value),
			Actual:   "channel never written",
			Trace:    result.Trace,
		}
	case v != *a.Value:
		return &AssertionError{
			Type:     AssertChannel,
			Expected: fmt.Sprintf("%s = %g", a.Channel, *a.Value),
			Actual:   fmt.Sprintf("%s = %g", a.Channel, v),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertAnnotation(result *Result, a Assertion) error {
	for _, ann := range result.Annotations {
		if strings.Contains(ann.Text, a.Contains) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertAnnotation,
		Expected: fmt.Sprintf("an annotation containing %q", a.Contains),
		Actual:   fmt.Sprintf("%d annotations, none matching", len(result.Annotations)),
		Trace:    result.Trace,
	}
}
