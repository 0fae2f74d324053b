package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a result as the golden text: the trace, then the final
// state, channel values, annotations and ledger rows.
func Render(name string, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", name)
	b.WriteString("trace:\n")
	for _, ev := range result.Trace {
		attempt := ev.Attempt
		if attempt == "" {
			attempt = "-"
		}
		fmt.Fprintf(&b, "  %d %.3f %s %s -> %s", ev.Seq, ev.GPS, attempt, ev.From, ev.To)
		if ev.Cause != "" {
			fmt.Fprintf(&b, ": %s", ev.Cause)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "final: %s\n", result.Final)

	b.WriteString("channels:\n")
	for _, name := range sortedKeys(result.Channels) {
		fmt.Fprintf(&b, "  %s = %g\n", name, result.Channels[name])
	}

	b.WriteString("annotations:\n")
	for _, ann := range result.Annotations {
		fmt.Fprintf(&b, "  %s: %s\n", ann.TrackingID, ann.Text)
	}

	b.WriteString("attempts:\n")
	for _, a := range result.Attempts {
		tid := a.TrackingID
		if tid == "" {
			tid = "-"
		}
		fmt.Fprintf(&b, "  %s %.3f %s %s tracking=%s\n", a.ID, a.DueGPS, a.Kind, a.Outcome, tid)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario, fails the test on assertion errors
// and compares the rendered result with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(name, result))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
