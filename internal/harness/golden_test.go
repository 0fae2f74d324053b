package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios against its
// golden file.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		sc, err := LoadScenario(p)
		require.NoError(t, err, p)
		t.Run(sc.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, sc))
		})
	}
}

func TestRender_Layout(t *testing.T) {
	r := sampleResult()
	out := string(Render("sample", r))

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Equal(t, "scenario: sample", lines[0])
	assert.Equal(t, "trace:", lines[1])
	assert.Equal(t, "  1 0.000 a1 WAIT -> CADENCE_CHECK: imminent <1100.000000 CBC>", lines[2])
	assert.Contains(t, out, "final: WAIT\n")
	assert.Contains(t, out, "channels:\n  OUT = -4\n")
	assert.Contains(t, out, "annotations:\n  T1: Injection failed (X): y\n")
	assert.True(t, strings.HasSuffix(out, "attempts:\n"))
}

func TestRender_Deterministic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/successful_injection.yaml")
	require.NoError(t, err)

	first, err := Run(sc)
	require.NoError(t, err)
	second, err := Run(sc)
	require.NoError(t, err)

	assert.Equal(t, Render(sc.Name, first), Render(sc.Name, second))
}
