package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: one_step
description: "First step picks the imminent event"
start_gps: 1000
schedule: |
  1100 CBC 1 1 /inj/H1-cbc.txt None
steps:
  - step: 1
assertions:
  - type: final_state
    state: CADENCE_CHECK
`

const failingScenario = `
name: wrong_state
description: "Asserts a state the machine never reaches"
start_gps: 1000
schedule: |
  1100 CBC 1 1 /inj/H1-cbc.txt None
steps:
  - step: 1
assertions:
  - type: final_state
    state: ACTIVE
`

func writeScenario(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func TestTest_HarnessScenarios(t *testing.T) {
	var result TestResult
	out, err := execute(t, "test", filepath.Join("..", "harness", "testdata", "scenarios"), "--format", "json")
	require.NoError(t, err, out)
	decodeData(t, out, &result)

	assert.Positive(t, result.Total)
	assert.Equal(t, result.Total, result.Passed)
	assert.Zero(t, result.Failed)
}

func TestTest_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "one_step", passingScenario)

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ one_step (golden updated)")

	golden := filepath.Join(dir, "golden", "one_step.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scenario: one_step")

	out, err = execute(t, "test", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(golden, []byte("scenario: one_step\n"), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTest_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "one_step", passingScenario)
	writeScenario(t, dir, "wrong_state", failingScenario)

	var result TestResult
	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	resp := decodeData(t, out, &result)

	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Failed)
	for _, s := range result.Scenarios {
		if s.Name == "wrong_state" {
			assert.False(t, s.Pass)
			assert.Equal(t, "CADENCE_CHECK", s.Final)
			assert.NotEmpty(t, s.Errors)
		}
	}
}

func TestTest_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "one_step", passingScenario)
	writeScenario(t, dir, "wrong_state", failingScenario)

	out, err := execute(t, "test", dir, "--filter", "one_*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTest_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken", "name: broken\nsteps: [}\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "a.golden"), goldenFilePath(filepath.Join("s", "a.yaml")))
}
