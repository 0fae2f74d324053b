package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_StartToStartConflict(t *testing.T) {
	a := ev(100, KindCBC)
	b := ev(100.5, KindCBC)
	b.Index = 1

	_, err := Validate([]Event{b, a}, 5*time.Second)
	require.Error(t, err)
	require.True(t, IsConflict(err))

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.InDelta(t, 100, ce.First.GPS(), 1e-9)
	assert.InDelta(t, 100.5, ce.Second.GPS(), 1e-9)
	assert.Equal(t, 500*time.Millisecond, ce.Gap)
	assert.Equal(t, StartToStart, ce.Boundary)
}

func TestValidate_IdenticalTimesConflict(t *testing.T) {
	_, err := Validate([]Event{ev(100, KindCBC), ev(100, KindBurst)}, time.Second)
	assert.True(t, IsConflict(err))
}

func TestValidate_WellSpaced(t *testing.T) {
	rep, err := Validate([]Event{ev(100, KindCBC), ev(500, KindBurst), ev(900, KindCBC)}, 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Checked)
	assert.Empty(t, rep.Warnings)
}

func TestValidate_SingleAndEmpty(t *testing.T) {
	rep, err := Validate(nil, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, rep.Checked)

	rep, err = Validate([]Event{ev(1, KindCBC)}, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, rep.Checked)
}

func TestValidate_EndToStartWarning(t *testing.T) {
	durations := func(Event) (time.Duration, bool) { return 250 * time.Second, true }

	rep, err := Validate([]Event{ev(100, KindCBC), ev(500, KindBurst)}, 300*time.Second, WithDurations(durations))
	require.NoError(t, err)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, 150*time.Second, rep.Warnings[0].Gap)
}

func TestValidate_OverlapConflict(t *testing.T) {
	durations := func(Event) (time.Duration, bool) { return 500 * time.Second, true }

	_, err := Validate([]Event{ev(100, KindCBC), ev(500, KindBurst)}, 300*time.Second, WithDurations(durations))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, EndToStart, ce.Boundary)
	assert.Equal(t, -100*time.Second, ce.Gap)
}

func TestValidate_UnknownDurationSkipsEndCheck(t *testing.T) {
	durations := func(Event) (time.Duration, bool) { return 0, false }

	rep, err := Validate([]Event{ev(100, KindCBC), ev(500, KindBurst)}, 300*time.Second, WithDurations(durations))
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
}

func TestSortByDue_DoesNotMutateInput(t *testing.T) {
	in := []Event{ev(300, KindCBC), ev(100, KindCBC)}
	out := SortByDue(in)
	assert.InDelta(t, 300, in[0].GPS(), 1e-9)
	assert.InDelta(t, 100, out[0].GPS(), 1e-9)
}
