package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tinj/internal/gpstime"
)

func TestSelectImminent_PicksSoonestWithinWindow(t *testing.T) {
	events := []Event{ev(700, KindCBC), ev(500, KindBurst)}

	got, ok := SelectImminent(events, gpstime.FromSeconds(0), 600*time.Second)
	require.True(t, ok)
	assert.InDelta(t, 500, got.GPS(), 1e-9)
	assert.Equal(t, KindBurst, got.Kind)
}

func TestSelectImminent_NothingInsideWindow(t *testing.T) {
	events := []Event{ev(700, KindCBC)}

	_, ok := SelectImminent(events, gpstime.FromSeconds(0), 600*time.Second)
	assert.False(t, ok)
}

func TestSelectImminent_WindowIsExclusive(t *testing.T) {
	events := []Event{ev(600, KindCBC)}

	_, ok := SelectImminent(events, gpstime.FromSeconds(0), 600*time.Second)
	assert.False(t, ok, "an event exactly window away is not imminent")
}

func TestSelectImminent_IgnoresPastAndDue(t *testing.T) {
	events := []Event{ev(50, KindCBC), ev(100, KindBurst), ev(400, KindDetchar)}

	got, ok := SelectImminent(events, gpstime.FromSeconds(100), 600*time.Second)
	require.True(t, ok)
	assert.Equal(t, KindDetchar, got.Kind)
}

func TestSelectImminent_Empty(t *testing.T) {
	_, ok := SelectImminent(nil, gpstime.FromSeconds(0), time.Hour)
	assert.False(t, ok)
}

func TestSelectImminent_TieBreak(t *testing.T) {
	a := ev(300, KindDetchar)
	b := ev(300, KindBurst)
	b.Index = 1
	c := ev(300, KindBurst)
	c.Index = 2

	got, ok := SelectImminent([]Event{a, b, c}, gpstime.FromSeconds(0), time.Hour)
	require.True(t, ok)
	assert.Equal(t, KindBurst, got.Kind)
	assert.Equal(t, 1, got.Index, "equal kind keeps input order")
}
