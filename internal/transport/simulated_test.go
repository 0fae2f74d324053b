package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulated_BlockingSendClosesStream(t *testing.T) {
	now := time.Now()
	sim := NewSimulated(func() time.Time { return now })

	st, err := sim.Open(context.Background(), "H1:CAL-PINJX_TRANSIENT_EXC", 4, now.Add(-time.Second))
	require.NoError(t, err)
	require.True(t, st.IsOpen())

	require.NoError(t, st.Send(context.Background(), Payload{Samples: []float64{1, 2}, Scale: 1}, true))
	assert.False(t, st.IsOpen())
	assert.ErrorIs(t, st.Send(context.Background(), Payload{}, true), ErrStreamClosed)
}

func TestSimulated_NonBlockingClosesAfterPlayback(t *testing.T) {
	now := time.Unix(1000, 0)
	sim := NewSimulated(func() time.Time { return now })

	st, err := sim.Open(context.Background(), "EXC", 2, now.Add(10*time.Second))
	require.NoError(t, err)
	require.NoError(t, st.Send(context.Background(), Payload{Samples: []float64{1, 2, 3, 4}}, false))
	assert.True(t, st.IsOpen())

	now = now.Add(11 * time.Second)
	assert.True(t, st.IsOpen(), "still playing")

	now = now.Add(time.Second)
	assert.False(t, st.IsOpen())
}

func TestSimulated_BlockingSendHonoursContext(t *testing.T) {
	sim := NewSimulated(nil)
	st, err := sim.Open(context.Background(), "EXC", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = st.Send(ctx, Payload{Samples: []float64{1}}, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, st.IsOpen())

	require.NoError(t, st.Abort())
	require.NoError(t, st.Abort())
	require.NoError(t, st.Close())
	assert.False(t, st.IsOpen())
}

func TestSimulated_RejectsBadRate(t *testing.T) {
	_, err := NewSimulated(nil).Open(context.Background(), "EXC", 0, time.Now())
	assert.Error(t, err)
}
