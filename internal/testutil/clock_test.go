package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_Advance(t *testing.T) {
	c := NewFakeClockGPS(1000)

	c.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1001.5, c.GPS(), 1e-9)
}

func TestFakeClock_Set(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	c.Set(start.Add(-time.Hour))
	assert.True(t, c.Now().Equal(start.Add(-time.Hour)))
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	c := NewFakeClockGPS(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.InDelta(t, 100.0, c.GPS(), 1e-9)
}
