package schedule

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/tinj/internal/gpstime"
)

func eventsAt(times []float64) []Event {
	out := make([]Event, len(times))
	for i, s := range times {
		out[i] = ev(s, KindCBC)
		out[i].Index = i
	}
	return out
}

// Property: SelectImminent never returns an event that is due, past, or at
// least window away.
func TestProperty_SelectImminentBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("selected event is strictly inside (now, now+window)", prop.ForAll(
		func(times []float64, now float64, window float64) bool {
			n := gpstime.FromSeconds(now)
			w := gpstime.Seconds(window)
			got, ok := SelectImminent(eventsAt(times), n, w)
			if !ok {
				return true
			}
			d := got.Due.Sub(n)
			return d > 0 && d < w
		},
		gen.SliceOf(gen.Float64Range(0, 5000)),
		gen.Float64Range(0, 5000),
		gen.Float64Range(1, 2000),
	))

	properties.Property("selected event is the soonest future one", prop.ForAll(
		func(times []float64, now float64) bool {
			n := gpstime.FromSeconds(now)
			got, ok := SelectImminent(eventsAt(times), n, 24*time.Hour)
			for _, e := range FutureEvents(eventsAt(times), n) {
				if !ok || e.Due.Before(got.Due) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 5000)),
		gen.Float64Range(0, 5000),
	))

	properties.TestingRun(t)
}

// Property: two events closer than minGap always produce a conflict that
// names both of them.
func TestProperty_ValidateNamesBothEvents(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("close pair conflicts", prop.ForAll(
		func(start, offset, minGap float64) bool {
			a := ev(start, KindCBC)
			b := ev(start+offset, KindCBC)
			b.Index = 1
			gap := gpstime.Seconds(minGap)

			_, err := Validate([]Event{a, b}, gap)
			if b.Due.Sub(a.Due) >= gap {
				return err == nil
			}
			ce, ok := err.(*ConflictError)
			if !ok {
				return false
			}
			return ce.First.Index == 0 && ce.Second.Index == 1
		},
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 100),
		gen.Float64Range(0.001, 100),
	))

	properties.TestingRun(t)
}

// Property: FutureEvents with now before every due time is the identity.
func TestProperty_FutureEventsRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("all events kept in order", prop.ForAll(
		func(times []float64) bool {
			events := eventsAt(times)
			future := FutureEvents(events, gpstime.FromSeconds(-1))
			if len(future) != len(events) {
				return false
			}
			for i := range events {
				if future[i].Index != events[i].Index {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 1e6)),
	))

	properties.TestingRun(t)
}
