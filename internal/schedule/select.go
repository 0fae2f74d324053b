package schedule

import "time"

// SelectImminent returns the future event closest to now, provided it is
// due within window. Events at or before now are ignored.
//
// Ties on due time go to the lexically smaller kind, then to the event that
// appears first in events.
func SelectImminent(events []Event, now time.Time, window time.Duration) (Event, bool) {
	var (
		best  Event
		delta time.Duration
		found bool
	)
	for _, ev := range events {
		d := ev.Due.Sub(now)
		if d <= 0 {
			continue
		}
		if !found || d < delta || (d == delta && ev.Kind < best.Kind) {
			best, delta, found = ev, d, true
		}
	}
	if !found || delta >= window {
		return Event{}, false
	}
	return best, true
}
