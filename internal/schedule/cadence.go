package schedule

import (
	"sort"
	"time"
)

// DurationFunc reports how long an event's payload runs. ok is false when
// the duration is unknown, in which case only start-to-start is checked.
type DurationFunc func(Event) (d time.Duration, ok bool)

// Warning is a non-fatal end-to-start gap shorter than the minimum.
type Warning struct {
	First  Event
	Second Event
	Gap    time.Duration
}

// Report summarises a successful validation.
type Report struct {
	Checked  int // consecutive pairs examined
	Warnings []Warning
}

// ValidateOption configures Validate.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	durations DurationFunc
}

// WithDurations enables the end-to-start check.
func WithDurations(fn DurationFunc) ValidateOption {
	return func(c *validateConfig) {
		c.durations = fn
	}
}

// Validate checks that consecutive events, ordered by due time, start at
// least minGap apart. Identical due times always conflict.
//
// With WithDurations, the gap from each event's completion to the next due
// time is also checked: a positive gap under minGap is a Warning, an
// overlap (gap <= 0) is a conflict.
func Validate(events []Event, minGap time.Duration, opts ...ValidateOption) (Report, error) {
	var cfg validateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sorted := SortByDue(events)

	var rep Report
	for i := 1; i < len(sorted); i++ {
		a, b := sorted[i-1], sorted[i]
		rep.Checked++

		gap := b.Due.Sub(a.Due)
		if gap < minGap {
			return rep, &ConflictError{First: a, Second: b, Gap: gap, MinGap: minGap, Boundary: StartToStart}
		}

		if cfg.durations == nil {
			continue
		}
		d, ok := cfg.durations(a)
		if !ok {
			continue
		}
		endGap := b.Due.Sub(a.Due.Add(d))
		switch {
		case endGap <= 0:
			return rep, &ConflictError{First: a, Second: b, Gap: endGap, MinGap: minGap, Boundary: EndToStart}
		case endGap < minGap:
			rep.Warnings = append(rep.Warnings, Warning{First: a, Second: b, Gap: endGap})
		}
	}

	return rep, nil
}

// SortByDue returns a copy of events ordered by due time, using the same
// tie rule as SelectImminent.
func SortByDue(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
