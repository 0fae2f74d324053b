// Package schedule holds the injection schedule.
//
// A schedule is a line-oriented file. Each non-blank line has six
// whitespace-separated columns:
//
//	<gps due time> <kind> <mode 0|1> <scale> <payload path> <metadata path|None>
//
// The payload path may contain the {ifo} placeholder, which is resolved when
// the schedule is loaded. Lines starting with '#' are comments.
//
// The package is pure: Load parses, FutureEvents filters, SelectImminent
// picks the next due event and Validate checks cadence. Nothing here reads
// clocks or channels; callers pass the current time in.
package schedule
