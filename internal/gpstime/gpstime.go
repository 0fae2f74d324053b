// Package gpstime converts between GPS seconds and time.Time.
//
// Schedules and the veto channel carry GPS seconds as floats. Everything
// inside the engine works on time.Time so comparisons use one clock.
package gpstime

import (
	"math"
	"time"
)

// LeapSeconds is the GPS-UTC offset in effect since 2017-01-01.
const LeapSeconds = 18

// Epoch is the GPS epoch, 1980-01-06T00:00:00Z.
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// FromSeconds converts GPS seconds to a UTC time.
func FromSeconds(gps float64) time.Time {
	whole, frac := math.Modf(gps)
	d := time.Duration(whole)*time.Second + time.Duration(math.Round(frac*1e9))
	return Epoch.Add(d - LeapSeconds*time.Second)
}

// ToSeconds converts a time to GPS seconds.
func ToSeconds(t time.Time) float64 {
	d := t.Sub(Epoch) + LeapSeconds*time.Second
	return d.Seconds()
}

// Now returns the current GPS time in seconds.
func Now() float64 {
	return ToSeconds(time.Now())
}

// Seconds converts a float number of seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
