package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/tinj/internal/channel"
	"github.com/roach88/tinj/internal/gpstime"
)

// IsLive reports whether a veto signalled at last is still in force at now.
// A zero last means no veto has ever been signalled.
func IsLive(last, now time.Time, window time.Duration) bool {
	if last.IsZero() {
		return false
	}
	d := now.Sub(last)
	if d < 0 {
		d = -d
	}
	return d < window
}

// VetoStatus is the result of one veto check.
type VetoStatus struct {
	Live bool
	Last time.Time // zero when no veto was recorded
	Err  error     // channel read failure; Live is forced true
}

// VetoMonitor reads the veto-time channel and applies IsLive.
type VetoMonitor struct {
	ch     channel.Reader
	name   string
	window time.Duration
	logger *slog.Logger

	missingIsLive bool
}

// VetoOption configures a VetoMonitor.
type VetoOption func(*VetoMonitor)

// WithMissingAsLive treats a missing veto channel as a live veto. Use it on
// backends where the channel is expected to exist, so a misnamed or
// unprovisioned key blocks injections instead of disabling the veto.
func WithMissingAsLive() VetoOption {
	return func(v *VetoMonitor) { v.missingIsLive = true }
}

// NewVetoMonitor creates a monitor for the channel holding the GPS time of
// the most recent external alert.
func NewVetoMonitor(ch channel.Reader, name string, window time.Duration, opts ...VetoOption) *VetoMonitor {
	v := &VetoMonitor{
		ch:     ch,
		name:   name,
		window: window,
		logger: slog.Default().With("component", "veto"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Window returns the trailing veto window.
func (v *VetoMonitor) Window() time.Duration {
	return v.window
}

// Check reads the channel and evaluates the veto at now. A read failure
// other than a missing channel is treated as a live veto. A missing channel
// means no veto unless WithMissingAsLive was given.
func (v *VetoMonitor) Check(ctx context.Context, now time.Time) VetoStatus {
	raw, err := v.ch.Read(ctx, v.name)
	if errors.Is(err, channel.ErrNotFound) && !v.missingIsLive {
		return VetoStatus{}
	}
	if err != nil {
		v.logger.Error("veto channel unreadable, treating as live", "channel", v.name, "error", err)
		return VetoStatus{Live: true, Err: err}
	}
	if raw <= 0 {
		return VetoStatus{}
	}

	last := gpstime.FromSeconds(raw)
	return VetoStatus{Live: IsLive(last, now, v.window), Last: last}
}
