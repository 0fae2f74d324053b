package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tinj/internal/channel"
	"github.com/roach88/tinj/internal/schedule"
)

// Permits reports whether a locked/mode reading allows an event that
// requires the given mode.
func Permits(locked bool, mode, required schedule.Mode) bool {
	return locked && mode == required
}

// Reason explains a mode decision.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonUnlocked  Reason = "process not locked"
	ReasonWrongMode Reason = "process not in required mode"
	ReasonReadError Reason = "mode channels unreadable"
	ReasonBypassed  Reason = "mode gate bypassed (dev mode)"
)

// Decision is the outcome of one mode gate evaluation.
type Decision struct {
	Permitted bool
	Locked    bool
	Mode      schedule.Mode
	Reason    Reason
	Err       error
}

// ModeGate reads the lock and mode channels.
type ModeGate struct {
	ch       channel.Reader
	lockName string
	modeName string
	bitmask  int
	bypass   bool
	logger   *slog.Logger
}

// ModeGateConfig names the channels the gate reads.
type ModeGateConfig struct {
	LockChannel string
	ModeChannel string
	// ModeBitmask is ANDed with the mode channel; a non-zero result means
	// observation mode.
	ModeBitmask int
	// Bypass makes every evaluation permit. It exists for development
	// against a process that is never locked and must never be set on a
	// production node.
	Bypass bool
}

// NewModeGate creates a gate.
func NewModeGate(ch channel.Reader, cfg ModeGateConfig) *ModeGate {
	g := &ModeGate{
		ch:       ch,
		lockName: cfg.LockChannel,
		modeName: cfg.ModeChannel,
		bitmask:  cfg.ModeBitmask,
		bypass:   cfg.Bypass,
		logger:   slog.Default().With("component", "mode_gate"),
	}
	if g.bitmask == 0 {
		g.bitmask = 1
	}
	if g.bypass {
		g.logger.Warn("mode gate bypass enabled: lock and mode will not be checked")
	}
	return g
}

// Bypassed reports whether the gate is in bypass mode.
func (g *ModeGate) Bypassed() bool {
	return g.bypass
}

// Evaluate reads both channels fresh and decides for required.
func (g *ModeGate) Evaluate(ctx context.Context, required schedule.Mode) Decision {
	if g.bypass {
		return Decision{Permitted: true, Mode: required, Reason: ReasonBypassed}
	}

	lock, err := g.ch.Read(ctx, g.lockName)
	if err != nil {
		return Decision{Reason: ReasonReadError, Err: fmt.Errorf("read %s: %w", g.lockName, err)}
	}
	latch, err := g.ch.Read(ctx, g.modeName)
	if err != nil {
		return Decision{Reason: ReasonReadError, Err: fmt.Errorf("read %s: %w", g.modeName, err)}
	}

	d := Decision{Locked: lock == 1, Mode: schedule.ModeCommissioning}
	if int(latch)&g.bitmask != 0 {
		d.Mode = schedule.ModeObservation
	}

	switch {
	case !d.Locked:
		d.Reason = ReasonUnlocked
	case d.Mode != required:
		d.Reason = ReasonWrongMode
	default:
		d.Reason = ReasonOK
	}
	d.Permitted = Permits(d.Locked, d.Mode, required)
	return d
}
