package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/tinj/internal/schedule"
	"github.com/roach88/tinj/internal/store"
)

// EventView is a schedule event as printed by the CLI.
type EventView struct {
	GPS      float64 `json:"gps"`
	Kind     string  `json:"kind"`
	Mode     string  `json:"mode"`
	Scale    float64 `json:"scale"`
	Payload  string  `json:"payload"`
	Metadata string  `json:"metadata,omitempty"`
	Line     int     `json:"line"`
}

func newEventView(ev schedule.Event) *EventView {
	return &EventView{
		GPS:      ev.GPS(),
		Kind:     string(ev.Kind),
		Mode:     ev.Mode.String(),
		Scale:    ev.Scale,
		Payload:  ev.PayloadPath,
		Metadata: ev.MetadataPath,
		Line:     ev.Line,
	}
}

func (v *EventView) String() string {
	return fmt.Sprintf("%.6f %s (%s) scale %g %s [line %d]", v.GPS, v.Kind, v.Mode, v.Scale, v.Payload, v.Line)
}

// AttemptView is a ledger attempt as printed by the CLI.
type AttemptView struct {
	ID         string  `json:"id"`
	Epoch      int64   `json:"epoch"`
	DueGPS     float64 `json:"due_gps"`
	Kind       string  `json:"kind"`
	Outcome    string  `json:"outcome"`
	Cause      string  `json:"cause,omitempty"`
	TrackingID string  `json:"tracking_id,omitempty"`
	StartedAt  string  `json:"started_at"`
	EndedAt    string  `json:"ended_at,omitempty"`
}

func newAttemptView(a store.Attempt) AttemptView {
	v := AttemptView{
		ID:         a.ID,
		Epoch:      a.Epoch,
		DueGPS:     a.DueGPS,
		Kind:       a.Kind,
		Outcome:    a.Outcome,
		Cause:      a.Cause,
		TrackingID: a.TrackingID,
		StartedAt:  a.StartedAt.UTC().Format(timeLayout),
	}
	if !a.EndedAt.IsZero() {
		v.EndedAt = a.EndedAt.UTC().Format(timeLayout)
	}
	return v
}

const timeLayout = "2006-01-02T15:04:05.000Z"

func (v AttemptView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %.3f %-10s %s", v.ID, v.DueGPS, v.Kind, v.Outcome)
	if v.TrackingID != "" {
		fmt.Fprintf(&b, "  tracking=%s", v.TrackingID)
	}
	if v.Cause != "" {
		fmt.Fprintf(&b, "\n    %s", v.Cause)
	}
	return b.String()
}
