package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tinj/internal/store"
)

// Ledger is the subset of the store the local tracker writes to.
type Ledger interface {
	CreateTrackingEntry(ctx context.Context, e store.TrackingEntry) error
	AppendAnnotation(ctx context.Context, trackingID, body string, at time.Time) error
}

// Local is a Tracker that records entries in the ledger.
type Local struct {
	ledger Ledger
	now    func() time.Time
	newID  func() (uuid.UUID, error)
}

// NewLocal returns a ledger-backed tracker. now defaults to time.Now.
func NewLocal(ledger Ledger, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{ledger: ledger, now: now, newID: uuid.NewV7}
}

// Register stores a new entry under a UUIDv7 id.
func (l *Local) Register(ctx context.Context, r Registration) (string, error) {
	id, err := l.newID()
	if err != nil {
		return "", fmt.Errorf("register: generate id: %w", err)
	}
	pipeline := r.Pipeline
	if pipeline == "" {
		pipeline = DefaultPipeline
	}
	entry := store.TrackingEntry{
		ID:          id.String(),
		Group:       r.Group,
		Pipeline:    pipeline,
		Instruments: r.Instruments,
		Filename:    r.Filename,
		Metadata:    r.Metadata,
		CreatedAt:   l.now(),
	}
	if err := l.ledger.CreateTrackingEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return entry.ID, nil
}

// Annotate appends an annotation to an existing entry.
func (l *Local) Annotate(ctx context.Context, id, text string) error {
	return l.ledger.AppendAnnotation(ctx, id, text, l.now())
}
