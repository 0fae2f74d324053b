package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TrackingEntry is a locally recorded tracking-service event.
type TrackingEntry struct {
	ID          string
	Group       string
	Pipeline    string
	Instruments []string
	Filename    string
	Metadata    []byte
	CreatedAt   time.Time
}

// Annotation is a log line appended to a tracking entry.
type Annotation struct {
	ID         int64
	TrackingID string
	Body       string
	CreatedAt  time.Time
}

// CreateTrackingEntry inserts a tracking entry.
func (s *Store) CreateTrackingEntry(ctx context.Context, e TrackingEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_entries (id, grp, pipeline, instruments, filename, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Group, e.Pipeline, strings.Join(e.Instruments, ","), e.Filename, e.Metadata, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create tracking entry: %w", err)
	}
	return nil
}

// GetTrackingEntry reads a tracking entry by id.
func (s *Store) GetTrackingEntry(ctx context.Context, id string) (TrackingEntry, error) {
	var (
		e           TrackingEntry
		instruments string
		created     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, grp, pipeline, instruments, filename, metadata, created_at
		FROM tracking_entries WHERE id = ?
	`, id).Scan(&e.ID, &e.Group, &e.Pipeline, &instruments, &e.Filename, &e.Metadata, &created)
	if err != nil {
		return TrackingEntry{}, fmt.Errorf("get tracking entry %s: %w", id, err)
	}
	if instruments != "" {
		e.Instruments = strings.Split(instruments, ",")
	}
	e.CreatedAt = parseTime(created)
	return e, nil
}

// AppendAnnotation adds a log line to an existing tracking entry.
func (s *Store) AppendAnnotation(ctx context.Context, trackingID, body string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annotations (tracking_id, body, created_at) VALUES (?, ?, ?)
	`, trackingID, body, formatTime(at))
	if err != nil {
		return fmt.Errorf("append annotation: %w", err)
	}
	return nil
}

// Annotations lists a tracking entry's annotations in insertion order.
func (s *Store) Annotations(ctx context.Context, trackingID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tracking_id, body, created_at FROM annotations
		WHERE tracking_id = ? ORDER BY id ASC
	`, trackingID)
	if err != nil {
		return nil, fmt.Errorf("annotations: %w", err)
	}
	defer rows.Close()

	var out []Annotation
	for rows.Next() {
		var (
			a  Annotation
			at string
		)
		if err := rows.Scan(&a.ID, &a.TrackingID, &a.Body, &at); err != nil {
			return nil, fmt.Errorf("annotations: %w", err)
		}
		a.CreatedAt = parseTime(at)
		out = append(out, a)
	}
	return out, rows.Err()
}
