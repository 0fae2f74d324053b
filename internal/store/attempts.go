package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Attempt is one ledger row per scheduled event the engine started on.
type Attempt struct {
	ID           string
	Epoch        int64
	DueGPS       float64
	Kind         string
	Mode         int
	Scale        float64
	PayloadPath  string
	MetadataPath string
	TrackingID   string
	Outcome      string // "PENDING" until finished
	Cause        string
	StartedAt    time.Time
	EndedAt      time.Time // zero while pending
}

// Transition is one recorded state change.
type Transition struct {
	Seq       int64
	AttemptID string // empty for transitions outside an attempt
	From      string
	To        string
	Cause     string
	At        time.Time
}

// OutcomePending marks an attempt that has not reached a terminal state.
const OutcomePending = "PENDING"

// OutcomeKill is the outcome the engine records for a killed attempt.
const OutcomeKill = "KILL"

// BeginAttempt inserts a new pending attempt.
func (s *Store) BeginAttempt(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts
		(id, epoch, due_gps, kind, mode, scale, payload_path, metadata_path, outcome, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.Epoch,
		a.DueGPS,
		a.Kind,
		a.Mode,
		a.Scale,
		a.PayloadPath,
		a.MetadataPath,
		OutcomePending,
		formatTime(a.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin attempt: %w", err)
	}
	return nil
}

// SetTrackingID records the id the tracking service assigned.
func (s *Store) SetTrackingID(ctx context.Context, attemptID, trackingID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET tracking_id = ? WHERE id = ?`, trackingID, attemptID)
	if err != nil {
		return fmt.Errorf("set tracking id: %w", err)
	}
	return nil
}

// FinishAttempt stores the terminal outcome. Only a pending attempt is
// updated, so finishing twice keeps the first outcome.
func (s *Store) FinishAttempt(ctx context.Context, attemptID, outcome, cause string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE attempts SET outcome = ?, cause = ?, ended_at = ?
		WHERE id = ? AND outcome = ?
	`, outcome, cause, formatTime(at), attemptID, OutcomePending)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	return nil
}

// WriteTransition appends a state change. Uses ON CONFLICT(seq) DO NOTHING
// so a replayed seq is ignored.
func (s *Store) WriteTransition(ctx context.Context, t Transition) error {
	var attemptID any
	if t.AttemptID != "" {
		attemptID = t.AttemptID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (seq, attempt_id, from_state, to_state, cause, at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, t.Seq, attemptID, t.From, t.To, t.Cause, formatTime(t.At))
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}
	return nil
}

// AbandonPending closes every attempt still pending as killed. A node calls
// it on start: a pending row then means the previous process died before
// finishing the attempt.
func (s *Store) AbandonPending(ctx context.Context, cause string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attempts SET outcome = ?, cause = ?, ended_at = ?
		WHERE outcome = ?
	`, OutcomeKill, cause, formatTime(at), OutcomePending)
	if err != nil {
		return 0, fmt.Errorf("abandon pending: %w", err)
	}
	return res.RowsAffected()
}

// MaxSeq returns the highest transition seq, or 0 for an empty ledger.
// The engine resumes its sequence clock from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM transitions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// GetAttempt reads one attempt by id.
func (s *Store) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, attemptSelect+` WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if err != nil {
		return Attempt{}, fmt.Errorf("get attempt %s: %w", id, err)
	}
	return a, nil
}

// RecentAttempts returns up to limit attempts, newest due time first.
func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		attemptSelect+` ORDER BY due_gps DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("recent attempts: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TransitionsFor returns an attempt's transitions in seq order.
func (s *Store) TransitionsFor(ctx context.Context, attemptID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, COALESCE(attempt_id, ''), from_state, to_state, cause, at
		FROM transitions WHERE attempt_id = ? ORDER BY seq ASC
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t  Transition
			at string
		)
		if err := rows.Scan(&t.Seq, &t.AttemptID, &t.From, &t.To, &t.Cause, &at); err != nil {
			return nil, fmt.Errorf("transitions: %w", err)
		}
		t.At = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

const attemptSelect = `
	SELECT id, epoch, due_gps, kind, mode, scale, payload_path, metadata_path,
	       tracking_id, outcome, cause, started_at, COALESCE(ended_at, '')
	FROM attempts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a              Attempt
		started, ended string
	)
	err := r.Scan(&a.ID, &a.Epoch, &a.DueGPS, &a.Kind, &a.Mode, &a.Scale,
		&a.PayloadPath, &a.MetadataPath, &a.TrackingID, &a.Outcome, &a.Cause,
		&started, &ended)
	if err != nil {
		return Attempt{}, err
	}
	a.StartedAt = parseTime(started)
	a.EndedAt = parseTime(ended)
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
