// Package journal keeps an append-only SQLite trail of job transitions.
// It is write-mostly: the queue never reloads from it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	_ "modernc.org/sqlite"
)

// Entry is one recorded transition.
type Entry struct {
	ID       int64     `json:"id"`
	JobID    string    `json:"job_id"`
	Owner    string    `json:"owner"`
	Kind     job.Kind  `json:"kind"`
	Event    string    `json:"event"`
	State    job.State `json:"state"`
	Progress int       `json:"progress"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// SQLiteJournal is a SQLite-backed transition journal.
type SQLiteJournal struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath and runs migrations.
func Open(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteJournal{db: db}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteJournal) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS job_events (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id   TEXT NOT NULL,
			owner    TEXT NOT NULL,
			kind     TEXT NOT NULL,
			event    TEXT NOT NULL,
			state    TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			reason   TEXT NOT NULL DEFAULT '',
			at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id);
		CREATE INDEX IF NOT EXISTS idx_job_events_at     ON job_events(at);
	`)
	return err
}

// Append records event for j, stamped with j.UpdatedAt.
func (s *SQLiteJournal) Append(ctx context.Context, j job.Job, event string) error {
	at := j.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_events (job_id, owner, kind, event, state, progress, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Owner, string(j.Kind), event, string(j.State), j.Progress, j.FailureReason, at.UTC())
	if err != nil {
		return fmt.Errorf("append %s event for job %s: %w", event, j.ID, err)
	}
	return nil
}

// History returns the entries of jobID, oldest first.
func (s *SQLiteJournal) History(ctx context.Context, jobID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, owner, kind, event, state, progress, reason, at
		FROM job_events
		WHERE job_id = ?
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query history for job %s: %w", jobID, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Owner, &e.Kind, &e.Event, &e.State, &e.Progress, &e.Reason, &e.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Prune deletes the entries of every job whose final event (completed,
// failed or removed) happened before the cutoff.
func (s *SQLiteJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM job_events
		WHERE job_id IN (
			SELECT job_id FROM job_events
			WHERE event IN (?, ?, ?)
			AND at < ?
		)
	`, string(job.StateCompleted), string(job.StateFailed), "removed", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}
