// Package store keeps the history of batch runs in SQLite
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound returned when run doesn't exist
var ErrNotFound = errors.New("run not found")

// Status is the final state of a run
type Status string

// run statuses
const (
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Run is a finished batch job
type Run struct {
	ID         int64           `json:"id"`
	JobKey     string          `json:"job_key"`
	Label      string          `json:"label"`
	Detail     string          `json:"detail,omitempty"`
	Status     Status          `json:"status"`
	Total      int             `json:"total"`
	Done       int             `json:"done"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    json.RawMessage `json:"results,omitempty"` // only for done runs
}

type runRow struct {
	ID         int64          `db:"id"`
	JobKey     string         `db:"job_key"`
	Label      string         `db:"label"`
	Detail     string         `db:"detail"`
	Status     string         `db:"status"`
	Total      int            `db:"total"`
	Done       int            `db:"done"`
	Message    string         `db:"message"`
	Error      string         `db:"error"`
	StartedAt  int64          `db:"started_at"`
	FinishedAt int64          `db:"finished_at"`
	Results    sql.NullString `db:"results"`
}

func (r runRow) run() Run {
	res := Run{ID: r.ID, JobKey: r.JobKey, Label: r.Label, Detail: r.Detail, Status: Status(r.Status),
		Total: r.Total, Done: r.Done, Message: r.Message, Error: r.Error}
	if r.StartedAt > 0 {
		res.StartedAt = time.UnixMilli(r.StartedAt)
	}
	if r.FinishedAt > 0 {
		res.FinishedAt = time.UnixMilli(r.FinishedAt)
	}
	if r.Results.Valid && r.Results.String != "" {
		res.Results = json.RawMessage(r.Results.String)
	}
	return res
}

// SQLiteStore implements run history on SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database and makes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (also failed to close db: %v)", err, closeErr)
		}
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_key TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			total INTEGER DEFAULT 0,
			done INTEGER DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER,
			finished_at INTEGER,
			results TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_job_key ON runs(job_key)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Record stores finished run and returns its id
func (s *SQLiteStore) Record(ctx context.Context, r Run) (int64, error) {
	row := runRow{JobKey: r.JobKey, Label: r.Label, Detail: r.Detail, Status: string(r.Status), Total: r.Total,
		Done: r.Done, Message: r.Message, Error: r.Error, StartedAt: r.StartedAt.UnixMilli(), FinishedAt: r.FinishedAt.UnixMilli()}
	if r.Status == StatusDone && len(r.Results) > 0 {
		row.Results = sql.NullString{String: string(r.Results), Valid: true}
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (job_key, label, detail, status, total, done, message, error, started_at, finished_at, results)
		VALUES (:job_key, :label, :detail, :status, :total, :done, :message, :error, :started_at, :finished_at, :results)`, row)
	if err != nil {
		return 0, fmt.Errorf("failed to record run %s: %w", r.JobKey, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get id of run %s: %w", r.JobKey, err)
	}
	log.Printf("[DEBUG] recorded run %d (%s), status %s", id, r.JobKey, r.Status)
	return id, nil
}

// List returns most recent runs without results, newest first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := []runRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, job_key, label, detail, status, total, done, message, error, started_at, finished_at, NULL AS results
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	res := make([]Run, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.run())
	}
	return res, nil
}

// Get returns run with results
func (s *SQLiteStore) Get(ctx context.Context, id int64) (Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, job_key, label, detail, status, total, done, message, error, started_at, finished_at, results
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run %d: %w", id, err)
	}
	return row.run(), nil
}

// Cleanup keeps only the most recent runs
func (s *SQLiteStore) Cleanup(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("failed to cleanup runs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("[DEBUG] removed %d old runs", n)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
