package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// Failure is one summarization stage that did not produce the summary.
type Failure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Run records one execution of the digest pipeline.
type Run struct {
	ID           string
	RunDate      string // YYYY-MM-DD in the configured timezone
	StartedAt    time.Time
	FinishedAt   time.Time
	Stage        string // stage that produced the summary, empty on failure
	Failures     []Failure
	ArticleCount int
	DocumentPath string
	Notified     bool
	Error        string
}

// Succeeded reports whether the run produced a document.
func (r *Run) Succeeded() bool {
	return r.Error == ""
}

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		failures TEXT NOT NULL DEFAULT '[]',
		article_count INTEGER NOT NULL DEFAULT 0,
		document_path TEXT NOT NULL DEFAULT '',
		notified INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun inserts or updates a run. A run without an ID is assigned one.
func (db *DB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	failures := run.Failures
	if failures == nil {
		failures = []Failure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	query := `
	INSERT INTO runs (id, run_date, started_at, finished_at, stage, failures, article_count, document_path, notified, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		run_date = excluded.run_date,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		stage = excluded.stage,
		failures = excluded.failures,
		article_count = excluded.article_count,
		document_path = excluded.document_path,
		notified = excluded.notified,
		error = excluded.error
	`

	_, err = db.conn.ExecContext(ctx, query,
		run.ID,
		run.RunDate,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Stage,
		string(failuresJSON),
		run.ArticleCount,
		run.DocumentPath,
		run.Notified,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const runColumns = `id, run_date, started_at, finished_at, stage, failures, article_count, document_path, notified, error`

// GetRun retrieves a run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StageCounts returns how many successful runs each stage produced.
func (db *DB) StageCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM runs WHERE error = '' GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("query stage counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var failuresJSON string
	err := s.Scan(
		&run.ID,
		&run.RunDate,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Stage,
		&failuresJSON,
		&run.ArticleCount,
		&run.DocumentPath,
		&run.Notified,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	return &run, nil
}
