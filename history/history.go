// Package history keeps a SQLite log of pipeline runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

const (
	table        = "runs"
	defaultLimit = 20
	maxLimit     = 200

	// timeLayout is fixed width so started_at sorts correctly as TEXT
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run is one finished pipeline run
type Run struct {
	JobID         string        `json:"job_id"`
	Niche         string        `json:"niche"`
	Title         string        `json:"title"`
	Stage         string        `json:"stage"`
	FinalVideoURL string        `json:"final_video_url,omitempty"`
	Uploaded      bool          `json:"uploaded"`
	VideoID       string        `json:"video_id,omitempty"`
	Error         string        `json:"error,omitempty"`
	Scenes        int           `json:"scenes"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// Store persists runs
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema when missing
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		job_id TEXT PRIMARY KEY,
		niche TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL,
		final_video_url TEXT NOT NULL DEFAULT '',
		uploaded INTEGER NOT NULL DEFAULT 0,
		video_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		scenes INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`)
	return err
}

// Record stores run, replacing an earlier row with the same job id
func (s *Store) Record(ctx context.Context, run Run) error {
	query, args, err := sq.Insert(table).
		Options("OR REPLACE").
		Columns("job_id", "niche", "title", "stage", "final_video_url", "uploaded", "video_id", "error", "scenes", "started_at", "duration_ms").
		Values(run.JobID, run.Niche, run.Title, run.Stage, run.FinalVideoURL, run.Uploaded, run.VideoID, run.Error, run.Scenes,
			run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record run %s: %w", run.JobID, err)
	}
	return nil
}

// Recent returns the newest runs first. limit <= 0 means the default.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query, args, err := sq.Select("job_id", "niche", "title", "stage", "final_video_url", "uploaded", "video_id", "error", "scenes", "started_at", "duration_ms").
		From(table).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMs int64
		)
		if err := rows.Scan(&r.JobID, &r.Niche, &r.Title, &r.Stage, &r.FinalVideoURL, &r.Uploaded, &r.VideoID, &r.Error, &r.Scenes, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
