// Package history persists per-run batch results to a SQLite database
// so past compression runs can be listed and compared.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/pdfpress/internal/stats"
)

//go:embed schema.sql
var schemaSQL string

// Run is one recorded batch run.
type Run struct {
	ID              int64
	StartedAt       time.Time
	InputPath       string
	OutputDir       string
	Quality         string
	TotalItems      int
	Succeeded       int
	Failed          int
	Skipped         int
	OriginalBytes   int64
	CompressedBytes int64
	Duration        time.Duration
	Fatal           string
}

// Item is one per-file result within a recorded run.
type Item struct {
	ID        int64
	RunID     int64
	InputPath string
	Success   bool
	Reason    string
	Duration  time.Duration
}

// Store manages the SQLite database for run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	// Handle in-memory database
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure SQLite for concurrent access with retry logic.
	// Set busy_timeout FIRST so subsequent operations wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, sql string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(sql)
		if err == nil {
			return nil
		}

		// Only retry on "database is locked" errors
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		delay := baseDelay * time.Duration(1<<attempt)
		time.Sleep(delay)
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun persists one finished batch run and its per-item results in
// a single transaction. Returns the new run ID.
func (s *Store) RecordRun(ctx context.Context, startedAt time.Time, inputPath, quality string, rep stats.Report) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	runQuery := `INSERT INTO runs
		(started_at, input_path, output_dir, quality, total_items, succeeded, failed, skipped, original_bytes, compressed_bytes, duration_ms, fatal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, runQuery,
		startedAt,
		inputPath,
		rep.OutputDir,
		quality,
		rep.TotalItems,
		rep.Succeeded,
		len(rep.Failed),
		len(rep.Skipped),
		rep.OriginalBytes,
		rep.CompressedBytes,
		rep.Duration.Milliseconds(),
		rep.Fatal,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get run id: %w", err)
	}

	if len(rep.Items) > 0 {
		reasons := make(map[string]string, len(rep.Failed))
		for _, f := range rep.Failed {
			reasons[f.Path] = f.Reason
		}

		itemStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_items
			(run_id, input_path, success, reason, duration_ms)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("prepare item statement: %w", err)
		}
		defer itemStmt.Close()

		for _, item := range rep.Items {
			_, err := itemStmt.ExecContext(ctx, runID, item.Path, item.Success,
				reasons[item.Path], item.Duration.Milliseconds())
			if err != nil {
				return 0, fmt.Errorf("insert run item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return runID, nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, started_at, input_path, output_dir, quality, total_items, succeeded, failed, skipped, original_bytes, compressed_bytes, duration_ms, fatal
		FROM runs
		ORDER BY id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var outputDir, fatal sql.NullString
		var durationMs int64
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.InputPath,
			&outputDir,
			&run.Quality,
			&run.TotalItems,
			&run.Succeeded,
			&run.Failed,
			&run.Skipped,
			&run.OriginalBytes,
			&run.CompressedBytes,
			&durationMs,
			&fatal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		if outputDir.Valid {
			run.OutputDir = outputDir.String
		}
		if fatal.Valid {
			run.Fatal = fatal.String
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// RunItems returns the per-file results of one run, in insertion order.
func (s *Store) RunItems(ctx context.Context, runID int64) ([]*Item, error) {
	query := `SELECT id, run_id, input_path, success, reason, duration_ms
		FROM run_items
		WHERE run_id = ?
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		var reason sql.NullString
		var durationMs int64
		if err := rows.Scan(&item.ID, &item.RunID, &item.InputPath, &item.Success, &reason, &durationMs); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		if reason.Valid {
			item.Reason = reason.String
		}
		item.Duration = time.Duration(durationMs) * time.Millisecond
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}

	return items, nil
}
