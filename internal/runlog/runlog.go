// Package runlog persists one row per engine call for offline analysis of
// latency and pipeline behavior. Uses SQLite with WAL mode.
package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Log is a durable call log backed by a SQLite database.
type Log struct {
	db *sql.DB
}

// Record is one predict or train call.
type Record struct {
	ID          string // UUIDv7, assigned by Insert when empty
	Kind        string // "predict" or "train"
	StartedAt   time.Time
	TotalTime   time.Duration
	CleanupTime time.Duration
	PrepareTime time.Duration
	NumLines    int

	// Pending-line counts around the call's cleanup phase.
	PendingBefore int
	PendingAfter  int
}

// Open creates or opens a SQLite database at the given path.
// Applies pragmas and the schema automatically; safe to call repeatedly.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; keep a single connection to
	// avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Insert stores one call record, assigning a UUIDv7 id when none is set.
func (l *Log) Insert(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("failed to generate run id: %w", err)
		}
		rec.ID = id.String()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, kind, started_at,
			total_us, cleanup_us, prepare_us,
			num_lines, pending_before, pending_after
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.StartedAt.UnixMicro(),
		rec.TotalTime.Microseconds(), rec.CleanupTime.Microseconds(), rec.PrepareTime.Microseconds(),
		rec.NumLines, rec.PendingBefore, rec.PendingAfter,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// Recent returns the most recent records, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, kind, started_at,
			total_us, cleanup_us, prepare_us,
			num_lines, pending_before, pending_after
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var startedUS, totalUS, cleanupUS, prepareUS int64
		if err := rows.Scan(
			&rec.ID, &rec.Kind, &startedUS,
			&totalUS, &cleanupUS, &prepareUS,
			&rec.NumLines, &rec.PendingBefore, &rec.PendingAfter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = time.UnixMicro(startedUS).UTC()
		rec.TotalTime = time.Duration(totalUS) * time.Microsecond
		rec.CleanupTime = time.Duration(cleanupUS) * time.Microsecond
		rec.PrepareTime = time.Duration(prepareUS) * time.Microsecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
