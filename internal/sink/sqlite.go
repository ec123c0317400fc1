package sink

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sttbatch/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion must be bumped whenever schema.sql changes.
const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// ErrSchemaMismatch indicates the archive was created by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Record is one archived transcript.
type Record struct {
	SourceFile string
	OutputName string
	JobID      string
	Transcript string
	WrittenAt  time.Time
}

// SQLite archives transcripts in a single table keyed by source file.
type SQLite struct {
	db    *sql.DB
	path  string
	names namer
}

// OpenSQLite opens or creates the archive at path.
func OpenSQLite(path, extension string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, component, "open", path, err)
	}
	// One connection keeps the pragmas in effect for every statement.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrPersistence, component, "open", path, fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}
	store := &SQLite{db: db, path: path, names: namer{extension: extension}}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrPersistence, component, "open", path, err)
	}
	return store, nil
}

// Plan makes the output_name column unique across sources.
func (s *SQLite) Plan(sources []string) map[string]string {
	return s.names.plan(sources)
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

// Write upserts the transcript row for sourceFile. The job id is taken from
// ctx when present.
func (s *SQLite) Write(ctx context.Context, sourceFile, transcript string) (string, error) {
	name := s.names.name(sourceFile)
	jobID, _ := services.JobIDFromContext(ctx)
	writtenAt := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
INSERT INTO transcripts (source_file, output_name, job_id, transcript, written_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source_file) DO UPDATE SET
    output_name = excluded.output_name,
    job_id = excluded.job_id,
    transcript = excluded.transcript,
    written_at = excluded.written_at`,
			sourceFile, name, jobID, transcript, writtenAt)
		return execErr
	})
	if err != nil {
		return "", services.Wrap(services.ErrPersistence, component, "write", sourceFile, err)
	}
	return s.path + "#" + name, nil
}

func (s *SQLite) record(ctx context.Context, sourceFile string) (*Record, error) {
	var (
		rec       Record
		writtenAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source_file, output_name, job_id, transcript, written_at FROM transcripts WHERE source_file = ?`,
		sourceFile,
	).Scan(&rec.SourceFile, &rec.OutputName, &rec.JobID, &rec.Transcript, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, component, "get", sourceFile, err)
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, writtenAt); parseErr == nil {
		rec.WrittenAt = parsed
	}
	return &rec, nil
}

func (s *SQLite) count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transcripts`).Scan(&n); err != nil {
		return 0, services.Wrap(services.ErrPersistence, component, "count", "", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
