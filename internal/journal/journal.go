package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"emgpipe/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current journal schema version. Bump this when the
// schema changes; the journal is an audit log, so mismatched databases may
// simply be deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("journal schema version mismatch")

// Conversion directions recorded per entry.
const (
	DirectionForward   = "forward"
	DirectionReverse   = "reverse"
	DirectionMultiGrid = "multigrid"
)

// Outcomes recorded per entry.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Entry is one recorded conversion attempt.
type Entry struct {
	ID         int64
	CreatedAt  time.Time
	Workfolder string
	BaseName   string
	Direction  string
	Outcome    string
	Duration   time.Duration
	ErrorText  string
	RequestID  string
}

// Counts aggregates journal totals for status views.
type Counts struct {
	Total  int
	OK     int
	Failed int
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the journal database under the configured
// log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "journal.db"))
}

// OpenPath initializes or connects to a journal database at an explicit
// location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record appends one conversion attempt and returns its row ID.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("journal store unavailable")
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var res sql.Result
	err := retryOnBusy(ensureContext(ctx), func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ensureContext(ctx),
			`INSERT INTO conversions (
                created_at, workfolder, base_name, direction, outcome,
                duration_ms, error_text, request_id
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			created.Format(time.RFC3339Nano),
			entry.Workfolder,
			entry.BaseName,
			entry.Direction,
			entry.Outcome,
			entry.Duration.Milliseconds(),
			nullableString(entry.ErrorText),
			nullableString(entry.RequestID),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert conversion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent entries, newest first. When onlyFailed is
// set, successful conversions are filtered out. A non-positive limit returns
// up to 100 rows.
func (s *Store) List(ctx context.Context, onlyFailed bool, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("journal store unavailable")
	}
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, created_at, workfolder, base_name, direction, outcome,
        duration_ms, error_text, request_id FROM conversions`
	args := []any{}
	if onlyFailed {
		query += " WHERE outcome = ?"
		args = append(args, OutcomeFailed)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Counts returns aggregate totals across the whole journal.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if s == nil || s.db == nil {
		return Counts{}, errors.New("journal store unavailable")
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT outcome, COUNT(1) FROM conversions GROUP BY outcome")
	if err != nil {
		return Counts{}, fmt.Errorf("count conversions: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return Counts{}, fmt.Errorf("scan counts: %w", err)
		}
		counts.Total += n
		switch outcome {
		case OutcomeOK:
			counts.OK += n
		case OutcomeFailed:
			counts.Failed += n
		}
	}
	return counts, rows.Err()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry      Entry
		created    string
		durationMS int64
		errorText  sql.NullString
		requestID  sql.NullString
	)
	if err := rows.Scan(&entry.ID, &created, &entry.Workfolder, &entry.BaseName,
		&entry.Direction, &entry.Outcome, &durationMS, &errorText, &requestID); err != nil {
		return Entry{}, fmt.Errorf("scan conversion: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		entry.CreatedAt = ts
	}
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.ErrorText = errorText.String
	entry.RequestID = requestID.String
	return entry, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
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

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
