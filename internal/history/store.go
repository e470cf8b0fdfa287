package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed rename.
type Entry struct {
	ID           int64
	OriginalPath string
	FinalPath    string
	Suggestion   string
	Attempts     int
	Source       string
	RenamedAt    time.Time
}

// Store manages the rename journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultListLimit        = 20
	// Fixed-width fractional seconds keep renamed_at lexically sortable.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
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
	return s.path
}

// Record appends a rename to the journal. A zero RenamedAt is stamped with the
// current time.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(entry.OriginalPath) == "" || strings.TrimSpace(entry.FinalPath) == "" {
		return errors.New("history record: original and final paths are required")
	}
	if entry.RenamedAt.IsZero() {
		entry.RenamedAt = time.Now()
	}
	if entry.Attempts <= 0 {
		entry.Attempts = 1
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO renames (original_path, final_path, suggestion, attempts, source, renamed_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entry.OriginalPath,
			entry.FinalPath,
			entry.Suggestion,
			entry.Attempts,
			entry.Source,
			entry.RenamedAt.UTC().Format(timestampLayout),
		)
		return err
	})
}

// Recent returns up to limit entries, newest first. A non-positive limit uses
// the default of 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, original_path, final_path, suggestion, attempts, source, renamed_at
		 FROM renames ORDER BY renamed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query renames: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			renamedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.OriginalPath, &entry.FinalPath, &entry.Suggestion, &entry.Attempts, &entry.Source, &renamedAt); err != nil {
			return nil, fmt.Errorf("scan rename: %w", err)
		}
		if entry.RenamedAt, err = parseTimeString(renamedAt); err != nil {
			return nil, fmt.Errorf("parse renamed_at for id %d: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate renames: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded renames.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM renames").Scan(&count); err != nil {
		return 0, fmt.Errorf("count renames: %w", err)
	}
	return count, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM renames")
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear renames: %w", err)
	}
	return res.RowsAffected()
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

func parseTimeString(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
