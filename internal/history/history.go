// Package history keeps a local record of version reconciliation passes in a
// SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	apperrors "insdesk/internal/errors"
	"insdesk/internal/update"
)

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	checked_at               TEXT    NOT NULL,
	app_version              TEXT    NOT NULL DEFAULT '',
	backend_version          TEXT    NOT NULL DEFAULT '',
	backend_api_version      TEXT    NOT NULL DEFAULT '',
	latest_app_version       TEXT    NOT NULL DEFAULT '',
	latest_backend_version   TEXT    NOT NULL DEFAULT '',
	app_update_available     INTEGER NOT NULL DEFAULT 0,
	backend_update_available INTEGER NOT NULL DEFAULT 0,
	release_notes            TEXT    NOT NULL DEFAULT '',
	release_date             TEXT    NOT NULL DEFAULT '',
	error                    TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at);
`

// timeLayout is fixed width so checked_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `id, checked_at, app_version, backend_version, backend_api_version,
	latest_app_version, latest_backend_version, app_update_available,
	backend_update_available, release_notes, release_date, error`

// Entry is one recorded pass.
type Entry struct {
	ID int64
	update.VersionStatus
}

// Store is a SQLite-backed check history. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "history path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "create history directory", err)
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "open history db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "ping history db", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "migrate history db", err)
	}
	return &Store{db: db, path: path}, nil
}

// buildDSN creates a read-write WAL DSN for the given path.
func buildDSN(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(3000)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record appends one pass.
func (s *Store) Record(ctx context.Context, st update.VersionStatus) error {
	checkedAt := st.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checks (
			checked_at, app_version, backend_version, backend_api_version,
			latest_app_version, latest_backend_version, app_update_available,
			backend_update_available, release_notes, release_date, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		checkedAt.UTC().Format(timeLayout),
		st.CurrentAppVersion,
		st.CurrentBackendVersion,
		st.CurrentBackendAPIVersion,
		st.LatestAppVersion,
		st.LatestBackendVersion,
		boolToInt(st.AppUpdateAvailable),
		boolToInt(st.BackendUpdateAvailable),
		st.ReleaseNotes,
		st.ReleaseDate,
		st.Error,
	)
	if err != nil {
		return apperrors.New(apperrors.CodeHistoryFailed, "record check", err)
	}
	return nil
}

// Latest returns the most recent entry, or nil when nothing is recorded.
func (s *Store) Latest(ctx context.Context) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM checks ORDER BY checked_at DESC, id DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "read latest check", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM checks ORDER BY checked_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "query checks", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeHistoryFailed, "scan check", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "iterate checks", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e            Entry
		checkedAt    string
		appAvail     int
		backendAvail int
	)
	err := sc.Scan(
		&e.ID,
		&checkedAt,
		&e.CurrentAppVersion,
		&e.CurrentBackendVersion,
		&e.CurrentBackendAPIVersion,
		&e.LatestAppVersion,
		&e.LatestBackendVersion,
		&appAvail,
		&backendAvail,
		&e.ReleaseNotes,
		&e.ReleaseDate,
		&e.Error,
	)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("parse checked_at %q: %w", checkedAt, err)
	}
	e.CheckedAt = t
	e.AppUpdateAvailable = appAvail != 0
	e.BackendUpdateAvailable = backendAvail != 0
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
