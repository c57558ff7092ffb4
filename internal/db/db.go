package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/errors"
)

// FileName is the database file created in the base directory.
const FileName = "jobtracker.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Querier is satisfied by *sql.DB and *sql.Tx, so every query runs either
// standalone or inside a record's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/jobtracker.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.jobtracker.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the DSN apply to every pooled connection. Immediate
	// transactions take the write lock up front, so a busy store surfaces at
	// BEGIN instead of halfway through a record.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS applications (
		  id                TEXT PRIMARY KEY,
		  account           TEXT NOT NULL,
		  company           TEXT NOT NULL,
		  company_key       TEXT NOT NULL,
		  position          TEXT,
		  position_key      TEXT NOT NULL DEFAULT '',
		  status            TEXT NOT NULL,
		  rejection_stage   TEXT,
		  applied_at        INTEGER,
		  notes             TEXT,
		  job_description   TEXT,
		  url               TEXT,
		  salary_range      TEXT,
		  recruiter_contact TEXT,
		  version           INTEGER NOT NULL DEFAULT 1,
		  created_at        INTEGER NOT NULL,
		  updated_at        INTEGER NOT NULL,
		  CHECK (rejection_stage IS NULL OR status = 'rejected')
		);

		CREATE INDEX IF NOT EXISTS idx_applications_company
		ON applications(account, company_key);

		CREATE INDEX IF NOT EXISTS idx_applications_updated
		ON applications(account, updated_at DESC);

		CREATE TABLE IF NOT EXISTS emails (
		  id              TEXT PRIMARY KEY,
		  account         TEXT NOT NULL,
		  sender          TEXT NOT NULL,
		  subject         TEXT NOT NULL,
		  snippet         TEXT,
		  received_at     INTEGER NOT NULL,
		  company         TEXT,
		  position        TEXT,
		  status_signal   TEXT,
		  rejection_stage TEXT,
		  job_related     INTEGER NOT NULL DEFAULT 0,
		  confidence      REAL NOT NULL DEFAULT 0,
		  evidence_json   TEXT,
		  state           TEXT NOT NULL DEFAULT 'unprocessed',
		  application_id  TEXT REFERENCES applications(id) ON DELETE SET NULL,
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_emails_state
		ON emails(account, state, received_at);

		CREATE INDEX IF NOT EXISTS idx_emails_application
		ON emails(application_id)
		WHERE application_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS reminders (
		  id             TEXT PRIMARY KEY,
		  application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		  due_at         INTEGER NOT NULL,
		  message        TEXT NOT NULL,
		  state          TEXT NOT NULL DEFAULT 'pending',
		  auto           INTEGER NOT NULL DEFAULT 0,
		  created_at     INTEGER NOT NULL,
		  updated_at     INTEGER NOT NULL,
		  completed_at   INTEGER
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_one_pending
		ON reminders(application_id)
		WHERE state = 'pending';

		CREATE INDEX IF NOT EXISTS idx_reminders_due
		ON reminders(state, due_at);

		CREATE TABLE IF NOT EXISTS interviews (
		  id             TEXT PRIMARY KEY,
		  application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		  kind           TEXT NOT NULL,
		  scheduled_at   INTEGER NOT NULL,
		  location       TEXT,
		  interviewer    TEXT,
		  notes          TEXT,
		  outcome        TEXT NOT NULL DEFAULT 'pending',
		  created_at     INTEGER NOT NULL,
		  updated_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_interviews_application
		ON interviews(application_id, scheduled_at);

		CREATE TABLE IF NOT EXISTS batch_locks (
		  account     TEXT PRIMARY KEY,
		  holder      TEXT NOT NULL,
		  acquired_at INTEGER NOT NULL,
		  expires_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS mailbox_sync (
		  account      TEXT PRIMARY KEY,
		  last_sync_at INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// WithTx runs fn in one transaction: committed if fn returns nil, rolled back
// otherwise. A busy or locked store is reported as STORE_CONFLICT so callers
// can retry the whole unit.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return storeErr(err)
	}
	if err = tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

// storeErr classifies a driver error.
func storeErr(err error) error {
	if isBusyError(err) {
		return errors.NewStoreConflict(err)
	}
	return errors.NewInternal(err)
}

// isBusyError checks for SQLITE_BUSY / SQLITE_LOCKED.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString stores empty strings as NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// toNullInt64 stores zero timestamps as NULL.
func toNullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
