// Package sqlite persists the four append-only stores (transaction journal,
// payment records, certificates, regulatory notifications) and the
// per-factory milestone state in a single SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the storage directory.
const FileName = "veridi.db"

// DB wraps the SQLite handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database in dir and applies migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps insertion order equal to commit order.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Ping checks the database is reachable.
func (db *DB) Ping() error { return db.db.Ping() }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Transaction journal (append-only, id order is event order)
		`CREATE TABLE IF NOT EXISTS journal (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  TEXT NOT NULL,
			type       TEXT NOT NULL,
			details    TEXT NOT NULL DEFAULT '',
			amount     INTEGER NOT NULL DEFAULT 0,
			tx_hash    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_ts ON journal(timestamp)`,

		// Successful payment records
		`CREATE TABLE IF NOT EXISTS payments (
			payment_id TEXT PRIMARY KEY,
			payer      TEXT NOT NULL,
			credits    INTEGER NOT NULL,
			currency   TEXT NOT NULL,
			gateway    TEXT NOT NULL,
			status     TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			seq        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_payer ON payments(payer, seq)`,

		// Compliance certificates (ids are not unique across repeated issuance)
		`CREATE TABLE IF NOT EXISTS certificates (
			seq               INTEGER PRIMARY KEY AUTOINCREMENT,
			certificate_id    TEXT NOT NULL,
			factory           TEXT NOT NULL,
			quota_seq         INTEGER NOT NULL DEFAULT 0,
			quota_amount      INTEGER NOT NULL,
			purchased         INTEGER NOT NULL,
			issue_date        TEXT NOT NULL,
			issued_by         TEXT NOT NULL,
			status            TEXT NOT NULL,
			benefits_eligible INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cert_factory ON certificates(factory, quota_seq)`,

		// Capped regulatory notification feed
		`CREATE TABLE IF NOT EXISTS notifications (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			notification_id TEXT NOT NULL,
			timestamp       TEXT NOT NULL,
			action          TEXT NOT NULL,
			details         TEXT NOT NULL DEFAULT '',
			subject         TEXT NOT NULL DEFAULT '',
			notified_by     TEXT NOT NULL DEFAULT 'system'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_subject ON notifications(subject, action)`,

		// Milestone bitfield per factory and quota instance
		`CREATE TABLE IF NOT EXISTS milestones (
			factory    TEXT PRIMARY KEY,
			quota_seq  INTEGER NOT NULL DEFAULT 0,
			bands      INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
