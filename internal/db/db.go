package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrDatabaseInit = errors.New("database initialization failed")
)

// DB represents the database connection.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %w", ErrDatabaseInit, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseInit, err)
	}

	// Connection pool limits to prevent file descriptor exhaustion
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA secure_delete=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: failed to set pragma: %w", ErrDatabaseInit, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	// Tokens live in this file; keep it private to the service user
	if err := os.Chmod(dbPath, 0600); err != nil {
		// File might not exist yet in WAL mode
		_ = err
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks the database connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the database schema.
func (db *DB) migrate() error {
	migrations := []string{
		// Users table
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Applications table
		`CREATE TABLE IF NOT EXISTS applications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			company_name TEXT NOT NULL,
			job_title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'applied',
			priority TEXT NOT NULL DEFAULT 'medium',
			application_date DATETIME NOT NULL,
			deadline DATETIME,
			salary_min INTEGER,
			salary_max INTEGER,
			salary_currency TEXT NOT NULL DEFAULT 'USD',
			job_url TEXT,
			location TEXT,
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_user_id ON applications(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(user_id, status)`,

		// Interviews table
		`CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			application_id TEXT NOT NULL,
			interview_type TEXT NOT NULL,
			scheduled_at DATETIME NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			location TEXT,
			meeting_link TEXT,
			status TEXT NOT NULL DEFAULT 'scheduled',
			outcome TEXT,
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interviews_user_id ON interviews(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interviews_application_id ON interviews(application_id)`,

		// Documents table (metadata only; blobs live in external storage)
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			application_id TEXT,
			name TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'other',
			file_path TEXT NOT NULL,
			file_size INTEGER,
			mime_type TEXT,
			is_template INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id)`,

		// Custom calendar events table
		`CREATE TABLE IF NOT EXISTS calendar_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			application_id TEXT,
			title TEXT NOT NULL,
			description TEXT,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			event_type TEXT NOT NULL DEFAULT 'custom',
			all_day INTEGER NOT NULL DEFAULT 0,
			location TEXT,
			notes TEXT,
			color TEXT,
			sync_with_google INTEGER NOT NULL DEFAULT 0,
			last_google_sync DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calendar_events_user_id ON calendar_events(user_id)`,

		// Google OAuth credentials, one row per user
		`CREATE TABLE IF NOT EXISTS google_credentials (
			user_id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			token_expiry DATETIME NOT NULL,
			scope TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Per-user sync configuration, one row per user
		`CREATE TABLE IF NOT EXISTS google_sync_settings (
			user_id TEXT PRIMARY KEY,
			google_calendar_id TEXT NOT NULL,
			sync_enabled INTEGER NOT NULL DEFAULT 1,
			sync_interviews INTEGER NOT NULL DEFAULT 1,
			sync_deadlines INTEGER NOT NULL DEFAULT 1,
			sync_applications INTEGER NOT NULL DEFAULT 0,
			sync_follow_ups INTEGER NOT NULL DEFAULT 1,
			sync_custom_events INTEGER NOT NULL DEFAULT 1,
			auto_sync_interval INTEGER NOT NULL DEFAULT 60,
			last_sync_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Event identity mapping between app events and Google events
		`CREATE TABLE IF NOT EXISTS google_event_mappings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			app_event_type TEXT NOT NULL,
			app_event_reference_id TEXT NOT NULL,
			app_event_id TEXT,
			google_calendar_id TEXT NOT NULL,
			google_event_id TEXT NOT NULL,
			last_synced_at DATETIME NOT NULL,
			sync_status TEXT NOT NULL DEFAULT 'pending',
			etag TEXT,
			origin TEXT NOT NULL DEFAULT 'internal',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_app_ref
			ON google_event_mappings(user_id, app_event_type, app_event_reference_id)
			WHERE origin = 'internal'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_google_event
			ON google_event_mappings(user_id, google_event_id)
			WHERE origin = 'google'`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_user_id ON google_event_mappings(user_id)`,

		// Append-only sync audit log
		`CREATE TABLE IF NOT EXISTS google_sync_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			sync_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			events_processed INTEGER NOT NULL DEFAULT 0,
			errors_count INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			error_details TEXT,
			completed_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_logs_user_id ON google_sync_logs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_logs_completed_at ON google_sync_logs(completed_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.Exec(migration); err != nil {
			if !isDuplicateColumnError(err) {
				return fmt.Errorf("%w: migration failed: %w", ErrDatabaseInit, err)
			}
		}
	}

	return nil
}

// isDuplicateColumnError checks if the error is due to a duplicate column in ALTER TABLE.
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate column") || strings.Contains(errStr, "already exists")
}
