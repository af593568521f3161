// Package db is the sqlite store for schedules, bookings, work items and the
// pricing catalog.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the booking core.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return &DB{DB: sqlDB, path: path, logger: logger}, nil
}

// Path is the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS schedules (
			worker_id TEXT PRIMARY KEY,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Weekly template, weekday 0 = Sunday.
		`CREATE TABLE IF NOT EXISTS schedule_days (
			worker_id TEXT NOT NULL,
			weekday INTEGER NOT NULL,
			slots TEXT NOT NULL DEFAULT '',
			is_blocked BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (worker_id, weekday),
			FOREIGN KEY (worker_id) REFERENCES schedules(worker_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS schedule_overrides (
			worker_id TEXT NOT NULL,
			date TEXT NOT NULL,
			slots TEXT NOT NULL DEFAULT '',
			is_available BOOLEAN NOT NULL DEFAULT 1,
			reason TEXT,
			PRIMARY KEY (worker_id, date),
			FOREIGN KEY (worker_id) REFERENCES schedules(worker_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS pricing_tiers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			minutes_per_item INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT 'dropoff',
			price_cents INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// date and time are kept as text so they compare in calendar order.
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			worker_id TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			service_id TEXT NOT NULL,
			category TEXT NOT NULL,
			number_of_gifts INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			ready_notified BOOLEAN NOT NULL DEFAULT 0,
			customer_name TEXT NOT NULL,
			customer_email TEXT,
			customer_phone TEXT,
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS work_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending_checkin',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS notification_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			sink TEXT NOT NULL,
			error TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One active booking per start slot and date.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(date, time) WHERE status != 'cancelled'`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_work_items_booking ON work_items(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_failures_booking ON notification_failures(booking_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func joinSlots(slots []string) string {
	return strings.Join(slots, ",")
}

func splitSlots(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
