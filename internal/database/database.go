package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound — нет записи с таким id.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification означает, что версия записи изменилась
	// между чтением и записью.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

type DB struct {
	*sql.DB
	log *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Один коннект: пул для :memory: иначе откроет отдельные базы,
	// а файловая база не ловит SQLITE_BUSY под конкурентной записью.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, log: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            customer_username TEXT NOT NULL,
            customer_name TEXT NOT NULL,
            customer_email TEXT NOT NULL,
            provider_username TEXT NOT NULL,
            service TEXT NOT NULL,
            provider_experience TEXT,
            provider_location TEXT,
            visiting_price INTEGER NOT NULL,
            max_price INTEGER NOT NULL,
            requested_date DATETIME NOT NULL,
            description TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            otp_code TEXT,
            otp_expires_at DATETIME,
            feedback TEXT,
            feedback_given BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS listings (
            id TEXT PRIMARY KEY,
            provider_username TEXT NOT NULL,
            provider_name TEXT,
            service TEXT NOT NULL,
            description TEXT,
            experience TEXT,
            location TEXT,
            visiting_price INTEGER NOT NULL,
            max_price INTEGER NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            approval TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_username)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider ON bookings(provider_username)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,

		`CREATE INDEX IF NOT EXISTS idx_listings_provider ON listings(provider_username)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_approval ON listings(approval)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
