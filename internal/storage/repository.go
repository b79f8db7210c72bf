package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers so SQLite never reports SQLITE_BUSY
	// to concurrent interactions.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema. Timestamps are unix milliseconds.
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id VARCHAR(20) PRIMARY KEY,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_cooldowns (
			guild_id VARCHAR(20) NOT NULL,
			user_id VARCHAR(20) NOT NULL,
			last_review_request INTEGER,
			last_review_submission INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(36) PRIMARY KEY,
			guild_id VARCHAR(20) NOT NULL,
			name VARCHAR(100) NOT NULL,
			description VARCHAR(500) NOT NULL DEFAULT '',
			price REAL NOT NULL CHECK (price >= 0),
			review_count INTEGER NOT NULL DEFAULT 0,
			average_rating REAL NOT NULL DEFAULT 0,
			total_rating_sum INTEGER NOT NULL DEFAULT 0,
			created_by VARCHAR(20) NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_active_name ON products(guild_id, name) WHERE active = 1`,
		`CREATE INDEX IF NOT EXISTS idx_products_guild ON products(guild_id, active)`,
		`CREATE TABLE IF NOT EXISTS review_requests (
			id VARCHAR(36) PRIMARY KEY,
			guild_id VARCHAR(20) NOT NULL,
			user_id VARCHAR(20) NOT NULL,
			requester_username VARCHAR(100) NOT NULL,
			request_message_id VARCHAR(20) NOT NULL UNIQUE,
			request_channel_id VARCHAR(20) NOT NULL,
			product_id VARCHAR(36) NOT NULL DEFAULT '',
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			staff_member_id VARCHAR(20) NOT NULL DEFAULT '',
			staff_note VARCHAR(500) NOT NULL DEFAULT '',
			denial_reason TEXT NOT NULL DEFAULT '',
			review_id VARCHAR(36) NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			processed_at INTEGER
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_one_pending ON review_requests(guild_id, user_id) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_requests_guild_status ON review_requests(guild_id, status, created_at)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id VARCHAR(36) PRIMARY KEY,
			guild_id VARCHAR(20) NOT NULL,
			product_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(20) NOT NULL,
			reviewer_username VARCHAR(100) NOT NULL,
			review_text TEXT NOT NULL,
			rating INTEGER NOT NULL,
			submitted_at INTEGER NOT NULL,
			staff_approver_id VARCHAR(20) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'approved',
			message_id VARCHAR(20) NOT NULL DEFAULT '',
			channel_id VARCHAR(20) NOT NULL DEFAULT '',
			anonymous INTEGER NOT NULL DEFAULT 0,
			last_edited_by VARCHAR(20) NOT NULL DEFAULT '',
			last_edited_at INTEGER,
			deleted_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_product ON reviews(guild_id, product_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_user ON reviews(guild_id, user_id, submitted_at)`,
		`CREATE TABLE IF NOT EXISTS staff_action_logs (
			id VARCHAR(36) PRIMARY KEY,
			guild_id VARCHAR(20) NOT NULL,
			staff_member_id VARCHAR(20) NOT NULL,
			staff_member_username VARCHAR(100) NOT NULL,
			action_type VARCHAR(20) NOT NULL,
			target_type VARCHAR(20) NOT NULL DEFAULT 'none',
			target_id VARCHAR(36) NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			processing_time_ms INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_guild ON staff_action_logs(guild_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_staff ON staff_action_logs(guild_id, staff_member_id, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// Time helpers

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
