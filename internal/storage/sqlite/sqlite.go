// Package sqlite provides the SQLite-based storage implementation.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quillway/quillway/internal/storage"
)

// Storage implements the storage.Storage interface using SQLite
type Storage struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// New creates a new SQLite storage instance
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{db: db}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates the database schema
func (s *Storage) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		key_hash             TEXT NOT NULL,
		key_prefix           TEXT NOT NULL,
		plan                 TEXT NOT NULL DEFAULT 'trial',
		period_start         TEXT NOT NULL,
		ai_messages_used     INTEGER DEFAULT 0,
		humanizer_words_used INTEGER DEFAULT 0,
		plan_words_used      INTEGER DEFAULT 0,
		trial_words_used     INTEGER DEFAULT 0,
		is_active            INTEGER DEFAULT 1,
		created_at           DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_prefix ON accounts(key_prefix);

	CREATE TABLE IF NOT EXISTS batches (
		id                TEXT PRIMARY KEY,
		provider_batch_id TEXT NOT NULL,
		account_id        TEXT,
		status            TEXT NOT NULL,
		request_count     INTEGER DEFAULT 0,
		completed_count   INTEGER DEFAULT 0,
		failed_count      INTEGER DEFAULT 0,
		items_json        TEXT NOT NULL DEFAULT '',
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_account ON batches(account_id);

	CREATE TABLE IF NOT EXISTS request_logs (
		id                TEXT PRIMARY KEY,
		request_id        TEXT NOT NULL,
		account_id        TEXT,
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL,
		attempts          INTEGER DEFAULT 1,
		prompt_tokens     INTEGER DEFAULT 0,
		completion_tokens INTEGER DEFAULT 0,
		word_count        INTEGER DEFAULT 0,
		is_streaming      INTEGER DEFAULT 0,
		status_code       INTEGER,
		error_message     TEXT,
		duration_ms       INTEGER,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_created ON request_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_logs_account ON request_logs(account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// generateID creates a new unique ID with a prefix
func generateID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// interface guard
var _ storage.Storage = (*Storage)(nil)
