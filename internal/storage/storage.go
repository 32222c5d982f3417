// Package storage defines the persistence interfaces consumed by the core.
// The usage ledger treats it as an opaque store keyed by account id; the
// batch reconciler uses it to survive poll cycles across process restarts.
package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStorageClosed is returned after Close.
var ErrStorageClosed = errors.New("storage is closed")

// AccountStore reads and mutates usage accounts.
type AccountStore interface {
	// CreateAccount inserts a new account.
	CreateAccount(a *Account) error

	// GetAccount fetches an account by id.
	GetAccount(id string) (*Account, error)

	// GetAccountsByKeyPrefix fetches candidate accounts for an API key
	// prefix; the caller verifies the full key against each hash.
	GetAccountsByKeyPrefix(prefix string) ([]*Account, error)

	// AddUsage atomically increments an account's usage counters.
	AddUsage(accountID string, d UsageDelta) error

	// ResetDailyUsage zeroes the daily message counter and stamps a new
	// period start.
	ResetDailyUsage(accountID string, periodStart string) error
}

// BatchStore persists batch jobs. Injected into the reconciler so the
// tracking lifecycle is explicit rather than module-level process memory.
type BatchStore interface {
	CreateBatch(b *BatchRecord) error
	GetBatch(id string) (*BatchRecord, error)
	UpdateBatch(b *BatchRecord) error
}

// LogStore records completed requests for diagnostics and usage stats.
type LogStore interface {
	LogRequest(l *RequestLog) error
}

// Storage is the full persistence surface.
type Storage interface {
	AccountStore
	BatchStore
	LogStore
	Close() error
}
