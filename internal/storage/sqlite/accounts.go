package sqlite

import (
	"database/sql"
	"time"

	"github.com/quillway/quillway/internal/storage"
)

// CreateAccount inserts a new account.
func (s *Storage) CreateAccount(a *storage.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	if a.ID == "" {
		a.ID = generateID("acct")
	}
	if a.PeriodStart.IsZero() {
		a.PeriodStart = time.Now().UTC()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO accounts (id, name, key_hash, key_prefix, plan, period_start,
			ai_messages_used, humanizer_words_used, plan_words_used, trial_words_used, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.KeyHash, a.KeyPrefix, string(a.Plan), a.PeriodStart.Format(time.RFC3339),
		a.AIMessagesUsed, a.HumanizerWordsUsed, a.PlanWordsUsed, a.TrialWordsUsed, boolToInt(a.IsActive))
	return err
}

// GetAccount fetches an account by id.
func (s *Storage) GetAccount(id string) (*storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	row := s.db.QueryRow(`
		SELECT id, name, key_hash, key_prefix, plan, period_start,
			ai_messages_used, humanizer_words_used, plan_words_used, trial_words_used, is_active, created_at
		FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

// GetAccountsByKeyPrefix fetches candidate accounts for an API key prefix.
func (s *Storage) GetAccountsByKeyPrefix(prefix string) ([]*storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	rows, err := s.db.Query(`
		SELECT id, name, key_hash, key_prefix, plan, period_start,
			ai_messages_used, humanizer_words_used, plan_words_used, trial_words_used, is_active, created_at
		FROM accounts WHERE key_prefix = ? AND is_active = 1
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*storage.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AddUsage atomically increments an account's usage counters. SQLite applies
// the increments in a single statement, so concurrent debits never lose
// updates.
func (s *Storage) AddUsage(accountID string, d storage.UsageDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	res, err := s.db.Exec(`
		UPDATE accounts SET
			ai_messages_used = ai_messages_used + ?,
			humanizer_words_used = humanizer_words_used + ?,
			plan_words_used = plan_words_used + ?,
			trial_words_used = trial_words_used + ?
		WHERE id = ?
	`, d.Messages, d.HumanizerWords, d.PlanWords, d.TrialWords, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ResetDailyUsage zeroes the daily message counter and stamps a new period
// start.
func (s *Storage) ResetDailyUsage(accountID string, periodStart string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	res, err := s.db.Exec(`
		UPDATE accounts SET ai_messages_used = 0, period_start = ? WHERE id = ?
	`, periodStart, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanAccount.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*storage.Account, error) {
	var a storage.Account
	var plan, periodStart string
	var isActive int
	err := row.Scan(&a.ID, &a.Name, &a.KeyHash, &a.KeyPrefix, &plan, &periodStart,
		&a.AIMessagesUsed, &a.HumanizerWordsUsed, &a.PlanWordsUsed, &a.TrialWordsUsed, &isActive, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Plan = storage.Plan(plan)
	a.IsActive = isActive != 0
	if t, perr := time.Parse(time.RFC3339, periodStart); perr == nil {
		a.PeriodStart = t
	}
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
