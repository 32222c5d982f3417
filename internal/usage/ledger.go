// Package usage meters accounts against their subscription budgets.
//
// Two units are tracked independently: a daily message count and a
// cumulative word budget. The pre-flight check runs before any upstream call
// is issued; the debit commits only after the call succeeds. Cancelled or
// failed requests are never billed.
package usage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quillway/quillway/internal/storage"
)

// Kind selects which budget dimension an operation consumes.
type Kind string

const (
	// KindMessage is one AI message against the daily message cap.
	KindMessage Kind = "message"
	// KindPlanWords consumes the cumulative plan word budget.
	KindPlanWords Kind = "plan_words"
	// KindHumanizerWords consumes the humanizer word budget.
	KindHumanizerWords Kind = "humanizer_words"
)

// ErrQuotaExceeded is returned when a pre-flight check or debit would
// overdraw the account.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Ledger serializes usage accounting per account. All counter mutation goes
// through here; the store only ever sees atomic increments.
type Ledger struct {
	store storage.AccountStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a ledger over an account store.
func NewLedger(store storage.AccountStore) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing one account's check-then-debit
// window. Locks are per account so one account's traffic never blocks
// another's.
func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}

// CanConsume is the pre-flight check: it reports whether the account can
// afford amount units of kind without committing anything. Must be called
// before the upstream request is issued.
func (l *Ledger) CanConsume(accountID string, kind Kind, amount int) error {
	account, err := l.loadWithRollover(accountID)
	if err != nil {
		return err
	}
	return checkBudget(account, kind, amount)
}

// Debit commits amount units of kind against the account. The budget is
// re-checked under the account lock so concurrent debits can never overdraw;
// callers must only Debit after the upstream call succeeded.
func (l *Ledger) Debit(accountID string, kind Kind, amount int) error {
	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.loadWithRollover(accountID)
	if err != nil {
		return err
	}
	if err := checkBudget(account, kind, amount); err != nil {
		return err
	}

	return l.store.AddUsage(accountID, deltaFor(account, kind, amount))
}

// loadWithRollover fetches the account and resets the daily message counter
// when the period has rolled over since the last request.
func (l *Ledger) loadWithRollover(accountID string) (*storage.Account, error) {
	account, err := l.store.GetAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if account.PeriodStart.UTC().Truncate(24 * time.Hour).Before(today) {
		if err := l.store.ResetDailyUsage(accountID, today.Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("reset daily usage: %w", err)
		}
		account.AIMessagesUsed = 0
		account.PeriodStart = today
	}
	return account, nil
}

// checkBudget enforces used + amount <= limit for the relevant dimension.
func checkBudget(account *storage.Account, kind Kind, amount int) error {
	limits := LimitsFor(account.Plan)
	trial := account.Plan == storage.PlanTrial

	switch kind {
	case KindMessage:
		if account.AIMessagesUsed+amount > limits.DailyMessages {
			return fmt.Errorf("%w: daily message limit (%d) reached", ErrQuotaExceeded, limits.DailyMessages)
		}
	case KindPlanWords:
		if trial {
			if account.TrialWordsUsed+amount > limits.TrialWords {
				return fmt.Errorf("%w: trial word budget (%d) exhausted", ErrQuotaExceeded, limits.TrialWords)
			}
			return nil
		}
		if account.PlanWordsUsed+amount > limits.PlanWords {
			return fmt.Errorf("%w: plan word budget (%d) exhausted", ErrQuotaExceeded, limits.PlanWords)
		}
	case KindHumanizerWords:
		if trial {
			return fmt.Errorf("%w: humanizer requires a subscription", ErrQuotaExceeded)
		}
		if account.HumanizerWordsUsed+amount > limits.HumanizerWords {
			return fmt.Errorf("%w: humanizer word budget (%d) exhausted", ErrQuotaExceeded, limits.HumanizerWords)
		}
	default:
		return fmt.Errorf("unknown usage kind %q", kind)
	}
	return nil
}

// deltaFor maps a kind to the store increment it commits.
func deltaFor(account *storage.Account, kind Kind, amount int) storage.UsageDelta {
	trial := account.Plan == storage.PlanTrial
	switch kind {
	case KindMessage:
		return storage.UsageDelta{Messages: amount}
	case KindPlanWords:
		if trial {
			return storage.UsageDelta{TrialWords: amount}
		}
		return storage.UsageDelta{PlanWords: amount}
	case KindHumanizerWords:
		return storage.UsageDelta{HumanizerWords: amount}
	}
	return storage.UsageDelta{}
}
