package storage

import "time"

// Plan identifies a subscription tier.
type Plan string

const (
	PlanTrial   Plan = "trial"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// Account is a metered usage account. Counters are mutated only through the
// usage ledger.
type Account struct {
	ID                 string
	Name               string
	KeyHash            string
	KeyPrefix          string
	Plan               Plan
	PeriodStart        time.Time
	AIMessagesUsed     int
	HumanizerWordsUsed int
	PlanWordsUsed      int
	TrialWordsUsed     int
	IsActive           bool
	CreatedAt          time.Time
}

// UsageDelta is one committed usage increment against an account.
type UsageDelta struct {
	Messages       int
	HumanizerWords int
	PlanWords      int
	TrialWords     int
}

// RequestLog records one completed (or failed) orchestrated request.
type RequestLog struct {
	ID               string
	RequestID        string
	AccountID        string
	Provider         string
	Model            string
	Attempts         int
	PromptTokens     int
	CompletionTokens int
	WordCount        int
	IsStreaming      bool
	StatusCode       int
	ErrorMessage     string
	DurationMs       int64
	CreatedAt        time.Time
}

// BatchRecord persists one batch job across poll cycles. Items carry the
// reconciled results as JSON once the job completes; entries live for the
// batch's lifetime only.
type BatchRecord struct {
	ID              string
	ProviderBatchID string
	AccountID       string
	Status          string
	RequestCount    int
	CompletedCount  int
	FailedCount     int
	ItemsJSON       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
