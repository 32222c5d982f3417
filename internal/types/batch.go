package types

import "time"

// BatchStatus is the lifecycle state of an asynchronous batch job.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// ItemStatus is the per-prompt outcome inside a batch.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSuccess ItemStatus = "success"
	ItemError   ItemStatus = "error"
)

// BatchItem is the reconciled result for one submitted prompt. CustomID is
// caller-supplied and round-trips unchanged through the provider; it is the
// only correlation key back to the original request.
type BatchItem struct {
	CustomID   string     `json:"id"`
	Status     ItemStatus `json:"status"`
	Content    string     `json:"content,omitempty"`
	TokensUsed int        `json:"tokens,omitempty"`
	WordCount  int        `json:"wordCount,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// BatchPrompt is one prompt submitted into a batch job.
type BatchPrompt struct {
	CustomID  string    `json:"custom_id"`
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

// BatchJob tracks one submitted batch through its lifetime.
type BatchJob struct {
	ID                  string      `json:"id"`
	ProviderBatchID     string      `json:"-"`
	AccountID           string      `json:"-"`
	Status              BatchStatus `json:"status"`
	RequestCount        int         `json:"requestCount"`
	CompletedCount      int         `json:"completedCount"`
	FailedCount         int         `json:"failedCount"`
	Items               []BatchItem `json:"results,omitempty"`
	CreatedAt           time.Time   `json:"-"`
	EstimatedCompletion time.Time   `json:"estimatedCompletion,omitempty"`
}
