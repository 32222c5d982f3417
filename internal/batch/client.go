// Package batch submits bulk prompt jobs to a provider's asynchronous batch
// API and reconciles the results back into a 1:1 mapping with the submitted
// prompts.
package batch

import (
	"context"
	"encoding/json"

	"github.com/quillway/quillway/internal/types"
)

// Processing states reported by the upstream batch API.
const (
	StatusInProgress = "in_progress"
	StatusEnded      = "ended"
	StatusCanceling  = "canceling"
	StatusFailed     = "failed"
	StatusExpired    = "expired"
	StatusCancelled  = "cancelled"
)

// Status is the upstream view of one batch job.
type Status struct {
	ProcessingStatus string
	Succeeded        int
	Errored          int
	Canceled         int
	Expired          int
	Processing       int
	ResultsURL       string
}

// Terminal reports whether the job can make no further progress.
func (s *Status) Terminal() bool {
	switch s.ProcessingStatus {
	case StatusEnded, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Failed reports whether the job ended without producing results.
func (s *Status) Failed() bool {
	switch s.ProcessingStatus {
	case StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// RawResult is one undecoded per-item result line. Result keeps the full
// line so envelope matching can try every known shape.
type RawResult struct {
	CustomID string
	Result   json.RawMessage
}

// Client speaks one provider's native batch protocol.
type Client interface {
	// Submit creates a batch job upstream and returns the provider's
	// batch id.
	Submit(ctx context.Context, prompts []types.BatchPrompt) (string, error)

	// Status fetches the current processing state of a batch.
	Status(ctx context.Context, providerBatchID string) (*Status, error)

	// Results fetches the per-item result lines of an ended batch. Order
	// is not guaranteed by the upstream; correlation happens by custom id.
	Results(ctx context.Context, providerBatchID string) ([]RawResult, error)
}
