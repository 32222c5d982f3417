// Package provider defines the upstream LLM provider abstraction and the
// orchestrator that drives retries and failover across providers.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillway/quillway/internal/types"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider issues one streaming attempt against an upstream backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Models returns the provider's models in preference order: the
	// default model first, cheaper alternates after.
	Models() []string

	// Stream issues one attempt against the given model, delivering
	// canonical events through onEvent as they arrive from the transport.
	// MUST maintain streaming semantics (no buffering). A non-nil return
	// means the attempt failed at the transport level before or during
	// the stream; in-band provider errors arrive as Error events instead.
	Stream(ctx context.Context, req *types.CompletionRequest, model string, onEvent func(types.StreamEvent) error) error
}

// UpstreamError is a transport-level failure carrying the upstream HTTP
// status, used to classify overload for the retry policy.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.Status)
}

// Overloaded reports whether the upstream rejected the attempt for load
// reasons (rate-limited or overloaded).
func (e *UpstreamError) Overloaded() bool {
	return e.Status == 429 || e.Status == 529
}

// Result is the final outcome of a successful orchestrated request.
type Result struct {
	Content    string
	TokensUsed int
	Provider   string
	Model      string
	Attempts   int
}
