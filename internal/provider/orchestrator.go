package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quillway/quillway/internal/types"
)

// State tracks where the orchestrator is in the lifecycle of one request.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateStreaming
	StateSucceeded
	StateFailedOver
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateStreaming:
		return "streaming"
	case StateSucceeded:
		return "succeeded"
	case StateFailedOver:
		return "failed_over"
	case StateGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// AttemptStatus is the terminal disposition of one upstream attempt.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
	AttemptAborted   AttemptStatus = "aborted"
)

// Attempt records one call against one provider/model pair. Attempts are
// kept in memory for the duration of a request and discarded afterward.
type Attempt struct {
	Provider   string
	Model      string
	StartedAt  time.Time
	Status     AttemptStatus
	HTTPStatus int
}

// ErrAllProvidersFailed is returned when every candidate has been exhausted.
var ErrAllProvidersFailed = errors.New("all providers failed")

// failureMessage is the only error text forwarded to end users. Provider
// identity and vendor detail stay in the logs and the returned Go error.
const failureMessage = "generation is temporarily unavailable, please try again shortly"

// ErrEmptyResult marks a stream that completed without producing content.
// It is retryable at the orchestration level even though no HTTP error
// occurred.
var ErrEmptyResult = errors.New("stream completed with no content")

// errContentForwarded marks an attempt that failed after delta events were
// already delivered to the caller. Retrying would duplicate text, so these
// failures are terminal.
var errContentForwarded = errors.New("content already forwarded")

// Orchestrator runs a completion request against a preference-ordered list
// of providers. On overload it retries the same provider with an alternate
// model, then fails over to the next provider. Transient network errors get
// exponential backoff within a bounded number of tries.
type Orchestrator struct {
	providers   []Provider
	maxAttempts int
	logger      *slog.Logger

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator builds an orchestrator over the given providers, tried in
// the order supplied. maxAttempts bounds retries of a single candidate on
// transient network errors.
func NewOrchestrator(providers []Provider, maxAttempts int, logger *slog.Logger) *Orchestrator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Orchestrator{
		providers:   providers,
		maxAttempts: maxAttempts,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// candidate is one provider/model pair in the failover plan.
type candidate struct {
	provider Provider
	model    string
}

// plan flattens providers and their models into failover order. When the
// request names a model that one of the providers serves, that model jumps
// to the front of its provider's list.
func (o *Orchestrator) plan(preferredModel string) []candidate {
	var out []candidate
	for _, p := range o.providers {
		models := p.Models()
		if preferredModel != "" && containsModel(models, preferredModel) {
			models = reorderFirst(models, preferredModel)
		}
		for _, m := range models {
			out = append(out, candidate{provider: p, model: m})
		}
	}
	return out
}

func containsModel(models []string, m string) bool {
	for _, v := range models {
		if v == m {
			return true
		}
	}
	return false
}

func reorderFirst(models []string, first string) []string {
	out := make([]string, 0, len(models))
	out = append(out, first)
	for _, m := range models {
		if m != first {
			out = append(out, m)
		}
	}
	return out
}

// Execute runs the request to completion, forwarding delta events to
// onEvent as they arrive and emitting exactly one terminal event unless the
// context is cancelled first. It returns the accumulated result or an error
// once every candidate is exhausted.
func (o *Orchestrator) Execute(ctx context.Context, req *types.CompletionRequest, onEvent func(types.StreamEvent) error) (*Result, error) {
	candidates := o.plan(req.TargetModel)
	if len(candidates) == 0 {
		return nil, errors.New("no providers configured")
	}

	var attempts []Attempt
	var lastErr error

	i := 0
	for i < len(candidates) {
		cand := candidates[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state := StateAttempting
		if len(attempts) > 0 && attempts[len(attempts)-1].Provider != cand.provider.Name() {
			state = StateFailedOver
		}
		o.logger.Info("attempting provider",
			"state", state.String(),
			"provider", cand.provider.Name(),
			"model", cand.model,
			"attempt", len(attempts)+1)

		res, att, err := o.attempt(ctx, req, cand, onEvent)
		attempts = append(attempts, att)

		if err == nil {
			res.Attempts = len(attempts)
			o.logger.Info("request succeeded",
				"state", StateSucceeded.String(),
				"provider", res.Provider,
				"model", res.Model,
				"attempts", res.Attempts,
				"tokens_used", res.TokensUsed)
			if err := onEvent(types.Done(res.TokensUsed)); err != nil {
				return nil, err
			}
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Cancellation is not a failure. No terminal event, no billing.
			return nil, err
		}
		lastErr = err

		if errors.Is(err, errContentForwarded) {
			break
		}

		var up *UpstreamError
		if errors.As(err, &up) && up.Overloaded() {
			o.logger.Warn("provider overloaded",
				"provider", cand.provider.Name(),
				"model", cand.model,
				"status", up.Status)
			// Overload tries the provider's next model before moving on;
			// the plan already encodes that order.
			i++
			continue
		}

		o.logger.Warn("attempt failed",
			"provider", cand.provider.Name(),
			"model", cand.model,
			"error", err)
		// Any other failure class abandons the provider entirely.
		i = nextProviderIndex(candidates, i)
	}

	o.logger.Error("all providers exhausted",
		"state", StateGaveUp.String(),
		"attempts", len(attempts),
		"error", lastErr)
	if ctx.Err() == nil {
		if err := onEvent(types.StreamError(failureMessage, false)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// nextProviderIndex returns the index of the first candidate belonging to a
// different provider than candidates[i], or len(candidates) if none remain.
func nextProviderIndex(candidates []candidate, i int) int {
	name := candidates[i].provider.Name()
	j := i + 1
	for j < len(candidates) && candidates[j].provider.Name() == name {
		j++
	}
	return j
}

// attempt runs one candidate with network-error backoff. Delta events go
// straight to onEvent; terminal events are absorbed here so Execute can emit
// exactly one terminal event for the whole request.
func (o *Orchestrator) attempt(ctx context.Context, req *types.CompletionRequest, cand candidate, onEvent func(types.StreamEvent) error) (*Result, Attempt, error) {
	att := Attempt{
		Provider:  cand.provider.Name(),
		Model:     cand.model,
		StartedAt: time.Now(),
		Status:    AttemptPending,
	}

	for try := 1; try <= o.maxAttempts; try++ {
		var content strings.Builder
		tokensUsed := 0
		forwarded := false
		var streamErr *types.StreamEvent

		err := cand.provider.Stream(ctx, req, cand.model, func(ev types.StreamEvent) error {
			switch ev.Kind {
			case types.EventDelta:
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				forwarded = true
				content.WriteString(ev.Text)
				return onEvent(ev)
			case types.EventDone:
				tokensUsed = ev.TokensUsed
			case types.EventError:
				e := ev
				streamErr = &e
			}
			return nil
		})

		if cerr := ctx.Err(); cerr != nil {
			att.Status = AttemptAborted
			return nil, att, cerr
		}

		switch {
		case err != nil:
			var up *UpstreamError
			if errors.As(err, &up) {
				att.HTTPStatus = up.Status
				att.Status = AttemptFailed
				return nil, att, err
			}
			if forwarded {
				att.Status = AttemptFailed
				return nil, att, fmt.Errorf("%w: %v", errContentForwarded, err)
			}
			if try < o.maxAttempts {
				delay := time.Duration(1<<(try-1)) * time.Second
				o.logger.Warn("network error, backing off",
					"provider", cand.provider.Name(),
					"model", cand.model,
					"try", try,
					"delay", delay,
					"error", err)
				if serr := o.sleep(ctx, delay); serr != nil {
					att.Status = AttemptAborted
					return nil, att, serr
				}
				continue
			}
			att.Status = AttemptFailed
			return nil, att, err

		case streamErr != nil:
			att.Status = AttemptFailed
			if forwarded {
				return nil, att, fmt.Errorf("%w: %s", errContentForwarded, streamErr.Message)
			}
			return nil, att, fmt.Errorf("provider error: %s", streamErr.Message)

		case content.Len() == 0:
			att.Status = AttemptFailed
			return nil, att, ErrEmptyResult

		default:
			att.Status = AttemptSucceeded
			return &Result{
				Content:    content.String(),
				TokensUsed: tokensUsed,
				Provider:   cand.provider.Name(),
				Model:      cand.model,
			}, att, nil
		}
	}

	att.Status = AttemptFailed
	return nil, att, errors.New("retries exhausted")
}
