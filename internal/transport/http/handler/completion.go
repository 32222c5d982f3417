package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quillway/quillway/internal/intent"
	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/transport/http/middleware"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
)

// longOutputMaxTokens lifts the output ceiling when the caller opts into
// long-form generation.
const longOutputMaxTokens = 32000

type completionPayload struct {
	Message             string            `json:"message"`
	SystemPrompt        string            `json:"systemPrompt"`
	ConversationHistory []types.Message   `json:"conversationHistory"`
	Model               string            `json:"model"`
	Temperature         float64           `json:"temperature"`
	TargetWordCount     int               `json:"targetWordCount"`
	AllowLongOutputs    bool              `json:"allowLongOutputs"`
	LengthHint          *types.LengthHint `json:"lengthHint"`
}

// CompletionStream handles POST /v1/completion/stream. The response is an
// SSE stream of {"content"} lines ending in exactly one {"done"} or
// {"error"} line, unless the client disconnects first.
func (repo *Repo) CompletionStream(w http.ResponseWriter, r *http.Request) {
	account := authAccount(w, r)
	if account == nil {
		return
	}

	var payload completionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("invalid JSON body"))
		return
	}
	if payload.Message == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("message is required"))
		return
	}

	req := buildRequest(&payload)

	// Quota pre-flight runs before anything is sent upstream. The word
	// check uses the length hint's lower bound when one resolved, and a
	// minimum of one word so a fully spent budget is always rejected.
	minWords := 1
	if req.LengthHint != nil && req.LengthHint.MinWords > 0 {
		minWords = req.LengthHint.MinWords
	}
	err := repo.Ledger.CanConsume(account.ID, usage.KindMessage, 1)
	if err == nil {
		err = repo.Ledger.CanConsume(account.ID, usage.KindPlanWords, minWords)
	}
	if err != nil {
		if errors.Is(err, usage.ErrQuotaExceeded) {
			types.WriteError(w, http.StatusTooManyRequests, types.ErrQuotaExceeded(err.Error()))
			return
		}
		repo.Logger.Error("quota pre-flight failed", "account_id", account.ID, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("usage check failed"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := w.Write(types.FormatSSE(data)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	start := time.Now()
	result, execErr := repo.Runner.Execute(r.Context(), req, func(ev types.StreamEvent) error {
		switch ev.Kind {
		case types.EventDelta:
			return emit(map[string]string{"content": ev.Text})
		case types.EventDone:
			return emit(map[string]any{"done": true, "tokensUsed": ev.TokensUsed})
		case types.EventError:
			return emit(map[string]string{"error": ev.Message})
		}
		return nil
	})

	logEntry := &storage.RequestLog{
		ID:          uuid.NewString(),
		RequestID:   middleware.GetRequestID(r.Context()),
		AccountID:   account.ID,
		IsStreaming: true,
		DurationMs:  time.Since(start).Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	switch {
	case execErr == nil:
		logEntry.Provider = result.Provider
		logEntry.Model = result.Model
		logEntry.Attempts = result.Attempts
		logEntry.CompletionTokens = result.TokensUsed
		logEntry.WordCount = usage.CountWords(result.Content)
		logEntry.StatusCode = http.StatusOK
		repo.debitCompletion(account, result.Content, result.TokensUsed)
	case errors.Is(execErr, context.Canceled):
		// Client went away mid-stream. Nothing billed, nothing emitted.
		logEntry.StatusCode = 499
		logEntry.ErrorMessage = "cancelled"
	default:
		logEntry.StatusCode = http.StatusBadGateway
		logEntry.ErrorMessage = execErr.Error()
	}

	if err := repo.Storage.LogRequest(logEntry); err != nil {
		repo.Logger.Warn("request log write failed", "error", err)
	}
}

// buildRequest converts the HTTP payload into the canonical request,
// resolving the length directive. An explicit hint wins over an explicit
// target count, which wins over detection from the message and history.
func buildRequest(p *completionPayload) *types.CompletionRequest {
	hint := p.LengthHint
	if hint == nil && p.TargetWordCount > 0 {
		hint = &types.LengthHint{
			MinWords: p.TargetWordCount,
			MaxWords: p.TargetWordCount + p.TargetWordCount/4,
		}
	}
	if hint == nil {
		if wr := intent.Detect(p.Message, p.ConversationHistory); wr != nil {
			hint = &types.LengthHint{MinWords: wr.MinWords, MaxWords: wr.MaxWords}
		}
	}

	system := p.SystemPrompt
	if hint != nil {
		directive := fmt.Sprintf("Write between %d and %d words.", hint.MinWords, hint.MaxWords)
		if system == "" {
			system = directive
		} else {
			system = system + "\n\n" + directive
		}
	}

	maxTokens := 0
	if p.AllowLongOutputs {
		maxTokens = longOutputMaxTokens
	}

	return &types.CompletionRequest{
		PromptText:      p.Message,
		SystemDirective: system,
		History:         p.ConversationHistory,
		TargetModel:     p.Model,
		Temperature:     p.Temperature,
		MaxOutputTokens: maxTokens,
		LengthHint:      hint,
	}
}

// debitCompletion commits usage after a successful stream. Trial accounts
// are metered in estimated tokens converted to words; paid plans are metered
// in actual output words.
func (repo *Repo) debitCompletion(account *storage.Account, content string, tokensUsed int) {
	if err := repo.Ledger.Debit(account.ID, usage.KindMessage, 1); err != nil {
		repo.Logger.Warn("message debit failed", "account_id", account.ID, "error", err)
	}

	words := usage.CountWords(content)
	if account.Plan == storage.PlanTrial {
		if tokensUsed == 0 {
			tokensUsed = usage.EstimateTokens(content)
		}
		words = usage.TokensToWords(tokensUsed)
	}
	if words == 0 {
		return
	}
	if err := repo.Ledger.Debit(account.ID, usage.KindPlanWords, words); err != nil {
		repo.Logger.Warn("word debit failed", "account_id", account.ID, "error", err)
	}
}
