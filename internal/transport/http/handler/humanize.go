package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
)

type humanizePayload struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type humanizeResponse struct {
	Text         string `json:"text"`
	WordCount    int    `json:"wordCount"`
	TokensUsed   int    `json:"tokensUsed"`
	ChunksTotal  int    `json:"chunksTotal"`
	ChunksFailed int    `json:"chunksFailed"`
}

// Humanize handles POST /v1/humanize: the input document is rewritten chunk
// by chunk and returned whole.
func (repo *Repo) Humanize(w http.ResponseWriter, r *http.Request) {
	account := authAccount(w, r)
	if account == nil {
		return
	}

	var payload humanizePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("invalid JSON body"))
		return
	}
	if payload.Text == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("text is required"))
		return
	}

	// Pre-flight against the input size; the debit after the run uses the
	// actual output word count.
	inputWords := usage.CountWords(payload.Text)
	if err := repo.Ledger.CanConsume(account.ID, usage.KindHumanizerWords, inputWords); err != nil {
		if errors.Is(err, usage.ErrQuotaExceeded) {
			types.WriteError(w, http.StatusTooManyRequests, types.ErrQuotaExceeded(err.Error()))
			return
		}
		repo.Logger.Error("quota pre-flight failed", "account_id", account.ID, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("usage check failed"))
		return
	}

	result, err := repo.Humanizer.Rewrite(r.Context(), payload.Text, payload.Model)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		repo.Logger.Error("humanize failed", "account_id", account.ID, "error", err)
		types.WriteError(w, http.StatusBadGateway, types.ErrServer("humanize failed"))
		return
	}

	if err := repo.Ledger.Debit(account.ID, usage.KindHumanizerWords, result.WordCount); err != nil {
		repo.Logger.Warn("humanizer debit failed", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, humanizeResponse{
		Text:         result.Text,
		WordCount:    result.WordCount,
		TokensUsed:   result.TokensUsed,
		ChunksTotal:  result.ChunksTotal,
		ChunksFailed: result.ChunksFailed,
	})
}
