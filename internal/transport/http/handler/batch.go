package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/quillway/quillway/internal/batch"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
)

// maxBatchRequests bounds one submission; the upstream batch API enforces
// its own cap as well.
const maxBatchRequests = 100

type batchSubmitPayload struct {
	Requests []struct {
		CustomID string `json:"custom_id"`
		Body     struct {
			Model     string          `json:"model"`
			MaxTokens int             `json:"max_tokens"`
			Messages  []types.Message `json:"messages"`
		} `json:"body"`
	} `json:"requests"`
	ProjectTitle  string `json:"projectTitle,omitempty"`
	CitationStyle string `json:"citationStyle,omitempty"`
}

type batchSubmitResponse struct {
	BatchID             string `json:"batchId"`
	Status              string `json:"status"`
	RequestCount        int    `json:"requestCount"`
	EstimatedCompletion string `json:"estimatedCompletion"`
}

// BatchSubmit handles POST /v1/batch.
func (repo *Repo) BatchSubmit(w http.ResponseWriter, r *http.Request) {
	account := authAccount(w, r)
	if account == nil {
		return
	}
	if repo.Reconciler == nil {
		types.WriteError(w, http.StatusServiceUnavailable, types.ErrServer("batch API is not configured"))
		return
	}

	var payload batchSubmitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("invalid JSON body"))
		return
	}
	if len(payload.Requests) == 0 {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("requests is required"))
		return
	}
	if len(payload.Requests) > maxBatchRequests {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("too many requests in one batch"))
		return
	}

	// Each batch item counts as one message against the daily cap.
	if err := repo.Ledger.CanConsume(account.ID, usage.KindMessage, len(payload.Requests)); err != nil {
		if errors.Is(err, usage.ErrQuotaExceeded) {
			types.WriteError(w, http.StatusTooManyRequests, types.ErrQuotaExceeded(err.Error()))
			return
		}
		repo.Logger.Error("quota pre-flight failed", "account_id", account.ID, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("usage check failed"))
		return
	}

	prompts := make([]types.BatchPrompt, 0, len(payload.Requests))
	for _, req := range payload.Requests {
		prompts = append(prompts, types.BatchPrompt{
			CustomID:  req.CustomID,
			Model:     req.Body.Model,
			MaxTokens: req.Body.MaxTokens,
			Messages:  req.Body.Messages,
		})
	}

	job, err := repo.Reconciler.Submit(r.Context(), account.ID, prompts)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrEmptyBatch), errors.Is(err, batch.ErrDuplicateCustomID):
			types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest(err.Error()))
		default:
			repo.Logger.Error("batch submit failed", "account_id", account.ID, "error", err)
			types.WriteError(w, http.StatusBadGateway, types.ErrServer("batch submission failed"))
		}
		return
	}

	if err := repo.Ledger.Debit(account.ID, usage.KindMessage, len(prompts)); err != nil {
		repo.Logger.Warn("batch message debit failed", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusAccepted, batchSubmitResponse{
		BatchID:             job.ID,
		Status:              string(job.Status),
		RequestCount:        job.RequestCount,
		EstimatedCompletion: job.EstimatedCompletion.Format(time.RFC3339),
	})
}

// BatchStatus handles GET /v1/batch/{id}. Completed jobs include the full
// reconciled result set.
func (repo *Repo) BatchStatus(w http.ResponseWriter, r *http.Request) {
	account := authAccount(w, r)
	if account == nil {
		return
	}
	if repo.Reconciler == nil {
		types.WriteError(w, http.StatusServiceUnavailable, types.ErrServer("batch API is not configured"))
		return
	}

	id := r.PathValue("id")
	if id == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("batch id is required"))
		return
	}

	job, err := repo.Reconciler.Poll(r.Context(), id)
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound) {
			types.WriteError(w, http.StatusNotFound, types.ErrNotFound("batch not found"))
			return
		}
		repo.Logger.Error("batch poll failed", "batch_id", id, "error", err)
		types.WriteError(w, http.StatusBadGateway, types.ErrServer("batch status unavailable"))
		return
	}
	if job.AccountID != account.ID {
		types.WriteError(w, http.StatusNotFound, types.ErrNotFound("batch not found"))
		return
	}

	writeJSON(w, http.StatusOK, job)
}
