// Package handler implements the HTTP API surface.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quillway/quillway/internal/batch"
	"github.com/quillway/quillway/internal/config"
	"github.com/quillway/quillway/internal/humanize"
	"github.com/quillway/quillway/internal/provider"
	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/transport/http/middleware/auth"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
)

// Runner is the orchestrator surface the handlers depend on.
type Runner interface {
	Execute(ctx context.Context, req *types.CompletionRequest, onEvent func(types.StreamEvent) error) (*provider.Result, error)
}

// Repo bundles the application services the handlers call into.
type Repo struct {
	Logger     *slog.Logger
	Config     *config.Config
	Runner     Runner
	Humanizer  *humanize.Humanizer
	Reconciler *batch.Reconciler
	Ledger     *usage.Ledger
	Storage    storage.Storage
}

// NewRepo creates a handler repository.
func NewRepo(logger *slog.Logger, cfg *config.Config, runner Runner, h *humanize.Humanizer, rec *batch.Reconciler, ledger *usage.Ledger, store storage.Storage) *Repo {
	return &Repo{
		Logger:     logger,
		Config:     cfg,
		Runner:     runner,
		Humanizer:  h,
		Reconciler: rec,
		Ledger:     ledger,
		Storage:    store,
	}
}

// authAccount pulls the authenticated account from the request, answering
// 401 itself when the middleware did not attach one.
func authAccount(w http.ResponseWriter, r *http.Request) *storage.Account {
	account := auth.GetAccount(r.Context())
	if account == nil {
		types.WriteError(w, http.StatusUnauthorized, types.ErrAuthentication("authentication required"))
		return nil
	}
	return account
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
