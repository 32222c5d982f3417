// Package app wires the HTTP router and server.
package app

import (
	"log/slog"
	"net/http"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/transport/http/handler"
	"github.com/quillway/quillway/internal/transport/http/middleware"
	"github.com/quillway/quillway/internal/transport/http/middleware/auth"
)

// RouterOptions configures the HTTP router behavior.
type RouterOptions struct {
	Logger      *slog.Logger
	Storage     storage.Storage
	APIKeyCache *ristretto.Cache[string, *auth.CachedAccount]
}

// NewRouter creates the HTTP router with all application routes and the
// middleware chain applied.
func NewRouter(repo *handler.Repo, opts *RouterOptions) http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth)
	mux.HandleFunc("GET /api/health", repo.HealthCheck)
	mux.HandleFunc("GET /", repo.RootStatus)

	// API routes (require API key auth)
	apiKeyAuth := auth.APIKeyAuth(opts.Storage, opts.APIKeyCache)

	mux.Handle("POST /v1/completion/stream", apiKeyAuth(http.HandlerFunc(repo.CompletionStream)))
	mux.Handle("POST /v1/humanize", apiKeyAuth(http.HandlerFunc(repo.Humanize)))
	mux.Handle("POST /v1/batch", apiKeyAuth(http.HandlerFunc(repo.BatchSubmit)))
	mux.Handle("GET /v1/batch/{id}", apiKeyAuth(http.HandlerFunc(repo.BatchStatus)))

	// Apply middleware chain (order: outer to inner)
	var h http.Handler = mux

	if opts.Logger != nil {
		h = middleware.RequestLogger(opts.Logger)(h)
	}
	h = middleware.RequestID(h)
	h = middleware.CORS(h)

	return h
}
