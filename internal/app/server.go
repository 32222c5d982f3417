package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quillway/quillway/internal/config"
)

// Server wraps the HTTP server with its configuration.
type Server struct {
	httpServer *http.Server
	config     *config.Config
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server instance.
func NewServer(cfg *config.Config, handler http.Handler, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: handler,
		// Long streaming completions need generous timeouts; a tight
		// ReadTimeout kills streams mid-flight.
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	return &Server{
		httpServer: srv,
		config:     cfg,
		logger:     logger,
	}
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", "http://localhost"+s.config.ServerPort)
	return s.httpServer.ListenAndServe()
}
