package handler

import (
	"net/http"
	"time"

	"github.com/quillway/quillway/internal/version"
)

var startedAt = time.Now()

// HealthCheck handles GET /api/health.
func (repo *Repo) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	})
}

// RootStatus handles GET / with a JSON service banner.
func (repo *Repo) RootStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "quillway",
		"version": version.Version,
		"status":  "running",
	})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}
