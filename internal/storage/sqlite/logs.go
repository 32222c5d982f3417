package sqlite

import (
	"time"

	"github.com/google/uuid"

	"github.com/quillway/quillway/internal/storage"
)

// LogRequest records one completed orchestrated request.
func (s *Storage) LogRequest(l *storage.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO request_logs (id, request_id, account_id, provider, model, attempts,
			prompt_tokens, completion_tokens, word_count, is_streaming,
			status_code, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.RequestID, l.AccountID, l.Provider, l.Model, l.Attempts,
		l.PromptTokens, l.CompletionTokens, l.WordCount, boolToInt(l.IsStreaming),
		l.StatusCode, l.ErrorMessage, l.DurationMs, l.CreatedAt)
	return err
}
