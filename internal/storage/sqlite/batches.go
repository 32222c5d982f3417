package sqlite

import (
	"database/sql"
	"time"

	"github.com/quillway/quillway/internal/storage"
)

// CreateBatch inserts a new batch record.
func (s *Storage) CreateBatch(b *storage.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	if b.ID == "" {
		b.ID = generateID("batch")
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO batches (id, provider_batch_id, account_id, status,
			request_count, completed_count, failed_count, items_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.ProviderBatchID, b.AccountID, b.Status,
		b.RequestCount, b.CompletedCount, b.FailedCount, b.ItemsJSON, b.CreatedAt, b.UpdatedAt)
	return err
}

// GetBatch fetches a batch record by id.
func (s *Storage) GetBatch(id string) (*storage.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	var b storage.BatchRecord
	err := s.db.QueryRow(`
		SELECT id, provider_batch_id, account_id, status,
			request_count, completed_count, failed_count, items_json, created_at, updated_at
		FROM batches WHERE id = ?
	`, id).Scan(&b.ID, &b.ProviderBatchID, &b.AccountID, &b.Status,
		&b.RequestCount, &b.CompletedCount, &b.FailedCount, &b.ItemsJSON, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBatch rewrites a batch record's mutable fields.
func (s *Storage) UpdateBatch(b *storage.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	b.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE batches SET status = ?, completed_count = ?, failed_count = ?,
			items_json = ?, updated_at = ?
		WHERE id = ?
	`, b.Status, b.CompletedCount, b.FailedCount, b.ItemsJSON, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
