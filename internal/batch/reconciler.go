package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillway/quillway/internal/sanitize"
	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
	"github.com/quillway/quillway/internal/wire"
)

// ErrEmptyBatch is returned when a submission carries no prompts.
var ErrEmptyBatch = errors.New("batch contains no prompts")

// ErrDuplicateCustomID is returned when two prompts share a custom id, which
// would make result correlation ambiguous.
var ErrDuplicateCustomID = errors.New("duplicate custom_id in batch")

// ErrBatchNotFound is returned when polling an unknown batch id.
var ErrBatchNotFound = errors.New("batch not found")

// estimatedTurnaround seeds the estimatedCompletion hint returned at submit.
const estimatedTurnaround = 30 * time.Minute

// Reconciler drives a batch job from submission to a reconciled result set.
// The invariant it guards: the reconciled output always has exactly one item
// per submitted prompt, with synthesized error items filling any gaps.
type Reconciler struct {
	client Client
	store  storage.BatchStore
	logger *slog.Logger

	// zeroResultDelay is the pause before re-fetching when an ended batch
	// reports zero result lines on the first read.
	zeroResultDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewReconciler wires a reconciler over a provider batch client and a
// persistence store.
func NewReconciler(client Client, store storage.BatchStore, zeroResultDelay time.Duration, logger *slog.Logger) *Reconciler {
	if zeroResultDelay <= 0 {
		zeroResultDelay = 3 * time.Second
	}
	return &Reconciler{
		client:          client,
		store:           store,
		logger:          logger,
		zeroResultDelay: zeroResultDelay,
		sleep:           sleepCtx,
		newID:           uuid.NewString,
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

// Submit validates the prompts, creates the batch upstream, and persists a
// pending record so polls can reconcile against the submitted custom ids.
func (r *Reconciler) Submit(ctx context.Context, accountID string, prompts []types.BatchPrompt) (*types.BatchJob, error) {
	if len(prompts) == 0 {
		return nil, ErrEmptyBatch
	}
	seen := make(map[string]bool, len(prompts))
	for _, p := range prompts {
		if p.CustomID == "" {
			return nil, fmt.Errorf("prompt missing custom_id")
		}
		if seen[p.CustomID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCustomID, p.CustomID)
		}
		seen[p.CustomID] = true
	}

	providerBatchID, err := r.client.Submit(ctx, prompts)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}

	// Seed the record with pending items; their custom ids are what the
	// final reconciliation is measured against.
	pending := make([]types.BatchItem, 0, len(prompts))
	for _, p := range prompts {
		pending = append(pending, types.BatchItem{CustomID: p.CustomID, Status: types.ItemPending})
	}
	itemsJSON, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("encode pending items: %w", err)
	}

	now := time.Now().UTC()
	record := &storage.BatchRecord{
		ID:              r.newID(),
		ProviderBatchID: providerBatchID,
		AccountID:       accountID,
		Status:          string(types.BatchPending),
		RequestCount:    len(prompts),
		ItemsJSON:       string(itemsJSON),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.store.CreateBatch(record); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}

	r.logger.Info("batch accepted",
		"batch_id", record.ID,
		"provider_batch_id", providerBatchID,
		"requests", len(prompts))
	return &types.BatchJob{
		ID:                  record.ID,
		ProviderBatchID:     providerBatchID,
		AccountID:           accountID,
		Status:              types.BatchPending,
		RequestCount:        len(prompts),
		CreatedAt:           now,
		EstimatedCompletion: now.Add(estimatedTurnaround),
	}, nil
}

// Poll reports the batch's current state, reconciling the result set on the
// poll that finds the job ended. Completed and failed outcomes are persisted
// so later polls serve the cached result.
func (r *Reconciler) Poll(ctx context.Context, id string) (*types.BatchJob, error) {
	record, err := r.store.GetBatch(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}

	switch types.BatchStatus(record.Status) {
	case types.BatchCompleted, types.BatchFailed:
		return jobFromRecord(record)
	}

	status, err := r.client.Status(ctx, record.ProviderBatchID)
	if err != nil {
		return nil, fmt.Errorf("batch status: %w", err)
	}

	if !status.Terminal() {
		record.Status = string(types.BatchProcessing)
		record.CompletedCount = status.Succeeded
		record.FailedCount = status.Errored + status.Canceled + status.Expired
		record.UpdatedAt = time.Now().UTC()
		if err := r.store.UpdateBatch(record); err != nil {
			return nil, fmt.Errorf("persist batch: %w", err)
		}
		return jobFromRecord(record)
	}

	if status.Failed() {
		// Terminal upstream failure. Surfaced immediately, never retried.
		return r.finishFailed(record, fmt.Sprintf("batch %s upstream", status.ProcessingStatus))
	}

	results, err := r.fetchResults(ctx, record.ProviderBatchID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return r.finishFailed(record, "batch ended with no results")
	}

	items, err := r.reconcile(record, results)
	if err != nil {
		return nil, err
	}
	return r.finishCompleted(record, items)
}

// fetchResults reads the result lines of an ended batch. A first read that
// comes back empty is treated as transient (results_url can lag the status
// flip) and retried once after a short delay.
func (r *Reconciler) fetchResults(ctx context.Context, providerBatchID string) ([]RawResult, error) {
	results, err := r.client.Results(ctx, providerBatchID)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	if len(results) > 0 {
		return results, nil
	}

	r.logger.Warn("ended batch returned zero results, retrying once",
		"provider_batch_id", providerBatchID,
		"delay", r.zeroResultDelay)
	if err := r.sleep(ctx, r.zeroResultDelay); err != nil {
		return nil, err
	}
	results, err = r.client.Results(ctx, providerBatchID)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	return results, nil
}

// reconcile maps raw per-item results back onto the submitted custom ids.
// Every submitted id produces exactly one item; ids missing from the result
// set get a synthesized error item, and unknown ids are logged and dropped.
func (r *Reconciler) reconcile(record *storage.BatchRecord, results []RawResult) ([]types.BatchItem, error) {
	var submitted []types.BatchItem
	if err := json.Unmarshal([]byte(record.ItemsJSON), &submitted); err != nil {
		return nil, fmt.Errorf("decode submitted items: %w", err)
	}

	byID := make(map[string]RawResult, len(results))
	known := make(map[string]bool, len(submitted))
	for _, item := range submitted {
		known[item.CustomID] = true
	}
	for _, res := range results {
		if !known[res.CustomID] {
			r.logger.Warn("dropping result with unknown custom_id",
				"batch_id", record.ID,
				"custom_id", res.CustomID)
			continue
		}
		byID[res.CustomID] = res
	}

	items := make([]types.BatchItem, 0, len(submitted))
	for _, sub := range submitted {
		raw, ok := byID[sub.CustomID]
		if !ok {
			items = append(items, types.BatchItem{
				CustomID: sub.CustomID,
				Status:   types.ItemError,
				Error:    "no result returned for this item",
			})
			continue
		}
		items = append(items, r.itemFromRaw(record.ID, raw))
	}
	return items, nil
}

// itemFromRaw normalizes one raw result through the envelope matchers and
// the sanitizer.
func (r *Reconciler) itemFromRaw(batchID string, raw RawResult) types.BatchItem {
	env, err := wire.ParseResultEnvelope(raw.Result)
	if err != nil {
		r.logger.Warn("unrecognized result envelope",
			"batch_id", batchID,
			"custom_id", raw.CustomID)
		return types.BatchItem{
			CustomID: raw.CustomID,
			Status:   types.ItemError,
			Error:    "unrecognized result envelope",
		}
	}
	if env.Failed() {
		return types.BatchItem{
			CustomID: raw.CustomID,
			Status:   types.ItemError,
			Error:    env.ErrMessage,
		}
	}

	content := sanitize.Clean(env.Content)
	if !sanitize.Acceptable(content) {
		return types.BatchItem{
			CustomID: raw.CustomID,
			Status:   types.ItemError,
			Error:    "content too short after sanitization",
		}
	}
	return types.BatchItem{
		CustomID:   raw.CustomID,
		Status:     types.ItemSuccess,
		Content:    content,
		TokensUsed: env.TokensUsed,
		WordCount:  usage.CountWords(content),
	}
}

func (r *Reconciler) finishCompleted(record *storage.BatchRecord, items []types.BatchItem) (*types.BatchJob, error) {
	completed, failed := 0, 0
	for _, item := range items {
		if item.Status == types.ItemSuccess {
			completed++
		} else {
			failed++
		}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	record.Status = string(types.BatchCompleted)
	record.CompletedCount = completed
	record.FailedCount = failed
	record.ItemsJSON = string(itemsJSON)
	record.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateBatch(record); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	r.logger.Info("batch reconciled",
		"batch_id", record.ID,
		"completed", completed,
		"failed", failed)
	return jobFromRecord(record)
}

func (r *Reconciler) finishFailed(record *storage.BatchRecord, reason string) (*types.BatchJob, error) {
	var submitted []types.BatchItem
	if err := json.Unmarshal([]byte(record.ItemsJSON), &submitted); err != nil {
		return nil, fmt.Errorf("decode submitted items: %w", err)
	}
	items := make([]types.BatchItem, 0, len(submitted))
	for _, sub := range submitted {
		items = append(items, types.BatchItem{
			CustomID: sub.CustomID,
			Status:   types.ItemError,
			Error:    reason,
		})
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	record.Status = string(types.BatchFailed)
	record.CompletedCount = 0
	record.FailedCount = len(items)
	record.ItemsJSON = string(itemsJSON)
	record.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateBatch(record); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	r.logger.Error("batch failed", "batch_id", record.ID, "reason", reason)
	return jobFromRecord(record)
}

func jobFromRecord(record *storage.BatchRecord) (*types.BatchJob, error) {
	job := &types.BatchJob{
		ID:              record.ID,
		ProviderBatchID: record.ProviderBatchID,
		AccountID:       record.AccountID,
		Status:          types.BatchStatus(record.Status),
		RequestCount:    record.RequestCount,
		CompletedCount:  record.CompletedCount,
		FailedCount:     record.FailedCount,
		CreatedAt:       record.CreatedAt,
	}
	switch job.Status {
	case types.BatchCompleted, types.BatchFailed:
		if record.ItemsJSON != "" {
			if err := json.Unmarshal([]byte(record.ItemsJSON), &job.Items); err != nil {
				return nil, fmt.Errorf("decode items: %w", err)
			}
		}
	}
	return job, nil
}
