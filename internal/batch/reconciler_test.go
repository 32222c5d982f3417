package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBatchStore struct {
	records map[string]*storage.BatchRecord
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{records: make(map[string]*storage.BatchRecord)}
}

func (s *fakeBatchStore) CreateBatch(b *storage.BatchRecord) error {
	cp := *b
	s.records[b.ID] = &cp
	return nil
}

func (s *fakeBatchStore) GetBatch(id string) (*storage.BatchRecord, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeBatchStore) UpdateBatch(b *storage.BatchRecord) error {
	if _, ok := s.records[b.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *b
	s.records[b.ID] = &cp
	return nil
}

type fakeClient struct {
	submitID  string
	submitErr error
	submitted []types.BatchPrompt

	statuses     []*Status
	statusCalls  int
	results      [][]RawResult
	resultsCalls int
}

func (c *fakeClient) Submit(ctx context.Context, prompts []types.BatchPrompt) (string, error) {
	c.submitted = append(c.submitted, prompts...)
	if c.submitErr != nil {
		return "", c.submitErr
	}
	return c.submitID, nil
}

func (c *fakeClient) Status(ctx context.Context, id string) (*Status, error) {
	if len(c.statuses) == 0 {
		return nil, errors.New("no scripted status")
	}
	c.statusCalls++
	s := c.statuses[0]
	if len(c.statuses) > 1 {
		c.statuses = c.statuses[1:]
	}
	return s, nil
}

func (c *fakeClient) Results(ctx context.Context, id string) ([]RawResult, error) {
	if len(c.results) == 0 {
		return nil, errors.New("no scripted results")
	}
	c.resultsCalls++
	r := c.results[0]
	if len(c.results) > 1 {
		c.results = c.results[1:]
	}
	return r, nil
}

func newTestReconciler(client Client, store storage.BatchStore) *Reconciler {
	r := NewReconciler(client, store, 3*time.Second, discardLogger())
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}
	return r
}

func prompts(ids ...string) []types.BatchPrompt {
	out := make([]types.BatchPrompt, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.BatchPrompt{
			CustomID:  id,
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
			Messages:  []types.Message{{Role: types.RoleUser, Content: "write about " + id}},
		})
	}
	return out
}

// longText is comfortably past the sanitizer's minimum length gate.
var longText = strings.Repeat("The quick brown fox jumps over the lazy dog. ", 5)

func succeededLine(customID, text string, tokens int) RawResult {
	line := fmt.Sprintf(
		`{"custom_id":%q,"result":{"type":"succeeded","message":{"content":[{"type":"text","text":%q}],"usage":{"output_tokens":%d}}}}`,
		customID, text, tokens)
	return RawResult{CustomID: customID, Result: json.RawMessage(line)}
}

func erroredLine(customID, msg string) RawResult {
	line := fmt.Sprintf(
		`{"custom_id":%q,"result":{"type":"errored","error":{"type":"invalid_request_error","message":%q}}}`,
		customID, msg)
	return RawResult{CustomID: customID, Result: json.RawMessage(line)}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	r := newTestReconciler(&fakeClient{submitID: "pb-1"}, newFakeBatchStore())

	if _, err := r.Submit(context.Background(), "acct", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("empty submit error = %v, want ErrEmptyBatch", err)
	}
	if _, err := r.Submit(context.Background(), "acct", prompts("a", "a")); !errors.Is(err, ErrDuplicateCustomID) {
		t.Errorf("duplicate submit error = %v, want ErrDuplicateCustomID", err)
	}
}

func TestSubmitPersistsPendingRecord(t *testing.T) {
	client := &fakeClient{submitID: "pb-1"}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a", "b", "c"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.Status != types.BatchPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if job.RequestCount != 3 {
		t.Errorf("requestCount = %d, want 3", job.RequestCount)
	}
	if len(client.submitted) != 3 {
		t.Errorf("client saw %d prompts, want 3", len(client.submitted))
	}
	rec, err := store.GetBatch(job.ID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if rec.ProviderBatchID != "pb-1" {
		t.Errorf("providerBatchID = %q, want pb-1", rec.ProviderBatchID)
	}
}

func TestPollProcessing(t *testing.T) {
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusInProgress, Processing: 3}},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a", "b", "c"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	polled, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if polled.Status != types.BatchProcessing {
		t.Errorf("status = %q, want processing", polled.Status)
	}
	if len(polled.Items) != 0 {
		t.Errorf("items = %d, want none while processing", len(polled.Items))
	}
}

func TestPollReconcilesMissingItems(t *testing.T) {
	// Three submitted, the provider returns results for only two. The
	// reconciled output still has three items, the missing one an error.
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusEnded, Succeeded: 2}},
		results: [][]RawResult{{
			succeededLine("b", longText, 50),
			succeededLine("a", longText, 40),
		}},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a", "b", "c"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	polled, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if polled.Status != types.BatchCompleted {
		t.Fatalf("status = %q, want completed", polled.Status)
	}
	if len(polled.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(polled.Items))
	}
	// Items come back in submission order regardless of result order.
	wantIDs := []string{"a", "b", "c"}
	for i, item := range polled.Items {
		if item.CustomID != wantIDs[i] {
			t.Errorf("item %d id = %q, want %q", i, item.CustomID, wantIDs[i])
		}
	}
	if polled.Items[0].Status != types.ItemSuccess || polled.Items[1].Status != types.ItemSuccess {
		t.Errorf("items a,b = %q,%q, want success", polled.Items[0].Status, polled.Items[1].Status)
	}
	if polled.Items[2].Status != types.ItemError {
		t.Errorf("item c status = %q, want error", polled.Items[2].Status)
	}
	if polled.CompletedCount != 2 || polled.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", polled.CompletedCount, polled.FailedCount)
	}
	if polled.Items[0].WordCount == 0 {
		t.Errorf("successful item has zero word count")
	}
}

func TestPollZeroResultsRetriesOnce(t *testing.T) {
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusEnded, Succeeded: 1}},
		results: [][]RawResult{
			{}, // first read lags behind the status flip
			{succeededLine("a", longText, 10)},
		},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	job, err := r.Submit(context.Background(), "acct", prompts("a"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	polled, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if polled.Status != types.BatchCompleted {
		t.Errorf("status = %q, want completed", polled.Status)
	}
	if client.resultsCalls != 2 {
		t.Errorf("results fetched %d times, want 2", client.resultsCalls)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Errorf("slept %v, want one 3s delay", slept)
	}
}

func TestPollZeroResultsTwiceFails(t *testing.T) {
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusEnded}},
		results:  [][]RawResult{{}},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a", "b"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	polled, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if polled.Status != types.BatchFailed {
		t.Errorf("status = %q, want failed", polled.Status)
	}
	if len(polled.Items) != 2 {
		t.Fatalf("got %d items, want 2 synthesized errors", len(polled.Items))
	}
	for _, item := range polled.Items {
		if item.Status != types.ItemError {
			t.Errorf("item %s status = %q, want error", item.CustomID, item.Status)
		}
	}
}

func TestPollTerminalFailureSkipsResults(t *testing.T) {
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusExpired}},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	polled, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if polled.Status != types.BatchFailed {
		t.Errorf("status = %q, want failed", polled.Status)
	}
	if client.resultsCalls != 0 {
		t.Errorf("results fetched %d times for terminal failure, want 0", client.resultsCalls)
	}
}

func TestPollErroredAndShortItems(t *testing.T) {
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusEnded}},
		results: [][]RawResult{{
			erroredLine("a", "prompt too long"),
			succeededLine("b", "too short", 2),
			succeededLine("c", longText, 30),
		}},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a", "b", "c"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	polled, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if polled.Items[0].Status != types.ItemError || polled.Items[0].Error != "prompt too long" {
		t.Errorf("item a = %+v, want upstream error message preserved", polled.Items[0])
	}
	if polled.Items[1].Status != types.ItemError {
		t.Errorf("item b status = %q, want error for short content", polled.Items[1].Status)
	}
	if polled.Items[2].Status != types.ItemSuccess {
		t.Errorf("item c status = %q, want success", polled.Items[2].Status)
	}
}

func TestPollServesCachedResult(t *testing.T) {
	client := &fakeClient{
		submitID: "pb-1",
		statuses: []*Status{{ProcessingStatus: StatusEnded, Succeeded: 1}},
		results:  [][]RawResult{{succeededLine("a", longText, 10)}},
	}
	store := newFakeBatchStore()
	r := newTestReconciler(client, store)

	job, err := r.Submit(context.Background(), "acct", prompts("a"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := r.Poll(context.Background(), job.ID); err != nil {
		t.Fatalf("first Poll() error = %v", err)
	}
	statusCalls := client.statusCalls
	again, err := r.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("second Poll() error = %v", err)
	}
	if client.statusCalls != statusCalls {
		t.Errorf("second poll hit the upstream status endpoint")
	}
	if again.Status != types.BatchCompleted || len(again.Items) != 1 {
		t.Errorf("cached job = %+v, want completed with 1 item", again)
	}
}

func TestPollUnknownBatch(t *testing.T) {
	r := newTestReconciler(&fakeClient{}, newFakeBatchStore())
	if _, err := r.Poll(context.Background(), "nope"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("Poll() error = %v, want ErrBatchNotFound", err)
	}
}
