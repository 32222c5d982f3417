package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quillway/quillway/internal/config"
	"github.com/quillway/quillway/internal/provider"
	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/transport/http/middleware/auth"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory storage.Storage.
type fakeStore struct {
	accounts map[string]*storage.Account
	batches  map[string]*storage.BatchRecord
	logs     []*storage.RequestLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*storage.Account),
		batches:  make(map[string]*storage.BatchRecord),
	}
}

func (s *fakeStore) CreateAccount(a *storage.Account) error {
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *fakeStore) GetAccount(id string) (*storage.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) GetAccountsByKeyPrefix(prefix string) ([]*storage.Account, error) {
	var out []*storage.Account
	for _, a := range s.accounts {
		if a.KeyPrefix == prefix && a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) AddUsage(accountID string, d storage.UsageDelta) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	a.AIMessagesUsed += d.Messages
	a.HumanizerWordsUsed += d.HumanizerWords
	a.PlanWordsUsed += d.PlanWords
	a.TrialWordsUsed += d.TrialWords
	return nil
}

func (s *fakeStore) ResetDailyUsage(accountID string, periodStart string) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	a.AIMessagesUsed = 0
	if t, err := time.Parse(time.RFC3339, periodStart); err == nil {
		a.PeriodStart = t
	}
	return nil
}

func (s *fakeStore) CreateBatch(b *storage.BatchRecord) error {
	cp := *b
	s.batches[b.ID] = &cp
	return nil
}

func (s *fakeStore) GetBatch(id string) (*storage.BatchRecord, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) UpdateBatch(b *storage.BatchRecord) error {
	cp := *b
	s.batches[b.ID] = &cp
	return nil
}

func (s *fakeStore) LogRequest(l *storage.RequestLog) error {
	cp := *l
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *fakeStore) Close() error { return nil }

// fakeRunner streams scripted events and returns a fixed result.
type fakeRunner struct {
	deltas []string
	tokens int
	calls  int
}

func (r *fakeRunner) Execute(ctx context.Context, req *types.CompletionRequest, onEvent func(types.StreamEvent) error) (*provider.Result, error) {
	r.calls++
	var content strings.Builder
	for _, d := range r.deltas {
		content.WriteString(d)
		if err := onEvent(types.Delta(d)); err != nil {
			return nil, err
		}
	}
	if err := onEvent(types.Done(r.tokens)); err != nil {
		return nil, err
	}
	return &provider.Result{
		Content:    content.String(),
		TokensUsed: r.tokens,
		Provider:   "anthropic",
		Model:      "claude-sonnet-4-20250514",
		Attempts:   1,
	}, nil
}

func testAccount(plan storage.Plan) *storage.Account {
	return &storage.Account{
		ID:          "acct-1",
		Name:        "tester",
		Plan:        plan,
		PeriodStart: time.Now().UTC().Truncate(24 * time.Hour),
		IsActive:    true,
	}
}

func newTestRepo(store *fakeStore, runner Runner) *Repo {
	return NewRepo(discardLogger(), &config.Config{}, runner, nil, nil, usage.NewLedger(store), store)
}

func doStream(t *testing.T, repo *Repo, account *storage.Account, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/completion/stream", strings.NewReader(body))
	ctx := context.WithValue(req.Context(), auth.AccountContextKey{}, account)
	rec := httptest.NewRecorder()
	repo.CompletionStream(rec, req.WithContext(ctx))
	return rec
}

func TestCompletionStreamWireFormat(t *testing.T) {
	store := newFakeStore()
	account := testAccount(storage.PlanBasic)
	_ = store.CreateAccount(account)
	repo := newTestRepo(store, &fakeRunner{deltas: []string{"Hello", " world"}, tokens: 12})

	rec := doStream(t, repo, account, `{"message":"hi"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	wantLines := []string{
		`data: {"content":"Hello"}`,
		`data: {"content":" world"}`,
		`data: {"done":true,"tokensUsed":12}`,
	}
	for _, line := range wantLines {
		if !strings.Contains(body, line) {
			t.Errorf("body missing %q:\n%s", line, body)
		}
	}

	// One billing debit: message count and output words committed.
	a, _ := store.GetAccount(account.ID)
	if a.AIMessagesUsed != 1 {
		t.Errorf("messages used = %d, want 1", a.AIMessagesUsed)
	}
	if a.PlanWordsUsed != 2 {
		t.Errorf("plan words used = %d, want 2", a.PlanWordsUsed)
	}
	if len(store.logs) != 1 {
		t.Fatalf("got %d request logs, want 1", len(store.logs))
	}
	if store.logs[0].Provider != "anthropic" || store.logs[0].Attempts != 1 {
		t.Errorf("request log = %+v", store.logs[0])
	}
}

func TestCompletionStreamQuotaRejected(t *testing.T) {
	store := newFakeStore()
	account := testAccount(storage.PlanBasic)
	account.AIMessagesUsed = usage.LimitsFor(storage.PlanBasic).DailyMessages
	_ = store.CreateAccount(account)
	repo := newTestRepo(store, &fakeRunner{deltas: []string{"x"}})

	rec := doStream(t, repo, account, `{"message":"hi"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "data:") {
		t.Error("quota rejection must not start an SSE stream")
	}
	a, _ := store.GetAccount(account.ID)
	if a.AIMessagesUsed != usage.LimitsFor(storage.PlanBasic).DailyMessages {
		t.Errorf("usage changed on rejected request")
	}
}

func TestCompletionStreamWordBudgetExhausted(t *testing.T) {
	store := newFakeStore()
	account := testAccount(storage.PlanBasic)
	account.PlanWordsUsed = usage.LimitsFor(storage.PlanBasic).PlanWords
	_ = store.CreateAccount(account)
	runner := &fakeRunner{deltas: []string{"never streamed"}}
	repo := newTestRepo(store, runner)

	rec := doStream(t, repo, account, `{"message":"hi"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body %s", rec.Code, rec.Body.String())
	}
	if runner.calls != 0 {
		t.Errorf("upstream called %d times on exhausted word budget, want 0", runner.calls)
	}
	a, _ := store.GetAccount(account.ID)
	if a.PlanWordsUsed != usage.LimitsFor(storage.PlanBasic).PlanWords {
		t.Errorf("usage changed on rejected request")
	}
}

func TestCompletionStreamWordBudgetPreflightUsesHint(t *testing.T) {
	store := newFakeStore()
	account := testAccount(storage.PlanBasic)
	// Room for a short reply but nowhere near the requested length.
	account.PlanWordsUsed = usage.LimitsFor(storage.PlanBasic).PlanWords - 50
	_ = store.CreateAccount(account)
	runner := &fakeRunner{deltas: []string{"never streamed"}}
	repo := newTestRepo(store, runner)

	rec := doStream(t, repo, account, `{"message":"write something","targetWordCount":2000}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body %s", rec.Code, rec.Body.String())
	}
	if runner.calls != 0 {
		t.Errorf("upstream called %d times, want 0", runner.calls)
	}
}

func TestCompletionStreamValidation(t *testing.T) {
	store := newFakeStore()
	account := testAccount(storage.PlanBasic)
	_ = store.CreateAccount(account)
	repo := newTestRepo(store, &fakeRunner{})

	if rec := doStream(t, repo, account, `{"message":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}
	if rec := doStream(t, repo, account, `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestCompletionStreamTrialBilledInEstimatedWords(t *testing.T) {
	store := newFakeStore()
	account := testAccount(storage.PlanTrial)
	_ = store.CreateAccount(account)
	repo := newTestRepo(store, &fakeRunner{deltas: []string{"one two three four"}, tokens: 100})

	rec := doStream(t, repo, account, `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	a, _ := store.GetAccount(account.ID)
	// Trial usage converts reported tokens at 0.75 words per token.
	if a.TrialWordsUsed != 75 {
		t.Errorf("trial words used = %d, want 75", a.TrialWordsUsed)
	}
	if a.PlanWordsUsed != 0 {
		t.Errorf("plan words used = %d, want 0 for trial account", a.PlanWordsUsed)
	}
}

func TestBuildRequestLengthDirective(t *testing.T) {
	tests := []struct {
		name    string
		payload completionPayload
		wantMin int
		wantMax int
	}{
		{
			name:    "explicit hint wins",
			payload: completionPayload{Message: "Write a 5000 word essay", LengthHint: &types.LengthHint{MinWords: 100, MaxWords: 200}},
			wantMin: 100,
			wantMax: 200,
		},
		{
			name:    "target word count",
			payload: completionPayload{Message: "write something", TargetWordCount: 2000},
			wantMin: 2000,
			wantMax: 2500,
		},
		{
			name:    "detected from message",
			payload: completionPayload{Message: "Write a 5000-7000 word essay"},
			wantMin: 5000,
			wantMax: 7000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := buildRequest(&tt.payload)
			if req.LengthHint == nil {
				t.Fatal("no length hint resolved")
			}
			if req.LengthHint.MinWords != tt.wantMin || req.LengthHint.MaxWords != tt.wantMax {
				t.Errorf("hint = {%d,%d}, want {%d,%d}",
					req.LengthHint.MinWords, req.LengthHint.MaxWords, tt.wantMin, tt.wantMax)
			}
			if !strings.Contains(req.SystemDirective, "words") {
				t.Errorf("system directive missing length instruction: %q", req.SystemDirective)
			}
		})
	}

	t.Run("no hint leaves directive untouched", func(t *testing.T) {
		req := buildRequest(&completionPayload{Message: "hello", SystemPrompt: "be nice"})
		if req.LengthHint != nil {
			t.Errorf("hint = %+v, want nil", req.LengthHint)
		}
		if req.SystemDirective != "be nice" {
			t.Errorf("system directive = %q", req.SystemDirective)
		}
	})
}
