package humanize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/quillway/quillway/internal/provider"
	"github.com/quillway/quillway/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner uppercases each prompt, failing any prompt that contains the
// failOn marker.
type fakeRunner struct {
	failOn  string
	prompts []string
}

func (r *fakeRunner) Execute(ctx context.Context, req *types.CompletionRequest, onEvent func(types.StreamEvent) error) (*provider.Result, error) {
	r.prompts = append(r.prompts, req.PromptText)
	if r.failOn != "" && strings.Contains(req.PromptText, r.failOn) {
		return nil, errors.New("upstream failure")
	}
	return &provider.Result{
		Content:    strings.ToUpper(req.PromptText),
		TokensUsed: 10,
	}, nil
}

func paragraphs(words ...string) string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.Repeat(w+" sentence here. ", 120)
	}
	return strings.Join(out, "\n\n")
}

func TestRewriteMultipleChunks(t *testing.T) {
	runner := &fakeRunner{}
	h := New(runner, 2000, discardLogger())

	text := paragraphs("alpha", "bravo", "charlie")
	res, err := h.Rewrite(context.Background(), text, "")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ChunksTotal < 2 {
		t.Fatalf("chunksTotal = %d, want multiple chunks for %d chars", res.ChunksTotal, len(text))
	}
	if res.ChunksFailed != 0 {
		t.Errorf("chunksFailed = %d, want 0", res.ChunksFailed)
	}
	if res.TokensUsed != 10*res.ChunksTotal {
		t.Errorf("tokensUsed = %d, want %d", res.TokensUsed, 10*res.ChunksTotal)
	}
	// Rewritten pieces come back in source order.
	upper := strings.ToUpper(text)
	first := strings.Index(res.Text, "ALPHA")
	second := strings.Index(res.Text, "BRAVO")
	third := strings.Index(res.Text, "CHARLIE")
	if first == -1 || second == -1 || third == -1 || !(first < second && second < third) {
		t.Errorf("rewritten text out of order: alpha@%d bravo@%d charlie@%d", first, second, third)
	}
	if len(res.Text) == 0 || len(upper) == 0 {
		t.Error("empty output")
	}
	if res.WordCount == 0 {
		t.Error("wordCount = 0")
	}
}

func TestRewriteFailedChunkKeepsOriginal(t *testing.T) {
	runner := &fakeRunner{failOn: "bravo"}
	h := New(runner, 2000, discardLogger())

	text := paragraphs("alpha", "bravo", "charlie")
	res, err := h.Rewrite(context.Background(), text, "")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ChunksFailed == 0 {
		t.Fatal("chunksFailed = 0, want at least 1")
	}
	// The failed chunk's text survives unmodified, lowercase.
	if !strings.Contains(res.Text, "bravo sentence here.") {
		t.Error("failed chunk's original text missing from output")
	}
	if !strings.Contains(res.Text, "ALPHA SENTENCE HERE.") {
		t.Error("successful chunk was not rewritten")
	}
}

func TestRewriteEmptyInput(t *testing.T) {
	h := New(&fakeRunner{}, 2000, discardLogger())
	if _, err := h.Rewrite(context.Background(), "", ""); err == nil {
		t.Fatal("Rewrite(\"\") expected error")
	}
}

func TestRewriteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := New(&fakeRunner{}, 2000, discardLogger())
	_, err := h.Rewrite(ctx, paragraphs("alpha"), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Rewrite() error = %v, want context.Canceled", err)
	}
}
