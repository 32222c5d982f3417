// Package humanize rewrites long documents chunk by chunk through the
// completion orchestrator and reassembles the output in source order.
package humanize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quillway/quillway/internal/chunk"
	"github.com/quillway/quillway/internal/provider"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/usage"
)

// systemDirective steers the rewrite. Chunks are rewritten independently, so
// the directive insists on preserving meaning and approximate length.
const systemDirective = "Rewrite the following text so it reads naturally, varying sentence length and rhythm. Preserve the meaning, factual content, formatting, and approximate length. Output only the rewritten text with no preamble or commentary."

// Runner is the slice of the orchestrator the humanizer needs.
type Runner interface {
	Execute(ctx context.Context, req *types.CompletionRequest, onEvent func(types.StreamEvent) error) (*provider.Result, error)
}

// Result is the reassembled document plus accounting for the run.
type Result struct {
	Text         string
	TokensUsed   int
	WordCount    int
	ChunksTotal  int
	ChunksFailed int
}

// Humanizer fans a document into bounded chunks, runs each through the
// orchestrator, and joins the rewritten pieces back in ordinal order.
type Humanizer struct {
	runner        Runner
	maxChunkChars int
	logger        *slog.Logger
}

// New creates a humanizer. maxChunkChars is clamped by the splitter.
func New(runner Runner, maxChunkChars int, logger *slog.Logger) *Humanizer {
	return &Humanizer{
		runner:        runner,
		maxChunkChars: maxChunkChars,
		logger:        logger,
	}
}

// Rewrite processes the document sequentially, one chunk at a time, so
// upstream ordering never needs repair. A chunk whose rewrite fails keeps
// its original text; the document always comes back whole.
func (h *Humanizer) Rewrite(ctx context.Context, text, model string) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("empty input")
	}

	chunks := chunk.Split(text, h.maxChunkChars)
	out := make([]chunk.Chunk, len(chunks))
	res := &Result{ChunksTotal: len(chunks)}

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rewritten, tokens, err := h.rewriteChunk(ctx, c, model)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.logger.Warn("chunk rewrite failed, keeping original text",
				"ordinal", c.Ordinal,
				"chars", len(c.Text),
				"error", err)
			res.ChunksFailed++
			rewritten = c.Text
		}
		out[i] = chunk.Chunk{Ordinal: c.Ordinal, Offset: c.Offset, Text: rewritten}
		res.TokensUsed += tokens
	}

	res.Text = chunk.Join(out)
	res.WordCount = usage.CountWords(res.Text)
	return res, nil
}

func (h *Humanizer) rewriteChunk(ctx context.Context, c chunk.Chunk, model string) (string, int, error) {
	req := &types.CompletionRequest{
		PromptText:      c.Text,
		SystemDirective: systemDirective,
		TargetModel:     model,
	}
	result, err := h.runner.Execute(ctx, req, func(types.StreamEvent) error { return nil })
	if err != nil {
		return "", 0, err
	}
	return result.Content, result.TokensUsed, nil
}
