package wire

import (
	"fmt"
	"log/slog"

	"github.com/quillway/quillway/internal/types"
)

// StreamParser turns one provider's raw SSE lines into canonical events.
// It is stateful for the lifetime of a single attempt: terminal frames on
// some dialects carry usage metadata in a separate frame from the one that
// ends the stream, so the parser retains usage until the terminal event.
//
// Feed every transport line to ParseLine; call Finish once at EOF for
// dialects without an explicit end-of-stream marker.
type StreamParser struct {
	provider ProviderID
	logger   *slog.Logger

	tokensUsed int
	terminated bool
}

// NewStreamParser creates a parser for one attempt against one provider.
// logger may be nil.
func NewStreamParser(provider ProviderID, logger *slog.Logger) *StreamParser {
	return &StreamParser{provider: provider, logger: logger}
}

// ParseLine consumes one raw transport line. The second return is false when
// the line produced no canonical event (framing, keep-alives, metadata).
func (p *StreamParser) ParseLine(line []byte) (types.StreamEvent, bool) {
	if p.terminated {
		return types.StreamEvent{}, false
	}

	payload := dataPayload(line)
	if len(payload) == 0 {
		return types.StreamEvent{}, false
	}

	var ev types.StreamEvent
	var ok bool
	switch p.provider {
	case ProviderAnthropic:
		ev, ok = p.parseAnthropicFrame(payload)
	case ProviderOpenRouter:
		ev, ok = p.parseOpenAIChunk(payload)
	case ProviderGemini:
		ev, ok = p.parseGeminiFrame(payload)
	default:
		ev = types.StreamError(fmt.Sprintf("no parser for provider %q", p.provider), false)
		ok = true
	}

	if ok && ev.Terminal() {
		p.terminated = true
	}
	return ev, ok
}

// Finish closes out the stream at transport EOF. For dialects that signal
// completion in-band this is a no-op; otherwise it synthesizes the Done
// event with whatever usage was observed.
func (p *StreamParser) Finish() (types.StreamEvent, bool) {
	if p.terminated {
		return types.StreamEvent{}, false
	}
	p.terminated = true
	return types.Done(p.tokensUsed), true
}

// TokensUsed reports usage observed so far.
func (p *StreamParser) TokensUsed() int {
	return p.tokensUsed
}
