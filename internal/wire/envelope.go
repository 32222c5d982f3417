package wire

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnknownEnvelope is returned after every known result shape has been
// tried and none matched.
var ErrUnknownEnvelope = errors.New("unrecognized result envelope")

// Envelope is the normalized form of one batch item result.
type Envelope struct {
	Content    string
	TokensUsed int
	// ErrMessage is set when the upstream reported a per-item failure.
	ErrMessage string
}

// Failed reports whether the item carried an upstream error.
func (e Envelope) Failed() bool {
	return e.ErrMessage != ""
}

// contentBlock is a text block inside an Anthropic-style message body.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// joinBlocks concatenates the text of all text-typed blocks.
func joinBlocks(blocks []contentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// envelopeMatcher attempts one known result shape. It returns ok=false when
// the raw structure does not fit the shape; a returned Envelope may still
// describe an upstream per-item failure.
type envelopeMatcher func(raw json.RawMessage) (Envelope, bool)

// envelopeMatchers is the fixed fallback order: the modern documented shape
// first, then legacy shapes observed in older batch results. Order matters
// and is covered by tests.
var envelopeMatchers = []envelopeMatcher{
	matchModernResult,
	matchLegacyResponse,
	matchBareMessage,
}

// ParseResultEnvelope normalizes one per-item batch result, trying each
// known shape in fixed order. It returns ErrUnknownEnvelope only after all
// shapes are exhausted; it never panics on malformed input.
func ParseResultEnvelope(raw json.RawMessage) (Envelope, error) {
	for _, match := range envelopeMatchers {
		if env, ok := match(raw); ok {
			return env, nil
		}
	}
	return Envelope{}, ErrUnknownEnvelope
}

// matchModernResult handles the documented batch shape:
//
//	{"result": {"type": "succeeded", "message": {"content": [...], "usage": {...}}}}
//	{"result": {"type": "errored", "error": {"type": ..., "message": ...}}}
func matchModernResult(raw json.RawMessage) (Envelope, bool) {
	var outer struct {
		Result *struct {
			Type    string `json:"type"`
			Message *struct {
				Content []contentBlock `json:"content"`
				Usage   struct {
					OutputTokens int `json:"output_tokens"`
				} `json:"usage"`
			} `json:"message"`
			Error *struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil || outer.Result == nil {
		return Envelope{}, false
	}

	switch outer.Result.Type {
	case "succeeded":
		if outer.Result.Message == nil {
			return Envelope{}, false
		}
		return Envelope{
			Content:    joinBlocks(outer.Result.Message.Content),
			TokensUsed: outer.Result.Message.Usage.OutputTokens,
		}, true
	case "errored", "canceled", "expired":
		msg := outer.Result.Type
		if outer.Result.Error != nil && outer.Result.Error.Message != "" {
			msg = outer.Result.Error.Message
		}
		return Envelope{ErrMessage: msg}, true
	default:
		return Envelope{}, false
	}
}

// matchLegacyResponse handles the pre-GA shape that nested everything under
// "response":
//
//	{"response": {"content": [...], "usage": {"output_tokens": N}}}
//	{"response": {"error": {"message": ...}}}
func matchLegacyResponse(raw json.RawMessage) (Envelope, bool) {
	var outer struct {
		Response *struct {
			Content []contentBlock `json:"content"`
			Usage   struct {
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"response"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil || outer.Response == nil {
		return Envelope{}, false
	}
	if outer.Response.Error != nil {
		return Envelope{ErrMessage: outer.Response.Error.Message}, true
	}
	if len(outer.Response.Content) == 0 {
		return Envelope{}, false
	}
	return Envelope{
		Content:    joinBlocks(outer.Response.Content),
		TokensUsed: outer.Response.Usage.OutputTokens,
	}, true
}

// matchBareMessage handles results where the message body itself is the
// envelope, with no wrapper key.
func matchBareMessage(raw json.RawMessage) (Envelope, bool) {
	var msg struct {
		Content []contentBlock `json:"content"`
		Usage   struct {
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Content) == 0 {
		return Envelope{}, false
	}
	return Envelope{
		Content:    joinBlocks(msg.Content),
		TokensUsed: msg.Usage.OutputTokens,
	}, true
}
