package wire

import (
	"encoding/json"
	"fmt"

	"github.com/quillway/quillway/internal/types"
)

// anthropicFrame covers the union of Anthropic SSE event payloads we care
// about. The "type" field discriminates.
type anthropicFrame struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseAnthropicFrame normalizes one Anthropic messages-stream frame.
// Incremental text arrives on content_block_delta at delta.text; usage on
// message_delta; message_stop terminates the stream.
func (p *StreamParser) parseAnthropicFrame(payload []byte) (types.StreamEvent, bool) {
	var frame anthropicFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		logMalformed(p.logger, ProviderAnthropic, payload, err)
		return types.StreamError("unrecognized stream frame", false), true
	}

	switch frame.Type {
	case "content_block_delta":
		if frame.Delta.Type != "" && frame.Delta.Type != "text_delta" {
			// Tool-use and thinking deltas carry no user-visible text.
			return types.StreamEvent{}, false
		}
		if frame.Delta.Text == "" {
			return types.StreamEvent{}, false
		}
		return types.Delta(frame.Delta.Text), true

	case "message_delta":
		if frame.Usage.OutputTokens > 0 {
			p.tokensUsed = frame.Usage.OutputTokens
		}
		return types.StreamEvent{}, false

	case "message_stop":
		return types.Done(p.tokensUsed), true

	case "error":
		retryable := frame.Error.Type == "overloaded_error" || frame.Error.Type == "rate_limit_error"
		msg := frame.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("provider error (%s)", frame.Error.Type)
		}
		return types.StreamError(msg, retryable), true

	case "message_start", "content_block_start", "content_block_stop", "ping":
		return types.StreamEvent{}, false

	default:
		// Unknown frame types are skipped, not fatal: Anthropic documents
		// that new event types may appear and must be ignored.
		return types.StreamEvent{}, false
	}
}
