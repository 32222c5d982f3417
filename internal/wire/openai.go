package wire

import (
	"bytes"
	"encoding/json"

	"github.com/quillway/quillway/internal/types"
)

// doneMarker terminates an OpenAI-style chunk stream.
var doneMarker = []byte("[DONE]")

// openAIChunk is the OpenAI/OpenRouter streaming chunk shape. Usage appears
// only in the final chunk when stream_options.include_usage is set.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// parseOpenAIChunk normalizes one OpenAI-dialect chunk. The [DONE] marker
// terminates the stream; incremental text lives at choices[0].delta.content.
func (p *StreamParser) parseOpenAIChunk(payload []byte) (types.StreamEvent, bool) {
	if bytes.Equal(payload, doneMarker) {
		return types.Done(p.tokensUsed), true
	}

	var chunk openAIChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		logMalformed(p.logger, ProviderOpenRouter, payload, err)
		return types.StreamError("unrecognized stream frame", false), true
	}

	if chunk.Error != nil {
		retryable := chunk.Error.Code == 429 || chunk.Error.Code == 529
		return types.StreamError(chunk.Error.Message, retryable), true
	}

	if chunk.Usage != nil && chunk.Usage.CompletionTokens > 0 {
		p.tokensUsed = chunk.Usage.CompletionTokens
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			return types.Delta(choice.Delta.Content), true
		}
	}
	return types.StreamEvent{}, false
}
