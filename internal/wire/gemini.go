package wire

import (
	"encoding/json"

	"github.com/quillway/quillway/internal/types"
)

// geminiFrame is the streamGenerateContent SSE payload. Incremental text is
// nested at candidates[0].content.parts[0].text; usage rides along on every
// frame and the final value wins. The dialect has no end-of-stream marker,
// so Finish synthesizes the terminal event at transport EOF.
type geminiFrame struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *StreamParser) parseGeminiFrame(payload []byte) (types.StreamEvent, bool) {
	var frame geminiFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		logMalformed(p.logger, ProviderGemini, payload, err)
		return types.StreamError("unrecognized stream frame", false), true
	}

	if frame.Error != nil {
		retryable := frame.Error.Code == 429 || frame.Error.Status == "RESOURCE_EXHAUSTED"
		return types.StreamError(frame.Error.Message, retryable), true
	}

	if frame.UsageMetadata != nil && frame.UsageMetadata.CandidatesTokenCount > 0 {
		p.tokensUsed = frame.UsageMetadata.CandidatesTokenCount
	}

	for _, cand := range frame.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return types.Delta(part.Text), true
			}
		}
	}
	return types.StreamEvent{}, false
}
