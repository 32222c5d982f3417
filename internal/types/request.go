package types

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LengthHint is an explicit word-count target attached to a request.
type LengthHint struct {
	MinWords int `json:"minWords"`
	MaxWords int `json:"maxWords"`
}

// CompletionRequest is the canonical request handed to the orchestrator.
// It is immutable once issued; retries and failovers replay the same value.
type CompletionRequest struct {
	PromptText      string      `json:"message"`
	SystemDirective string      `json:"systemPrompt,omitempty"`
	History         []Message   `json:"conversationHistory,omitempty"`
	TargetModel     string      `json:"model,omitempty"`
	Temperature     float64     `json:"temperature,omitempty"`
	MaxOutputTokens int         `json:"maxOutputTokens,omitempty"`
	LengthHint      *LengthHint `json:"lengthHint,omitempty"`
}

// Transcript returns the conversation history plus the current message as one
// string, for heuristics that scan everything the user has said.
func (r *CompletionRequest) Transcript() string {
	total := len(r.PromptText)
	for _, m := range r.History {
		total += len(m.Content) + 1
	}
	buf := make([]byte, 0, total)
	for _, m := range r.History {
		buf = append(buf, m.Content...)
		buf = append(buf, '\n')
	}
	buf = append(buf, r.PromptText...)
	return string(buf)
}
