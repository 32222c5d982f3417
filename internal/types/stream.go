package types

// EventKind discriminates the canonical stream event union.
type EventKind int

const (
	// EventDelta carries an incremental slice of generated text.
	EventDelta EventKind = iota
	// EventDone terminates a successful attempt and carries token usage.
	EventDone
	// EventError terminates a failed attempt.
	EventError
)

// StreamEvent is the canonical event emitted by every provider adapter.
// A logical attempt produces zero or more EventDelta events followed by
// exactly one terminal event (EventDone or EventError).
type StreamEvent struct {
	Kind EventKind

	// Text is set for EventDelta.
	Text string

	// TokensUsed is set for EventDone (0 when the upstream omits usage).
	TokensUsed int

	// Message and Retryable are set for EventError. Message is safe to log
	// but must not be forwarded verbatim to end users.
	Message   string
	Retryable bool
}

// Delta builds a content delta event.
func Delta(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

// Done builds a terminal success event.
func Done(tokensUsed int) StreamEvent {
	return StreamEvent{Kind: EventDone, TokensUsed: tokensUsed}
}

// StreamError builds a terminal failure event.
func StreamError(message string, retryable bool) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message, Retryable: retryable}
}

// Terminal reports whether the event ends the attempt.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// SSE formatting helpers

// SSEPrefix is the Server-Sent Events data prefix.
const SSEPrefix = "data: "

// FormatSSE frames a JSON payload for Server-Sent Events transmission.
func FormatSSE(data []byte) []byte {
	result := make([]byte, 0, len(SSEPrefix)+len(data)+2)
	result = append(result, SSEPrefix...)
	result = append(result, data...)
	result = append(result, '\n', '\n')
	return result
}
