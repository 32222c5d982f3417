// Package wire normalizes heterogeneous provider wire formats into the
// canonical stream event type. Each upstream speaks its own SSE dialect and
// batch envelope shape; everything past this package sees one event stream.
//
// Parsing never panics and never returns a Go error for malformed upstream
// data: bad frames become non-retryable Error events with enough of the raw
// structure logged for diagnosis.
package wire

import (
	"bytes"
	"log/slog"
)

// ProviderID identifies the upstream wire dialect, not the vendor account.
type ProviderID string

const (
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderOpenRouter ProviderID = "openrouter"
	ProviderGemini     ProviderID = "gemini"
)

// ssePrefix strips the SSE framing from a data line.
var ssePrefix = []byte("data: ")

// dataPayload extracts the JSON payload from a raw SSE line. Returns nil for
// lines carrying no payload (blank lines, comments, event: headers).
func dataPayload(line []byte) []byte {
	line = bytes.TrimRight(line, "\r")
	if !bytes.HasPrefix(line, ssePrefix) {
		return nil
	}
	return bytes.TrimPrefix(line, ssePrefix)
}

// truncateRaw bounds raw frame content for log output.
func truncateRaw(raw []byte) string {
	const max = 256
	if len(raw) > max {
		raw = raw[:max]
	}
	return string(raw)
}

// logMalformed records a frame that failed to parse without interrupting the
// stream.
func logMalformed(logger *slog.Logger, provider ProviderID, raw []byte, err error) {
	if logger == nil {
		return
	}
	logger.Warn("malformed stream frame",
		"provider", string(provider),
		"raw", truncateRaw(raw),
		"error", err,
	)
}
