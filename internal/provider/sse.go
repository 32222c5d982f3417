package provider

import (
	"bufio"
	"io"

	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/wire"
)

// ForwardSSE reads SSE transport lines from r, normalizes them through the
// parser, and delivers canonical events to onEvent as they arrive. It stops
// after the first terminal event, or synthesizes one at EOF for dialects
// without an end-of-stream marker.
func ForwardSSE(r io.Reader, parser *wire.StreamParser, onEvent func(types.StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	// Delta frames can be large; grow the line buffer accordingly.
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 256*1024)

	for scanner.Scan() {
		ev, ok := parser.ParseLine(scanner.Bytes())
		if !ok {
			continue
		}
		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Terminal() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if ev, ok := parser.Finish(); ok {
		return onEvent(ev)
	}
	return nil
}
