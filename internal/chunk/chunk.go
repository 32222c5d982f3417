// Package chunk splits arbitrary-length text into bounded pieces for
// per-chunk upstream calls, without ever losing content.
package chunk

import "strings"

// Operating bounds for the chunk size. Values outside this window either
// waste upstream calls or blow per-call latency, so Split clamps to it.
const (
	MinChunkChars = 1500
	MaxChunkChars = 8000
)

// ParagraphSeparator is reinserted between chunks on reassembly.
const ParagraphSeparator = "\n\n"

// Chunk is one ordered piece of a source document. Ordinals are contiguous
// starting at zero; concatenating all chunk texts in ordinal order, with
// paragraph separators reinserted, reconstructs the input modulo whitespace
// normalization.
type Chunk struct {
	Ordinal int
	Offset  int
	Text    string
}

// Split cuts text into chunks of at most maxChars characters. It prefers
// whole paragraphs, falls back to whole sentences when a paragraph alone
// exceeds the limit, and hard-splits at the character boundary when a single
// sentence still does not fit. Every character of input lands in exactly one
// chunk, in original order.
func Split(text string, maxChars int) []Chunk {
	if maxChars < MinChunkChars {
		maxChars = MinChunkChars
	}
	if maxChars > MaxChunkChars {
		maxChars = MaxChunkChars
	}

	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []Chunk{{Ordinal: 0, Offset: 0, Text: text}}
	}

	var chunks []Chunk
	var current strings.Builder
	offset := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Ordinal: len(chunks),
			Offset:  offset,
			Text:    current.String(),
		})
		offset += current.Len() + len(ParagraphSeparator)
		current.Reset()
	}

	appendPiece := func(piece string) {
		// +len(separator) accounts for the rejoin cost when the piece is
		// merged into a non-empty chunk.
		if current.Len() > 0 && current.Len()+len(ParagraphSeparator)+len(piece) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(ParagraphSeparator)
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, ParagraphSeparator) {
		if len(para) <= maxChars {
			appendPiece(para)
			continue
		}
		// Paragraph alone exceeds the limit: take whole sentences.
		for _, sentence := range splitSentences(para) {
			if len(sentence) <= maxChars {
				appendPiece(sentence)
				continue
			}
			// Single sentence exceeds the limit: hard character split.
			for start := 0; start < len(sentence); start += maxChars {
				end := start + maxChars
				if end > len(sentence) {
					end = len(sentence)
				}
				appendPiece(sentence[start:end])
			}
		}
	}
	flush()

	return chunks
}

// Join reassembles chunk texts in ordinal order. Chunks may arrive in any
// order; output order is always deterministic.
func Join(chunks []Chunk) string {
	ordered := make([]string, len(chunks))
	for _, c := range chunks {
		if c.Ordinal >= 0 && c.Ordinal < len(chunks) {
			ordered[c.Ordinal] = c.Text
		}
	}
	return strings.Join(ordered, ParagraphSeparator)
}

// sentence terminators recognized by the fallback splitter.
var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// splitSentences cuts a paragraph after sentence-ending punctuation. The
// terminator stays attached to the preceding sentence so no characters are
// dropped.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		for _, end := range sentenceEnders {
			if strings.HasPrefix(text[i:], end) {
				out = append(out, text[start:i+len(end)])
				i += len(end) - 1
				start = i + 1
				break
			}
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
