package chunk

import (
	"strings"
	"testing"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("hello world", 3500)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "hello world" {
		t.Errorf("unexpected chunk text: %q", chunks[0].Text)
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := Split("", 3500); chunks != nil {
		t.Errorf("expected nil for empty input, got %d chunks", len(chunks))
	}
}

func TestSplit_HardSplitExactCoverage(t *testing.T) {
	// 10,000 identical characters with no paragraph or sentence boundaries
	// forces the hard character split.
	text := strings.Repeat("A", 10000)
	chunks := Split(text, 3500)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, c.Ordinal)
		}
		if len(c.Text) > 3500 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c.Text))
		}
		total += len(c.Text)
	}
	if total != 10000 {
		t.Errorf("expected 10000 chars covered, got %d", total)
	}
}

func TestSplit_ParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("word ", 300) // ~1500 chars
	text := strings.Join([]string{para, para, para, para}, ParagraphSeparator)

	chunks := Split(text, 3500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 3500 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c.Text))
		}
	}
	// Round trip modulo separator normalization: every word survives.
	joined := Join(chunks)
	if strings.Count(joined, "word") != strings.Count(text, "word") {
		t.Error("content lost across split/join")
	}
}

func TestSplit_SentenceFallback(t *testing.T) {
	// One paragraph far over the limit, made of short sentences.
	sentence := "This is a sentence that repeats itself for testing purposes. "
	para := strings.Repeat(sentence, 100) // ~6100 chars, no double newlines

	chunks := Split(para, 3500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 3500 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c.Text))
		}
	}
	joined := Join(chunks)
	if strings.Count(joined, "repeats itself") != 100 {
		t.Errorf("expected 100 sentences after round trip, got %d", strings.Count(joined, "repeats itself"))
	}
}

func TestSplit_ClampsMaxChars(t *testing.T) {
	text := strings.Repeat("B", 4000)

	// A limit below the floor is raised to the floor, not honored.
	chunks := Split(text, 10)
	for i, c := range chunks {
		if len(c.Text) > MinChunkChars {
			t.Errorf("chunk %d exceeds clamped floor: %d chars", i, len(c.Text))
		}
	}
	if len(chunks) != 3 {
		t.Errorf("expected 3 chunks at clamped floor, got %d", len(chunks))
	}

	// A limit above the ceiling is lowered to the ceiling.
	big := strings.Repeat("B", 20000)
	chunks = Split(big, 100000)
	for i, c := range chunks {
		if len(c.Text) > MaxChunkChars {
			t.Errorf("chunk %d exceeds clamped ceiling: %d chars", i, len(c.Text))
		}
	}
}

func TestJoin_OrdersByOrdinal(t *testing.T) {
	chunks := []Chunk{
		{Ordinal: 2, Text: "three"},
		{Ordinal: 0, Text: "one"},
		{Ordinal: 1, Text: "two"},
	}
	want := "one" + ParagraphSeparator + "two" + ParagraphSeparator + "three"
	if got := Join(chunks); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
