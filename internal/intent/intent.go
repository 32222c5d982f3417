// Package intent derives a target word-count range from what a user wrote.
//
// Detection runs a fixed list of rules in priority order and the first match
// wins: explicit counts always override heuristics. The ordering is a product
// decision and is covered by tests; do not reorder casually.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quillway/quillway/internal/types"
)

// WordRange is a detected length directive.
type WordRange struct {
	MinWords int
	MaxWords int
}

// Conversion factors and clamps.
const (
	wordsPerPage   = 250
	wordsPerMinute = 200

	minFloor = 800

	rangeCeil     = 30000 // explicit "N-M words"
	qualifierCeil = 20000 // "at least N words"
	bareCeil      = 12000 // bare "N words"

	pageRangeCap = 150 // pages in an explicit range
	pageCap      = 100 // pages in qualifier or bare form

	readMinutesFloor = 10
	readMinutesCeil  = 120
)

var (
	reWordRange = regexp.MustCompile(`(\d[\d,]*)\s*(?:-|–|—|to)\s*(\d[\d,]*)[\s-]*words?\b`)
	reWordMin   = regexp.MustCompile(`(?:at least|at a minimum|a minimum of|minimum of|minimum|no less than|no fewer than|not less than|more than|upwards of|>=|≥)\s*(\d[\d,]*)[\s-]*words?\b`)
	reWordK     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*k[\s-]*words?\b`)
	reWordBare  = regexp.MustCompile(`(\d[\d,]*)[\s-]*words?\b`)

	rePageRange = regexp.MustCompile(`(\d+)\s*(?:-|–|—|to)\s*(\d+)[\s-]*pages?\b`)
	rePageMin   = regexp.MustCompile(`(?:at least|at a minimum|a minimum of|minimum of|minimum|no less than|no fewer than|not less than|more than|>=|≥)\s*(\d+)[\s-]*pages?\b`)
	rePageBare  = regexp.MustCompile(`(\d+)[\s-]*pages?\b`)

	reReadTime = regexp.MustCompile(`(\d+)[\s-]*(?:minute|min)[\s-]*read\b`)
)

// Detect inspects the conversation for an explicit or implied length
// requirement and returns the derived word-count range, or nil when no
// signal is present and the caller should apply its own default floor.
func Detect(currentMessage string, history []types.Message) *WordRange {
	req := types.CompletionRequest{PromptText: currentMessage, History: history}
	text := strings.ToLower(req.Transcript())

	// 1. Explicit numeric range: "4000-6000 words".
	if m := reWordRange.FindStringSubmatch(text); m != nil {
		lo := clamp(parseCount(m[1]), minFloor, rangeCeil)
		hi := clamp(parseCount(m[2]), minFloor, rangeCeil)
		if hi < lo+500 {
			hi = lo + 500
		}
		return &WordRange{MinWords: lo, MaxWords: hi}
	}

	// 2. Qualifier: "at least 4000 words", "minimum 3000 words".
	if m := reWordMin.FindStringSubmatch(text); m != nil {
		lo := clamp(parseCount(m[1]), minFloor, qualifierCeil)
		return &WordRange{MinWords: lo, MaxWords: lo * 135 / 100}
	}

	// 3. Shorthand: "5k words".
	if m := reWordK.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		lo := clamp(int(n*1000), minFloor, rangeCeil)
		return &WordRange{MinWords: lo, MaxWords: lo * 13 / 10}
	}

	// 4. Bare count: "4000 words".
	if m := reWordBare.FindStringSubmatch(text); m != nil {
		lo := clamp(parseCount(m[1]), minFloor, bareCeil)
		return &WordRange{MinWords: lo, MaxWords: lo * 125 / 100}
	}

	// 5. Pages, converted at 250 words/page: range, qualifier, bare.
	if m := rePageRange.FindStringSubmatch(text); m != nil {
		a := minInt(parseCount(m[1]), pageRangeCap)
		b := minInt(parseCount(m[2]), pageRangeCap)
		lo := clamp(a*wordsPerPage, minFloor, rangeCeil)
		hi := clamp(b*wordsPerPage, minFloor, rangeCeil+7500)
		if hi < lo+500 {
			hi = lo + 500
		}
		return &WordRange{MinWords: lo, MaxWords: hi}
	}
	if m := rePageMin.FindStringSubmatch(text); m != nil {
		n := minInt(parseCount(m[1]), pageCap)
		lo := clamp(n*wordsPerPage, minFloor, qualifierCeil)
		return &WordRange{MinWords: lo, MaxWords: lo * 135 / 100}
	}
	if m := rePageBare.FindStringSubmatch(text); m != nil {
		n := minInt(parseCount(m[1]), pageCap)
		lo := clamp(n*wordsPerPage, minFloor, rangeCeil)
		return &WordRange{MinWords: lo, MaxWords: lo * 125 / 100}
	}

	// 6. Reading time: "20 minute read" at 200 words/minute.
	if m := reReadTime.FindStringSubmatch(text); m != nil {
		minutes := clamp(parseCount(m[1]), readMinutesFloor, readMinutesCeil)
		lo := minutes * wordsPerMinute
		return &WordRange{MinWords: lo, MaxWords: lo * 13 / 10}
	}

	v, err := loadVocab()
	if err != nil {
		return nil
	}

	// 7. Long-form signal vocabulary.
	if matchesAny(text, v.LongForm) {
		return &WordRange{MinWords: 7000, MaxWords: 15000}
	}

	// 8. General expository verbs.
	if matchesAny(text, v.Academic) {
		return &WordRange{MinWords: 1500, MaxWords: 4000}
	}

	return nil
}

// parseCount parses a decimal count that may contain thousands separators.
func parseCount(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	n, _ := strconv.Atoi(s)
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
