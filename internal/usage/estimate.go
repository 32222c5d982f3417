package usage

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// wordsPerToken converts estimated tokens to the ledger's internal word
// unit. The ledger meters everything in words; tokens appear only at this
// boundary, for trial accounts whose upstream usage is reported in tokens.
const wordsPerToken = 0.75

// fallbackCharsPerToken approximates token count when no encoding is
// available (network-restricted deployments cannot fetch tiktoken data).
const fallbackCharsPerToken = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// getEncoding lazily loads the cl100k_base encoding. Failure is tolerated;
// estimation falls back to the character heuristic.
func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// EstimateTokens approximates the token count of text: exact tiktoken count
// when the encoding is available, chars/4 otherwise.
func EstimateTokens(text string) int {
	if enc := getEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text) / fallbackCharsPerToken
}

// TokensToWords converts a token count into ledger words.
func TokensToWords(tokens int) int {
	return int(float64(tokens) * wordsPerToken)
}

// CountWords counts whitespace-separated words, the unit every plan budget
// is expressed in.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
