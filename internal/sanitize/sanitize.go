// Package sanitize strips model meta-commentary from generated text before it
// is returned to callers.
package sanitize

import (
	"regexp"
	"strings"
)

// MinContentLength is the shortest sanitized output still considered a real
// result. Anything below this is a failed generation dressed up as success.
const MinContentLength = 100

// artifactPatterns match known AI meta-commentary that leaks into output:
// continuation prompts, editorial notes, and preamble acknowledgements.
// Matched case-insensitively, line-anchored where possible.
var artifactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)would you like me to (?:continue|proceed|expand|keep going)[^\n]*\??`),
	regexp.MustCompile(`(?i)let me know if you(?:'d| would) like[^\n]*`),
	regexp.MustCompile(`(?i)shall i (?:continue|proceed|go on)[^\n]*\??`),
	regexp.MustCompile(`(?i)^(?:sure|certainly|of course)[,!.]? here(?:'s| is)[^\n]*\n+`),
	regexp.MustCompile(`(?i)^here(?:'s| is) (?:the|your|a) [^\n]*:\n+`),
	regexp.MustCompile(`(?i)\[(?:note|editor(?:'s)? note|continued|to be continued|word count[^\]]*)\]`),
	regexp.MustCompile(`(?i)\((?:word count|approx(?:imately)?\.? [\d,]+ words)[^)]*\)`),
	regexp.MustCompile(`(?i)i (?:hope|trust) this (?:helps|meets your)[^\n]*`),
	regexp.MustCompile(`(?i)\*{0,2}\[?(?:end of (?:part|section|chapter)[^\n\]]*)\]?\*{0,2}`),
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

// Clean removes known artifacts and normalizes residual whitespace.
// Clean is idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	for _, re := range artifactPatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Acceptable reports whether sanitized content is long enough to count as a
// successful generation.
func Acceptable(text string) bool {
	return len(text) >= MinContentLength
}
