package fingerprint

import (
	"strings"
	"unicode"
)

// NormalizeContent lowercases content, strips punctuation, and collapses all
// whitespace runs to a single space. The result is what the content hash and
// key-phrase extraction operate on, making both robust to trivial formatting
// differences while staying sensitive to actual text changes.
func NormalizeContent(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	lastSpace := true // suppress leading whitespace
	for _, r := range content {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Punctuation and symbols are dropped entirely.
		}
	}

	return strings.TrimRight(b.String(), " ")
}
