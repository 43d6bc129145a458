package fingerprint

import (
	"sort"
	"strings"
)

// stopwords are excluded from key-phrase candidates. The list is small on
// purpose: phrases are an auxiliary signal, and a stable cutoff matters more
// than linguistic completeness.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"its": true, "not": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "you": true, "your": true,
}

// minUnigramLength filters out short words that carry little signal.
const minUnigramLength = 4

// minBigramWordLength is the per-word minimum inside a two-word phrase.
const minBigramWordLength = 3

// ExtractKeyPhrases returns up to limit significant phrases from normalized
// content, most significant first. Candidates are stopword-filtered unigrams
// and bigrams ranked by frequency, then phrase length, then lexicographically,
// so the result is fully deterministic for identical input.
func ExtractKeyPhrases(normalized string, limit int) []string {
	if limit <= 0 || normalized == "" {
		return nil
	}

	tokens := strings.Fields(normalized)
	counts := make(map[string]int)

	for i, tok := range tokens {
		if !stopwords[tok] && len(tok) >= minUnigramLength && !allDigits(tok) {
			counts[tok]++
		}
		if i+1 < len(tokens) {
			next := tokens[i+1]
			if !stopwords[tok] && !stopwords[next] &&
				len(tok) >= minBigramWordLength && len(next) >= minBigramWordLength {
				counts[tok+" "+next]++
			}
		}
	}

	if len(counts) == 0 {
		return nil
	}

	phrases := make([]string, 0, len(counts))
	for p := range counts {
		phrases = append(phrases, p)
	}

	sort.Slice(phrases, func(i, j int) bool {
		a, b := phrases[i], phrases[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	if len(phrases) > limit {
		phrases = phrases[:limit]
	}
	return phrases
}

// allDigits reports whether s consists only of ASCII digits.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
