package decision

// ProfileSimilarity scores how closely two structural profiles agree, as
// 1 minus the normalized edit distance between them. Identical profiles
// score 1.0; a profile compared against an empty one scores 0.0.
func ProfileSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	ra, rb := []rune(a), []rune(b)
	dist := levenshtein(ra, rb)
	longest := max(len(ra), len(rb))
	return 1.0 - float64(dist)/float64(longest)
}

// PhraseOverlap returns the Jaccard similarity between two key-phrase sets.
func PhraseOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0 // Both empty = identical
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(a))
	for _, p := range a {
		setA[p] = true
	}
	setB := make(map[string]bool, len(b))
	for _, p := range b {
		setB[p] = true
	}

	intersection := 0
	for p := range setA {
		if setB[p] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// levenshtein computes the edit distance between two rune slices using the
// two-row variant of the Wagner-Fischer algorithm.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
