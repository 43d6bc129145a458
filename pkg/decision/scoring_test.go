package decision

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProfileSimilarity(t *testing.T) {
	// A 27-line profile with three heading lines inserted: the edit
	// distance is 3 against a longest length of 30.
	drifted := "H" + strings.Repeat("P", 9) + "H" + strings.Repeat("P", 9) + "H" + strings.Repeat("P", 9)

	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "HNPBS", "HNPBS", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "HNPB", "", 0.0},
		{"single substitution", "HNPB", "HNSB", 0.75},
		{"three insertions", strings.Repeat("P", 27), drifted, 0.9},
		{"disjoint", "HHHH", "PPPP", 0.0},
	}
	for _, tt := range tests {
		got := ProfileSimilarity(tt.a, tt.b)
		if !almostEqual(got, tt.want) {
			t.Errorf("%s: ProfileSimilarity(%q, %q) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestProfileSimilaritySymmetric(t *testing.T) {
	a, b := "HNPPBS", "HPPS"
	if got, rev := ProfileSimilarity(a, b), ProfileSimilarity(b, a); !almostEqual(got, rev) {
		t.Errorf("ProfileSimilarity not symmetric: %v vs %v", got, rev)
	}
}

func TestPhraseOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want float64
	}{
		{"identical", []string{"alpha", "beta"}, []string{"alpha", "beta"}, 1.0},
		{"both empty", nil, nil, 1.0},
		{"one empty", []string{"alpha"}, nil, 0.0},
		{"half shared", []string{"alpha", "beta", "gamma"}, []string{"beta", "gamma", "delta"}, 0.5},
		{"disjoint", []string{"alpha"}, []string{"beta"}, 0.0},
		{"duplicates collapse", []string{"alpha", "alpha", "beta"}, []string{"alpha", "beta"}, 1.0},
		{"order insensitive", []string{"beta", "alpha"}, []string{"alpha", "beta"}, 1.0},
	}
	for _, tt := range tests {
		got := PhraseOverlap(tt.a, tt.b)
		if !almostEqual(got, tt.want) {
			t.Errorf("%s: PhraseOverlap(%v, %v) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
