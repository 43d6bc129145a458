package fingerprint

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	g := &Generator{EmbeddingDim: 8}
	content := "# Title\n\nSome body text about fingerprinting documents."
	embedding := []float32{0.11, 0.22, 0.33, 0.44, 0.55, 0.66, 0.77, 0.88}

	fp1, err := g.Generate(content, embedding, "a.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	fp2, err := g.Generate(content, embedding, "b.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if fp1.ContentHash != fp2.ContentHash {
		t.Errorf("ContentHash mismatch: %s vs %s", fp1.ContentHash, fp2.ContentHash)
	}
	if fp1.StructuralHash != fp2.StructuralHash {
		t.Errorf("StructuralHash mismatch: %s vs %s", fp1.StructuralHash, fp2.StructuralHash)
	}
	if fp1.SemanticHash != fp2.SemanticHash {
		t.Errorf("SemanticHash mismatch: %s vs %s", fp1.SemanticHash, fp2.SemanticHash)
	}
	if len(fp1.KeyPhrases) != len(fp2.KeyPhrases) {
		t.Fatalf("KeyPhrases length mismatch: %d vs %d", len(fp1.KeyPhrases), len(fp2.KeyPhrases))
	}
	for i := range fp1.KeyPhrases {
		if fp1.KeyPhrases[i] != fp2.KeyPhrases[i] {
			t.Errorf("KeyPhrase %d mismatch: %s vs %s", i, fp1.KeyPhrases[i], fp2.KeyPhrases[i])
		}
	}
}

func TestGenerateFilenameDoesNotAffectHashes(t *testing.T) {
	g := &Generator{EmbeddingDim: 4}
	embedding := []float32{0.1, 0.2, 0.3, 0.4}

	fp1, err := g.Generate("same content here", embedding, "first.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	fp2, err := g.Generate("same content here", embedding, "second.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if fp1.ContentHash != fp2.ContentHash || fp1.SemanticHash != fp2.SemanticHash {
		t.Error("filename changed a hash; it must be metadata only")
	}
	if fp1.Source != "first.txt" || fp2.Source != "second.txt" {
		t.Errorf("Source not carried: got %q and %q", fp1.Source, fp2.Source)
	}
}

func TestGenerateEmptyContent(t *testing.T) {
	g := &Generator{}

	for _, content := range []string{"", "   \n\t  ", "?!., ;:"} {
		_, err := g.Generate(content, nil, "x.txt")
		if err == nil {
			t.Errorf("expected ValidationError for content %q", content)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected *ValidationError, got %T", err)
		}
	}
}

func TestGenerateEmbeddingDimensionMismatch(t *testing.T) {
	g := &Generator{EmbeddingDim: 8}

	_, err := g.Generate("some content", []float32{0.1, 0.2}, "x.txt")
	if err == nil {
		t.Fatal("expected ValidationError for wrong embedding dimensionality")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != "embedding" {
		t.Errorf("wrong field: got %s, want embedding", verr.Field)
	}
}

func TestGenerateWithoutEmbedding(t *testing.T) {
	g := &Generator{}

	fp, err := g.Generate("content without an embedding attached", nil, "x.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if fp.SemanticHash != "" {
		t.Errorf("expected empty SemanticHash, got %s", fp.SemanticHash)
	}
	if fp.SimilarityVector != nil {
		t.Errorf("expected nil SimilarityVector, got %v", fp.SimilarityVector)
	}
	if fp.ContentHash == "" || fp.StructuralHash == "" {
		t.Error("content and structural hashes must still be computed")
	}
}

func TestContentHashIgnoresFormatting(t *testing.T) {
	g := &Generator{}

	fp1, err := g.Generate("Hello, World!", nil, "a.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	fp2, err := g.Generate("  hello   world  ", nil, "b.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if fp1.ContentHash != fp2.ContentHash {
		t.Error("formatting-only differences must not change the content hash")
	}

	fp3, err := g.Generate("hello there world", nil, "c.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if fp1.ContentHash == fp3.ContentHash {
		t.Error("actual text changes must change the content hash")
	}
}

func TestStructuralHashSeesLayoutChanges(t *testing.T) {
	g := &Generator{}

	prose := "first line of prose\nsecond line of prose\nthird line of prose"
	withHeadings := "# One\nfirst line of prose\n# Two\nsecond line of prose\n# Three\nthird line of prose"

	fp1, err := g.Generate(prose, nil, "a.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	fp2, err := g.Generate(withHeadings, nil, "b.txt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if fp1.StructuralHash == fp2.StructuralHash {
		t.Error("inserting headings must change the structural hash")
	}
}

func TestNormalizeContent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Hello World", "hello world"},
		{"punctuation stripped", "hello, world!", "hello world"},
		{"whitespace collapsed", "hello \t\n  world", "hello world"},
		{"digits kept", "version 2 of 3", "version 2 of 3"},
		{"only punctuation", "!!! ??? ...", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeContent(tc.in)
			if got != tc.want {
				t.Errorf("NormalizeContent(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStructuralProfile(t *testing.T) {
	content := strings.Join([]string{
		"# Heading",
		"1. numbered item",
		"- bullet item",
		strings.Repeat("long paragraph text ", 10),
		"short",
		"",
		"  ",
	}, "\n")

	got := StructuralProfile(content)
	want := "HNBPS"
	if got != want {
		t.Errorf("StructuralProfile = %q, want %q", got, want)
	}
}

func TestQuantizeVectorCollapsesNoise(t *testing.T) {
	a := []float32{0.12345, 0.6789, -0.0004}
	b := []float32{0.1211, 0.6822, 0.0003}

	qa := QuantizeVector(a, 2, 3)
	qb := QuantizeVector(b, 2, 3)

	for i := range qa {
		if qa[i] != qb[i] {
			t.Errorf("dimension %d: %v vs %v, want equal after quantization", i, qa[i], qb[i])
		}
	}
}

func TestQuantizeVectorTruncates(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3, 0.4, 0.5}

	q := QuantizeVector(vec, 2, 3)
	if len(q) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(q))
	}

	q = QuantizeVector(vec, 2, 10)
	if len(q) != 5 {
		t.Errorf("dims beyond input length must clamp: expected 5, got %d", len(q))
	}
}

func TestExtractKeyPhrasesDeterministicOrder(t *testing.T) {
	normalized := NormalizeContent(
		"database indexing and database tuning improve database performance " +
			"indexing strategies matter for indexing heavy workloads")

	p1 := ExtractKeyPhrases(normalized, 5)
	p2 := ExtractKeyPhrases(normalized, 5)

	if len(p1) == 0 {
		t.Fatal("expected phrases")
	}
	if len(p1) > 5 {
		t.Errorf("limit not honored: got %d phrases", len(p1))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Errorf("phrase %d not deterministic: %s vs %s", i, p1[i], p2[i])
		}
	}
	if p1[0] != "database" {
		t.Errorf("most frequent term should rank first: got %s", p1[0])
	}
}

func TestExtractKeyPhrasesFiltersStopwords(t *testing.T) {
	phrases := ExtractKeyPhrases("the and that with from this", 10)
	if len(phrases) != 0 {
		t.Errorf("stopword-only input should yield no phrases, got %v", phrases)
	}
}
