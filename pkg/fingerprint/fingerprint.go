// Package fingerprint computes multi-layer identity descriptors for document
// content. A fingerprint combines a content hash over normalized text, a
// structural hash over the line-layout profile, a semantic hash over a
// quantized embedding, and a bounded set of key phrases.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is the identity descriptor computed for one piece of content.
// It carries no document ID; IDs are assigned only when a new record is
// created downstream.
type Fingerprint struct {
	// ContentHash is the SHA-256 of the normalized content. Insensitive to
	// case, punctuation, and whitespace differences.
	ContentHash string `json:"content_hash"`

	// StructuralHash is the SHA-256 of the per-line layout profile
	// (heading / numbered-list / bullet-list / long-paragraph / short-line).
	StructuralHash string `json:"structural_hash"`

	// StructuralProfile is the layout profile itself, one class letter per
	// line. Kept alongside the hash so layout drift between two documents
	// can be scored, not just tested for equality.
	StructuralProfile string `json:"structural_profile"`

	// SemanticHash is the SHA-256 of the quantized embedding. Empty when no
	// embedding was supplied. Used as a similarity bucket key, never unique.
	SemanticHash string `json:"semantic_hash,omitempty"`

	// SimilarityVector is the quantized, truncated embedding used for
	// nearest-neighbor search. Nil when no embedding was supplied.
	SimilarityVector []float32 `json:"similarity_vector,omitempty"`

	// KeyPhrases holds the top-ranked significant phrases, most significant
	// first. Auxiliary similarity signal only; not part of any hash.
	KeyPhrases []string `json:"key_phrases,omitempty"`

	// Source is the filename supplied with the content. Metadata only; it
	// never participates in hashing.
	Source string `json:"source,omitempty"`
}

// ValidationError reports malformed generator input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Generator computes fingerprints. The zero value is usable; unset fields
// fall back to defaults.
type Generator struct {
	// EmbeddingDim is the expected embedding dimensionality. Embeddings of a
	// different length are rejected. 0 means 1536.
	EmbeddingDim int

	// QuantPrecision is the number of decimal places kept per dimension
	// during quantization. 0 means 2.
	QuantPrecision int

	// QuantDims is the number of leading dimensions kept during
	// quantization. 0 means 64.
	QuantDims int

	// MaxKeyPhrases bounds the extracted phrase count. 0 means 10.
	MaxKeyPhrases int
}

// Default generator settings.
const (
	DefaultEmbeddingDim   = 1536
	DefaultQuantPrecision = 2
	DefaultQuantDims      = 64
	DefaultMaxKeyPhrases  = 10
)

// Generate computes the fingerprint for content. The embedding is optional;
// when nil the semantic layer is left empty and classification falls back to
// content and structure alone. Identical (content, embedding) inputs always
// produce identical fingerprints.
func (g *Generator) Generate(content string, embedding []float32, filename string) (*Fingerprint, error) {
	embeddingDim := g.EmbeddingDim
	if embeddingDim == 0 {
		embeddingDim = DefaultEmbeddingDim
	}
	precision := g.QuantPrecision
	if precision == 0 {
		precision = DefaultQuantPrecision
	}
	quantDims := g.QuantDims
	if quantDims == 0 {
		quantDims = DefaultQuantDims
	}
	maxPhrases := g.MaxKeyPhrases
	if maxPhrases == 0 {
		maxPhrases = DefaultMaxKeyPhrases
	}

	normalized := NormalizeContent(content)
	if normalized == "" {
		return nil, &ValidationError{Field: "content", Reason: "content is empty"}
	}
	if embedding != nil && len(embedding) != embeddingDim {
		return nil, &ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("expected %d dimensions, got %d", embeddingDim, len(embedding)),
		}
	}

	profile := StructuralProfile(content)
	fp := &Fingerprint{
		ContentHash:       hashHex(normalized),
		StructuralHash:    hashHex(profile),
		StructuralProfile: profile,
		KeyPhrases:        ExtractKeyPhrases(normalized, maxPhrases),
		Source:            filename,
	}

	if len(embedding) > 0 {
		quantized := QuantizeVector(embedding, precision, quantDims)
		fp.SimilarityVector = quantized
		fp.SemanticHash = hashHex(formatVector(quantized, precision))
	}

	return fp, nil
}

// hashHex returns the hex-encoded SHA-256 of s.
func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
