// Package decision classifies document fingerprints against candidate
// matches from the identity repository and similarity index. The engine is
// pure: all repository and index lookups happen before Classify is called,
// so every classification is deterministic for a given candidate set.
package decision

import (
	"fmt"

	"github.com/dan-solli/docid/pkg/fingerprint"
	"github.com/dan-solli/docid/pkg/similarity"
	"github.com/dan-solli/docid/pkg/store"
)

// Action is the outcome class of a classification.
type Action string

const (
	// ActionCreate registers the document as a new identity.
	ActionCreate Action = "create"
	// ActionUpdate supersedes an existing document with a new version.
	ActionUpdate Action = "update"
	// ActionDuplicate marks the document as a duplicate of an existing one.
	ActionDuplicate Action = "duplicate"
	// ActionSimilar flags a resemblance that needs external confirmation
	// before any state changes.
	ActionSimilar Action = "similar"
)

// Decision is the classification outcome for one submission.
type Decision struct {
	Action            Action   `json:"action"`
	Confidence        float64  `json:"confidence"`
	Reasons           []string `json:"reasons"`
	MatchedDocumentID string   `json:"matched_document_id,omitempty"`

	// Matched is the candidate record the decision was made against, pinned
	// so that the follow-up write can detect concurrent modification.
	Matched *store.FingerprintRecord `json:"-"`
}

// Candidates carries everything a classification examines for one
// fingerprint. Structural holds records sharing the exact structural hash,
// Semantic holds repository-validated neighbors ordered best first.
type Candidates struct {
	Exact      *store.FingerprintRecord
	Structural []*store.FingerprintRecord
	Semantic   []similarity.Match
}

// Engine runs the classification cascade: exact content match, then
// structural match, then semantic match, then create.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a classification engine. Zero-value thresholds select
// the defaults.
func NewEngine(thresholds Thresholds) *Engine {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Engine{thresholds: thresholds}
}

// Thresholds returns the cutoffs the engine classifies with.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Classify runs the cascade for fp against the gathered candidates.
func (e *Engine) Classify(fp *fingerprint.Fingerprint, cands Candidates) Decision {
	t := e.thresholds

	if cands.Exact != nil && cands.Exact.State == store.StateActive {
		return Decision{
			Action:            ActionDuplicate,
			Confidence:        1.0,
			MatchedDocumentID: cands.Exact.DocumentID,
			Matched:           cands.Exact,
			Reasons: []string{
				fmt.Sprintf("content hash identical to active document %s", cands.Exact.DocumentID),
			},
		}
	}

	structRec, structScore := e.bestStructural(fp, cands)
	structOK := structRec != nil && structScore >= t.Structural

	semMatch, semFound := bestSemantic(cands)
	semOK := semFound && semMatch.Score >= t.Similar

	if structOK && semOK && !t.StructuralPrecedence && semMatch.Score > structScore {
		d := e.semanticDecision(semMatch)
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"semantic score %.3f outranked structural score %.3f with structural precedence disabled",
			semMatch.Score, structScore))
		return d
	}
	if structOK {
		return Decision{
			Action:            ActionUpdate,
			Confidence:        structScore,
			MatchedDocumentID: structRec.DocumentID,
			Matched:           structRec,
			Reasons: []string{
				fmt.Sprintf("structural match on %s scored %.3f (threshold %.2f)",
					structRec.DocumentID, structScore, t.Structural),
			},
		}
	}
	if semOK {
		return e.semanticDecision(semMatch)
	}

	return Decision{
		Action:     ActionCreate,
		Confidence: 1.0,
		Reasons:    []string{"no qualifying match"},
	}
}

// bestStructural scores every Active candidate as the lesser of its layout
// similarity and its key-phrase overlap, and returns the highest scorer.
// Candidates come from the structural-hash bucket and from the semantic
// neighbors, so layout drift that changes the structural hash can still be
// recognized. The phrase-overlap gate keeps two different documents that
// happen to share a layout template from matching. Ties go to the most
// recently created record.
func (e *Engine) bestStructural(fp *fingerprint.Fingerprint, cands Candidates) (*store.FingerprintRecord, float64) {
	var (
		best      *store.FingerprintRecord
		bestScore float64
	)
	seen := make(map[string]bool)

	consider := func(rec *store.FingerprintRecord) {
		if rec == nil || rec.State != store.StateActive || seen[rec.DocumentID] {
			return
		}
		seen[rec.DocumentID] = true

		layout := ProfileSimilarity(fp.StructuralProfile, rec.StructuralProfile)
		if rec.StructuralHash == fp.StructuralHash {
			layout = 1.0
		}
		score := min(layout, PhraseOverlap(fp.KeyPhrases, rec.KeyPhrases))

		if best == nil || score > bestScore || (score == bestScore && createdAfter(rec, best)) {
			best = rec
			bestScore = score
		}
	}

	for _, rec := range cands.Structural {
		consider(rec)
	}
	for _, m := range cands.Semantic {
		consider(m.Record)
	}
	return best, bestScore
}

// bestSemantic returns the first Active semantic match. Matches arrive
// ordered by score, newest first on ties.
func bestSemantic(cands Candidates) (similarity.Match, bool) {
	for _, m := range cands.Semantic {
		if m.Record != nil && m.Record.State == store.StateActive {
			return m, true
		}
	}
	return similarity.Match{}, false
}

// semanticDecision maps a qualifying semantic match to duplicate or similar
// depending on which band its score falls in.
func (e *Engine) semanticDecision(m similarity.Match) Decision {
	t := e.thresholds
	if m.Score >= t.Duplicate {
		return Decision{
			Action:            ActionDuplicate,
			Confidence:        m.Score,
			MatchedDocumentID: m.Record.DocumentID,
			Matched:           m.Record,
			Reasons: []string{
				fmt.Sprintf("semantic neighbor %s scored %.3f (duplicate threshold %.2f)",
					m.Record.DocumentID, m.Score, t.Duplicate),
			},
		}
	}
	return Decision{
		Action:            ActionSimilar,
		Confidence:        m.Score,
		MatchedDocumentID: m.Record.DocumentID,
		Matched:           m.Record,
		Reasons: []string{
			fmt.Sprintf("semantic neighbor %s scored %.3f (similar band %.2f to %.2f)",
				m.Record.DocumentID, m.Score, t.Similar, t.Duplicate),
		},
	}
}

// createdAfter reports whether a was created after b, falling back to
// document ID order so equal-score ties stay deterministic.
func createdAfter(a, b *store.FingerprintRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.DocumentID < b.DocumentID
}
