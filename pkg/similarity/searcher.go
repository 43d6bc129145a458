// Package similarity provides repository-validated neighbor search over the
// vector index. Index scores are advisory: every surviving hit is re-scored
// against the vector the repository holds for it.
package similarity

import (
	"context"
	"sort"

	"github.com/dan-solli/docid/pkg/logger"
	"github.com/dan-solli/docid/pkg/store"
)

// Match pairs a repository record with its authoritative similarity score.
type Match struct {
	Record *store.FingerprintRecord
	Score  float64 // cosine similarity against the stored vector, clamped to [0,1]
}

// Searcher queries the vector index and validates every hit against the
// identity repository. Hits whose record is missing or Deleted are index
// inconsistencies: they are logged, removed from the index best-effort, and
// skipped, so one stale entry never fails a classification.
type Searcher struct {
	index store.VectorIndex
	repo  store.IdentityStore
	log   *logger.Logger
}

// NewSearcher creates a searcher over the given index and repository.
func NewSearcher(index store.VectorIndex, repo store.IdentityStore, log *logger.Logger) *Searcher {
	return &Searcher{
		index: index,
		repo:  repo,
		log:   logger.OrNop(log),
	}
}

// Search returns up to limit matches for the query vector, ordered by
// authoritative score descending, newest record first on ties. A nil or
// empty query yields no matches.
func (s *Searcher) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	neighbors, err := s.index.Search(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		rec, err := s.repo.GetByDocumentID(ctx, n.DocumentID)
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.State == store.StateDeleted {
			s.dropStale(ctx, n.DocumentID, rec)
			continue
		}

		score := store.CosineSimilarity(vector, rec.Vector)
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		matches = append(matches, Match{Record: rec, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].Record.CreatedAt.Equal(matches[j].Record.CreatedAt) {
			return matches[i].Record.CreatedAt.After(matches[j].Record.CreatedAt)
		}
		return matches[i].Record.DocumentID < matches[j].Record.DocumentID
	})

	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// dropStale logs an index inconsistency and removes the entry so it cannot
// resurface on the next search.
func (s *Searcher) dropStale(ctx context.Context, id string, rec *store.FingerprintRecord) {
	reason := "no repository record"
	if rec != nil {
		reason = "record is Deleted"
	}
	s.log.Warn("similarity index inconsistency, dropping entry",
		"document_id", id, "reason", reason)

	if err := s.index.Delete(ctx, id); err != nil {
		s.log.Warn("failed to remove stale index entry",
			"document_id", id, "error", err)
	}
}
