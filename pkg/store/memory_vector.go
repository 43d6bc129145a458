package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryVectorIndex is an in-memory implementation of VectorIndex.
// It uses a map to store vectors and provides thread-safe access via RWMutex.
// Note: This implementation does not persist vectors across restarts.
type MemoryVectorIndex struct {
	vectors map[string][]float32
	dim     int
	mu      sync.RWMutex
}

// NewMemoryVectorIndex creates a new in-memory vector index.
// If dim is greater than zero, every added or queried vector must have
// exactly that many dimensions.
func NewMemoryVectorIndex(dim int) *MemoryVectorIndex {
	return &MemoryVectorIndex{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// Add adds or updates the vector for the given document ID.
func (m *MemoryVectorIndex) Add(ctx context.Context, id string, vector []float32) error {
	if m.dim > 0 && len(vector) != m.dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrVectorDimension, len(vector), m.dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external mutations
	vectorCopy := make([]float32, len(vector))
	copy(vectorCopy, vector)

	m.vectors[id] = vectorCopy
	return nil
}

// Search finds the most similar vectors to the query.
// Returns up to topK neighbors sorted by similarity score (descending).
func (m *MemoryVectorIndex) Search(ctx context.Context, query []float32, topK int) ([]Neighbor, error) {
	if m.dim > 0 && len(query) != m.dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrVectorDimension, len(query), m.dim)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Handle empty index
	if len(m.vectors) == 0 {
		return []Neighbor{}, nil
	}

	// Compute similarity for all vectors
	var results []Neighbor
	for id, vector := range m.vectors {
		score := CosineSimilarity(query, vector)
		results = append(results, Neighbor{
			DocumentID: id,
			Score:      score,
		})
	}

	// Sort by score descending; document ID breaks ties so results are stable
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})

	// Return top-K
	if topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Delete removes a vector from the index.
func (m *MemoryVectorIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.vectors, id)
	return nil
}

// Size reports how many vectors the index holds.
func (m *MemoryVectorIndex) Size(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.vectors)), nil
}

// Compile-time interface check
var _ VectorIndex = (*MemoryVectorIndex)(nil)
