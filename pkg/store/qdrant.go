package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantVectorIndex is a Qdrant-backed implementation of VectorIndex.
// Vectors live in a single collection using cosine distance, keyed by the
// fingerprint record's document ID.
type QdrantVectorIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// Compile-time interface check
var _ VectorIndex = (*QdrantVectorIndex)(nil)

// NewQdrantVectorIndex creates a Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable, then ensures the collection exists. Idempotent across
// restarts.
func NewQdrantVectorIndex(host string, port int, collection string, dim int) (*QdrantVectorIndex, error) {
	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	index := &QdrantVectorIndex{
		client:     client,
		collection: collection,
		dim:        dim,
	}

	ctx := context.Background()
	if err := index.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	if err := index.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return index, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *QdrantVectorIndex) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return q.Health(ctx)
	}

	return backoff.Retry(operation, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
// Returns nil if Qdrant is healthy, error otherwise.
func (q *QdrantVectorIndex) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// ensureCollection creates the collection with cosine distance vectors if it
// doesn't exist. Safe to call multiple times.
func (q *QdrantVectorIndex) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list collections: %v", ErrIndexUnavailable, err)
	}

	for _, name := range collections {
		if name == q.collection {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %v", ErrIndexUnavailable, err)
	}

	return nil
}

// Add adds or updates the vector for the given document ID.
func (q *QdrantVectorIndex) Add(ctx context.Context, id string, vector []float32) error {
	if len(vector) != q.dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrVectorDimension, len(vector), q.dim)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Vectors: qdrant.NewVectors(vector...),
	}

	return q.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (q *QdrantVectorIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}

	if err := backoff.Retry(operation, exponentialBackoff); err != nil {
		return fmt.Errorf("%w: upsert failed: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Search finds the most similar vectors to the query.
// Returns up to topK neighbors sorted by similarity score (descending).
func (q *QdrantVectorIndex) Search(ctx context.Context, query []float32, topK int) ([]Neighbor, error) {
	if len(query) != q.dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrVectorDimension, len(query), q.dim)
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(topK)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", ErrIndexUnavailable, err)
	}

	neighbors := make([]Neighbor, 0, len(results))
	for _, result := range results {
		neighbors = append(neighbors, Neighbor{
			DocumentID: result.Id.GetUuid(),
			Score:      float64(result.Score), // Qdrant returns float32, convert to float64
		})
	}

	return neighbors, nil
}

// Delete removes a vector from the index.
func (q *QdrantVectorIndex) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("%w: delete failed: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Size reports how many points the collection holds.
func (q *QdrantVectorIndex) Size(ctx context.Context) (int64, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count failed: %v", ErrIndexUnavailable, err)
	}
	return int64(count), nil
}

// Close closes the Qdrant client connection.
func (q *QdrantVectorIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
