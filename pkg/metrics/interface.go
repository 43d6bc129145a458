package metrics

import "context"

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector (when built with -tags metrics)
// and the no-op collector (default build without metrics tag).
// Labels carry fixed vocabulary only (operation, stage, status, error type,
// state); document content, filenames, and phrases never reach a metric.
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	RecordError(ctx context.Context, operation string, errorType string)
	SetStorageCount(ctx context.Context, storageType string, count int64)
}
