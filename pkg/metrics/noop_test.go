package metrics

import (
	"context"
	"testing"
)

func TestNoopCollector(t *testing.T) {
	var collector Collector = NewNoopCollector()
	ctx := context.Background()

	// Every method is a no-op and must never panic.
	collector.RecordOperation(ctx, "submit", "success", 100)
	collector.RecordStage(ctx, "submit", "fingerprint", 50)
	collector.RecordError(ctx, "submit", "validation")
	collector.SetStorageCount(ctx, "active", 10)
}
