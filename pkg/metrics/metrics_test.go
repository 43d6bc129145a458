//go:build metrics

package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollector_RecordOperation(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	// Record some operations
	collector.RecordOperation(ctx, "submit", "success", 1000)
	collector.RecordOperation(ctx, "submit", "success", 1500)
	collector.RecordOperation(ctx, "submit", "error", 500)
	collector.RecordOperation(ctx, "delete", "success", 200)

	// Verify counters
	if got := testutil.CollectAndCount(collector.operationsTotal); got != 3 {
		t.Errorf("expected 3 metric series (submit/success, submit/error, delete/success), got %d", got)
	}

	// Check specific counter value
	submitSuccess := testutil.ToFloat64(collector.operationsTotal.WithLabelValues("submit", "success"))
	if submitSuccess != 2 {
		t.Errorf("expected 2 submit/success operations, got %f", submitSuccess)
	}

	submitError := testutil.ToFloat64(collector.operationsTotal.WithLabelValues("submit", "error"))
	if submitError != 1 {
		t.Errorf("expected 1 submit/error operation, got %f", submitError)
	}
}

func TestMetricsCollector_RecordStage(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	// Record stage durations (in milliseconds)
	collector.RecordStage(ctx, "submit", "fingerprint", 100)
	collector.RecordStage(ctx, "submit", "classify", 2500)
	collector.RecordStage(ctx, "submit", "classify", 3000)

	// Verify histogram has entries
	if got := testutil.CollectAndCount(collector.operationDuration); got != 2 {
		t.Errorf("expected 2 histogram series, got %d", got)
	}

	classifyHistogram := collector.operationDuration.WithLabelValues("submit", "classify")
	if classifyHistogram == nil {
		t.Error("expected classify histogram to exist")
	}
}

func TestMetricsCollector_RecordError(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.RecordError(ctx, "submit", "repository")
	collector.RecordError(ctx, "submit", "repository")
	collector.RecordError(ctx, "submit", "conflict")
	collector.RecordError(ctx, "bulk_dedup", "timeout")

	repositoryErrors := testutil.ToFloat64(collector.errorsTotal.WithLabelValues("submit", "repository"))
	if repositoryErrors != 2 {
		t.Errorf("expected 2 repository errors, got %f", repositoryErrors)
	}

	conflictErrors := testutil.ToFloat64(collector.errorsTotal.WithLabelValues("submit", "conflict"))
	if conflictErrors != 1 {
		t.Errorf("expected 1 conflict error, got %f", conflictErrors)
	}
}

func TestMetricsCollector_SetStorageCount(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.SetStorageCount(ctx, "active", 42)
	collector.SetStorageCount(ctx, "superseded", 150)
	collector.SetStorageCount(ctx, "index", 300)

	active := testutil.ToFloat64(collector.storageCount.WithLabelValues("active"))
	if active != 42 {
		t.Errorf("expected 42 active, got %f", active)
	}

	// Update existing gauge
	collector.SetStorageCount(ctx, "active", 50)
	active = testutil.ToFloat64(collector.storageCount.WithLabelValues("active"))
	if active != 50 {
		t.Errorf("expected 50 active after update, got %f", active)
	}
}

func TestMetricsCollector_Registry(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	// Generate some metrics first so they appear in the registry
	collector.RecordOperation(ctx, "submit", "success", 100)
	collector.RecordStage(ctx, "submit", "persist", 50)
	collector.RecordError(ctx, "submit", "unknown")
	collector.SetStorageCount(ctx, "active", 10)

	registry := collector.Registry()
	if registry == nil {
		t.Fatal("expected non-nil registry")
	}

	// Verify metrics are registered
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	// We registered 4 metrics: operations_total, operation_duration, errors_total, storage_count
	expectedFamilies := 4
	if len(metricFamilies) != expectedFamilies {
		t.Errorf("expected %d metric families, got %d", expectedFamilies, len(metricFamilies))
	}
}

// TestMetricsCollector_NoPayloadLeakage verifies metrics contain no document data
func TestMetricsCollector_NoPayloadLeakage(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.RecordOperation(ctx, "submit", "success", 1000)
	collector.RecordStage(ctx, "submit", "index", 500)
	collector.RecordError(ctx, "submit", "index")

	metricFamilies, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	// Verify no content-bearing terms appear in any label values
	forbiddenTerms := []string{"content", "filename", "phrase", "vector", "document_id"}
	for _, mf := range metricFamilies {
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				value := label.GetValue()
				for _, term := range forbiddenTerms {
					if value == term {
						t.Errorf("found forbidden term %q in metric label", term)
					}
				}
			}
		}
	}
}
