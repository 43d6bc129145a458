package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dan-solli/docid/pkg/logger"
	"github.com/dan-solli/docid/pkg/similarity"
	"github.com/dan-solli/docid/pkg/store"
)

var bulkBase = time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)

func putActive(t *testing.T, st *store.SQLiteIdentityStore, id, contentHash, structuralHash string, created time.Time, vector []float32) *store.FingerprintRecord {
	t.Helper()
	rec := &store.FingerprintRecord{
		DocumentID:     id,
		ContentHash:    contentHash,
		StructuralHash: structuralHash,
		Vector:         vector,
		CreatedAt:      created,
	}
	if err := st.Put(context.Background(), rec); err != nil {
		t.Fatalf("failed to put %s: %v", id, err)
	}
	return rec
}

func requireState(t *testing.T, st *store.SQLiteIdentityStore, id string, want store.DocumentState) *store.FingerprintRecord {
	t.Helper()
	rec, err := st.GetByDocumentID(context.Background(), id)
	if err != nil || rec == nil {
		t.Fatalf("record %s not found: %v", id, err)
	}
	if rec.State != want {
		t.Fatalf("record %s state = %s, want %s", id, rec.State, want)
	}
	return rec
}

func TestBulkDedupStructuralGroups(t *testing.T) {
	mgr, st, sink := newTestManager(t)
	ctx := context.Background()

	// Three records share a layout; the newest is retained.
	putActive(t, st, "doc-a", "c-a", "s-shared", bulkBase, nil)
	putActive(t, st, "doc-b", "c-b", "s-shared", bulkBase.Add(time.Hour), nil)
	putActive(t, st, "doc-c", "c-c", "s-shared", bulkBase.Add(2*time.Hour), nil)
	putActive(t, st, "doc-x", "c-x", "s-solo-1", bulkBase, nil)
	putActive(t, st, "doc-y", "c-y", "s-solo-2", bulkBase, nil)

	result, err := mgr.BulkDedup(ctx, BulkOptions{})
	if err != nil {
		t.Fatalf("bulk dedup failed: %v", err)
	}
	if result.Scanned != 5 || result.Marked != 2 || result.Skipped != 0 {
		t.Errorf("result = %+v, want scanned 5 marked 2 skipped 0", result)
	}
	if !result.Completed {
		t.Error("expected completed result")
	}

	requireState(t, st, "doc-c", store.StateActive)
	for _, id := range []string{"doc-a", "doc-b"} {
		rec := requireState(t, st, id, store.StateDuplicate)
		if rec.DuplicateOf == nil || *rec.DuplicateOf != "doc-c" {
			t.Errorf("%s duplicateOf = %v, want doc-c", id, rec.DuplicateOf)
		}
	}
	requireState(t, st, "doc-x", store.StateActive)
	requireState(t, st, "doc-y", store.StateActive)

	if got := sink.count(EventDuplicate); got != 2 {
		t.Errorf("duplicate events = %d, want 2", got)
	}
}

func TestBulkDedupIdempotent(t *testing.T) {
	mgr, st, _ := newTestManager(t)
	ctx := context.Background()

	putActive(t, st, "doc-a", "c-a", "s-shared", bulkBase, nil)
	putActive(t, st, "doc-b", "c-b", "s-shared", bulkBase.Add(time.Hour), nil)

	if _, err := mgr.BulkDedup(ctx, BulkOptions{}); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	result, err := mgr.BulkDedup(ctx, BulkOptions{})
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if result.Marked != 0 {
		t.Errorf("second pass marked %d records, want 0", result.Marked)
	}
	if result.Scanned != 1 {
		t.Errorf("second pass scanned %d, want 1 remaining Active", result.Scanned)
	}
}

func TestBulkDedupSemanticClusters(t *testing.T) {
	mgr, st, sink := newTestManager(t)
	ctx := context.Background()

	// Distinct layouts, so only the semantic cluster can group them.
	older := putActive(t, st, "doc-old", "c-old", "s-1", bulkBase, []float32{1, 0, 0})
	newer := putActive(t, st, "doc-new", "c-new", "s-2", bulkBase.Add(time.Hour), []float32{1, 0, 0})
	loner := putActive(t, st, "doc-far", "c-far", "s-3", bulkBase, []float32{0, 1, 0})

	index := store.NewMemoryVectorIndex(3)
	for _, rec := range []*store.FingerprintRecord{older, newer, loner} {
		if err := index.Add(ctx, rec.DocumentID, rec.Vector); err != nil {
			t.Fatalf("failed to index %s: %v", rec.DocumentID, err)
		}
	}
	searcher := similarity.NewSearcher(index, st, logger.NewNop())

	result, err := mgr.BulkDedup(ctx, BulkOptions{Searcher: searcher})
	if err != nil {
		t.Fatalf("bulk dedup failed: %v", err)
	}
	if result.Marked != 1 {
		t.Errorf("marked = %d, want 1", result.Marked)
	}

	rec := requireState(t, st, "doc-old", store.StateDuplicate)
	if rec.DuplicateOf == nil || *rec.DuplicateOf != "doc-new" {
		t.Errorf("doc-old duplicateOf = %v, want doc-new", rec.DuplicateOf)
	}
	requireState(t, st, "doc-new", store.StateActive)
	requireState(t, st, "doc-far", store.StateActive)

	events := sink.all()
	found := false
	for _, e := range events {
		if e.Type == EventDuplicate && e.DocumentID == "doc-old" && e.RelatedID == "doc-new" {
			found = true
		}
	}
	if !found {
		t.Errorf("events = %v, want duplicate event doc-old -> doc-new", events)
	}
}

func TestBulkDedupCheckpointResume(t *testing.T) {
	mgr, st, _ := newTestManager(t)
	ctx := context.Background()

	// Full run would demote doc-a and doc-b in favor of doc-c. A checkpoint
	// past doc-a means the resumed run never revisits it.
	putActive(t, st, "doc-a", "c-a", "s-shared", bulkBase, nil)
	putActive(t, st, "doc-b", "c-b", "s-shared", bulkBase.Add(time.Hour), nil)
	putActive(t, st, "doc-c", "c-c", "s-shared", bulkBase.Add(2*time.Hour), nil)

	if err := st.SaveCheckpoint(ctx, "job-1", "doc-a", 1); err != nil {
		t.Fatalf("failed to seed checkpoint: %v", err)
	}

	result, err := mgr.BulkDedup(ctx, BulkOptions{
		JobID:       "job-1",
		BatchSize:   1,
		Checkpoints: st,
	})
	if err != nil {
		t.Fatalf("bulk dedup failed: %v", err)
	}
	if !result.Resumed {
		t.Error("expected resumed run")
	}
	if result.Scanned != 3 {
		t.Errorf("scanned = %d, want 3 (1 checkpointed + 2 visited)", result.Scanned)
	}
	if result.Marked != 1 {
		t.Errorf("marked = %d, want 1", result.Marked)
	}

	requireState(t, st, "doc-a", store.StateActive) // skipped by the resume
	requireState(t, st, "doc-b", store.StateDuplicate)
	requireState(t, st, "doc-c", store.StateActive)

	cp, err := st.GetCheckpoint(ctx, "job-1")
	if err != nil {
		t.Fatalf("failed to read checkpoint: %v", err)
	}
	if cp != nil {
		t.Errorf("checkpoint = %+v, want cleared after completion", cp)
	}
}

func TestBulkDedupCancellation(t *testing.T) {
	mgr, st, _ := newTestManager(t)

	putActive(t, st, "doc-a", "c-a", "s-shared", bulkBase, nil)
	putActive(t, st, "doc-b", "c-b", "s-shared", bulkBase.Add(time.Hour), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := mgr.BulkDedup(ctx, BulkOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if result == nil || result.Completed {
		t.Errorf("result = %+v, want incomplete", result)
	}
}
