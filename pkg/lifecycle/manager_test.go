package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dan-solli/docid/pkg/decision"
	"github.com/dan-solli/docid/pkg/fingerprint"
	"github.com/dan-solli/docid/pkg/logger"
	"github.com/dan-solli/docid/pkg/store"
)

// recordingSink captures emitted events for assertions. Safe for concurrent
// emitters.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

func (s *recordingSink) count(typ EventType) int {
	n := 0
	for _, e := range s.all() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T) (*Manager, *store.SQLiteIdentityStore, *recordingSink) {
	t.Helper()
	st, err := store.NewSQLiteIdentityStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sink := &recordingSink{}
	return NewManager(st, sink, logger.NewNop()), st, sink
}

func testFP(contentHash, structuralHash string) *fingerprint.Fingerprint {
	return &fingerprint.Fingerprint{
		ContentHash:       contentHash,
		StructuralHash:    structuralHash,
		StructuralProfile: "HPPB",
		KeyPhrases:        []string{"alpha", "beta"},
	}
}

func TestCreate(t *testing.T) {
	mgr, st, sink := newTestManager(t)
	ctx := context.Background()

	rec, err := mgr.Create(ctx, testFP("c1", "s1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec.DocumentID == "" {
		t.Error("expected a generated document ID")
	}
	if rec.Version != 1 || rec.State != store.StateActive {
		t.Errorf("got version %d state %s, want 1 Active", rec.Version, rec.State)
	}

	stored, err := st.GetByDocumentID(ctx, rec.DocumentID)
	if err != nil || stored == nil {
		t.Fatalf("stored record not found: %v", err)
	}

	events := sink.all()
	if len(events) != 1 || events[0].Type != EventCreated || events[0].DocumentID != rec.DocumentID {
		t.Errorf("events = %v, want one created event for %s", events, rec.DocumentID)
	}
}

func TestUpdateSupersedes(t *testing.T) {
	mgr, st, sink := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.Create(ctx, testFP("c1", "s1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	second, err := mgr.Update(ctx, testFP("c2", "s1"), first)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("successor version = %d, want 2", second.Version)
	}
	if second.Replaces == nil || *second.Replaces != first.DocumentID {
		t.Errorf("successor replaces = %v, want %s", second.Replaces, first.DocumentID)
	}

	old, err := st.GetByDocumentID(ctx, first.DocumentID)
	if err != nil || old == nil {
		t.Fatalf("predecessor not found: %v", err)
	}
	if old.State != store.StateSuperseded {
		t.Errorf("predecessor state = %s, want Superseded", old.State)
	}
	if old.ReplacedBy == nil || *old.ReplacedBy != second.DocumentID {
		t.Errorf("predecessor replacedBy = %v, want %s", old.ReplacedBy, second.DocumentID)
	}

	events := sink.all()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (created, superseded, created)", len(events))
	}
	if events[1].Type != EventSuperseded || events[1].DocumentID != first.DocumentID || events[1].RelatedID != second.DocumentID {
		t.Errorf("superseded event = %+v", events[1])
	}
	if events[2].Type != EventCreated || events[2].DocumentID != second.DocumentID || events[2].RelatedID != first.DocumentID {
		t.Errorf("created event = %+v", events[2])
	}
}

func TestUpdateConflictEmitsNothing(t *testing.T) {
	mgr, _, sink := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.Create(ctx, testFP("c1", "s1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := mgr.Update(ctx, testFP("c2", "s1"), first); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	before := len(sink.all())

	// first is now stale: the stored record is Superseded.
	_, err = mgr.Update(ctx, testFP("c3", "s1"), first)
	if !store.IsConflict(err) {
		t.Fatalf("got %v, want ConflictError", err)
	}
	if got := len(sink.all()); got != before {
		t.Errorf("conflict emitted events: %d -> %d", before, got)
	}
}

func TestDuplicateFlattensTarget(t *testing.T) {
	mgr, _, sink := newTestManager(t)
	ctx := context.Background()

	original, err := mgr.Create(ctx, testFP("c1", "s1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Duplicates share the original's content hash; only Active records
	// contend for content-hash uniqueness.
	dup1, err := mgr.Duplicate(ctx, testFP("c1", "s1"), original)
	if err != nil {
		t.Fatalf("first duplicate failed: %v", err)
	}
	if dup1.DuplicateOf == nil || *dup1.DuplicateOf != original.DocumentID {
		t.Errorf("dup1 duplicateOf = %v, want %s", dup1.DuplicateOf, original.DocumentID)
	}

	// Pointing at a Duplicate flattens to the retained original.
	dup2, err := mgr.Duplicate(ctx, testFP("c1", "s1"), dup1)
	if err != nil {
		t.Fatalf("second duplicate failed: %v", err)
	}
	if dup2.DuplicateOf == nil || *dup2.DuplicateOf != original.DocumentID {
		t.Errorf("dup2 duplicateOf = %v, want flattened %s", dup2.DuplicateOf, original.DocumentID)
	}

	events := sink.all()
	last := events[len(events)-1]
	if last.Type != EventDuplicate || last.RelatedID != original.DocumentID {
		t.Errorf("duplicate event = %+v, want related %s", last, original.DocumentID)
	}
}

func TestApplyDispatch(t *testing.T) {
	mgr, _, sink := newTestManager(t)
	ctx := context.Background()

	rec, err := mgr.Apply(ctx, testFP("c1", "s1"), decision.Decision{Action: decision.ActionCreate})
	if err != nil || rec == nil {
		t.Fatalf("apply create: rec=%v err=%v", rec, err)
	}

	// Similar decisions mutate nothing.
	before := len(sink.all())
	rec, err = mgr.Apply(ctx, testFP("c2", "s1"), decision.Decision{Action: decision.ActionSimilar})
	if err != nil || rec != nil {
		t.Errorf("apply similar: rec=%v err=%v, want nil, nil", rec, err)
	}
	if got := len(sink.all()); got != before {
		t.Errorf("similar emitted events: %d -> %d", before, got)
	}

	if _, err := mgr.Apply(ctx, testFP("c3", "s1"), decision.Decision{Action: decision.ActionUpdate}); err == nil {
		t.Error("expected error for update decision without matched record")
	}
	if _, err := mgr.Apply(ctx, testFP("c3", "s1"), decision.Decision{Action: Action("bogus")}); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestDeleteCascade(t *testing.T) {
	mgr, st, sink := newTestManager(t)
	ctx := context.Background()

	v1, err := mgr.Create(ctx, testFP("c1", "s1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	v2, err := mgr.Update(ctx, testFP("c2", "s1"), v1)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	dup, err := mgr.Duplicate(ctx, testFP("c2", "s1"), v2)
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}

	affected, err := mgr.Delete(ctx, v1.DocumentID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	want := map[string]bool{v1.DocumentID: true, v2.DocumentID: true, dup.DocumentID: true}
	if len(affected) != len(want) {
		t.Fatalf("affected = %v, want %v", affected, want)
	}
	for _, id := range affected {
		if !want[id] {
			t.Errorf("unexpected affected id %s", id)
		}
		rec, err := st.GetByDocumentID(ctx, id)
		if err != nil || rec == nil {
			t.Fatalf("record %s not found: %v", id, err)
		}
		if rec.State != store.StateDeleted {
			t.Errorf("record %s state = %s, want Deleted", id, rec.State)
		}
	}
	if got := sink.count(EventDeleted); got != 3 {
		t.Errorf("deleted events = %d, want 3", got)
	}

	// Deleting again is a no-op with no second round of events.
	affected, err = mgr.Delete(ctx, v2.DocumentID)
	if err != nil {
		t.Fatalf("repeat delete failed: %v", err)
	}
	if len(affected) != 0 {
		t.Errorf("repeat delete affected %v, want none", affected)
	}
	if got := sink.count(EventDeleted); got != 3 {
		t.Errorf("deleted events after repeat = %d, want 3", got)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	mgr, _, sink := newTestManager(t)

	affected, err := mgr.Delete(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if affected != nil {
		t.Errorf("affected = %v, want nil", affected)
	}
	if len(sink.all()) != 0 {
		t.Errorf("events = %v, want none", sink.all())
	}
}

func TestUpdateUsesStoreConflictSemantics(t *testing.T) {
	mgr, st, _ := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.Create(ctx, testFP("c1", "s1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A concurrent writer deletes the lineage between classify and apply.
	if _, err := st.MarkDeleted(ctx, []string{first.DocumentID}); err != nil {
		t.Fatalf("mark deleted failed: %v", err)
	}

	_, err = mgr.Update(ctx, testFP("c2", "s1"), first)
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want ConflictError", err)
	}
}
