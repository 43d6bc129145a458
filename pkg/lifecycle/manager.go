// Package lifecycle applies classification decisions to the identity
// repository and manages document state transitions: create, supersede,
// duplicate, and cascading delete. Every committed transition emits exactly
// one event per affected document.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/dan-solli/docid/pkg/decision"
	"github.com/dan-solli/docid/pkg/fingerprint"
	"github.com/dan-solli/docid/pkg/logger"
	"github.com/dan-solli/docid/pkg/store"
)

// Manager executes lifecycle transitions against the identity repository.
type Manager struct {
	repo store.IdentityStore
	sink EventSink
	log  *logger.Logger
}

// NewManager creates a lifecycle manager. A nil sink discards events and a
// nil logger is silent.
func NewManager(repo store.IdentityStore, sink EventSink, log *logger.Logger) *Manager {
	if sink == nil {
		sink = NopSink{}
	}
	return &Manager{repo: repo, sink: sink, log: logger.OrNop(log)}
}

// newRecord builds an unsaved record from a fingerprint. The store assigns
// the document ID, version, and timestamps on write.
func newRecord(fp *fingerprint.Fingerprint) *store.FingerprintRecord {
	return &store.FingerprintRecord{
		ContentHash:       fp.ContentHash,
		StructuralHash:    fp.StructuralHash,
		StructuralProfile: fp.StructuralProfile,
		SemanticHash:      fp.SemanticHash,
		Vector:            fp.SimilarityVector,
		KeyPhrases:        fp.KeyPhrases,
		Source:            fp.Source,
	}
}

// Apply executes a classification decision and returns the written record.
// Similar decisions mutate nothing and return (nil, nil); confirmation
// arrives as an explicit follow-up create or update request.
func (m *Manager) Apply(ctx context.Context, fp *fingerprint.Fingerprint, d decision.Decision) (*store.FingerprintRecord, error) {
	switch d.Action {
	case decision.ActionCreate:
		return m.Create(ctx, fp)
	case decision.ActionUpdate:
		if d.Matched == nil {
			return nil, fmt.Errorf("update decision carries no matched record")
		}
		return m.Update(ctx, fp, d.Matched)
	case decision.ActionDuplicate:
		if d.Matched == nil {
			return nil, fmt.Errorf("duplicate decision carries no matched record")
		}
		return m.Duplicate(ctx, fp, d.Matched)
	case decision.ActionSimilar:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown action %q", d.Action)
}

// Create registers fp as a new document identity at version 1.
func (m *Manager) Create(ctx context.Context, fp *fingerprint.Fingerprint) (*store.FingerprintRecord, error) {
	rec := newRecord(fp)
	if err := m.repo.Put(ctx, rec); err != nil {
		return nil, err
	}

	m.log.Debug("document created", "document_id", rec.DocumentID)
	m.sink.Emit(Event{Type: EventCreated, DocumentID: rec.DocumentID})
	return rec, nil
}

// Update supersedes matched with a new version carrying fp. Both writes
// commit in one transaction; a concurrent change to matched surfaces as a
// ConflictError and nothing is applied.
func (m *Manager) Update(ctx context.Context, fp *fingerprint.Fingerprint, matched *store.FingerprintRecord) (*store.FingerprintRecord, error) {
	rec := newRecord(fp)
	if err := m.repo.ApplyUpdate(ctx, rec, matched.DocumentID, matched.State, matched.Version); err != nil {
		return nil, err
	}

	m.log.Debug("document superseded",
		"document_id", matched.DocumentID,
		"successor_id", rec.DocumentID,
		"version", rec.Version)
	m.sink.Emit(Event{Type: EventSuperseded, DocumentID: matched.DocumentID, RelatedID: rec.DocumentID})
	m.sink.Emit(Event{Type: EventCreated, DocumentID: rec.DocumentID, RelatedID: matched.DocumentID})
	return rec, nil
}

// Duplicate registers fp as a reference record pointing at matched, which
// stays untouched. The stored pointer is flattened, so the event's RelatedID
// may name an earlier original than matched.
func (m *Manager) Duplicate(ctx context.Context, fp *fingerprint.Fingerprint, matched *store.FingerprintRecord) (*store.FingerprintRecord, error) {
	rec := newRecord(fp)
	if err := m.repo.PutDuplicate(ctx, rec, matched.DocumentID); err != nil {
		return nil, err
	}

	related := matched.DocumentID
	if rec.DuplicateOf != nil {
		related = *rec.DuplicateOf
	}
	m.log.Debug("duplicate recorded", "document_id", rec.DocumentID, "duplicate_of", related)
	m.sink.Emit(Event{Type: EventDuplicate, DocumentID: rec.DocumentID, RelatedID: related})
	return rec, nil
}

// Delete soft-deletes the full lineage of id plus every duplicate pointing
// into it, and returns the affected document IDs. Unknown ids delete
// nothing. Repeating a delete is a no-op, so no second round of events.
func (m *Manager) Delete(ctx context.Context, id string) ([]string, error) {
	lineage, err := m.repo.ListLineage(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(lineage) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(lineage))
	for _, rec := range lineage {
		ids = append(ids, rec.DocumentID)
	}
	dups, err := m.repo.FindDuplicatesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range dups {
		ids = append(ids, rec.DocumentID)
	}

	affected, err := m.repo.MarkDeleted(ctx, ids)
	if err != nil {
		return nil, err
	}

	m.log.Info("lineage deleted", "document_id", id, "affected", len(affected))
	for _, did := range affected {
		m.sink.Emit(Event{Type: EventDeleted, DocumentID: did})
	}
	return affected, nil
}
