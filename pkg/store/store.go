// Package store provides the persistent identity repository and the vector
// index backends for fingerprint records.
package store

import (
	"context"
	"time"
)

// DocumentState is the lifecycle state of a fingerprint record.
type DocumentState string

// Lifecycle states. Deleted is terminal: no record ever transitions out of it.
const (
	StateActive     DocumentState = "Active"
	StateSuperseded DocumentState = "Superseded"
	StateDuplicate  DocumentState = "Duplicate"
	StateDeleted    DocumentState = "Deleted"
)

// Valid reports whether s is one of the known lifecycle states.
func (s DocumentState) Valid() bool {
	switch s {
	case StateActive, StateSuperseded, StateDuplicate, StateDeleted:
		return true
	}
	return false
}

// FingerprintRecord is the persisted form of a fingerprint. Records are never
// physically removed; deletion is a soft state transition kept for audit.
type FingerprintRecord struct {
	// DocumentID is the opaque unique identifier, assigned on creation.
	DocumentID string `json:"document_id"`

	// ContentHash is unique among records currently in state Active.
	ContentHash string `json:"content_hash"`

	// StructuralHash indexes records by line-layout profile.
	StructuralHash string `json:"structural_hash"`

	// StructuralProfile is the line-layout class sequence behind the hash.
	// Stored so classification can score layout drift against candidates.
	StructuralProfile string `json:"structural_profile,omitempty"`

	// SemanticHash is the quantized-embedding bucket key. May be empty.
	SemanticHash string `json:"semantic_hash,omitempty"`

	// Vector is the quantized similarity vector. Authoritative for semantic
	// re-validation; the ANN index is only an approximation of it.
	Vector []float32 `json:"vector,omitempty"`

	// KeyPhrases is the bounded, ordered auxiliary phrase signal.
	KeyPhrases []string `json:"key_phrases,omitempty"`

	// Source is the filename the content arrived under. Metadata only.
	Source string `json:"source,omitempty"`

	// Version starts at 1 and increases by exactly one along a replaces
	// chain.
	Version int `json:"version"`

	// State is the current lifecycle state.
	State DocumentState `json:"state"`

	// Replaces points at the record this one superseded, if any.
	Replaces *string `json:"replaces,omitempty"`

	// ReplacedBy points at the record that superseded this one, if any.
	ReplacedBy *string `json:"replaced_by,omitempty"`

	// DuplicateOf points at the retained original when State is Duplicate.
	// Always targets an Active or Superseded record, never another
	// Duplicate.
	DuplicateOf *string `json:"duplicate_of,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	StateChangedAt time.Time `json:"state_changed_at"`
}

// IdentityStore defines the persistence operations for fingerprint records.
// Lookups return (nil, nil) when the target is absent; an error always means
// the lookup itself failed. Every write keeps the content, structural, and
// document-id indices consistent or fails as a whole.
type IdentityStore interface {
	// Put persists a brand-new record. The record must carry a fresh
	// DocumentID and state Active with version 1; an Active record with the
	// same content hash already present fails with *ConflictError.
	Put(ctx context.Context, rec *FingerprintRecord) error

	// GetByDocumentID returns the record with the given id, or (nil, nil).
	GetByDocumentID(ctx context.Context, id string) (*FingerprintRecord, error)

	// GetByContentHash returns the Active record with the given content
	// hash, or (nil, nil). Superseded, Duplicate, and Deleted records are
	// not considered: content-hash uniqueness only binds Active records.
	GetByContentHash(ctx context.Context, hash string) (*FingerprintRecord, error)

	// GetByStructuralHash returns every record with the given structural
	// hash, most recently created first.
	GetByStructuralHash(ctx context.Context, hash string) ([]*FingerprintRecord, error)

	// ListLineage returns the replaces chain containing id, ordered oldest
	// to newest. An unknown id yields (nil, nil).
	ListLineage(ctx context.Context, id string) ([]*FingerprintRecord, error)

	// ApplyUpdate atomically inserts newRec as the successor of matchedID:
	// newRec becomes Active with version = matched.Version+1 and
	// replaces=matchedID, while the matched record transitions to Superseded
	// with replacedBy set. The matched record must still be in
	// (expectedState, expectedVersion) with no successor; any mismatch
	// fails the whole operation with *ConflictError and nothing is applied.
	ApplyUpdate(ctx context.Context, newRec *FingerprintRecord, matchedID string, expectedState DocumentState, expectedVersion int) error

	// PutDuplicate persists a new reference record in state Duplicate
	// pointing at duplicateOf. The target must be Active or Superseded; a
	// Duplicate target is flattened to its own retained original.
	PutDuplicate(ctx context.Context, rec *FingerprintRecord, duplicateOf string) error

	// MarkDuplicate transitions an existing record to Duplicate pointing at
	// duplicateOf, with the same optimistic-concurrency and flattening rules
	// as PutDuplicate.
	MarkDuplicate(ctx context.Context, id string, duplicateOf string, expectedState DocumentState, expectedVersion int) error

	// MarkDeleted transitions every given record that is not already
	// Deleted to Deleted in one atomic write, and returns the ids that
	// actually transitioned.
	MarkDeleted(ctx context.Context, ids []string) ([]string, error)

	// FindDuplicatesOf returns every record whose duplicateOf points at one
	// of the given ids.
	FindDuplicatesOf(ctx context.Context, ids []string) ([]*FingerprintRecord, error)

	// ListActive pages through Active records ordered by document id,
	// returning up to limit records with ids greater than afterID. Pass an
	// empty afterID to start from the beginning.
	ListActive(ctx context.Context, afterID string, limit int) ([]*FingerprintRecord, error)

	// CountByState returns the number of records per lifecycle state.
	CountByState(ctx context.Context) (map[DocumentState]int64, error)

	// Close releases the underlying storage handle.
	Close() error
}
