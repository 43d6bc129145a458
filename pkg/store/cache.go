package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize is the record cap used when NewCachedStore gets a
// non-positive size.
const DefaultCacheSize = 1024

// CachedStore wraps an IdentityStore with a bounded in-memory cache of
// records keyed by document ID. Only GetByDocumentID is served from cache;
// every other read passes through so hash lookups and lineage walks always
// see the store. Writes pass through and invalidate the affected entries.
// Eviction is least-recently-used via a linear scan, which stays cheap at
// the intended cache sizes.
type CachedStore struct {
	inner      IdentityStore
	maxEntries int

	mu      sync.Mutex
	entries map[string]*cacheEntry
	seq     int64 // logical clock for recency, guarded by mu

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	rec      *FingerprintRecord
	lastUsed int64
}

// Compile-time interface check
var _ IdentityStore = (*CachedStore)(nil)

// NewCachedStore wraps inner with a cache holding at most maxEntries records.
func NewCachedStore(inner IdentityStore, maxEntries int) *CachedStore {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &CachedStore{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
	}
}

// Hits returns the number of cache hits served so far.
func (c *CachedStore) Hits() int64 { return c.hits.Load() }

// Misses returns the number of lookups that fell through to the store.
func (c *CachedStore) Misses() int64 { return c.misses.Load() }

// copyRecord returns a shallow copy so callers can never mutate the cached
// struct. The slice fields stay shared and are treated as read-only.
func copyRecord(rec *FingerprintRecord) *FingerprintRecord {
	cp := *rec
	return &cp
}

func (c *CachedStore) lookup(id string) *FingerprintRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}
	c.seq++
	entry.lastUsed = c.seq
	return copyRecord(entry.rec)
}

func (c *CachedStore) insert(rec *FingerprintRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictLRULocked()
	}

	c.seq++
	c.entries[rec.DocumentID] = &cacheEntry{
		rec:      copyRecord(rec),
		lastUsed: c.seq,
	}
}

func (c *CachedStore) invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.entries, id)
	}
}

// evictLRULocked removes the least recently used entry.
// Caller must hold c.mu.
func (c *CachedStore) evictLRULocked() {
	var lruID string
	var lruTime int64

	for id, entry := range c.entries {
		if lruID == "" || entry.lastUsed < lruTime {
			lruID = id
			lruTime = entry.lastUsed
		}
	}

	if lruID != "" {
		delete(c.entries, lruID)
	}
}

// GetByDocumentID serves from cache when possible, filling on miss.
func (c *CachedStore) GetByDocumentID(ctx context.Context, id string) (*FingerprintRecord, error) {
	if rec := c.lookup(id); rec != nil {
		c.hits.Add(1)
		return rec, nil
	}
	c.misses.Add(1)

	rec, err := c.inner.GetByDocumentID(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	c.insert(rec)
	return rec, nil
}

// Put passes through and drops any stale entry for the record's ID.
func (c *CachedStore) Put(ctx context.Context, rec *FingerprintRecord) error {
	if err := c.inner.Put(ctx, rec); err != nil {
		return err
	}
	c.invalidate(rec.DocumentID)
	return nil
}

// GetByContentHash always reads the store: uniqueness checks must never see
// a stale record.
func (c *CachedStore) GetByContentHash(ctx context.Context, hash string) (*FingerprintRecord, error) {
	return c.inner.GetByContentHash(ctx, hash)
}

// GetByStructuralHash always reads the store.
func (c *CachedStore) GetByStructuralHash(ctx context.Context, hash string) ([]*FingerprintRecord, error) {
	return c.inner.GetByStructuralHash(ctx, hash)
}

// ListLineage always reads the store so chain links are current.
func (c *CachedStore) ListLineage(ctx context.Context, id string) ([]*FingerprintRecord, error) {
	return c.inner.ListLineage(ctx, id)
}

// ApplyUpdate passes through and invalidates both ends of the transition.
func (c *CachedStore) ApplyUpdate(ctx context.Context, newRec *FingerprintRecord, matchedID string, expectedState DocumentState, expectedVersion int) error {
	if err := c.inner.ApplyUpdate(ctx, newRec, matchedID, expectedState, expectedVersion); err != nil {
		return err
	}
	c.invalidate(matchedID, newRec.DocumentID)
	return nil
}

// PutDuplicate passes through and invalidates the new record's ID.
func (c *CachedStore) PutDuplicate(ctx context.Context, rec *FingerprintRecord, duplicateOf string) error {
	if err := c.inner.PutDuplicate(ctx, rec, duplicateOf); err != nil {
		return err
	}
	c.invalidate(rec.DocumentID)
	return nil
}

// MarkDuplicate passes through and invalidates the transitioned record.
func (c *CachedStore) MarkDuplicate(ctx context.Context, id string, duplicateOf string, expectedState DocumentState, expectedVersion int) error {
	if err := c.inner.MarkDuplicate(ctx, id, duplicateOf, expectedState, expectedVersion); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

// MarkDeleted passes through and invalidates every record that transitioned.
func (c *CachedStore) MarkDeleted(ctx context.Context, ids []string) ([]string, error) {
	affected, err := c.inner.MarkDeleted(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.invalidate(affected...)
	return affected, nil
}

// FindDuplicatesOf always reads the store.
func (c *CachedStore) FindDuplicatesOf(ctx context.Context, ids []string) ([]*FingerprintRecord, error) {
	return c.inner.FindDuplicatesOf(ctx, ids)
}

// ListActive always reads the store.
func (c *CachedStore) ListActive(ctx context.Context, afterID string, limit int) ([]*FingerprintRecord, error) {
	return c.inner.ListActive(ctx, afterID, limit)
}

// CountByState always reads the store.
func (c *CachedStore) CountByState(ctx context.Context) (map[DocumentState]int64, error) {
	return c.inner.CountByState(ctx)
}

// Close closes the underlying store.
func (c *CachedStore) Close() error {
	return c.inner.Close()
}
