package lifecycle

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dan-solli/docid/pkg/similarity"
	"github.com/dan-solli/docid/pkg/store"
)

// BulkOptions configure one bulk deduplication pass.
type BulkOptions struct {
	// JobID keys the checkpoint row. Reusing an ID resumes an interrupted
	// job; empty disables checkpointing.
	JobID string

	// BatchSize is how many Active records are fetched per page.
	// Default: 100
	BatchSize int

	// Concurrency bounds parallel duplicate writes within a page.
	// Default: 4
	Concurrency int

	// DuplicateThreshold is the semantic score at or above which two Active
	// documents belong to one cluster. Default: 0.90
	DuplicateThreshold float64

	// MaxNeighbors bounds the semantic candidates examined per record.
	// Default: 10
	MaxNeighbors int

	// Checkpoints persists progress between pages. Nil disables resume.
	Checkpoints store.CheckpointStore

	// Searcher supplies semantic clusters. Nil restricts grouping to
	// structural-hash buckets.
	Searcher *similarity.Searcher
}

func (o *BulkOptions) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.DuplicateThreshold <= 0 {
		o.DuplicateThreshold = 0.90
	}
	if o.MaxNeighbors <= 0 {
		o.MaxNeighbors = 10
	}
}

// BulkResult summarizes a bulk deduplication pass.
type BulkResult struct {
	// Scanned counts Active records examined, including ones carried over
	// from a resumed checkpoint.
	Scanned int64
	// Marked counts records transitioned to Duplicate.
	Marked int64
	// Skipped counts records a concurrent writer changed first; the next
	// run settles them.
	Skipped int64
	// Resumed is true when the pass started from a checkpoint.
	Resumed bool
	// Completed is false when the pass stopped early on cancellation or
	// error; the checkpoint allows resuming.
	Completed bool
	// LastDocumentID is the keyset cursor the pass ended at.
	LastDocumentID string
}

// BulkDedup collapses groups of Active records that share a structural hash
// or sit in one semantic cluster, keeping the most recently created record
// of each group Active and marking the rest Duplicate. The pass walks
// records in ID order, checkpoints after each page, and is idempotent: a
// record is only ever demoted by its own visit, so rerunning or resuming
// converges on one Active record per group.
func (m *Manager) BulkDedup(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	opts.applyDefaults()

	result := &BulkResult{}
	afterID := ""
	if opts.Checkpoints != nil && opts.JobID != "" {
		cp, err := opts.Checkpoints.GetCheckpoint(ctx, opts.JobID)
		if err != nil {
			return result, err
		}
		if cp != nil {
			afterID = cp.LastDocumentID
			result.Scanned = cp.ProcessedCount
			result.Resumed = true
			m.log.Info("resuming bulk dedup",
				"job_id", opts.JobID,
				"after_id", afterID,
				"processed", cp.ProcessedCount)
		}
	}
	result.LastDocumentID = afterID

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := m.repo.ListActive(ctx, afterID, opts.BatchSize)
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			break
		}

		var marked, skipped atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, rec := range page {
			g.Go(func() error {
				return m.dedupOne(gctx, rec, opts, &marked, &skipped)
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}

		result.Scanned += int64(len(page))
		result.Marked += marked.Load()
		result.Skipped += skipped.Load()
		afterID = page[len(page)-1].DocumentID
		result.LastDocumentID = afterID

		if opts.Checkpoints != nil && opts.JobID != "" {
			if err := opts.Checkpoints.SaveCheckpoint(ctx, opts.JobID, afterID, result.Scanned); err != nil {
				return result, err
			}
		}
		m.log.Debug("bulk dedup page done",
			"scanned", result.Scanned,
			"marked", result.Marked,
			"cursor", afterID)
	}

	if opts.Checkpoints != nil && opts.JobID != "" {
		if err := opts.Checkpoints.ClearCheckpoint(ctx, opts.JobID); err != nil {
			return result, err
		}
	}
	result.Completed = true
	m.log.Info("bulk dedup complete",
		"scanned", result.Scanned,
		"marked", result.Marked,
		"skipped", result.Skipped)
	return result, nil
}

// dedupOne demotes rec to Duplicate when a newer group-mate exists. Each
// worker writes only its own record, so workers never contend on a row.
func (m *Manager) dedupOne(ctx context.Context, rec *store.FingerprintRecord, opts BulkOptions, marked, skipped *atomic.Int64) error {
	retained, err := m.dedupTarget(ctx, rec, opts)
	if err != nil {
		return err
	}
	if retained == nil {
		return nil // rec is the keeper of its group
	}

	err = m.repo.MarkDuplicate(ctx, rec.DocumentID, retained.DocumentID, rec.State, rec.Version)
	if err != nil {
		if store.IsConflict(err) {
			skipped.Add(1)
			m.log.Debug("bulk dedup skipped record", "document_id", rec.DocumentID, "reason", err.Error())
			return nil
		}
		return err
	}

	marked.Add(1)
	m.sink.Emit(Event{Type: EventDuplicate, DocumentID: rec.DocumentID, RelatedID: retained.DocumentID})
	return nil
}

// dedupTarget returns the record rec should collapse into: the most recently
// created Active record among rec's structural-hash bucket and its semantic
// cluster. Nil means rec itself is the newest of its group.
func (m *Manager) dedupTarget(ctx context.Context, rec *store.FingerprintRecord, opts BulkOptions) (*store.FingerprintRecord, error) {
	newest := rec

	bucket, err := m.repo.GetByStructuralHash(ctx, rec.StructuralHash)
	if err != nil {
		return nil, err
	}
	for _, cand := range bucket {
		if cand.State == store.StateActive && newerRecord(cand, newest) {
			newest = cand
		}
	}

	if opts.Searcher != nil && len(rec.Vector) > 0 {
		matches, err := opts.Searcher.Search(ctx, rec.Vector, opts.MaxNeighbors)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			cand := match.Record
			if cand.DocumentID == rec.DocumentID || match.Score < opts.DuplicateThreshold {
				continue
			}
			if cand.State == store.StateActive && newerRecord(cand, newest) {
				newest = cand
			}
		}
	}

	if newest.DocumentID == rec.DocumentID {
		return nil, nil
	}
	return newest, nil
}

// newerRecord reports whether a was created after b, breaking exact ties by
// document ID so every worker agrees on the keeper.
func newerRecord(a, b *store.FingerprintRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.DocumentID < b.DocumentID
}
