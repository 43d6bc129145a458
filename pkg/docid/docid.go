// Package docid provides document identity and deduplication: multi-layer
// fingerprinting, a persistent identity repository, approximate similarity
// search, and a decision cascade that classifies every submission as a
// create, update, duplicate, or similar.
package docid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/docid/pkg/decision"
	"github.com/dan-solli/docid/pkg/fingerprint"
	"github.com/dan-solli/docid/pkg/lifecycle"
	"github.com/dan-solli/docid/pkg/logger"
	"github.com/dan-solli/docid/pkg/metrics"
	"github.com/dan-solli/docid/pkg/similarity"
	"github.com/dan-solli/docid/pkg/store"
	"github.com/dan-solli/docid/pkg/trace"
)

// Engine is the main entry point for the identity system.
type Engine struct {
	cfg        Config
	log        *logger.Logger
	gen        fingerprint.Generator
	sqlite     *store.SQLiteIdentityStore
	repo       store.IdentityStore
	index      store.VectorIndex
	searcher   *similarity.Searcher
	classifier *decision.Engine
	manager    *lifecycle.Manager
	collector  metrics.Collector
	exporter   trace.Exporter
}

type engineOptions struct {
	log       *logger.Logger
	sink      lifecycle.EventSink
	collector metrics.Collector
	index     store.VectorIndex
	exporter  trace.Exporter
}

// Option customizes engine construction beyond what Config carries.
type Option func(*engineOptions)

// WithLogger installs a logger. Nil keeps the one built from Config.LogMode.
func WithLogger(log *logger.Logger) Option {
	return func(o *engineOptions) { o.log = log }
}

// WithEventSink installs a sink that receives one event per committed state
// transition.
func WithEventSink(sink lifecycle.EventSink) Option {
	return func(o *engineOptions) { o.sink = sink }
}

// WithCollector installs a metrics collector in place of the built-in one.
func WithCollector(c metrics.Collector) Option {
	return func(o *engineOptions) { o.collector = c }
}

// WithVectorIndex installs a vector index in place of the configured
// backend.
func WithVectorIndex(index store.VectorIndex) Option {
	return func(o *engineOptions) { o.index = index }
}

// WithTraceExporter installs a trace exporter in place of the configured
// file exporter.
func WithTraceExporter(exp trace.Exporter) Option {
	return func(o *engineOptions) { o.exporter = exp }
}

// New creates an engine from cfg. Zero-valued fields fall back to defaults,
// so New(Config{DBPath: ":memory:"}) yields a working engine with an
// in-memory similarity index.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		var err error
		log, err = logger.New(cfg.LogMode)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	sqlite, err := store.NewSQLiteIdentityStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var repo store.IdentityStore = sqlite
	if cfg.CacheSize > 0 {
		repo = store.NewCachedStore(sqlite, cfg.CacheSize)
	}

	index := o.index
	if index == nil {
		switch cfg.IndexBackend {
		case "qdrant":
			index, err = store.NewQdrantVectorIndex(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.QuantDims)
			if err != nil {
				sqlite.Close()
				return nil, err
			}
		default:
			index = store.NewMemoryVectorIndex(cfg.QuantDims)
		}
	}

	exporter := o.exporter
	if exporter == nil {
		exporter, err = trace.NewFileExporter(cfg.TraceFile)
		if err != nil {
			if closer, ok := index.(io.Closer); ok {
				closer.Close()
			}
			sqlite.Close()
			return nil, fmt.Errorf("open trace exporter: %w", err)
		}
	}

	collector := o.collector
	if collector == nil {
		collector = metrics.NewCollector()
	}

	e := &Engine{
		cfg: cfg,
		log: log,
		gen: fingerprint.Generator{
			EmbeddingDim:   cfg.EmbeddingDim,
			QuantPrecision: cfg.QuantPrecision,
			QuantDims:      cfg.QuantDims,
			MaxKeyPhrases:  cfg.KeyPhraseLimit,
		},
		sqlite:     sqlite,
		repo:       repo,
		index:      index,
		classifier: decision.NewEngine(cfg.Thresholds),
		collector:  collector,
		exporter:   exporter,
	}
	e.searcher = similarity.NewSearcher(index, repo, log)
	e.manager = lifecycle.NewManager(repo, o.sink, log)

	log.Info("engine ready",
		"db_path", cfg.DBPath,
		"index_backend", cfg.IndexBackend,
		"cache_size", cfg.CacheSize)
	return e, nil
}

// Result is the outcome of a submission: the classification, the record
// written for it (nil for similar decisions), and the operation trace.
type Result struct {
	Decision decision.Decision        `json:"decision"`
	Record   *store.FingerprintRecord `json:"record,omitempty"`
	Trace    *OperationTrace          `json:"trace,omitempty"`
}

// SubmitForIdentity fingerprints content, classifies it against the known
// corpus, and applies the decided lifecycle transition. An exact-content
// match reports duplicate without writing; a structural match supersedes
// the matched document; a high semantic match records a duplicate
// reference; a similar decision mutates nothing and awaits Confirm. The
// embedding is optional: with nil, classification falls back to content and
// structure alone.
func (e *Engine) SubmitForIdentity(ctx context.Context, content string, embedding []float32, filename string) (*Result, error) {
	started := time.Now()
	opID := uuid.NewString()
	tr := newTrace()
	ids := map[string]interface{}{}

	st := newSpanTimer("fingerprint", tr, true)
	fp, err := e.gen.Generate(content, embedding, filename)
	st.finish(err == nil, err, nil)
	if err != nil {
		e.finishOperation(ctx, "submit", opID, started, tr, ids, err)
		return nil, err
	}

	st = newSpanTimer("classify", tr, true)
	cands, err := e.gatherCandidates(ctx, fp)
	if err != nil {
		st.finish(false, err, nil)
		e.finishOperation(ctx, "submit", opID, started, tr, ids, err)
		return nil, err
	}
	d := e.classifier.Classify(fp, cands)
	st.finish(true, nil, map[string]int64{
		"structuralCandidates": int64(len(cands.Structural)),
		"semanticCandidates":   int64(len(cands.Semantic)),
	})
	if d.MatchedDocumentID != "" {
		ids["matchedId"] = d.MatchedDocumentID
	}

	result := &Result{Decision: d, Trace: tr}
	if d.Action == decision.ActionSimilar {
		e.log.Info("submission similar to existing document",
			"matched_id", d.MatchedDocumentID,
			"confidence", d.Confidence)
		e.finishOperation(ctx, "submit", opID, started, tr, ids, nil)
		return result, nil
	}

	st = newSpanTimer("persist", tr, true)
	var rec *store.FingerprintRecord
	err = e.withRetry(ctx, "persist decision", func() error {
		var applyErr error
		rec, applyErr = e.manager.Apply(ctx, fp, d)
		return applyErr
	})
	st.finish(err == nil, err, nil)
	if err != nil {
		e.finishOperation(ctx, "submit", opID, started, tr, ids, err)
		return nil, err
	}
	result.Record = rec
	if rec != nil {
		ids["documentId"] = rec.DocumentID
	}

	e.indexRecord(ctx, "submit", tr, rec)

	e.log.Info("submission classified",
		"action", string(d.Action),
		"confidence", d.Confidence,
		"matched_id", d.MatchedDocumentID)
	e.finishOperation(ctx, "submit", opID, started, tr, ids, nil)
	return result, nil
}

// Confirm resolves a similar decision after external review: the caller
// requests either an update of the matched document or an independent
// create. The content is fingerprinted again so the transition applies to
// exactly what the caller holds now. An update whose target is no longer
// Active fails with a ConflictError; the caller should resubmit.
func (e *Engine) Confirm(ctx context.Context, content string, embedding []float32, filename string, action decision.Action, matchedID string) (*Result, error) {
	started := time.Now()
	opID := uuid.NewString()
	tr := newTrace()
	ids := map[string]interface{}{}

	if action != decision.ActionUpdate && action != decision.ActionCreate {
		err := &fingerprint.ValidationError{
			Field:  "action",
			Reason: fmt.Sprintf("confirmation action must be update or create (got %q)", action),
		}
		e.finishOperation(ctx, "confirm", opID, started, tr, ids, err)
		return nil, err
	}
	if action == decision.ActionUpdate && matchedID == "" {
		err := &fingerprint.ValidationError{
			Field:  "matchedId",
			Reason: "confirmation update requires the matched document id",
		}
		e.finishOperation(ctx, "confirm", opID, started, tr, ids, err)
		return nil, err
	}

	st := newSpanTimer("fingerprint", tr, true)
	fp, err := e.gen.Generate(content, embedding, filename)
	st.finish(err == nil, err, nil)
	if err != nil {
		e.finishOperation(ctx, "confirm", opID, started, tr, ids, err)
		return nil, err
	}

	d := decision.Decision{
		Action:     action,
		Confidence: 1.0,
		Reasons:    []string{"confirmed by caller"},
	}

	if action == decision.ActionUpdate {
		st = newSpanTimer("classify", tr, true)
		var matched *store.FingerprintRecord
		err = e.withRetry(ctx, "confirmation target lookup", func() error {
			var lookupErr error
			matched, lookupErr = e.repo.GetByDocumentID(ctx, matchedID)
			return lookupErr
		})
		if err == nil && matched == nil {
			err = &store.ConflictError{DocumentID: matchedID, Reason: "confirmation target does not exist"}
		}
		if err == nil && matched.State != store.StateActive {
			err = &store.ConflictError{
				DocumentID:      matchedID,
				Reason:          "confirmation target is no longer Active",
				ExpectedState:   store.StateActive,
				ActualState:     matched.State,
				ExpectedVersion: matched.Version,
				ActualVersion:   matched.Version,
			}
		}
		st.finish(err == nil, err, nil)
		if err != nil {
			e.finishOperation(ctx, "confirm", opID, started, tr, ids, err)
			return nil, err
		}
		d.MatchedDocumentID = matched.DocumentID
		d.Matched = matched
		ids["matchedId"] = matched.DocumentID
	}

	st = newSpanTimer("persist", tr, true)
	var rec *store.FingerprintRecord
	err = e.withRetry(ctx, "persist confirmation", func() error {
		var applyErr error
		rec, applyErr = e.manager.Apply(ctx, fp, d)
		return applyErr
	})
	st.finish(err == nil, err, nil)
	if err != nil {
		e.finishOperation(ctx, "confirm", opID, started, tr, ids, err)
		return nil, err
	}
	ids["documentId"] = rec.DocumentID

	e.indexRecord(ctx, "confirm", tr, rec)

	e.log.Info("confirmation applied",
		"action", string(action),
		"document_id", rec.DocumentID,
		"matched_id", d.MatchedDocumentID)
	e.finishOperation(ctx, "confirm", opID, started, tr, ids, nil)
	return &Result{Decision: d, Record: rec, Trace: tr}, nil
}

// Delete soft-deletes the document's full lineage plus every duplicate
// reference pointing into it, and prunes the affected vectors from the
// similarity index. Returns the affected document ids; an unknown or
// already deleted document affects nothing.
func (e *Engine) Delete(ctx context.Context, id string) ([]string, error) {
	started := time.Now()
	opID := uuid.NewString()
	tr := newTrace()
	ids := map[string]interface{}{"documentId": id}

	st := newSpanTimer("persist", tr, true)
	var affected []string
	err := e.withRetry(ctx, "delete lineage", func() error {
		var delErr error
		affected, delErr = e.manager.Delete(ctx, id)
		return delErr
	})
	st.finish(err == nil, err, map[string]int64{"affected": int64(len(affected))})
	if err != nil {
		e.finishOperation(ctx, "delete", opID, started, tr, ids, err)
		return nil, err
	}

	// Eager removal keeps searches from wading through tombstones; the
	// searcher also drops any entry this pass misses.
	st = newSpanTimer("index", tr, true)
	for _, did := range affected {
		if delErr := e.index.Delete(ctx, did); delErr != nil {
			e.log.Warn("failed to drop deleted vector from index",
				"document_id", did,
				"error", delErr.Error())
		}
	}
	st.finish(true, nil, nil)

	ids["affectedCount"] = len(affected)
	e.finishOperation(ctx, "delete", opID, started, tr, ids, nil)
	return affected, nil
}

// Lineage returns the replaces chain containing id, ordered oldest to
// newest. An unknown id yields an empty chain.
func (e *Engine) Lineage(ctx context.Context, id string) ([]*store.FingerprintRecord, error) {
	started := time.Now()
	opID := uuid.NewString()
	tr := newTrace()
	ids := map[string]interface{}{"documentId": id}

	var chain []*store.FingerprintRecord
	err := e.withRetry(ctx, "lineage lookup", func() error {
		var lookupErr error
		chain, lookupErr = e.repo.ListLineage(ctx, id)
		return lookupErr
	})
	if err != nil {
		e.finishOperation(ctx, "lineage", opID, started, tr, ids, err)
		return nil, err
	}

	ids["chainLength"] = len(chain)
	e.finishOperation(ctx, "lineage", opID, started, tr, ids, nil)
	return chain, nil
}

// BulkDedup runs a deduplication pass over every Active record, keeping the
// newest of each structural or semantic group and marking the rest
// Duplicate. Progress checkpoints under jobID after every batch, so a
// cancelled pass resumes where it stopped; an empty jobID runs without
// checkpointing. On cancellation the partial result is returned alongside
// the context error.
func (e *Engine) BulkDedup(ctx context.Context, jobID string) (*lifecycle.BulkResult, error) {
	started := time.Now()
	opID := uuid.NewString()
	tr := newTrace()
	ids := map[string]interface{}{}
	if jobID != "" {
		ids["jobId"] = jobID
	}

	res, err := e.manager.BulkDedup(ctx, lifecycle.BulkOptions{
		JobID:              jobID,
		BatchSize:          e.cfg.BulkBatchSize,
		Concurrency:        e.cfg.BulkConcurrency,
		DuplicateThreshold: e.cfg.Thresholds.Duplicate,
		MaxNeighbors:       e.cfg.Thresholds.MaxNeighbors,
		Checkpoints:        e.sqlite,
		Searcher:           e.searcher,
	})
	if res != nil {
		ids["scanned"] = res.Scanned
		ids["marked"] = res.Marked
		ids["skipped"] = res.Skipped
	}
	e.finishOperation(ctx, "bulk_dedup", opID, started, tr, ids, err)
	return res, err
}

// Stats reports record counts per lifecycle state plus similarity index and
// cache occupancy, and pushes the counts to the metrics collector.
type Stats struct {
	// States maps each lifecycle state to its record count.
	States map[store.DocumentState]int64 `json:"states"`

	// IndexSize is the number of vectors the similarity index holds, or -1
	// when the backend cannot report it.
	IndexSize int64 `json:"indexSize"`

	// CacheHits and CacheMisses cover the read-through record cache. Both
	// stay zero when caching is disabled.
	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`
}

// indexSizer is implemented by index backends that can report how many
// vectors they hold.
type indexSizer interface {
	Size(ctx context.Context) (int64, error)
}

// Stats returns current storage statistics.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	started := time.Now()
	opID := uuid.NewString()
	tr := newTrace()

	var counts map[store.DocumentState]int64
	err := e.withRetry(ctx, "count by state", func() error {
		var countErr error
		counts, countErr = e.repo.CountByState(ctx)
		return countErr
	})
	if err != nil {
		e.finishOperation(ctx, "stats", opID, started, tr, nil, err)
		return nil, err
	}

	stats := &Stats{States: counts, IndexSize: -1}
	if sizer, ok := e.index.(indexSizer); ok {
		size, sizeErr := sizer.Size(ctx)
		if sizeErr != nil {
			e.log.Warn("similarity index size unavailable", "error", sizeErr.Error())
		} else {
			stats.IndexSize = size
		}
	}
	if cached, ok := e.repo.(*store.CachedStore); ok {
		stats.CacheHits = cached.Hits()
		stats.CacheMisses = cached.Misses()
	}

	for state, count := range counts {
		e.collector.SetStorageCount(ctx, strings.ToLower(string(state)), count)
	}
	if stats.IndexSize >= 0 {
		e.collector.SetStorageCount(ctx, "index", stats.IndexSize)
	}

	e.finishOperation(ctx, "stats", opID, started, tr, nil, nil)
	return stats, nil
}

// Close flushes the trace exporter and releases the index and repository
// handles.
func (e *Engine) Close() error {
	var errs []error
	if err := e.exporter.Close(); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := e.index.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	e.log.Sync()
	return errors.Join(errs...)
}

// gatherCandidates collects the exact, structural, and semantic match pools
// for one fingerprint. A dimension mismatch from the index is an index
// inconsistency: it is logged and semantic candidates are dropped for this
// request, leaving classification to content and structure.
func (e *Engine) gatherCandidates(ctx context.Context, fp *fingerprint.Fingerprint) (decision.Candidates, error) {
	var cands decision.Candidates

	err := e.withRetry(ctx, "content lookup", func() error {
		var lookupErr error
		cands.Exact, lookupErr = e.repo.GetByContentHash(ctx, fp.ContentHash)
		return lookupErr
	})
	if err != nil {
		return cands, err
	}

	err = e.withRetry(ctx, "structural lookup", func() error {
		var lookupErr error
		cands.Structural, lookupErr = e.repo.GetByStructuralHash(ctx, fp.StructuralHash)
		return lookupErr
	})
	if err != nil {
		return cands, err
	}

	if len(fp.SimilarityVector) == 0 {
		return cands, nil
	}
	err = e.withRetry(ctx, "semantic lookup", func() error {
		var searchErr error
		cands.Semantic, searchErr = e.searcher.Search(ctx, fp.SimilarityVector, e.cfg.Thresholds.MaxNeighbors)
		return searchErr
	})
	if err != nil {
		if errors.Is(err, store.ErrVectorDimension) {
			e.log.Warn("similarity index dimension mismatch, using repository candidates only",
				"error", err.Error())
			cands.Semantic = nil
			return cands, nil
		}
		return cands, err
	}
	return cands, nil
}

// indexRecord adds rec's vector to the similarity index and drops the
// vector of a record it superseded. Index maintenance is best-effort: the
// repository stays authoritative, so a failure here is logged and counted
// but the operation still succeeds.
func (e *Engine) indexRecord(ctx context.Context, op string, tr *OperationTrace, rec *store.FingerprintRecord) {
	if rec == nil {
		return
	}
	st := newSpanTimer("index", tr, true)

	var err error
	if rec.State == store.StateActive && len(rec.Vector) > 0 {
		err = e.withRetry(ctx, "index add", func() error {
			return e.index.Add(ctx, rec.DocumentID, rec.Vector)
		})
	}
	if err == nil && rec.Replaces != nil {
		if delErr := e.index.Delete(ctx, *rec.Replaces); delErr != nil {
			e.log.Warn("failed to drop superseded vector from index",
				"document_id", *rec.Replaces,
				"error", delErr.Error())
		}
	}
	st.finish(err == nil, err, nil)
	if err != nil {
		e.log.Warn("similarity index update failed, repository remains authoritative",
			"document_id", rec.DocumentID,
			"error", err.Error())
		e.collector.RecordError(ctx, op, ClassifyError(err))
	}
}

// finishOperation records operation metrics and exports the trace record.
// Stage metrics come straight from the trace spans so the two surfaces
// always agree.
func (e *Engine) finishOperation(ctx context.Context, op, opID string, started time.Time, tr *OperationTrace, ids map[string]interface{}, err error) {
	durationMs := time.Since(started).Milliseconds()
	status := "success"
	errType := ""
	if err != nil {
		status = "error"
		errType = ClassifyError(err)
		e.collector.RecordError(ctx, op, errType)
	}
	e.collector.RecordOperation(ctx, op, status, durationMs)
	for _, span := range tr.Spans {
		e.collector.RecordStage(ctx, op, span.Name, span.DurationMs)
	}

	record := &trace.TraceRecord{
		Timestamp:   started,
		OperationID: opID,
		Operation:   op,
		DurationMs:  durationMs,
		Status:      status,
		Spans:       tr.spanRecords(),
		ErrorType:   errType,
	}
	if len(ids) > 0 {
		record.IDs = ids
	}
	if exportErr := e.exporter.Export(ctx, record); exportErr != nil {
		e.log.Warn("trace export failed", "operation", op, "error", exportErr.Error())
	}
}
