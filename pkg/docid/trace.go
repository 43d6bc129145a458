package docid

import (
	"time"

	"github.com/dan-solli/docid/pkg/trace"
)

// OperationTrace captures timing and performance data for one engine
// operation. It is returned in-band on the Result and, when an exporter is
// configured, also written out as a sanitized trace record.
type OperationTrace struct {
	// Spans contains timing data for each stage of the operation
	Spans []Span `json:"spans"`

	// TotalDurationMs is the total elapsed time for the operation in milliseconds
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Span represents a single timed stage within an operation.
// Stage names are stable and documented:
//   - "fingerprint": fingerprint computation over the submitted content
//   - "classify": candidate lookup and decision cascade
//   - "persist": repository write for the decided action
//   - "index": similarity index maintenance
type Span struct {
	// Name identifies the operation stage (see Span documentation for stable names)
	Name string `json:"name"`

	// DurationMs is the elapsed time for this span in milliseconds
	DurationMs int64 `json:"durationMs"`

	// OK indicates whether the span completed successfully
	OK bool `json:"ok"`

	// Error contains the error message if OK is false (optional)
	Error string `json:"error,omitempty"`

	// ErrorType is the taxonomy class of the error if OK is false (optional)
	ErrorType string `json:"errorType,omitempty"`

	// Counters provides additional metrics for the span (optional)
	// Example keys: "structuralCandidates", "semanticCandidates", "affected"
	Counters map[string]int64 `json:"counters,omitempty"`
}

// newTrace creates a new OperationTrace with empty spans
func newTrace() *OperationTrace {
	return &OperationTrace{
		Spans: make([]Span, 0),
	}
}

// addSpan appends a completed span to the trace
func (t *OperationTrace) addSpan(span Span) {
	t.Spans = append(t.Spans, span)
	t.TotalDurationMs += span.DurationMs
}

// spanRecords converts the in-band spans to their export form, dropping the
// error messages and keeping only the taxonomy class.
func (t *OperationTrace) spanRecords() []trace.SpanRecord {
	if t == nil || len(t.Spans) == 0 {
		return nil
	}
	records := make([]trace.SpanRecord, 0, len(t.Spans))
	for _, s := range t.Spans {
		records = append(records, trace.SpanRecord{
			Name:       s.Name,
			DurationMs: s.DurationMs,
			OK:         s.OK,
			ErrorType:  s.ErrorType,
			Counters:   s.Counters,
		})
	}
	return records
}

// spanTimer is a helper for measuring span duration
type spanTimer struct {
	name    string
	start   int64 // Unix time in milliseconds
	trace   *OperationTrace
	enabled bool
}

// newSpanTimer creates a timer for a named span
func newSpanTimer(name string, trace *OperationTrace, enabled bool) *spanTimer {
	if !enabled || trace == nil {
		return &spanTimer{enabled: false}
	}
	return &spanTimer{
		name:    name,
		start:   timeNowMs(),
		trace:   trace,
		enabled: true,
	}
}

// finish completes the span and records it to the trace
func (st *spanTimer) finish(ok bool, err error, counters map[string]int64) {
	if !st.enabled {
		return
	}

	duration := timeNowMs() - st.start
	span := Span{
		Name:       st.name,
		DurationMs: duration,
		OK:         ok,
		Counters:   counters,
	}
	if err != nil {
		span.Error = err.Error()
		span.ErrorType = ClassifyError(err)
	}
	st.trace.addSpan(span)
}

// timeNowMs returns current Unix time in milliseconds
func timeNowMs() int64 {
	return time.Now().UnixMilli()
}
