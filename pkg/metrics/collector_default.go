//go:build !metrics

package metrics

// NewCollector returns the no-op collector. The Prometheus-backed collector
// replaces it when building with -tags metrics.
func NewCollector() *NoopCollector {
	return NewNoopCollector()
}
