package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for infrastructure failures. Callers match these with
// errors.Is to decide retryability.
var (
	// ErrStoreUnavailable wraps transient identity-store failures.
	ErrStoreUnavailable = errors.New("identity store unavailable")

	// ErrIndexUnavailable wraps transient similarity-index failures.
	ErrIndexUnavailable = errors.New("similarity index unavailable")

	// ErrVectorDimension indicates a vector whose dimensionality does not
	// match the index configuration.
	ErrVectorDimension = errors.New("vector dimension mismatch")
)

// ConflictError reports a write that lost a concurrent race or would violate
// a lineage invariant. The caller is expected to re-run classification
// rather than retry the same mutation.
type ConflictError struct {
	// DocumentID is the record the conflicting write targeted.
	DocumentID string

	// Reason describes the violated expectation.
	Reason string

	// Expected and actual state/version of the target at commit time, when
	// the conflict is an optimistic-concurrency mismatch.
	ExpectedState   DocumentState
	ActualState     DocumentState
	ExpectedVersion int
	ActualVersion   int
}

func (e *ConflictError) Error() string {
	if e.ExpectedState != "" || e.ActualState != "" {
		return fmt.Sprintf("conflict on %s: %s (expected %s v%d, found %s v%d)",
			e.DocumentID, e.Reason, e.ExpectedState, e.ExpectedVersion, e.ActualState, e.ActualVersion)
	}
	return fmt.Sprintf("conflict on %s: %s", e.DocumentID, e.Reason)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
