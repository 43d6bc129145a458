package docid

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dan-solli/docid/pkg/fingerprint"
	"github.com/dan-solli/docid/pkg/store"
)

// Error type constants for classification
const (
	ErrTypeValidation    = "validation"
	ErrTypeConflict      = "conflict"
	ErrTypeRepository    = "repository"
	ErrTypeIndex         = "index"
	ErrTypeInconsistency = "inconsistency"
	ErrTypeTimeout       = "timeout"
	ErrTypeNetwork       = "network"
	ErrTypeUnknown       = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces. The
// engine's own typed errors are matched first; the string checks are a
// fallback for errors that arrive from drivers unwrapped.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var ve *fingerprint.ValidationError
	if errors.As(err, &ve) {
		return ErrTypeValidation
	}
	if store.IsConflict(err) {
		return ErrTypeConflict
	}
	if errors.Is(err, store.ErrVectorDimension) {
		return ErrTypeInconsistency
	}
	if errors.Is(err, store.ErrIndexUnavailable) {
		return ErrTypeIndex
	}
	if errors.Is(err, store.ErrStoreUnavailable) {
		return ErrTypeRepository
	}

	// Cancellation groups with deadline expiry: both mean the caller's
	// time budget ended the operation.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTypeTimeout
	}

	errStrLower := strings.ToLower(err.Error())

	if strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return ErrTypeNetwork
	}
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "connection reset") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "network is unreachable") ||
		strings.Contains(errStrLower, "dial tcp") ||
		strings.Contains(errStrLower, "eof") {
		return ErrTypeNetwork
	}

	// SQLite errors that escape the store package unwrapped
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "constraint") ||
		strings.Contains(errStrLower, "unique") && strings.Contains(errStrLower, "failed") {
		return ErrTypeRepository
	}

	if strings.Contains(errStrLower, "validation") ||
		strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "cannot be empty") ||
		strings.Contains(errStrLower, "must be") {
		return ErrTypeValidation
	}

	return ErrTypeUnknown
}

// isTransient reports whether err is worth retrying: infrastructure
// failures may clear on their own, while validation and conflict errors
// never will.
func isTransient(err error) bool {
	switch ClassifyError(err) {
	case ErrTypeRepository, ErrTypeIndex, ErrTypeTimeout, ErrTypeNetwork:
		return true
	}
	return false
}
