package docid

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs fn with exponential backoff for transient failures.
// Validation and conflict errors are permanent and surface immediately;
// repository, index, timeout, and network errors are retried until the
// configured attempt budget runs out, then the last error is returned.
// The context bounds the whole loop including backoff sleeps.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryInitialInterval
	bo.MaxInterval = e.cfg.RetryMaxInterval
	bo.MaxElapsedTime = 0 // the attempt budget bounds the loop, not wall time

	attempt := 0
	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		attempt++
		e.log.Warn("transient failure",
			"operation", op,
			"attempt", attempt,
			"error", err.Error())
		return err
	}

	return backoff.Retry(operation,
		backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(e.cfg.RetryMaxAttempts-1)))
}
