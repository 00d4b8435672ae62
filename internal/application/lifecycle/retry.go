package lifecycle

import (
	"context"
	"time"

	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// retryTransient runs fn, retrying transient persistence failures with
// bounded exponential backoff.  Non-transient errors return immediately.
// The unit of retry is the whole fn, so a retried transition is never
// partially applied.
func retryTransient(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !errors.IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << uint(i)):
		}
	}
	return errors.Wrap(err, errors.ErrCodeInternal, "retries exhausted")
}
