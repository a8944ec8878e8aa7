package platform

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RetryPolicy bounds repeated attempts of a single platform call.
// Each attempt runs under its own timeout; waits between attempts grow
// exponentially from Backoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond, Timeout: 5 * time.Second}
}

// Do runs fn until it succeeds, the attempt budget is spent, or ctx is
// cancelled. The returned error is the last attempt's error.
func Do(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	wait := p.Backoff
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry aborted")
		case <-time.After(wait):
		}
		wait *= 2
	}
	return lastErr
}
