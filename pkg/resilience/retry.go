package resilience

import (
	"context"
	"time"
)

// RetryPolicy defines retry behavior for transient collaborator failures.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Do runs fn until it succeeds, the retries are spent, or ctx is done.
// Backoff doubles after each failed attempt.
func (r RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	wait := r.Backoff
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if i == r.MaxRetries || (r.Retryable != nil && !r.Retryable(err)) {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		wait *= 2
	}
	return err
}
