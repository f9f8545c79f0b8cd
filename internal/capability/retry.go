package capability

import (
	"context"
	"time"
)

// RetryPolicy is a bounded exponential-backoff retry: delay doubles from
// BaseDelay up to MaxDelay, for at most MaxAttempts attempts. Whether a
// failure is retried at all is decided by the caller's predicate.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the backend wrapper's historical behavior:
// three attempts, 2s base, 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Do runs op, retrying while the predicate accepts the failure and attempts
// remain. The last error is returned. Context cancellation stops the loop
// between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, retryable func(error) bool) error {
	p = p.normalized()

	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == p.MaxAttempts || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
