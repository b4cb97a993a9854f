package pipeline

import (
	"context"
	"time"

	"brainocr/pkg/types"
)

// Backoff computes the delay before retry number attempt (1-based).
type Backoff func(attempt int, base time.Duration) time.Duration

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 100 * time.Millisecond

	maxBackoff        = 5 * time.Second
	backoffMultiplier = 2
)

// ExponentialBackoff doubles the base delay per attempt, capped at
// maxBackoff.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= backoffMultiplier
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// retryTransient runs op up to maxAttempts times. Only transient
// failures are retried; permanent failures and context cancellation
// return immediately.
func (o *Orchestrator) retryTransient(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		err = op()
		if err == nil || !types.IsTransient(err) {
			return err
		}
		if attempt == o.cfg.MaxAttempts {
			break
		}
		if serr := o.sleep(ctx, o.backoff(attempt, o.cfg.BackoffBase)); serr != nil {
			return serr
		}
	}
	return err
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
