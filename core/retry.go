package core

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds one logical side effect: a maximum attempt count, an
// initial delay doubled between attempts, and an optional continue
// predicate consulted after each failure so a caller can abort early on a
// non-retryable classification.
type RetryPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	ShouldContinue func(err error, attempt int) bool
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 100 * time.Millisecond
	}
	return p
}

// Retry runs operation until it succeeds, the policy is exhausted, the
// continue predicate declines, or the context is cancelled. The last error
// is returned on exhaustion; retries are an internal detail of one logical
// operation, never repeated logical operations.
func Retry(ctx context.Context, policy RetryPolicy, operation func(ctx context.Context) error) error {
	if operation == nil {
		return fmt.Errorf("core: retry operation is required")
	}
	policy = policy.normalized()

	var lastErr error
	delay := policy.InitialDelay
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if policy.ShouldContinue != nil && !policy.ShouldContinue(lastErr, attempt) {
			return lastErr
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if ctx == nil {
		time.Sleep(delay)
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
