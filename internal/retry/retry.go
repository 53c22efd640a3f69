package retry

import (
	"context"
	"time"
)

// Policy defines how many attempts an operation gets and how long to wait
// between them. Classification of what counts as transient lives in
// Retryable, separate from the backoff math, so both are testable alone.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// DefaultPolicy mirrors the product's completion-call discipline: three total
// attempts, exponential backoff starting at 2s doubling per attempt, capped
// at 30s.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Retryable:   retryable,
	}
}

// Backoff computes the delay before the given retry (attempt 1 = delay
// before the second try).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// Only errors Retryable reports as transient are retried; anything else, and
// the last error after exhaustion, is returned unchanged. Backoff sleeps are
// interrupted by context cancellation.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
