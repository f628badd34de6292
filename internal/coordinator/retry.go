package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// RetryPolicy defines the backoff behavior between step attempts.
// A Multiplier of 1.0 yields fixed-delay retries.
type RetryPolicy struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0 to 1.0
}

// DefaultRetryPolicy returns the default exponential policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// FixedRetryPolicy returns a constant-delay policy.
func FixedRetryPolicy(delay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		BaseDelay:    delay,
		MaxDelay:     delay,
		Multiplier:   1.0,
		JitterFactor: 0,
	}
}

// RetryableFunc is a single attempt of a retried operation.
type RetryableFunc func(ctx context.Context) error

// RetryNotifyFunc is called before each backoff sleep.
type RetryNotifyFunc func(attempt int, err error, delay time.Duration)

// Execute runs fn up to maxAttempts times, sleeping between attempts.
// Non-retryable domain errors abort immediately. The backoff sleep honors
// context cancellation.
func (p *RetryPolicy) Execute(ctx context.Context, maxAttempts int, fn RetryableFunc, notify RetryNotifyFunc) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		// Validation-class errors never succeed on retry.
		var domErr *core.DomainError
		if errors.As(err, &domErr) && !domErr.Retryable {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		delay := p.CalculateDelay(attempt)
		if notify != nil {
			notify(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &RetryExhaustedError{
		Attempts: maxAttempts,
		LastErr:  lastErr,
	}
}

// CalculateDelay computes the delay before the next attempt.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		jitter := delay * p.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryExhaustedError indicates all attempts failed.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var exhausted *RetryExhaustedError
	return errors.As(err, &exhausted)
}
