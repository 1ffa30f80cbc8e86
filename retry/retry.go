// Package retry provides the single retry policy that wraps every external
// call the orchestrator makes: provider completions, embeddings, tool
// dispatches, and persistent store writes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy configures bounded retry with exponential backoff. Only transient
// failures are retried; everything else propagates immediately.
type Policy struct {
	MaxAttempts    int           // total attempts, including the first
	BaseDelay      time.Duration // delay before the first retry
	MaxDelay       time.Duration // backoff ceiling
	Multiplier     float64       // base delay doubles by default
	JitterFraction float64       // random jitter bounded to this fraction of the current delay
	OnRetry        func(err error, attempt int, delay time.Duration)
}

// DefaultPolicy returns the default policy: 3 attempts, 1s base delay
// doubling each attempt, jitter bounded to 10% of the current delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Delay returns the backoff delay before retry n (0-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= mult
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		delay += rand.Float64() * p.JitterFraction * delay
	}
	return time.Duration(delay)
}

// TransientError marks an error as retryable when wrapping it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string   { return e.Err.Error() }
func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Transient() bool { return true }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is safe to retry. An error is transient
// when any error in its chain implements `Transient() bool` returning true,
// or when it is a deadline expiry (per-call timeouts count as transient).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// ExhaustedError reports that every attempt of the policy failed transiently.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do executes fn under the policy. A transient failure is retried up to the
// attempt ceiling with exponential backoff plus jitter; exhausting the
// ceiling returns an ExhaustedError wrapping the last failure. Non-transient
// failures return immediately without further attempts.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)
			if policy.OnRetry != nil {
				policy.OnRetry(err, attempt, delay)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		var result T
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Last: err}
}
