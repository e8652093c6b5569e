package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/probeworks/smokecore/internal/serr"
)

// Domain is the structured-error domain for retry failures.
const Domain = "retry"

// CodeExhausted is the structured code raised when all attempts fail.
const CodeExhausted = "exhausted"

// Backoff selects the delay curve between attempts.
type Backoff string

// Supported backoff curves.
const (
	// BackoffFixed waits the same delay between every attempt.
	BackoffFixed Backoff = "fixed"

	// BackoffExponential doubles the delay after each failed attempt.
	BackoffExponential Backoff = "exponential"

	// BackoffExponentialJitter perturbs the exponential delay uniformly
	// within ±JitterRatio of itself.
	BackoffExponentialJitter Backoff = "exponential-jitter"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Retries is the number of retries after the first attempt.
	// Total attempts = Retries + 1, clamped to at least 1.
	Retries int

	// Delay is the base delay between attempts.
	Delay time.Duration

	// MaxDelay caps every computed delay when positive.
	MaxDelay time.Duration

	// Backoff selects the delay curve. Defaults to BackoffFixed.
	Backoff Backoff

	// JitterRatio is the relative jitter applied by
	// BackoffExponentialJitter (e.g. 0.2 for ±20%).
	JitterRatio float64
}

// DefaultPolicy is a conservative policy suitable for smoke-test probes.
var DefaultPolicy = Policy{
	Retries: 3,
	Delay:   500 * time.Millisecond,
	Backoff: BackoffExponential,
}

// Observer is invoked after each failed attempt, before the retry delay.
type Observer func(err error, attempt int)

// Do runs op until it succeeds or the policy is exhausted.
//
// Attempts are numbered from 1. The context is checked between attempts and
// during delays; cancellation surfaces as the context's error.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	return DoWithObserver(ctx, policy, nil, op)
}

// DoWithObserver is Do with a per-attempt failure callback.
func DoWithObserver(ctx context.Context, policy Policy, observer Observer, op func(ctx context.Context) error) error {
	attempts := policy.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if observer != nil {
			observer(lastErr, attempt)
		}

		if attempt == attempts {
			break
		}

		if err := sleep(ctx, delayFor(policy, attempt)); err != nil {
			return err
		}
	}

	return serr.New(Domain, CodeExhausted).
		WithRetryable(false).
		WithDetail("retries", policy.Retries).
		WithDetail("delay_ms", policy.Delay.Milliseconds()).
		WithDetail("backoff", string(curve(policy))).
		WithDetail("last_attempt", attempts).
		WithCause(lastErr)
}

// DoValue runs op until it succeeds or the policy is exhausted, returning the
// operation's value on success.
func DoValue[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := Do(ctx, policy, func(ctx context.Context) error {
		var opErr error
		value, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// delayFor computes the delay to sleep after the given failed attempt.
// Attempts are numbered from 1.
func delayFor(policy Policy, attempt int) time.Duration {
	base := policy.Delay

	delay := base
	switch curve(policy) {
	case BackoffExponential:
		delay = base << (attempt - 1)
	case BackoffExponentialJitter:
		delay = base << (attempt - 1)
		if policy.JitterRatio > 0 {
			// Uniform within ±JitterRatio of the exponential value.
			spread := (rand.Float64()*2 - 1) * policy.JitterRatio
			delay = time.Duration(float64(delay) * (1 + spread))
		}
	}

	if delay < 0 {
		delay = 0
	}
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

// curve returns the effective backoff curve, defaulting to fixed.
func curve(policy Policy) Backoff {
	switch policy.Backoff {
	case BackoffExponential, BackoffExponentialJitter:
		return policy.Backoff
	default:
		return BackoffFixed
	}
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
