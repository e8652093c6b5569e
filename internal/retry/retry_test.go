package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/probeworks/smokecore/internal/serr"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: 3}, func(context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: 3}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustedAttemptCount(t *testing.T) {
	lastErr := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), Policy{Retries: 2}, func(context.Context) error {
		calls++
		return lastErr
	})

	// retries=2 means 3 attempts total.
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !serr.HasCode(err, Domain, CodeExhausted) {
		t.Fatalf("error = %v, want %s/%s", err, Domain, CodeExhausted)
	}
	if !errors.Is(err, lastErr) {
		t.Error("exhausted error should wrap the last attempt's error")
	}
}

func TestDo_NegativeRetriesClampToOneAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: -5}, func(context.Context) error {
		calls++
		return errors.New("fail")
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !serr.HasCode(err, Domain, CodeExhausted) {
		t.Errorf("error = %v, want %s/%s", err, Domain, CodeExhausted)
	}
}

func TestDoWithObserver_AttemptNumbering(t *testing.T) {
	var attempts []int
	observer := func(_ error, attempt int) {
		attempts = append(attempts, attempt)
	}

	_ = DoWithObserver(context.Background(), Policy{Retries: 2}, observer, func(context.Context) error {
		return errors.New("fail")
	})

	want := []int{1, 2, 3}
	if len(attempts) != len(want) {
		t.Fatalf("observer calls = %v, want %v", attempts, want)
	}
	for i := range want {
		if attempts[i] != want[i] {
			t.Errorf("attempts[%d] = %d, want %d", i, attempts[i], want[i])
		}
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Policy{Retries: 5, Delay: time.Minute}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no further attempts after cancel)", calls)
	}
}

func TestDoValue_ReturnsValue(t *testing.T) {
	calls := 0
	value, err := DoValue(context.Background(), Policy{Retries: 2}, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("not yet")
		}
		return "hello", nil
	})

	if err != nil {
		t.Fatalf("DoValue() error = %v", err)
	}
	if value != "hello" {
		t.Errorf("value = %q, want %q", value, "hello")
	}
}

func TestDoValue_ZeroValueOnFailure(t *testing.T) {
	value, err := DoValue(context.Background(), Policy{}, func(context.Context) (int, error) {
		return 42, errors.New("fail")
	})

	if err == nil {
		t.Fatal("DoValue() expected error, got nil")
	}
	if value != 0 {
		t.Errorf("value = %d, want zero value on failure", value)
	}
}

func TestDelayFor_Fixed(t *testing.T) {
	policy := Policy{Delay: 100 * time.Millisecond}

	for attempt := 1; attempt <= 4; attempt++ {
		if got := delayFor(policy, attempt); got != 100*time.Millisecond {
			t.Errorf("delayFor(fixed, %d) = %v, want 100ms", attempt, got)
		}
	}
}

func TestDelayFor_Exponential(t *testing.T) {
	policy := Policy{Delay: 100 * time.Millisecond, Backoff: BackoffExponential}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := delayFor(policy, tt.attempt); got != tt.want {
			t.Errorf("delayFor(exponential, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayFor_MaxDelayCap(t *testing.T) {
	policy := Policy{
		Delay:    100 * time.Millisecond,
		MaxDelay: 250 * time.Millisecond,
		Backoff:  BackoffExponential,
	}

	if got := delayFor(policy, 5); got != 250*time.Millisecond {
		t.Errorf("delayFor(capped, 5) = %v, want 250ms", got)
	}
}

func TestDelayFor_JitterBounds(t *testing.T) {
	policy := Policy{
		Delay:       100 * time.Millisecond,
		Backoff:     BackoffExponentialJitter,
		JitterRatio: 0.2,
	}

	// Attempt 3 has an exponential base of 400ms; jitter keeps it in ±20%.
	lo := 320 * time.Millisecond
	hi := 480 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := delayFor(policy, 3)
		if got < lo || got > hi {
			t.Fatalf("delayFor(jitter, 3) = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}

func TestCurve_DefaultsToFixed(t *testing.T) {
	if got := curve(Policy{}); got != BackoffFixed {
		t.Errorf("curve(empty) = %q, want %q", got, BackoffFixed)
	}
	if got := curve(Policy{Backoff: "bogus"}); got != BackoffFixed {
		t.Errorf("curve(bogus) = %q, want %q", got, BackoffFixed)
	}
}
