package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBoundedValue_WinnerReturns(t *testing.T) {
	value, err := BoundedValue(context.Background(), time.Second, func(context.Context) (string, error) {
		return "done", nil
	})

	if err != nil {
		t.Fatalf("BoundedValue() error = %v", err)
	}
	if value != "done" {
		t.Errorf("value = %q, want %q", value, "done")
	}
}

func TestBoundedValue_TimeoutWins(t *testing.T) {
	started := time.Now()
	_, err := BoundedValue(context.Background(), 50*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("timed out after %v, want ~50ms", elapsed)
	}
}

func TestBoundedValue_LateCompletionDiscarded(t *testing.T) {
	release := make(chan struct{})
	_, err := BoundedValue(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}

	// The losing op finishes after the call returned; its buffered send must
	// not block or panic.
	close(release)
	time.Sleep(10 * time.Millisecond)
}

func TestBounded_OperationError(t *testing.T) {
	opErr := errors.New("boom")
	err := Bounded(context.Background(), time.Second, func(context.Context) error {
		return opErr
	})

	if !errors.Is(err, opErr) {
		t.Errorf("error = %v, want %v", err, opErr)
	}
}

func TestBounded_NoTimeoutRunsUnbounded(t *testing.T) {
	err := Bounded(context.Background(), 0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Bounded() error = %v", err)
	}
}

func TestBounded_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Bounded(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
