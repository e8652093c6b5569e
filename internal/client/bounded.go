package client

import (
	"context"
	"time"
)

// Bounded races op against the given timeout.
//
// Whichever settles first wins: the winner's result is returned and the
// loser's eventual completion is discarded. The result channel is buffered so
// a losing op can always finish its send and the goroutine never leaks; the
// timer is released on every exit path via the context cancel.
//
// A non-positive timeout runs op without a deadline.
func Bounded(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	_, err := BoundedValue(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// BoundedValue is Bounded for operations that produce a value.
func BoundedValue[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	opCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		value, err := op(opCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case result := <-done:
		return result.value, result.err
	case <-opCtx.Done():
		var zero T
		return zero, opCtx.Err()
	}
}
