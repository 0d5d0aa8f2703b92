package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports an operation that outlived its limit. It matches
// context.DeadlineExceeded under errors.Is.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// WithTimeout runs fn under a deadline of timeout and returns as soon as
// either fn finishes or the deadline passes. fn keeps running in the
// background after a timeout and should honour its context. A zero or
// negative timeout calls fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, &TimeoutError{Op: op, Limit: timeout})
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// A cancelled caller is not a timeout.
		if cause := context.Cause(ctx); cause != nil {
			if _, ok := cause.(*TimeoutError); ok {
				return cause
			}
			return fmt.Errorf("%s: %w", op, cause)
		}
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
