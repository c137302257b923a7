// Package probe defines the dependency probe used by the boot sequence and by the
// health checks, and the runner that bounds a probe with a timeout.
//
// A probe reports a dependency as reachable by returning nil. Any error, including a
// timeout, a canceled context or a panic inside the probe, means unreachable.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a probe when the caller does not supply a timeout.
const DefaultTimeout = 5 * time.Second

var (
	// ErrUnreachable is returned (wrapped) by probes whose dependency did not answer.
	ErrUnreachable = errors.New("dependency unreachable")
	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("dependency probe timed out")
	// ErrNotConfigured is returned by Run when no probe was supplied.
	ErrNotConfigured = errors.New("dependency probe not configured")
)

// Prober checks a single external dependency.
type Prober interface {
	Probe(ctx context.Context) error
}

// Func adapts a plain function to Prober.
type Func func(ctx context.Context) error

// Probe calls f.
func (f Func) Probe(ctx context.Context) error { return f(ctx) }

// TimeoutError reports that a probe did not finish within its bound.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.After)
}

// Is lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Unwrap makes a timeout an unreachable dependency.
func (e *TimeoutError) Unwrap() error { return ErrUnreachable }

// Run invokes p bounded by timeout and never blocks longer than that bound.
// If the probe ignores its context, Run still returns on time and the probe goroutine
// finishes on its own.
func Run(ctx context.Context, p Prober, timeout time.Duration) error {
	if p == nil {
		return ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	bound := effectiveBound(ctx, timeout)
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("%w: probe panicked: %v", ErrUnreachable, r)
			}
		}()
		errCh <- p.Probe(pctx)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		if pctx.Err() == nil {
			return err
		}
		return boundErr(ctx, bound)
	case <-pctx.Done():
		return boundErr(ctx, bound)
	}
}

// effectiveBound is the shorter of timeout and the time left before ctx's deadline.
func effectiveBound(ctx context.Context, timeout time.Duration) time.Duration {
	dl, ok := ctx.Deadline()
	if !ok {
		return timeout
	}
	if left := time.Until(dl).Round(time.Millisecond); left < timeout {
		return max(left, 0)
	}
	return timeout
}

// boundErr explains why the probe context ended. Any expired deadline, ours or the
// caller's, is a timeout; only a cancellation counts as an interruption.
func boundErr(parent context.Context, bound time.Duration) error {
	if err := parent.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: probe interrupted: %w", ErrUnreachable, err)
	}
	return &TimeoutError{After: bound}
}
