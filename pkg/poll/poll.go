// Package poll provides the bounded blocking-wait primitive used at every
// suspension point in the pipeline: page-ready, runtime attachment, per-cell
// completion, artifact readiness, and interactive login. A wait is always a
// (interval, timeout) pair — never an unbounded spin — and the clock is
// injectable so timeout paths can be tested without wall-clock delay.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the condition does not hold within the bound.
var ErrTimeout = errors.New("poll: timed out")

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() if
	// cancelled first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock used in production.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until the context is cancelled.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Condition reports whether the awaited state has been reached. A returned
// error aborts the wait immediately; done=false with err=nil keeps polling.
type Condition func(ctx context.Context) (done bool, err error)

// Waiter runs bounded polling loops against a Clock.
type Waiter struct {
	clock Clock
}

// NewWaiter creates a Waiter on the given clock. A nil clock means the
// system clock.
func NewWaiter(clock Clock) *Waiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Waiter{clock: clock}
}

// Clock returns the waiter's clock.
func (w *Waiter) Clock() Clock { return w.clock }

// Until polls cond every interval until it reports done, it returns an error,
// the timeout elapses (ErrTimeout), or ctx is cancelled. The condition is
// evaluated once immediately before the first sleep, so a state that already
// holds never waits.
func (w *Waiter) Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	deadline := w.clock.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !w.clock.Now().Add(interval).Before(deadline) {
			return ErrTimeout
		}
		if err := w.clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
