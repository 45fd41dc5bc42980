// Package retry wraps a full pipeline attempt with a bounded retry/backoff
// policy. The coordinator is the sole authority for converting a retryable
// stage error into another attempt or, after exhaustion, into a fatal error
// for the caller. Everything an attempt owned (browser session, runtime,
// execution plan) is torn down by the attempt itself before Run sees the
// error, so a retry always starts from scratch.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/poll"
)

// Policy holds the immutable retry configuration for a run.
type Policy struct {
	// MaxAttempts caps the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64

	// MaxDelay caps the backoff schedule.
	MaxDelay time.Duration
}

// DefaultPolicy mirrors the production defaults: three attempts, five second
// base delay, doubling, capped at one minute.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         5 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Minute,
	}
}

// Validate checks the policy fields.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base_delay must not be negative, got %v", p.BaseDelay)
	}
	if p.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff_multiplier must be at least 1.0, got %v", p.BackoffMultiplier)
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max_delay %v is below base_delay %v", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Delay returns the backoff delay after the given failed attempt (1-based):
// base * multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retryable is implemented by errors that know their own retry
// classification. Errors that do not implement it are fatal.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err carries a retryable classification
// anywhere in its chain.
func IsRetryable(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// ExhaustedError is the fatal error produced when a retryable failure
// persists through every permitted attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Retryable reports false: exhaustion is final even though the wrapped
// error was retryable.
func (e *ExhaustedError) Retryable() bool { return false }

// AttemptFunc runs one full attempt. The attempt number is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) error

// Coordinator runs attempts under a Policy.
type Coordinator struct {
	policy Policy
	clock  poll.Clock
	log    *logging.Logger
}

// NewCoordinator creates a coordinator. A nil clock means the system clock;
// a nil logger disables logging.
func NewCoordinator(policy Policy, clock poll.Clock, log *logging.Logger) *Coordinator {
	if clock == nil {
		clock = poll.SystemClock{}
	}
	return &Coordinator{policy: policy, clock: clock, log: log}
}

// Run executes attempt up to MaxAttempts times. A nil return from attempt
// ends the run successfully. A non-retryable error is returned immediately.
// A retryable error is retried after the backoff delay; once attempts are
// exhausted it is converted into an *ExhaustedError.
func (c *Coordinator) Run(ctx context.Context, attempt AttemptFunc) error {
	var lastErr error

	for n := 1; n <= c.policy.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt(ctx, n)
		if err == nil {
			if n > 1 && c.log != nil {
				c.log.Infof("attempt %d/%d succeeded", n, c.policy.MaxAttempts)
			}
			return nil
		}

		if !IsRetryable(err) {
			if c.log != nil {
				c.log.Errorf("attempt %d/%d failed fatally: %v", n, c.policy.MaxAttempts, err)
			}
			return err
		}

		lastErr = err
		if n == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(n)
		if c.log != nil {
			c.log.Warnf("attempt %d/%d failed: %v (retrying in %v)", n, c.policy.MaxAttempts, err, delay)
		}
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	if c.log != nil {
		c.log.Errorf("all %d attempts exhausted: %v", c.policy.MaxAttempts, lastErr)
	}
	return &ExhaustedError{Attempts: c.policy.MaxAttempts, Last: lastErr}
}
