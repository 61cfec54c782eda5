// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts, for failures that a predicate marks as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parcelscraper/internal/components/chrono"

	goretry "github.com/sethvargo/go-retry"
)

// ErrExhausted is returned (wrapping the last failure) when every attempt
// failed with a retryable error.
var ErrExhausted = errors.New("retries exhausted")

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether a failure is worth another attempt, a nil
	// Retryable retries everything.
	Retryable func(err error) bool
	// Clock, if set, performs the delay between attempts instead of a real
	// timer.
	Clock chrono.API
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) backoff() goretry.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if p.Clock != nil {
		delay = 0
	}
	constant := goretry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	})
	return goretry.WithMaxRetries(uint64(attempts-1), constant)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := 0
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if attempts > 0 && p.Clock != nil && p.Delay > 0 {
			if err := p.Clock.Sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if p.retryable(err) {
		return fmt.Errorf("%w after %d attempt(s): %w", ErrExhausted, attempts, err)
	}
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
