// Package retry runs bounded polling loops with a fixed delay between
// attempts.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Policy bounds a retry loop. A zero MaxAttempts runs the function once.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Result reports how a retry loop ended. TimedOut is set when every attempt
// was spent without the function reporting completion.
type Result[T any] struct {
	Value    T
	TimedOut bool
	Attempts int
	LastErr  error
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do stops immediately and returns
// the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it reports done, returns a permanent error, the context
// ends or the attempt budget is spent. fn receives the 1-based attempt
// number. A transient error from fn is recorded in LastErr and the loop
// continues. The returned error is non-nil only for permanent failures and
// context cancellation; exhaustion is reported through Result.TimedOut.
func Do[T any](
	ctx context.Context,
	policy Policy,
	fn func(ctx context.Context, attempt int) (T, bool, error),
) (Result[T], error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var result Result[T]
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, "retry")
		}

		result.Attempts = attempt
		value, done, err := fn(ctx, attempt)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				result.LastErr = perm.err
				return result, perm.err
			}
			if ctx.Err() != nil {
				return result, errors.Wrap(ctx.Err(), "retry")
			}
			result.LastErr = err
		} else if done {
			result.Value = value
			result.LastErr = nil
			return result, nil
		}

		if attempt == attempts || policy.Delay <= 0 {
			continue
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, errors.Wrap(ctx.Err(), "retry")
		case <-timer.C:
		}
	}

	result.TimedOut = true
	return result, nil
}
