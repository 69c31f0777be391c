// Package retry runs fallible upstream calls a bounded number of times.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Policy configures Do. Early failures are retried immediately; only the
// final failure waits Delay before it is returned.
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt is called after every attempt with its outcome.
	OnAttempt func(attempt int, err error)
	Logger    *zap.Logger
}

// DefaultPolicy returns the policy used for all time-tracking API calls.
func DefaultPolicy(log *zap.Logger) Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay, Logger: log}
}

// ExhaustedError is returned when every attempt failed. It unwraps to the
// error of the last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls op until it succeeds or p.Attempts calls have failed. Attempts run
// sequentially and a success short-circuits the rest.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry aborted before attempt %d: %w", attempt, err)
		}

		v, err := op(ctx)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if err == nil {
			return v, nil
		}

		if attempt < attempts {
			log.Debug("attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
			continue
		}

		log.Warn("all attempts failed",
			zap.Int("attempts", attempts),
			zap.Duration("delay", p.Delay),
			zap.Error(err),
		)
		if serr := p.sleep(ctx, p.Delay); serr != nil {
			log.Debug("final delay interrupted", zap.Error(serr))
		}
		return zero, &ExhaustedError{Attempts: attempt, Err: err}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
