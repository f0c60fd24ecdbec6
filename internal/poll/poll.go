// Package poll runs an operation with bounded exponential backoff.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is the terminal state of a Retry call.
type State string

const (
	Succeeded State = "succeeded"
	Failed    State = "failed"
	Canceled  State = "canceled"
)

// Policy bounds a Retry call. Zero fields pick defaults.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy 最多尝试四次，间隔依次为 1s、2s、4s
var DefaultPolicy = Policy{
	MaxAttempts:  4,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultPolicy.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultPolicy.Multiplier
	}
	return p
}

// Delay is the wait before attempt n+1, n starting at 1.
func (p Policy) Delay(n int) time.Duration {
	p = p.withDefaults()
	d := float64(p.InitialDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(d)
}

// Result reports how a Retry call ended.
type Result struct {
	State    State
	Attempts int
	Err      error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent 标记 err 为不可重试
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts
// run out, or ctx is done.
func Retry(ctx context.Context, p Policy, sleep Sleeper, fn func(ctx context.Context) error) Result {
	p = p.withDefaults()
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{State: Canceled, Attempts: attempt - 1, Err: err}
		}

		err := fn(ctx)
		if err == nil {
			return Result{State: Succeeded, Attempts: attempt}
		}
		lastErr = err

		var perm permanentError
		if errors.As(err, &perm) {
			return Result{State: Failed, Attempts: attempt, Err: perm.err}
		}
		if ctx.Err() != nil {
			return Result{State: Canceled, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return Result{State: Canceled, Attempts: attempt, Err: err}
		}
	}
	return Result{
		State:    Failed,
		Attempts: p.MaxAttempts,
		Err:      fmt.Errorf("gave up after %d attempts: %w", p.MaxAttempts, lastErr),
	}
}
