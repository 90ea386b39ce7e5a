// package retry bounds every outbound API call with attempts, backoff and a per-call timeout.
//
// Callers wrap the gated provider call; classification of the resulting error (transient,
// rate limited, client) decides whether another attempt is made and which backoff
// schedule applies. Rate-limited failures back off from a longer base than plain
// transient failures.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/festlist/internal/shared"
	"github.com/sethvargo/go-retry"
)

// Policy contains retry tunables for a class of external calls.
type Policy struct {
	MaxAttempts     int           // Total attempts including the first (default 4)
	BaseDelay       time.Duration // Exponential base for transient failures (default 500ms)
	RateLimitedBase time.Duration // Exponential base after a rate-limited failure (default 5s)
	Jitter          time.Duration // Random jitter added to every delay (default 250ms)
	MaxDelay        time.Duration // Cap on any single delay (default 30s)
	CallTimeout     time.Duration // Bound on each individual attempt (default 30s)
}

// DefaultPolicy returns the policy used when a zero Policy is supplied.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		BaseDelay:       500 * time.Millisecond,
		RateLimitedBase: 5 * time.Second,
		Jitter:          250 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		CallTimeout:     30 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.RateLimitedBase <= 0 {
		p.RateLimitedBase = d.RateLimitedBase
	}
	if p.Jitter <= 0 {
		p.Jitter = d.Jitter
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	return p
}

// backoffs returns the two delay schedules: one for transient failures, one for
// rate-limited failures.
func (p Policy) backoffs() (transient, limited retry.Backoff) {
	transient = retry.WithCappedDuration(p.MaxDelay, retry.WithJitter(p.Jitter, retry.NewExponential(p.BaseDelay)))
	limited = retry.WithCappedDuration(p.MaxDelay, retry.WithJitter(p.Jitter, retry.NewExponential(p.RateLimitedBase)))
	return transient, limited
}

// Do runs fn under the policy. Each attempt gets its own timeout; a timed-out
// attempt counts as a transient failure. The terminal error of the final attempt
// is returned unwrapped so callers can classify it.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	transient, limited := p.backoffs()

	var err error
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
		err = fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if !shared.IsRetryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}

		var delay time.Duration
		if errors.Is(err, shared.ErrRateLimited) {
			delay, _ = limited.Next()
		} else {
			delay, _ = transient.Next()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DoValue runs fn under the policy and returns its value alongside the terminal error.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
