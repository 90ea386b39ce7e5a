package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/festlist/internal/shared"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		RateLimitedBase: 2 * time.Millisecond,
		Jitter:          time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		CallTimeout:     time.Second,
	}
}

func TestDo(t *testing.T) {
	t.Run("Succeeds First Attempt", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("Retries Transient Then Succeeds", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: flaky upstream", shared.ErrTransient)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Exhausts Attempts", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
			calls++
			return fmt.Errorf("%w: still down", shared.ErrTransient)
		})
		if !errors.Is(err, shared.ErrTransient) {
			t.Errorf("expected terminal transient error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Client Errors Are Not Retried", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
			calls++
			return fmt.Errorf("%w: bad request", shared.ErrClient)
		})
		if !errors.Is(err, shared.ErrClient) {
			t.Errorf("expected client error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected exactly 1 call, got %d", calls)
		}
	})

	t.Run("Rate Limited Uses Longer Backoff", func(t *testing.T) {
		p := Policy{
			MaxAttempts:     2,
			BaseDelay:       time.Millisecond,
			RateLimitedBase: 50 * time.Millisecond,
			Jitter:          time.Millisecond,
			MaxDelay:        time.Second,
			CallTimeout:     time.Second,
		}

		start := time.Now()
		_ = Do(context.Background(), p, func(ctx context.Context) error {
			return fmt.Errorf("%w: slow down", shared.ErrRateLimited)
		})
		elapsed := time.Since(start)

		if elapsed < 40*time.Millisecond {
			t.Errorf("rate-limited retry should wait at least the longer base, waited %v", elapsed)
		}
	})

	t.Run("Context Cancellation Stops Retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		p := fastPolicy()
		p.BaseDelay = time.Hour // force the wait to be interrupted by cancellation

		done := make(chan error, 1)
		go func() {
			done <- Do(ctx, p, func(ctx context.Context) error {
				calls++
				return fmt.Errorf("%w: down", shared.ErrTransient)
			})
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Do did not return after cancellation")
		}

		if calls != 1 {
			t.Errorf("expected 1 call before cancellation, got %d", calls)
		}
	})

	t.Run("Attempt Timeout Is Transient", func(t *testing.T) {
		p := fastPolicy()
		p.CallTimeout = 5 * time.Millisecond

		calls := 0
		err := Do(context.Background(), p, func(ctx context.Context) error {
			calls++
			<-ctx.Done()
			return ctx.Err()
		})

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected a timed-out call to be retried, got %d calls", calls)
		}
	})
}

func TestDoValue(t *testing.T) {
	t.Run("Returns Value", func(t *testing.T) {
		v, err := DoValue(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
			return 42, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v != 42 {
			t.Errorf("expected 42, got %d", v)
		}
	})

	t.Run("Returns Zero Value On Failure", func(t *testing.T) {
		v, err := DoValue(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
			return "partial", fmt.Errorf("%w: nope", shared.ErrClient)
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if v != "" {
			t.Errorf("expected zero value, got %q", v)
		}
	})
}
