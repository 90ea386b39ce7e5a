package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/festlist/internal/shared"
	"golang.org/x/time/rate"
)

func newTestGate(opts Options) *Gate {
	if opts.Limits == nil {
		opts.Limits = map[ServiceName]rate.Limit{
			ServiceSpotify: rate.Limit(1000),
			ServiceGemini:  rate.Limit(1000),
		}
	}
	return New(opts)
}

func TestGate(t *testing.T) {
	t.Run("Caches Responses", func(t *testing.T) {
		g := newTestGate(Options{})
		req := Request{Service: ServiceSpotify, Fingerprint: "search:griz"}

		calls := 0
		fn := func(ctx context.Context) (any, error) {
			calls++
			return "result", nil
		}

		v, cached, err := g.Do(context.Background(), req, fn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cached {
			t.Error("first call should not be cached")
		}
		if v != "result" {
			t.Errorf("expected 'result', got %v", v)
		}

		v, cached, err = g.Do(context.Background(), req, fn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !cached {
			t.Error("second call should be served from cache")
		}
		if v != "result" {
			t.Errorf("expected 'result', got %v", v)
		}
		if calls != 1 {
			t.Errorf("expected exactly 1 external call, got %d", calls)
		}
	})

	t.Run("Errors Are Not Cached", func(t *testing.T) {
		g := newTestGate(Options{})
		req := Request{Service: ServiceSpotify, Fingerprint: "search:flaky"}

		calls := 0
		_, _, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
			calls++
			return nil, fmt.Errorf("%w: upstream down", shared.ErrTransient)
		})
		if err == nil {
			t.Fatal("expected error")
		}

		_, cached, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
			calls++
			return "recovered", nil
		})
		if err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}
		if cached {
			t.Error("failed call must not populate the cache")
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("Coalesces Concurrent Identical Requests", func(t *testing.T) {
		g := newTestGate(Options{})
		req := Request{Service: ServiceGemini, Fingerprint: "extract:abc123"}

		var calls atomic.Int32
		release := make(chan struct{})

		fn := func(ctx context.Context) (any, error) {
			calls.Add(1)
			<-release
			return "shared", nil
		}

		const goroutines = 8
		var wg sync.WaitGroup
		results := make([]any, goroutines)
		errs := make([]error, goroutines)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, _, err := g.Do(context.Background(), req, fn)
				results[i] = v
				errs[i] = err
			}(i)
		}

		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		if got := calls.Load(); got != 1 {
			t.Errorf("expected 1 coalesced external call, got %d", got)
		}
		for i := 0; i < goroutines; i++ {
			if errs[i] != nil {
				t.Errorf("goroutine %d: unexpected error %v", i, errs[i])
			}
			if results[i] != "shared" {
				t.Errorf("goroutine %d: expected shared result, got %v", i, results[i])
			}
		}
	})

	t.Run("Bounds In Flight Calls", func(t *testing.T) {
		g := newTestGate(Options{MaxInFlight: 2})

		var inFlight, maxSeen atomic.Int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := Request{Service: ServiceSpotify, Fingerprint: fmt.Sprintf("search:%d", i)}
				_, _, _ = g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
					n := inFlight.Add(1)
					for {
						seen := maxSeen.Load()
						if n <= seen || maxSeen.CompareAndSwap(seen, n) {
							break
						}
					}
					<-release
					inFlight.Add(-1)
					return i, nil
				})
			}(i)
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if got := maxSeen.Load(); got > 2 {
			t.Errorf("in-flight calls exceeded ceiling: %d > 2", got)
		}
	})

	t.Run("Quota Exhaustion Yields RateLimited", func(t *testing.T) {
		g := newTestGate(Options{UserQuota: 2, QuotaWindow: time.Hour})

		for i := 0; i < 2; i++ {
			req := Request{Service: ServiceGemini, Fingerprint: fmt.Sprintf("extract:%d", i), QuotaUser: "user-1"}
			if _, _, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
				return i, nil
			}); err != nil {
				t.Fatalf("call %d should be under quota: %v", i, err)
			}
		}

		req := Request{Service: ServiceGemini, Fingerprint: "extract:over", QuotaUser: "user-1"}
		_, _, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
			return nil, nil
		})
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected rate-limited error, got %v", err)
		}

		// A different user is unaffected.
		req = Request{Service: ServiceGemini, Fingerprint: "extract:other", QuotaUser: "user-2"}
		if _, _, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
			return "ok", nil
		}); err != nil {
			t.Errorf("other user should not be limited: %v", err)
		}
	})

	t.Run("Cache Hits Bypass Quota", func(t *testing.T) {
		g := newTestGate(Options{UserQuota: 1, QuotaWindow: time.Hour})
		req := Request{Service: ServiceGemini, Fingerprint: "extract:same", QuotaUser: "user-3"}

		if _, _, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
			return "v", nil
		}); err != nil {
			t.Fatalf("first call failed: %v", err)
		}

		// The quota is spent, but the cached entry still serves.
		v, cached, err := g.Do(context.Background(), req, func(ctx context.Context) (any, error) {
			t.Error("cached request must not reach the external call")
			return nil, nil
		})
		if err != nil {
			t.Fatalf("cached call failed: %v", err)
		}
		if !cached || v != "v" {
			t.Errorf("expected cached 'v', got cached=%v v=%v", cached, v)
		}
	})

	t.Run("Invalidate Forces Refetch", func(t *testing.T) {
		g := newTestGate(Options{})
		req := Request{Service: ServiceSpotify, Fingerprint: "search:stale"}

		calls := 0
		fn := func(ctx context.Context) (any, error) {
			calls++
			return calls, nil
		}

		_, _, _ = g.Do(context.Background(), req, fn)
		g.Invalidate(ServiceSpotify, "search:stale")
		v, cached, _ := g.Do(context.Background(), req, fn)

		if cached {
			t.Error("invalidated entry should not serve from cache")
		}
		if v != 2 {
			t.Errorf("expected second call result, got %v", v)
		}
	})
}

func TestThrough(t *testing.T) {
	t.Run("Preserves Type", func(t *testing.T) {
		g := newTestGate(Options{})
		req := Request{Service: ServiceSpotify, Fingerprint: "search:typed"}

		v, _, err := Through(context.Background(), g, req, func(ctx context.Context) ([]string, error) {
			return []string{"a", "b"}, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(v) != 2 || v[0] != "a" {
			t.Errorf("unexpected value %v", v)
		}

		// Cached round trip keeps the concrete type.
		v, cached, err := Through(context.Background(), g, req, func(ctx context.Context) ([]string, error) {
			t.Error("should serve from cache")
			return nil, nil
		})
		if err != nil || !cached {
			t.Fatalf("expected cached result, got cached=%v err=%v", cached, err)
		}
		if len(v) != 2 {
			t.Errorf("unexpected cached value %v", v)
		}
	})

	t.Run("Propagates Errors", func(t *testing.T) {
		g := newTestGate(Options{})
		req := Request{Service: ServiceSpotify, Fingerprint: "search:err"}

		_, _, err := Through(context.Background(), g, req, func(ctx context.Context) (int, error) {
			return 0, fmt.Errorf("%w: denied", shared.ErrClient)
		})
		if !errors.Is(err, shared.ErrClient) {
			t.Errorf("expected client error, got %v", err)
		}
	})
}

func TestMemoryQuotaStore(t *testing.T) {
	store := NewMemoryQuotaStore()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.Record("u", "gemini", now.Add(-time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
	_ = store.Record("u", "gemini", now.Add(-2*time.Hour))

	count, err := store.CountSince("u", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 events in window, got %d", count)
	}

	count, _ = store.CountSince("unknown", now.Add(-time.Hour))
	if count != 0 {
		t.Errorf("expected 0 events for unknown user, got %d", count)
	}
}

func TestGateUncachedWrites(t *testing.T) {
	g := New(Options{MaxInFlight: 2})

	calls := 0
	for i := 0; i < 3; i++ {
		_, cached, err := g.Do(context.Background(), Request{Service: ServiceSpotify}, func(ctx context.Context) (any, error) {
			calls++
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cached {
			t.Error("writes should never be served from cache")
		}
	}

	if calls != 3 {
		t.Errorf("expected every write to reach the service, got %d calls", calls)
	}
	if g.CacheLen() != 0 {
		t.Errorf("expected nothing cached for writes, got %d entries", g.CacheLen())
	}
}
