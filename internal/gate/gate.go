// package gate is the process-wide admission layer for outbound API calls.
//
// One Gate instance is constructed at startup and injected into every pipeline
// run. It enforces a per-service request rate and in-flight ceiling, an optional
// per-user sliding-window quota, and memoizes responses in a TTL+LRU cache keyed
// by (service, fingerprint). Concurrent identical requests coalesce onto a single
// outstanding call; cache hits bypass the limiter entirely.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ServiceName identifies an external service behind the gate.
type ServiceName string

const (
	ServiceSpotify ServiceName = "spotify"
	ServiceGemini  ServiceName = "gemini"
	ServiceOCR     ServiceName = "ocr"
)

// Options configures a Gate.
type Options struct {
	Limits      map[ServiceName]rate.Limit // Requests per second per service
	MaxInFlight int                        // Concurrent in-flight ceiling per service (default 5)
	UserQuota   int                        // Calls per user per window; 0 disables the quota
	QuotaWindow time.Duration              // Sliding window for UserQuota (default 24h)
	CacheTTL    time.Duration              // Response cache TTL (default 1h)
	CacheSize   int                        // Response cache entry bound (default 512)
	QuotaStore  QuotaStore                 // Ledger backing the sliding window; in-memory when nil
	Logger      *log.Logger
}

// Request identifies one gated call.
type Request struct {
	Service     ServiceName
	Fingerprint string // Content hash or normalized name; see shared.FingerprintBytes / shared.NormalizeArtistKey
	QuotaUser   string // User charged against the quota; empty skips the quota check
}

// Gate gates and memoizes calls to external services.
type Gate struct {
	limiters map[ServiceName]*rate.Limiter
	slots    map[ServiceName]chan struct{}
	quota    *quotaKeeper
	cache    *expirable.LRU[string, any]
	flight   singleflight.Group
	logger   *log.Logger
}

// New creates a Gate. Services without a configured limit are admitted unthrottled.
func New(opts Options) *Gate {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 5
	}
	if opts.QuotaWindow <= 0 {
		opts.QuotaWindow = 24 * time.Hour
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiters := make(map[ServiceName]*rate.Limiter, len(opts.Limits))
	slots := make(map[ServiceName]chan struct{}, len(opts.Limits))
	for name, limit := range opts.Limits {
		limiters[name] = rate.NewLimiter(limit, 1)
		slots[name] = make(chan struct{}, opts.MaxInFlight)
	}

	store := opts.QuotaStore
	if store == nil {
		store = NewMemoryQuotaStore()
	}

	return &Gate{
		limiters: limiters,
		slots:    slots,
		quota:    &quotaKeeper{limit: opts.UserQuota, window: opts.QuotaWindow, store: store},
		cache:    expirable.NewLRU[string, any](opts.CacheSize, nil, opts.CacheTTL),
		logger:   opts.Logger.With("component", "gate"),
	}
}

// Do admits one call through the gate.
//
// Returns the response value, whether it was served from cache, and an error.
// The supplied fn runs at most once per fingerprint at any moment: concurrent
// callers for the same fingerprint share the single outstanding call's result.
// Requests with an empty fingerprint (writes) skip the cache and coalescing
// but still pass through the quota, limiter, and in-flight ceiling.
func (g *Gate) Do(ctx context.Context, req Request, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	if req.Fingerprint == "" {
		v, err := g.admit(ctx, req, fn)
		return v, false, err
	}

	key := string(req.Service) + ":" + req.Fingerprint

	if v, ok := g.cache.Get(key); ok {
		g.logger.Debug("cache hit", "service", req.Service, "fingerprint", req.Fingerprint)
		return v, true, nil
	}

	v, err, sharedCall := g.flight.Do(key, func() (any, error) {
		// Re-check under coalescing: a caller that lost the race may find the
		// winner's result already cached.
		if v, ok := g.cache.Get(key); ok {
			return v, nil
		}

		v, err := g.admit(ctx, req, fn)
		if err != nil {
			return nil, err
		}

		g.cache.Add(key, v)
		return v, nil
	})

	if err != nil {
		return nil, false, err
	}
	if sharedCall {
		g.logger.Debug("coalesced duplicate request", "service", req.Service, "fingerprint", req.Fingerprint)
	}
	return v, false, nil
}

// admit runs fn once the quota, rate limiter, and in-flight ceiling allow it.
func (g *Gate) admit(ctx context.Context, req Request, fn func(ctx context.Context) (any, error)) (any, error) {
	if req.QuotaUser != "" {
		if err := g.quota.check(req.QuotaUser); err != nil {
			return nil, err
		}
	}

	if limiter, ok := g.limiters[req.Service]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if slot, ok := g.slots[req.Service]; ok {
		select {
		case slot <- struct{}{}:
			defer func() { <-slot }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if req.QuotaUser != "" {
		g.quota.record(req.QuotaUser, string(req.Service))
	}

	return v, nil
}

// Invalidate drops a cached entry, forcing the next request through the limiter.
func (g *Gate) Invalidate(service ServiceName, fingerprint string) {
	g.cache.Remove(string(service) + ":" + fingerprint)
}

// CacheLen reports the number of live cache entries.
func (g *Gate) CacheLen() int {
	return g.cache.Len()
}

// Purge clears the whole response cache.
func (g *Gate) Purge() {
	g.cache.Purge()
}

// Through runs a typed call through the gate, asserting the cached value's type.
func Through[T any](ctx context.Context, g *Gate, req Request, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	v, cached, err := g.Do(ctx, req, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("%w: cache entry for %s has unexpected type %T", shared.ErrInvalidInput, req.Fingerprint, v)
	}
	return typed, cached, nil
}
