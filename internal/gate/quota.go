package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/festlist/internal/shared"
)

// QuotaStore is the ledger backing the per-user sliding-window quota.
//
// Implementations must be safe for concurrent use. The sqlite-backed
// implementation lives in the repositories package; the in-memory one below is
// the default and is suitable for single-process deployments and tests.
type QuotaStore interface {
	Record(userID, service string, at time.Time) error
	CountSince(userID string, since time.Time) (int, error)
}

// quotaKeeper applies the quota policy over a QuotaStore.
type quotaKeeper struct {
	limit  int
	window time.Duration
	store  QuotaStore
}

// check returns a rate-limited error when the user has exhausted the window.
// A zero limit disables the quota entirely.
func (q *quotaKeeper) check(userID string) error {
	if q.limit <= 0 {
		return nil
	}

	count, err := q.store.CountSince(userID, time.Now().Add(-q.window))
	if err != nil {
		return fmt.Errorf("quota lookup failed: %w", err)
	}
	if count >= q.limit {
		return fmt.Errorf("%w: user %s exceeded %d calls per %s", shared.ErrRateLimited, userID, q.limit, q.window)
	}
	return nil
}

func (q *quotaKeeper) record(userID, service string) {
	if q.limit <= 0 {
		return
	}
	// Ledger write failures must not fail the call that already succeeded.
	_ = q.store.Record(userID, service, time.Now())
}

// MemoryQuotaStore is an in-memory QuotaStore.
type MemoryQuotaStore struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryQuotaStore creates an empty in-memory quota ledger.
func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{events: make(map[string][]time.Time)}
}

// Record appends a quota event for the user.
func (m *MemoryQuotaStore) Record(userID, service string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[userID] = append(m.events[userID], at)
	return nil
}

// CountSince counts the user's events inside the window, pruning older ones.
func (m *MemoryQuotaStore) CountSince(userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[userID][:0]
	for _, at := range m.events[userID] {
		if at.After(since) {
			kept = append(kept, at)
		}
	}
	m.events[userID] = kept
	return len(kept), nil
}
