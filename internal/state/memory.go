package state

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps runs in process memory.  Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Run // append order
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// LastSuccess implements Store.
func (m *MemoryStore) LastSuccess(context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		last  time.Time
		found bool
	)
	for _, r := range m.runs {
		if r.Status == StatusSuccess && (!found || r.StartedAt.After(last)) {
			last, found = r.StartedAt, true
		}
	}
	if !found {
		return time.Time{}, ErrNoRuns
	}
	return last, nil
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, r Run) error {
	m.mu.Lock()
	m.runs = append(m.runs, normalize(r))
	m.mu.Unlock()
	return nil
}

// Recent implements Store.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	out := slices.Clone(m.runs)
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Run) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
