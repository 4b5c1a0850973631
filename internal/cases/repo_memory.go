package cases

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used by tests.
type MemoryRepo struct {
	mu    sync.Mutex
	cases map[string]Case
}

// NewMemoryRepo creates an empty memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{cases: map[string]Case{}}
}

// Put inserts or replaces a case.
func (r *MemoryRepo) Put(c Case) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[c.ID] = c
}

// GetByID fetches a case by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Case, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	return c, nil
}

// ListCompletedBefore returns completed cases untouched since cutoff.
func (r *MemoryRepo) ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Case, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Case
	for _, c := range r.cases {
		if c.Status == StatusCompleted && c.UpdatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
