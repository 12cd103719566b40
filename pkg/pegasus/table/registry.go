package table

import (
	"context"
	"sync"

	"github.com/pegasus-kv/go-client/pkg/pegasus/meta"
	"github.com/pegasus-kv/go-client/pkg/pegasus/workerpool"
)

// Registry interns one Handle per table name with double-checked lazy
// initialization: readers take a fast path under RLock, and only a miss
// pays for the narrow critical section that dials out to the resolver
// (spec.md §5/§9), the same shape as the ground-truth client's
// getTable/tableMap double-checked locking under its tableMapLock.
type Registry struct {
	resolver *meta.Resolver
	pool     *workerpool.Pool

	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty table handle registry. pool is the shared
// worker pool (spec.md §5, sized from config.Config.AsyncWorkers) every
// interned Handle dispatches its async routing-error refreshes on.
func NewRegistry(resolver *meta.Resolver, pool *workerpool.Pool) *Registry {
	return &Registry{resolver: resolver, pool: pool, handles: make(map[string]*Handle)}
}

// Open returns the interned Handle for name, creating and resolving one on
// first use (spec.md §4.9: "open_table(name) returns (or interns) a table
// handle").
func (r *Registry) Open(ctx context.Context, name string) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[name]; ok {
		return h, nil
	}
	h, err := Open(ctx, name, r.resolver, r.pool)
	if err != nil {
		return nil, err
	}
	r.handles[name] = h
	return h, nil
}
