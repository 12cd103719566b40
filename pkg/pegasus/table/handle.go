// Package table implements the table handle (spec.md §4.5): it binds a
// table name to an atomically-swappable partition map snapshot and a
// routing function.
package table

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pegasus-kv/go-client/pkg/pegasus/codec"
	"github.com/pegasus-kv/go-client/pkg/pegasus/meta"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/workerpool"
)

// Handle binds a table name to its cached partition map plus a routing
// function (spec.md §3: "Shared read-mostly; the held snapshot pointer is
// atomically swappable on refresh").
type Handle struct {
	Name     string
	resolver *meta.Resolver
	pool     *workerpool.Pool

	snapshot atomic.Pointer[meta.PartitionMap]

	mu              sync.Mutex
	refreshInFlight bool
}

// Open creates a Handle for tableName, blocking on the initial partition
// map resolution. pool bounds the handle's async routing-error refreshes
// (spec.md §5); with a nil pool each such refresh runs on its own goroutine.
func Open(ctx context.Context, tableName string, resolver *meta.Resolver, pool *workerpool.Pool) (*Handle, error) {
	h := &Handle{Name: tableName, resolver: resolver, pool: pool}
	m, err := resolver.Resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	h.snapshot.Store(m)
	return h, nil
}

// Route computes (partition_index, primary_endpoint) for hashKey against
// the current snapshot (spec.md §4.5).
func (h *Handle) Route(hashKey []byte) (partitionIndex int, endpoint string, err error) {
	m := h.snapshot.Load()
	if m == nil {
		return 0, "", perrors.RoutingStalef("table: %s has no partition map yet", h.Name)
	}
	encoded, err := codec.EncodeKey(hashKey, nil)
	if err != nil {
		return 0, "", err
	}
	hash, err := codec.PartitionHash(encoded)
	if err != nil {
		return 0, "", err
	}
	idx := codec.PartitionIndex(hash, m.PartitionCount)
	return idx, m.Primary(idx), nil
}

// Snapshot returns the currently-held partition map.
func (h *Handle) Snapshot() *meta.PartitionMap {
	return h.snapshot.Load()
}

// AppID returns the app id from the current snapshot, or 0 if unresolved.
func (h *Handle) AppID() int32 {
	if m := h.snapshot.Load(); m != nil {
		return m.AppID
	}
	return 0
}

// ReportRoutingError schedules an async refresh when a caller observes a
// routing error against the given partition index (spec.md §4.5/§4.6),
// dispatched on the shared worker pool (spec.md §5) when the handle has
// one, and on a plain goroutine otherwise. Concurrent routers continue to
// see the old snapshot until the
// refresh completes and swaps it in.
func (h *Handle) ReportRoutingError(partitionIndex int, endpoint string) {
	h.mu.Lock()
	if h.refreshInFlight {
		h.mu.Unlock()
		return
	}
	h.refreshInFlight = true
	h.mu.Unlock()

	task := func() {
		defer func() {
			h.mu.Lock()
			h.refreshInFlight = false
			h.mu.Unlock()
		}()
		m, err := h.resolver.Refresh(context.Background(), h.Name)
		if err == nil {
			h.swapIfNewer(m)
		}
	}
	if h.pool != nil {
		h.pool.Go(task)
	} else {
		go task()
	}
}

// RefreshNow synchronously refreshes and swaps in the new snapshot,
// returning it. Used by the executor when it needs to re-route before its
// deadline rather than fire-and-forget.
func (h *Handle) RefreshNow(ctx context.Context) (*meta.PartitionMap, error) {
	m, err := h.resolver.Refresh(ctx, h.Name)
	if err != nil {
		return nil, err
	}
	h.swapIfNewer(m)
	return h.snapshot.Load(), nil
}

func (h *Handle) swapIfNewer(m *meta.PartitionMap) {
	for {
		cur := h.snapshot.Load()
		if cur != nil && cur.Version >= m.Version {
			return
		}
		if h.snapshot.CompareAndSwap(cur, m) {
			return
		}
	}
}
