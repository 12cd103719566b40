package meta

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/log"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/rpc"
)

const queryConfigMethod = "RPC_CM_QUERY_PARTITION_CONFIG_BY_INDEX"

// Resolver maps table names to partition maps. It caches each table's map
// and refreshes it against the meta-server cluster, coalescing concurrent
// refreshes for the same table into one in-flight request (spec.md §4.4).
type Resolver struct {
	pool           *rpc.Pool
	callTimeout    time.Duration
	logger         log.Logger
	refreshTimeout time.Duration

	metaServers []string
	cursor      uint32 // round-robin index into metaServers, advanced on failover

	mu    sync.RWMutex
	cache map[string]*PartitionMap

	group singleflight.Group
}

// NewResolver creates a Resolver that dispatches QueryConfig through pool
// against the given meta-server endpoints, tried round-robin.
func NewResolver(metaServers []string, pool *rpc.Pool, callTimeout time.Duration, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.Nop
	}
	return &Resolver{
		pool:           pool,
		callTimeout:    callTimeout,
		logger:         logger,
		refreshTimeout: callTimeout,
		metaServers:    metaServers,
		cache:          make(map[string]*PartitionMap),
	}
}

// Cached returns the cached partition map for tableName, if any, without
// talking to the meta server.
func (r *Resolver) Cached(tableName string) (*PartitionMap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.cache[tableName]
	return m, ok
}

// Resolve returns the cached partition map if present, otherwise fetches
// and caches one (spec.md §4.4: "resolve(table_name)").
func (r *Resolver) Resolve(ctx context.Context, tableName string) (*PartitionMap, error) {
	if m, ok := r.Cached(tableName); ok {
		return m, nil
	}
	return r.Refresh(ctx, tableName)
}

// Refresh forces a fetch, rate-limited to at most one in-flight request per
// table name: concurrent callers join the in-flight future rather than
// issuing duplicate QueryConfig calls (spec.md §4.4).
func (r *Resolver) Refresh(ctx context.Context, tableName string) (*PartitionMap, error) {
	v, err, _ := r.group.Do(tableName, func() (interface{}, error) {
		return r.queryConfig(ctx, tableName)
	})
	if err != nil {
		return nil, err
	}
	m := v.(*PartitionMap)
	r.mu.Lock()
	r.cache[tableName] = m
	r.mu.Unlock()
	return m, nil
}

// queryConfig tries each meta server in round-robin order until one
// answers, advancing the cursor to a hinted primary when the contacted
// meta reports "not primary" (spec.md §4.4).
func (r *Resolver) queryConfig(ctx context.Context, tableName string) (*PartitionMap, error) {
	if len(r.metaServers) == 0 {
		return nil, perrors.InvalidArgumentf("meta: no meta servers configured")
	}

	var lastErr error
	for attempt := 0; attempt < len(r.metaServers); attempt++ {
		idx := int(atomic.LoadUint32(&r.cursor)) % len(r.metaServers)
		endpoint := r.metaServers[idx]

		deadline := time.Now().Add(r.callTimeout)
		session := r.pool.Get(endpoint)
		req := &idl.QueryConfigRequest{AppName: tableName}
		resp := &idl.QueryConfigResponse{}
		call := &rpc.Call{Method: queryConfigMethod, Args: req, Reply: resp}

		err := session.Call(ctx, call, deadline)
		if err != nil {
			lastErr = err
			r.advanceCursor(idx)
			continue
		}

		if !resp.Err.IsOK() {
			lastErr = perrors.RoutingStalef("meta: QueryConfig(%s) against %s: %s", tableName, endpoint, resp.Err)
			if resp.HintedPrimary != "" {
				r.setCursorToEndpoint(resp.HintedPrimary)
			} else {
				r.advanceCursor(idx)
			}
			continue
		}

		if resp.PartitionCount <= 0 || len(resp.Partitions) != int(resp.PartitionCount) {
			lastErr = perrors.RoutingStalef("meta: QueryConfig(%s): malformed response, partitionCount=%d got %d entries",
				tableName, resp.PartitionCount, len(resp.Partitions))
			continue
		}

		m := &PartitionMap{
			TableName:      tableName,
			AppID:          resp.AppID,
			PartitionCount: int(resp.PartitionCount),
			Partitions:     make([]Partition, resp.PartitionCount),
		}
		for _, p := range resp.Partitions {
			idx := p.Pid.PartitionIndex
			if idx < 0 || int(idx) >= len(m.Partitions) {
				continue
			}
			m.Partitions[idx] = Partition{PrimaryEndpoint: p.PrimaryEndpoint, Ballot: p.Ballot}
		}
		if prev, ok := r.Cached(tableName); ok {
			m.Version = prev.Version + 1
		} else {
			m.Version = 1
		}
		return m, nil
	}

	return nil, perrors.ConnectionErrorf(lastErr, "meta: QueryConfig(%s) failed against all %d meta servers", tableName, len(r.metaServers))
}

func (r *Resolver) advanceCursor(from int) {
	atomic.CompareAndSwapUint32(&r.cursor, uint32(from), uint32((from+1)%len(r.metaServers)))
}

func (r *Resolver) setCursorToEndpoint(endpoint string) {
	for i, s := range r.metaServers {
		if s == endpoint {
			atomic.StoreUint32(&r.cursor, uint32(i))
			return
		}
	}
}
