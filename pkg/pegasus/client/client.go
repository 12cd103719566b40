// Package client implements the thin API surface of named operations
// (spec.md §4.9 "Client Facade"): get/set/del/ttl/exist/sortkey_count,
// multi-key and batch variants, and scanner constructors, each a thin
// adapter over the Executor/Batch/Scan engines.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/pegasus-kv/go-client/pkg/pegasus/config"
	"github.com/pegasus-kv/go-client/pkg/pegasus/exec"
	"github.com/pegasus-kv/go-client/pkg/pegasus/log"
	"github.com/pegasus-kv/go-client/pkg/pegasus/meta"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/rpc"
	"github.com/pegasus-kv/go-client/pkg/pegasus/table"
	"github.com/pegasus-kv/go-client/pkg/pegasus/workerpool"
)

// Client is the root object: it owns the session pool, the meta resolver,
// and the table handle registry (spec.md §9: "Client → {TableHandles,
// SessionPool, MetaResolver}"). A Client is safe for concurrent use.
type Client struct {
	cfg      *config.Config
	logger   log.Logger
	pool     *rpc.Pool
	resolver *meta.Resolver
	registry *table.Registry
	executor *exec.Executor

	mu     sync.RWMutex
	closed bool
}

// NewClient builds a Client from a validated Config (spec.md §6's
// recognized configuration keys, already parsed by config.FromProperties).
// If logger is nil, diagnostics are discarded.
func NewClient(cfg *config.Config, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Nop
	}
	logger.Infof("pegasus client configuration:\n%s", cfg.String())
	pool := rpc.NewPool(cfg.OperationTimeout, logger)
	resolver := meta.NewResolver(cfg.MetaServers, pool, cfg.OperationTimeout, logger)
	// spec.md §5: cooperative async tasks (routing-error refreshes) run on a
	// shared pool sized from the client's own async_workers, not bare
	// goroutines.
	workers := workerpool.New(cfg.AsyncWorkers)
	return &Client{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		resolver: resolver,
		registry: table.NewRegistry(resolver, workers),
		executor: exec.NewExecutor(pool, exec.DefaultConfig(), logger),
	}
}

// OpenTable returns (or interns) a Table handle for name (spec.md §4.9:
// "open_table(name) returns (or interns) a table handle").
func (c *Client) OpenTable(ctx context.Context, name string) (*Table, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, perrors.ErrCancelled
	}

	h, err := c.registry.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Table{
		handle:   h,
		executor: c.executor,
		timeout:  c.cfg.OperationTimeout,
	}, nil
}

// deadlineFrom turns a caller-supplied timeout into an absolute deadline,
// falling back to the client's configured OperationTimeout when timeout is
// zero (spec.md §4.6: "caller deadline (0 = default operation timeout)").
func deadlineFrom(timeout, fallback time.Duration) time.Time {
	if timeout <= 0 {
		timeout = fallback
	}
	return time.Now().Add(timeout)
}

// Close drains every session in the pool and refuses further calls
// (spec.md §4.9: "close drains sessions and refuses further calls").
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.pool.Close()
}
