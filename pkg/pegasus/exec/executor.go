// Package exec implements the single-operation execution engine (spec.md
// §4.6): route, dispatch, classify, retry/redirect, until success,
// deadline, or a terminal application error.
package exec

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/log"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/rpc"
	"github.com/pegasus-kv/go-client/pkg/pegasus/table"
)

// Op describes a single logical request: a wire method plus its
// argument/result structures and a way to read the server's error code out
// of the decoded reply (spec.md §4.6 "op_descriptor").
type Op struct {
	Method    string
	Args      idl.ThriftStruct
	Reply     idl.ThriftStruct
	ErrorCode func() idl.ErrorCode
}

// Config tunes the retry policy.
type Config struct {
	// MaxRetries bounds the number of retryable-transport retries against
	// the same endpoint before surfacing the transport error.
	MaxRetries int
	// InitialBackoff and MaxBackoff bound the backoff applied between
	// retryable-transport attempts (spec.md §4.6: "start at a small
	// constant ... cap short of the remaining deadline").
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RoutingRefreshTimeout bounds how long a single routing-stale retry
	// waits for the meta refresh to complete before re-routing anyway.
	RoutingRefreshTimeout time.Duration
}

// DefaultConfig matches the magnitudes spec.md §4.6 describes.
func DefaultConfig() Config {
	return Config{
		MaxRetries:            5,
		InitialBackoff:        20 * time.Millisecond,
		MaxBackoff:            500 * time.Millisecond,
		RoutingRefreshTimeout: 2 * time.Second,
	}
}

// Executor orchestrates a single logical op end to end (spec.md §4.6).
type Executor struct {
	pool   *rpc.Pool
	cfg    Config
	logger log.Logger
}

// NewExecutor builds an Executor dispatching through pool.
func NewExecutor(pool *rpc.Pool, cfg Config, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.Nop
	}
	return &Executor{pool: pool, cfg: cfg, logger: logger}
}

// Execute runs op against the partition hashKey routes to within handle,
// retrying transport failures against the same endpoint and re-routing on
// routing-stale responses, until success, the caller's deadline, or a
// terminal application error (spec.md §4.6).
func (e *Executor) Execute(ctx context.Context, handle *table.Handle, hashKey []byte, deadline time.Time, op Op) error {
	return e.execute(ctx, handle, deadline, op, func() (int, string, error) {
		return handle.Route(hashKey)
	})
}

// ExecuteAtPartition runs op against a partition the caller already knows
// by index rather than by hashKey, used by the scan engine's
// multi-partition cursors which iterate whole partitions directly (spec.md
// §4.8 "Unordered multi-partition scan") rather than hashing a key.
func (e *Executor) ExecuteAtPartition(ctx context.Context, handle *table.Handle, partitionIndex int, deadline time.Time, op Op) error {
	return e.execute(ctx, handle, deadline, op, func() (int, string, error) {
		m := handle.Snapshot()
		if m == nil {
			return 0, "", perrors.RoutingStalef("exec: %s has no partition map yet", handle.Name)
		}
		return partitionIndex, m.Primary(partitionIndex), nil
	})
}

func (e *Executor) execute(ctx context.Context, handle *table.Handle, deadline time.Time, op Op, route func() (int, string, error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialBackoff
	bo.MaxInterval = e.cfg.MaxBackoff
	bo.Reset()

	retriesLeft := e.cfg.MaxRetries

	for {
		if remaining := time.Until(deadline); !deadline.IsZero() && remaining <= 0 {
			return perrors.Timeoutf("exec: %s: deadline exceeded before dispatch", op.Method)
		}

		partitionIndex, endpoint, err := route()
		if err != nil {
			return err
		}
		if endpoint == "" {
			// No known primary yet: treat like routing-stale and refresh.
			if err := e.refreshAndWait(ctx, handle, deadline); err != nil {
				return err
			}
			continue
		}

		session := e.pool.Get(endpoint)
		call := &rpc.Call{Method: op.Method, Args: op.Args, Reply: op.Reply}
		callErr := session.Call(ctx, call, deadline)

		if callErr == nil {
			code := op.ErrorCode()
			if code.IsOK() {
				return nil
			}
			if code.IsRoutingError() {
				handle.ReportRoutingError(partitionIndex, endpoint)
				if err := e.refreshAndWait(ctx, handle, deadline); err != nil {
					return err
				}
				continue
			}
			return perrors.NewApplicationError(string(code), "")
		}

		if !perrors.IsRetryableTransport(callErr) {
			return callErr
		}

		if retriesLeft <= 0 {
			return callErr
		}
		retriesLeft--

		wait := bo.NextBackOff()
		if remaining := time.Until(deadline); !deadline.IsZero() && remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			return perrors.Timeoutf("exec: %s: deadline exceeded during retry backoff", op.Method)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return perrors.Timeoutf("exec: %s: %v", op.Method, ctx.Err())
		}
	}
}

// refreshAndWait triggers a synchronous meta refresh bounded by the
// shorter of the executor's RoutingRefreshTimeout and the caller's
// deadline, per spec.md §4.6 step 3 ("after refresh completes (or a brief
// timeout), re-route and retry").
func (e *Executor) refreshAndWait(ctx context.Context, handle *table.Handle, deadline time.Time) error {
	refreshDeadline := time.Now().Add(e.cfg.RoutingRefreshTimeout)
	if !deadline.IsZero() && deadline.Before(refreshDeadline) {
		refreshDeadline = deadline
	}
	refreshCtx, cancel := context.WithDeadline(ctx, refreshDeadline)
	defer cancel()

	_, err := handle.RefreshNow(refreshCtx)
	if err != nil {
		e.logger.Warningf("exec: meta refresh for %s failed: %v", handle.Name, err)
		// A brief refresh failure is not fatal; the caller re-routes
		// against whatever snapshot is current and may retry again.
	}
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return perrors.Timeoutf("exec: deadline exceeded waiting for routing refresh")
	}
	return nil
}
