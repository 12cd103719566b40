// Package scan implements the scan engine (spec.md §4.8): a bounded
// single-partition cursor with server-side continuation, and an unordered
// multi-partition scanner split that fans a table's full key range across
// a bounded number of independent cursors.
package scan

import (
	"context"
	"time"

	"github.com/pegasus-kv/go-client/pkg/pegasus/codec"
	"github.com/pegasus-kv/go-client/pkg/pegasus/exec"
	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/table"
)

// Options tunes a scan (spec.md §4.8): batch size, inclusive/exclusive
// bounds, sort-key-only projection, and a per-batch operation timeout.
// There is no value timestamp filter. Validated client-side before the
// first RPC.
type Options struct {
	BatchSize        int32
	StartInclusive   bool
	StopInclusive    bool
	NoValue          bool // sort-key-only projection: suppress value bytes
	OperationTimeout time.Duration
}

// DefaultOptions matches the magnitudes the storage protocol expects.
func DefaultOptions() Options {
	return Options{
		BatchSize:        100,
		StartInclusive:   true,
		StopInclusive:    false,
		OperationTimeout: 10 * time.Second,
	}
}

func (o Options) validate() error {
	if o.BatchSize <= 0 {
		return perrors.InvalidArgumentf("scan: batch size must be positive, got %d", o.BatchSize)
	}
	return nil
}

// KeyValue is one scanned record, with its composite key already split
// back into hashKey/sortKey for the caller's convenience.
type KeyValue struct {
	HashKey []byte
	SortKey []byte
	Value   []byte
}

const (
	scanMethod       = "RPC_RRDB_RRDB_SCAN"
	scanCancelMethod = "RPC_RRDB_RRDB_CLEAR_SCANNER"
	noContext        = int64(-1)
)

// Cursor iterates one partition's key range, resuming via a server-side
// context id until the batch is empty and no context remains, or the stop
// key is crossed (spec.md §4.8 "Bounded scan"). Once exhausted, Next
// idempotently keeps returning (nil, false, nil) (spec.md §8: "Idempotent
// cursor end").
type Cursor struct {
	executor *exec.Executor
	handle   *table.Handle
	opts     Options

	partitionIndex int
	startKey       []byte
	stopKey        []byte
	contextID      int64
	done           bool
}

// NewCursor opens a bounded single-partition scan over one hashKey's sort
// key range (spec.md §4.8 "get_scanner"). An empty stopSort means scan to
// the hashKey's upper bound.
func NewCursor(ctx context.Context, executor *exec.Executor, handle *table.Handle, hashKey, startSort, stopSort []byte, opts Options) (*Cursor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	startKey, err := codec.EncodeKey(hashKey, startSort)
	if err != nil {
		return nil, err
	}
	var stopKey []byte
	if len(stopSort) == 0 {
		stopKey, err = codec.EncodeHashKeyUpperBound(hashKey)
	} else {
		stopKey, err = codec.EncodeKey(hashKey, stopSort)
	}
	if err != nil {
		return nil, err
	}

	partitionIndex, _, err := handle.Route(hashKey)
	if err != nil {
		return nil, err
	}

	return &Cursor{
		executor:       executor,
		handle:         handle,
		opts:           opts,
		partitionIndex: partitionIndex,
		startKey:       startKey,
		stopKey:        stopKey,
		contextID:      0,
	}, nil
}

// newPartitionCursor opens a cursor over partitionIndex's full key range,
// used by the unordered multi-partition splitter below: it has no hashKey
// filter of its own, only a partition to iterate in full.
func newPartitionCursor(executor *exec.Executor, handle *table.Handle, partitionIndex int, opts Options) *Cursor {
	return &Cursor{
		executor:       executor,
		handle:         handle,
		opts:           opts,
		partitionIndex: partitionIndex,
		startKey:       []byte{},
		stopKey:        []byte{}, // empty stop key means "scan to the end of the partition"
		contextID:      0,
	}
}

// Next fetches the next batch, or (nil, false, nil) once the cursor has
// reached its stop key or the server reports exhaustion. It never issues
// another RPC after exhaustion (spec.md §8 "Idempotent cursor end").
func (c *Cursor) Next(ctx context.Context, deadline time.Time) ([]KeyValue, bool, error) {
	if c.done {
		return nil, false, nil
	}
	if deadline.IsZero() {
		deadline = time.Now().Add(c.opts.OperationTimeout)
	}

	req := &idl.ScanRequest{
		StartKey:       idl.Blob{Data: c.startKey},
		StopKey:        idl.Blob{Data: c.stopKey},
		StartInclusive: c.opts.StartInclusive,
		StopInclusive:  c.opts.StopInclusive,
		BatchSize:      c.opts.BatchSize,
		NoValue:        c.opts.NoValue,
		ContextID:      c.contextID,
	}
	resp := &idl.ScanResponse{}
	op := exec.Op{
		Method:    scanMethod,
		Args:      req,
		Reply:     resp,
		ErrorCode: func() idl.ErrorCode { return resp.Error },
	}

	if err := c.executor.ExecuteAtPartition(ctx, c.handle, c.partitionIndex, deadline, op); err != nil {
		return nil, false, err
	}

	batch := make([]KeyValue, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		hk, sk, err := codec.DecodeKey(kv.Key.Data)
		if err != nil {
			return nil, false, err
		}
		batch = append(batch, KeyValue{HashKey: hk, SortKey: sk, Value: kv.Value.Data})
	}

	c.contextID = resp.ContextID
	if resp.ContextID == noContext && len(batch) == 0 {
		c.done = true
		return nil, false, nil
	}
	if resp.ContextID == noContext {
		c.done = true
	}
	return batch, true, nil
}

// Close releases the server-side scan context early, if one is held.
func (c *Cursor) Close(ctx context.Context, deadline time.Time) error {
	if c.done || c.contextID == 0 {
		c.done = true
		return nil
	}
	req := &idl.ScanCancelRequest{ContextID: c.contextID}
	resp := &idl.SingleError{}
	op := exec.Op{
		Method:    scanCancelMethod,
		Args:      req,
		Reply:     resp,
		ErrorCode: func() idl.ErrorCode { return resp.Error },
	}
	c.done = true
	return c.executor.ExecuteAtPartition(ctx, c.handle, c.partitionIndex, deadline, op)
}

// Split returns at most maxSplitCount independent cursors together
// covering every partition of handle's table (spec.md §4.8 "Unordered
// multi-partition scan"). Partitions are assigned round-robin into
// min(maxSplitCount, partitionCount) buckets; each bucket iterates its
// partitions sequentially and the resulting cursors are independent,
// consumable in parallel by the caller.
func Split(executor *exec.Executor, handle *table.Handle, maxSplitCount int, opts Options) ([]*MultiPartitionCursor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if maxSplitCount <= 0 {
		return nil, perrors.InvalidArgumentf("scan: max split count must be positive, got %d", maxSplitCount)
	}
	m := handle.Snapshot()
	if m == nil {
		return nil, perrors.RoutingStalef("scan: table %s has no partition map yet", handle.Name)
	}

	bucketCount := maxSplitCount
	if m.PartitionCount < bucketCount {
		bucketCount = m.PartitionCount
	}
	buckets := make([][]int, bucketCount)
	for i := 0; i < m.PartitionCount; i++ {
		b := i % bucketCount
		buckets[b] = append(buckets[b], i)
	}

	cursors := make([]*MultiPartitionCursor, 0, bucketCount)
	for _, partitions := range buckets {
		cursors = append(cursors, &MultiPartitionCursor{
			executor:   executor,
			handle:     handle,
			opts:       opts,
			partitions: partitions,
		})
	}
	return cursors, nil
}

// MultiPartitionCursor iterates a fixed list of partitions sequentially,
// presenting them to the caller as one logical (unordered) cursor.
type MultiPartitionCursor struct {
	executor *exec.Executor
	handle   *table.Handle
	opts     Options

	partitions []int
	next       int
	current    *Cursor
}

// Next fetches the next batch from whichever partition is currently being
// drained, advancing to the following partition once the current one is
// exhausted, until every assigned partition has been drained.
func (m *MultiPartitionCursor) Next(ctx context.Context, deadline time.Time) ([]KeyValue, bool, error) {
	for {
		if m.current == nil {
			if m.next >= len(m.partitions) {
				return nil, false, nil
			}
			m.current = newPartitionCursor(m.executor, m.handle, m.partitions[m.next], m.opts)
			m.next++
		}

		batch, more, err := m.current.Next(ctx, deadline)
		if err != nil {
			return nil, false, err
		}
		if !more {
			m.current = nil
			continue
		}
		return batch, true, nil
	}
}
