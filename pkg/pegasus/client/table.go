package client

import (
	"context"
	"time"

	"github.com/pegasus-kv/go-client/pkg/pegasus/batch"
	"github.com/pegasus-kv/go-client/pkg/pegasus/codec"
	"github.com/pegasus-kv/go-client/pkg/pegasus/exec"
	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/scan"
	"github.com/pegasus-kv/go-client/pkg/pegasus/table"
)

const (
	methodGet          = "RPC_RRDB_RRDB_GET"
	methodPut          = "RPC_RRDB_RRDB_PUT"
	methodRemove       = "RPC_RRDB_RRDB_REMOVE"
	methodTTL          = "RPC_RRDB_RRDB_TTL"
	methodExist        = "RPC_RRDB_RRDB_EXIST"
	methodSortkeyCount = "RPC_RRDB_RRDB_SORTKEY_COUNT"
	methodMultiGet     = "RPC_RRDB_RRDB_MULTI_GET"
	methodMultiPut     = "RPC_RRDB_RRDB_MULTI_PUT"
	methodMultiRemove  = "RPC_RRDB_RRDB_MULTI_REMOVE"
)

// Table is a thin adapter over the Executor/Batch/Scan engines for one
// opened table (spec.md §4.9 "Client Facade"). It is safe for concurrent
// use: all state it touches (the table handle, the executor) is itself
// concurrency-safe.
type Table struct {
	handle   *table.Handle
	executor *exec.Executor
	timeout  time.Duration
}

// Name returns the table name this Table was opened with.
func (t *Table) Name() string { return t.handle.Name }

func (t *Table) deadline(timeout time.Duration) time.Time {
	return deadlineFrom(timeout, t.timeout)
}

// isNotFound reports whether err is the application error the server
// returns for "no record at this key" (spec.md §7: ApplicationError
// example "not-found-for-strict-ops").
func isNotFound(err error) bool {
	ae, ok := perrors.IsApplicationError(err)
	return ok && ae.Code == string(idl.ErrObjectNotFound)
}

// KeyValue is a (sortKey, value) pair within one hashKey, the multi-key
// operation unit of spec.md §4.1/§4.9.
type KeyValue struct {
	SortKey []byte
	Value   []byte
}

// Get reads one record. found is false, with a nil error, when the record
// does not exist.
func (t *Table) Get(ctx context.Context, hashKey, sortKey []byte, timeout time.Duration) (value []byte, found bool, err error) {
	key, err := codec.EncodeKey(hashKey, sortKey)
	if err != nil {
		return nil, false, err
	}
	reply := &idl.GetResponse{}
	op := exec.Op{
		Method:    methodGet,
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: key}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return reply.Value.Data, true, nil
}

// Set writes one record. ttl of 0 means no expiration.
func (t *Table) Set(ctx context.Context, hashKey, sortKey, value []byte, ttl time.Duration, timeout time.Duration) error {
	key, err := codec.EncodeKey(hashKey, sortKey)
	if err != nil {
		return err
	}
	reply := &idl.SingleError{}
	op := exec.Op{
		Method: methodPut,
		Args: &idl.PutRequest{
			Key:             idl.Blob{Data: key},
			Value:           idl.Blob{Data: value},
			ExpireTsSeconds: ttlSeconds(ttl),
		},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	return t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op)
}

// Del removes one record. Deleting an absent record is not an error.
func (t *Table) Del(ctx context.Context, hashKey, sortKey []byte, timeout time.Duration) error {
	key, err := codec.EncodeKey(hashKey, sortKey)
	if err != nil {
		return err
	}
	reply := &idl.SingleError{}
	op := exec.Op{
		Method:    methodRemove,
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: key}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// TTL returns the remaining time to live for a record, or found=false if it
// does not exist. A returned ttl < 0 means the record has no expiration.
func (t *Table) TTL(ctx context.Context, hashKey, sortKey []byte, timeout time.Duration) (ttl time.Duration, found bool, err error) {
	key, err := codec.EncodeKey(hashKey, sortKey)
	if err != nil {
		return 0, false, err
	}
	reply := &idl.TTLResponse{}
	op := exec.Op{
		Method:    methodTTL,
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: key}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if reply.TTLSeconds < 0 {
		return -1, true, nil
	}
	return time.Duration(reply.TTLSeconds) * time.Second, true, nil
}

// Exist reports whether a record is present.
func (t *Table) Exist(ctx context.Context, hashKey, sortKey []byte, timeout time.Duration) (bool, error) {
	key, err := codec.EncodeKey(hashKey, sortKey)
	if err != nil {
		return false, err
	}
	reply := &idl.SingleError{}
	op := exec.Op{
		Method:    methodExist,
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: key}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SortkeyCount returns the number of sort keys stored under hashKey.
func (t *Table) SortkeyCount(ctx context.Context, hashKey []byte, timeout time.Duration) (int64, error) {
	key, err := codec.EncodeKey(hashKey, nil)
	if err != nil {
		return 0, err
	}
	reply := &idl.CountResponse{}
	op := exec.Op{
		Method:    methodSortkeyCount,
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: key}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil {
		return 0, err
	}
	return reply.Count, nil
}

// defaultMaxFetchCount and defaultMaxFetchSize match the ground-truth
// client's own multiGet(hashKey, sortKeys, values) convenience default
// (PegasusClient.java's no-bound overload fixes these at 100 / 1000000).
const (
	defaultMaxFetchCount = 100
	defaultMaxFetchSize  = 1000000
)

// MultiGet reads an explicit list of sort keys under one hashKey, using the
// default fetch bounds. An empty sortKeys list is rejected; use
// MultiGetRange for a sort-key range scan.
func (t *Table) MultiGet(ctx context.Context, hashKey []byte, sortKeys [][]byte, timeout time.Duration) ([]KeyValue, error) {
	kvs, _, err := t.MultiGetBounded(ctx, hashKey, sortKeys, defaultMaxFetchCount, defaultMaxFetchSize, timeout)
	return kvs, err
}

// MultiGetBounded reads an explicit list of sort keys under one hashKey,
// capping the reply at maxCount entries and maxSize total bytes (<= 0 means
// unlimited). allFetched is false when the cap cut the reply short of the
// full requested sortKeys list, signaling the caller to page with the
// remaining sort keys (spec.md §4.3's multi-key op, bounded the way the
// ground-truth multiGet(hashKey, sortKeys, maxFetchCount, maxFetchSize,
// values) is).
func (t *Table) MultiGetBounded(ctx context.Context, hashKey []byte, sortKeys [][]byte, maxCount, maxSize int, timeout time.Duration) (kvs []KeyValue, allFetched bool, err error) {
	if len(sortKeys) == 0 {
		return nil, false, perrors.InvalidArgumentf("client: MultiGet requires at least one sort key")
	}
	blobs := make([]idl.Blob, len(sortKeys))
	for i, sk := range sortKeys {
		blobs[i] = idl.Blob{Data: sk}
	}
	req := &idl.MultiGetRequest{
		HashKey:    idl.Blob{Data: hashKey},
		SortKeys:   blobs,
		MaxKvCount: int32(maxCount),
		MaxKvSize:  int32(maxSize),
	}
	return t.multiGet(ctx, hashKey, req, timeout)
}

// MultiGetRange reads every sort key in [startSort, stopSort) under one
// hashKey, using the default fetch bounds.
func (t *Table) MultiGetRange(ctx context.Context, hashKey, startSort, stopSort []byte, timeout time.Duration) ([]KeyValue, error) {
	kvs, _, err := t.MultiGetRangeBounded(ctx, hashKey, startSort, stopSort, defaultMaxFetchCount, defaultMaxFetchSize, timeout)
	return kvs, err
}

// MultiGetRangeBounded reads every sort key in [startSort, stopSort) under
// one hashKey, capping the reply at maxCount entries and maxSize total
// bytes (<= 0 means unlimited). allFetched is false when the range has more
// matching sort keys than the cap allowed through.
func (t *Table) MultiGetRangeBounded(ctx context.Context, hashKey, startSort, stopSort []byte, maxCount, maxSize int, timeout time.Duration) (kvs []KeyValue, allFetched bool, err error) {
	req := &idl.MultiGetRequest{
		HashKey:        idl.Blob{Data: hashKey},
		StartSortKey:   idl.Blob{Data: startSort},
		StopSortKey:    idl.Blob{Data: stopSort},
		StartInclusive: true,
		MaxKvCount:     int32(maxCount),
		MaxKvSize:      int32(maxSize),
	}
	return t.multiGet(ctx, hashKey, req, timeout)
}

// MultiGetSortKeys reads every sort key (without fetching values) under one
// hashKey, capping the reply at maxCount entries and maxSize total bytes;
// allFetched is false when the cap cut the reply short. Grounded on the ground-truth
// client's multiGetSortKeys, which is the same multi_get RPC with NoValue
// set, not a distinct wire method.
func (t *Table) MultiGetSortKeys(ctx context.Context, hashKey []byte, maxCount, maxSize int, timeout time.Duration) (sortKeys [][]byte, allFetched bool, err error) {
	req := &idl.MultiGetRequest{
		HashKey:    idl.Blob{Data: hashKey},
		NoValue:    true,
		MaxKvCount: int32(maxCount),
		MaxKvSize:  int32(maxSize),
	}
	kvs, allFetched, err := t.multiGet(ctx, hashKey, req, timeout)
	if err != nil {
		return nil, false, err
	}
	sortKeys = make([][]byte, len(kvs))
	for i, kv := range kvs {
		sortKeys[i] = kv.SortKey
	}
	return sortKeys, allFetched, nil
}

func (t *Table) multiGet(ctx context.Context, hashKey []byte, req *idl.MultiGetRequest, timeout time.Duration) ([]KeyValue, bool, error) {
	reply := &idl.MultiGetResponse{}
	op := exec.Op{
		Method:    methodMultiGet,
		Args:      req,
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil {
		if isNotFound(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	kvs := make([]KeyValue, len(reply.Kvs))
	for i, kv := range reply.Kvs {
		kvs[i] = KeyValue{SortKey: kv.Key.Data, Value: kv.Value.Data}
	}
	return kvs, reply.AllFetched, nil
}

// MultiSet writes several (sortKey, value) pairs under one hashKey
// atomically relative to that hashKey (spec.md §1).
func (t *Table) MultiSet(ctx context.Context, hashKey []byte, kvs []KeyValue, ttl time.Duration, timeout time.Duration) error {
	if len(kvs) == 0 {
		return perrors.InvalidArgumentf("client: MultiSet requires at least one key-value pair")
	}
	idlKvs := make([]idl.KeyValue, len(kvs))
	for i, kv := range kvs {
		idlKvs[i] = idl.KeyValue{Key: idl.Blob{Data: kv.SortKey}, Value: idl.Blob{Data: kv.Value}}
	}
	reply := &idl.SingleError{}
	op := exec.Op{
		Method: methodMultiPut,
		Args: &idl.MultiPutRequest{
			HashKey:         idl.Blob{Data: hashKey},
			Kvs:             idlKvs,
			ExpireTsSeconds: ttlSeconds(ttl),
		},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	return t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op)
}

// MultiDel removes several sort keys under one hashKey.
func (t *Table) MultiDel(ctx context.Context, hashKey []byte, sortKeys [][]byte, timeout time.Duration) error {
	if len(sortKeys) == 0 {
		return perrors.InvalidArgumentf("client: MultiDel requires at least one sort key")
	}
	blobs := make([]idl.Blob, len(sortKeys))
	for i, sk := range sortKeys {
		blobs[i] = idl.Blob{Data: sk}
	}
	reply := &idl.SingleError{}
	op := exec.Op{
		Method:    methodMultiRemove,
		Args:      &idl.MultiRemoveRequest{HashKey: idl.Blob{Data: hashKey}, SortKeys: blobs},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}
	if err := t.executor.Execute(ctx, t.handle, hashKey, t.deadline(timeout), op); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func ttlSeconds(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	return int32(ttl / time.Second)
}

// GetScanner opens a bounded single-partition scan cursor over one
// hashKey's sort key range (spec.md §4.8 "get_scanner"). An empty stopSort
// scans to the hashKey's upper bound.
func (t *Table) GetScanner(ctx context.Context, hashKey, startSort, stopSort []byte, opts scan.Options) (*scan.Cursor, error) {
	return scan.NewCursor(ctx, t.executor, t.handle, hashKey, startSort, stopSort, opts)
}

// GetUnorderedScanners returns up to maxSplitCount independent cursors
// together covering the whole table (spec.md §4.8 "get_unordered_scanners").
func (t *Table) GetUnorderedScanners(maxSplitCount int, opts scan.Options) ([]*scan.MultiPartitionCursor, error) {
	return scan.Split(t.executor, t.handle, maxSplitCount, opts)
}

// GetItem and SetItem below are the batch-engine item constructors: each
// closes over one key and the shared Table, adapting a single-key op into
// a batch.Item the Batch Engine (spec.md §4.7) fans out concurrently.

// GetResult is the boxed result a GetItem's batch.Item yields.
type GetResult struct {
	Value []byte
	Found bool
}

// GetItem returns a batch.Item performing Get(hashKey, sortKey). A missing
// record is a successful GetResult{Found: false}, not a batch failure,
// mirroring Get's own (nil, false, nil) contract.
func (t *Table) GetItem(hashKey, sortKey []byte, timeout time.Duration) batch.Item {
	return func(ctx context.Context) (interface{}, error) {
		value, found, err := t.Get(ctx, hashKey, sortKey, timeout)
		if err != nil {
			return nil, err
		}
		return GetResult{Value: value, Found: found}, nil
	}
}

// SetItem returns a batch.Item performing Set(hashKey, sortKey, value, ttl).
func (t *Table) SetItem(hashKey, sortKey, value []byte, ttl, timeout time.Duration) batch.Item {
	return func(ctx context.Context) (interface{}, error) {
		return nil, t.Set(ctx, hashKey, sortKey, value, ttl, timeout)
	}
}

// DelItem returns a batch.Item performing Del(hashKey, sortKey).
func (t *Table) DelItem(hashKey, sortKey []byte, timeout time.Duration) batch.Item {
	return func(ctx context.Context) (interface{}, error) {
		return nil, t.Del(ctx, hashKey, sortKey, timeout)
	}
}

// MultiGetItem returns a batch.Item performing MultiGet(hashKey, sortKeys),
// the "batchMulti*" variant of spec.md §4.7: each batch item is itself a
// multi-key operation against a single hashKey.
func (t *Table) MultiGetItem(hashKey []byte, sortKeys [][]byte, timeout time.Duration) batch.Item {
	return func(ctx context.Context) (interface{}, error) {
		return t.MultiGet(ctx, hashKey, sortKeys, timeout)
	}
}

// BatchGet fans out N independent Get calls and propagates the first error,
// or returns all results on success (spec.md §4.7 "batch*").
func (t *Table) BatchGet(ctx context.Context, items []batch.Item) ([]interface{}, error) {
	return batch.FailFast(ctx, items)
}

// BatchGet2 fans out N independent Get calls tolerantly, filling a parallel
// results vector and returning the failure count (spec.md §4.7 "batch*2").
func (t *Table) BatchGet2(ctx context.Context, items []batch.Item) ([]batch.Result, int) {
	return batch.Tolerant(ctx, items)
}

// BatchSet is the fail-fast write analogue of BatchGet.
func (t *Table) BatchSet(ctx context.Context, items []batch.Item) error {
	_, err := batch.FailFast(ctx, items)
	return err
}

// BatchSet2 is the tolerant write analogue of BatchGet2.
func (t *Table) BatchSet2(ctx context.Context, items []batch.Item) (int, error) {
	_, failures := batch.Tolerant(ctx, items)
	return failures, nil
}

// BatchDel is the fail-fast delete analogue of BatchGet.
func (t *Table) BatchDel(ctx context.Context, items []batch.Item) error {
	_, err := batch.FailFast(ctx, items)
	return err
}

// BatchDel2 is the tolerant delete analogue of BatchGet2.
func (t *Table) BatchDel2(ctx context.Context, items []batch.Item) (int, error) {
	_, failures := batch.Tolerant(ctx, items)
	return failures, nil
}

// BatchMultiGet fans out N independent multi-hashKey reads, fail-fast
// (spec.md §4.7 "batchMulti*").
func (t *Table) BatchMultiGet(ctx context.Context, items []batch.Item) ([]interface{}, error) {
	return batch.FailFast(ctx, items)
}

// BatchMultiGet2 fans out N independent multi-hashKey reads, tolerantly.
func (t *Table) BatchMultiGet2(ctx context.Context, items []batch.Item) ([]batch.Result, int) {
	return batch.Tolerant(ctx, items)
}
