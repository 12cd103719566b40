package idl

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// KeyValue pairs a sort key with its value, used by multi_get/multi_put
// responses and scan batches.
type KeyValue struct {
	Key   Blob
	Value Blob
}

func (kv *KeyValue) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "key_value"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "key", 1, &kv.Key); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "value", 2, &kv.Value); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (kv *KeyValue) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRUCT:
			if err := kv.Key.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.STRUCT:
			if err := kv.Value.Read(ctx, p); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// UpdateRequest is the get/remove/ttl/exist argument: a single encoded key.
type UpdateRequest struct {
	Key Blob
}

func (r *UpdateRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "update_request"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "key", 1, &r.Key); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *UpdateRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		if id == 1 && typeID == thrift.STRUCT {
			if err := r.Key.Read(ctx, p); err != nil {
				return err
			}
		} else if err := p.Skip(ctx, typeID); err != nil {
			return err
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// PutRequest is the put argument: encoded key, value, and a ttl in seconds
// (0 means no expiration).
type PutRequest struct {
	Key             Blob
	Value           Blob
	ExpireTsSeconds int32
}

func (r *PutRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "put_request"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "key", 1, &r.Key); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "value", 2, &r.Value); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "expire_ts_seconds", 3, r.ExpireTsSeconds); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *PutRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRUCT:
			if err := r.Key.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.STRUCT:
			if err := r.Value.Read(ctx, p); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.I32:
			if r.ExpireTsSeconds, err = p.ReadI32(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// SingleError is the common reply shape shared by put/remove: just an error
// code.
type SingleError struct {
	Error ErrorCode
}

func (r *SingleError) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "single_error"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "error", 1, string(r.Error)); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *SingleError) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		if id == 1 && typeID == thrift.STRING {
			s, err := p.ReadString(ctx)
			if err != nil {
				return err
			}
			r.Error = ErrorCode(s)
		} else if err := p.Skip(ctx, typeID); err != nil {
			return err
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// GetResponse is the get reply: error code plus the value when present.
type GetResponse struct {
	Error ErrorCode
	Value Blob
}

func (r *GetResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "get_response"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "error", 1, string(r.Error)); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "value", 2, &r.Value); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *GetResponse) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRING:
			s, err := p.ReadString(ctx)
			if err != nil {
				return err
			}
			r.Error = ErrorCode(s)
		case id == 2 && typeID == thrift.STRUCT:
			if err := r.Value.Read(ctx, p); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// TTLResponse is the ttl reply: error code (ERR_OBJECT_NOT_FOUND when the
// key is absent, matching GetResponse) plus remaining seconds, where -1
// means no expiration is set.
type TTLResponse struct {
	Error      ErrorCode
	TTLSeconds int32
}

func (r *TTLResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "ttl_response"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "error", 1, string(r.Error)); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "ttl_seconds", 2, r.TTLSeconds); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *TTLResponse) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRING:
			s, err := p.ReadString(ctx)
			if err != nil {
				return err
			}
			r.Error = ErrorCode(s)
		case id == 2 && typeID == thrift.I32:
			if r.TTLSeconds, err = p.ReadI32(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// CountResponse is the sortkey_count reply: error code plus the number of
// sort keys. There is no separate exist reply type; exist replies with
// SingleError.
type CountResponse struct {
	Error ErrorCode
	Count int64
}

func (r *CountResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "count_response"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "error", 1, string(r.Error)); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, "count", 2, r.Count); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *CountResponse) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRING:
			s, err := p.ReadString(ctx)
			if err != nil {
				return err
			}
			r.Error = ErrorCode(s)
		case id == 2 && typeID == thrift.I64:
			if r.Count, err = p.ReadI64(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// MultiGetRequest carries either an explicit sort-key list or a sort-key
// range within one hashKey, matching spec.md §4.3/§6.
type MultiGetRequest struct {
	HashKey        Blob
	SortKeys       []Blob // empty means "use the range below"
	StartSortKey   Blob
	StopSortKey    Blob
	StartInclusive bool
	StopInclusive  bool
	MaxKvCount     int32
	MaxKvSize      int32
	NoValue        bool
}

func (r *MultiGetRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "multi_get_request"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "hash_key", 1, &r.HashKey); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "sort_keys", thrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(r.SortKeys)); err != nil {
		return err
	}
	for i := range r.SortKeys {
		if err := r.SortKeys[i].Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "start_sortkey", 3, &r.StartSortKey); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "stop_sortkey", 4, &r.StopSortKey); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "start_inclusive", 5, r.StartInclusive); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "stop_inclusive", 6, r.StopInclusive); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "max_kv_count", 7, r.MaxKvCount); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "max_kv_size", 8, r.MaxKvSize); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "no_value", 9, r.NoValue); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *MultiGetRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRUCT:
			if err := r.HashKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.LIST:
			_, n, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			r.SortKeys = make([]Blob, n)
			for i := 0; i < n; i++ {
				if err := r.SortKeys[i].Read(ctx, p); err != nil {
					return err
				}
			}
			if err := p.ReadListEnd(ctx); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.STRUCT:
			if err := r.StartSortKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 4 && typeID == thrift.STRUCT:
			if err := r.StopSortKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 5 && typeID == thrift.BOOL:
			if r.StartInclusive, err = p.ReadBool(ctx); err != nil {
				return err
			}
		case id == 6 && typeID == thrift.BOOL:
			if r.StopInclusive, err = p.ReadBool(ctx); err != nil {
				return err
			}
		case id == 7 && typeID == thrift.I32:
			if r.MaxKvCount, err = p.ReadI32(ctx); err != nil {
				return err
			}
		case id == 8 && typeID == thrift.I32:
			if r.MaxKvSize, err = p.ReadI32(ctx); err != nil {
				return err
			}
		case id == 9 && typeID == thrift.BOOL:
			if r.NoValue, err = p.ReadBool(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// MultiGetResponse returns the matched (sortKey, value) pairs. AllFetched
// is false when MaxKvCount/MaxKvSize cut the reply short of the full
// requested range, so the caller knows to page with a narrower start bound.
type MultiGetResponse struct {
	Error      ErrorCode
	Kvs        []KeyValue
	AllFetched bool
}

func (r *MultiGetResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "multi_get_response"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "error", 1, string(r.Error)); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "kvs", thrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(r.Kvs)); err != nil {
		return err
	}
	for i := range r.Kvs {
		if err := r.Kvs[i].Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "all_fetched", 3, r.AllFetched); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *MultiGetResponse) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRING:
			s, err := p.ReadString(ctx)
			if err != nil {
				return err
			}
			r.Error = ErrorCode(s)
		case id == 2 && typeID == thrift.LIST:
			_, n, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			r.Kvs = make([]KeyValue, n)
			for i := 0; i < n; i++ {
				if err := r.Kvs[i].Read(ctx, p); err != nil {
					return err
				}
			}
			if err := p.ReadListEnd(ctx); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.BOOL:
			if r.AllFetched, err = p.ReadBool(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// MultiPutRequest writes several (sortKey, value) pairs under one hashKey.
type MultiPutRequest struct {
	HashKey         Blob
	Kvs             []KeyValue
	ExpireTsSeconds int32
}

func (r *MultiPutRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "multi_put_request"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "hash_key", 1, &r.HashKey); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "kvs", thrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(r.Kvs)); err != nil {
		return err
	}
	for i := range r.Kvs {
		if err := r.Kvs[i].Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "expire_ts_seconds", 3, r.ExpireTsSeconds); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *MultiPutRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRUCT:
			if err := r.HashKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.LIST:
			_, n, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			r.Kvs = make([]KeyValue, n)
			for i := 0; i < n; i++ {
				if err := r.Kvs[i].Read(ctx, p); err != nil {
					return err
				}
			}
			if err := p.ReadListEnd(ctx); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.I32:
			if r.ExpireTsSeconds, err = p.ReadI32(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// MultiRemoveRequest deletes several sort keys under one hashKey.
type MultiRemoveRequest struct {
	HashKey  Blob
	SortKeys []Blob
}

func (r *MultiRemoveRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "multi_remove_request"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "hash_key", 1, &r.HashKey); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "sort_keys", thrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(r.SortKeys)); err != nil {
		return err
	}
	for i := range r.SortKeys {
		if err := r.SortKeys[i].Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *MultiRemoveRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRUCT:
			if err := r.HashKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.LIST:
			_, n, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			r.SortKeys = make([]Blob, n)
			for i := 0; i < n; i++ {
				if err := r.SortKeys[i].Read(ctx, p); err != nil {
					return err
				}
			}
			if err := p.ReadListEnd(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// ScanRequest opens or continues a range scan over one partition.
type ScanRequest struct {
	StartKey       Blob
	StopKey        Blob
	StartInclusive bool
	StopInclusive  bool
	BatchSize      int32
	NoValue        bool
	ContextID      int64 // 0 means "open a new scan"
}

func (r *ScanRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "scan_request"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "start_key", 1, &r.StartKey); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "stop_key", 2, &r.StopKey); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "start_inclusive", 3, r.StartInclusive); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "stop_inclusive", 4, r.StopInclusive); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "batch_size", 5, r.BatchSize); err != nil {
		return err
	}
	if err := writeBoolField(ctx, p, "no_value", 6, r.NoValue); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, "context_id", 7, r.ContextID); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *ScanRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRUCT:
			if err := r.StartKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.STRUCT:
			if err := r.StopKey.Read(ctx, p); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.BOOL:
			if r.StartInclusive, err = p.ReadBool(ctx); err != nil {
				return err
			}
		case id == 4 && typeID == thrift.BOOL:
			if r.StopInclusive, err = p.ReadBool(ctx); err != nil {
				return err
			}
		case id == 5 && typeID == thrift.I32:
			if r.BatchSize, err = p.ReadI32(ctx); err != nil {
				return err
			}
		case id == 6 && typeID == thrift.BOOL:
			if r.NoValue, err = p.ReadBool(ctx); err != nil {
				return err
			}
		case id == 7 && typeID == thrift.I64:
			if r.ContextID, err = p.ReadI64(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// ScanResponse carries one batch of a scan plus the context id to resume
// with, or -1 when the server has exhausted the partition.
type ScanResponse struct {
	Error     ErrorCode
	Kvs       []KeyValue
	ContextID int64
}

func (r *ScanResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "scan_response"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "error", 1, string(r.Error)); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "kvs", thrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(r.Kvs)); err != nil {
		return err
	}
	for i := range r.Kvs {
		if err := r.Kvs[i].Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, "context_id", 3, r.ContextID); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *ScanResponse) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		switch {
		case id == 1 && typeID == thrift.STRING:
			s, err := p.ReadString(ctx)
			if err != nil {
				return err
			}
			r.Error = ErrorCode(s)
		case id == 2 && typeID == thrift.LIST:
			_, n, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			r.Kvs = make([]KeyValue, n)
			for i := 0; i < n; i++ {
				if err := r.Kvs[i].Read(ctx, p); err != nil {
					return err
				}
			}
			if err := p.ReadListEnd(ctx); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.I64:
			if r.ContextID, err = p.ReadI64(ctx); err != nil {
				return err
			}
		default:
			if err := p.Skip(ctx, typeID); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// ScanCancelRequest tells the server to release a scan context early.
type ScanCancelRequest struct {
	ContextID int64
}

func (r *ScanCancelRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "scan_cancel_request"); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, "context_id", 1, r.ContextID); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *ScanCancelRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeID, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeID == thrift.STOP {
			break
		}
		if id == 1 && typeID == thrift.I64 {
			if r.ContextID, err = p.ReadI64(ctx); err != nil {
				return err
			}
		} else if err := p.Skip(ctx, typeID); err != nil {
			return err
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}
