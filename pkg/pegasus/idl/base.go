// Package idl holds the thrift-compatible argument/result structures for
// the storage and meta protocols described in spec.md §6. These are the
// "wire IDL stubs" the spec treats as an out-of-scope external collaborator
// — only their semantic contract (field names, error codes) matters to the
// core, so this package is a compact hand-written stand-in for what would
// normally be generated by the thrift compiler from a .thrift file, not a
// full reproduction of the upstream IDL.
package idl

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// ThriftStruct is the minimal contract generated thrift structs satisfy:
// self-describing binary encode/decode against a thrift protocol.
type ThriftStruct interface {
	Write(ctx context.Context, p thrift.TProtocol) error
	Read(ctx context.Context, p thrift.TProtocol) error
}

// Blob is the thrift wire representation of an opaque byte string, mirroring
// base.blob in the real pegasus IDL.
type Blob struct {
	Data []byte
}

func (b *Blob) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "blob"); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "data", thrift.STRING, 1); err != nil {
		return err
	}
	if err := p.WriteBinary(ctx, b.Data); err != nil {
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

func (b *Blob) Read(ctx context.Context, p thrift.TProtocol) error {
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
			data, err := p.ReadBinary(ctx)
			if err != nil {
				return err
			}
			b.Data = data
		} else if err := p.Skip(ctx, typeID); err != nil {
			return err
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// Gpid is the "global partition id": (app_id, partition_index).
type Gpid struct {
	AppID          int32
	PartitionIndex int32
}

func (g *Gpid) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "gpid"); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "app_id", 1, g.AppID); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "partition_index", 2, g.PartitionIndex); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (g *Gpid) Read(ctx context.Context, p thrift.TProtocol) error {
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
		case id == 1 && typeID == thrift.I32:
			if g.AppID, err = p.ReadI32(ctx); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.I32:
			if g.PartitionIndex, err = p.ReadI32(ctx); err != nil {
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

// ErrorCode is the server-side application error code, e.g. ERR_OK,
// ERR_OBJECT_NOT_FOUND, ERR_INVALID_STATE.
type ErrorCode string

const (
	ErrOK                       ErrorCode = "ERR_OK"
	ErrObjectNotFound           ErrorCode = "ERR_OBJECT_NOT_FOUND"
	ErrInvalidState             ErrorCode = "ERR_INVALID_STATE"
	ErrParentPartitionMisused   ErrorCode = "ERR_PARENT_PARTITION_MISUSED"
	ErrNotPrimary               ErrorCode = "ERR_NOT_PRIMARY"
	ErrTryAgain                 ErrorCode = "ERR_TRY_AGAIN"
	ErrTimeoutCode              ErrorCode = "ERR_TIMEOUT"
	ErrInvalidParameters        ErrorCode = "ERR_INVALID_PARAMETERS"
	ErrWriteConflict            ErrorCode = "ERR_WRITE_CONFLICT"
)

// IsRoutingError reports whether code is one of the "not primary"/"not yet
// initialized" family per spec.md §4.6 step 3. ERR_OBJECT_NOT_FOUND is
// deliberately excluded: at the storage protocol level it means "no record
// at this key" (spec.md §7's "not-found-for-strict-ops"), an application
// error surfaced directly, not a signal that the contacted replica is wrong.
func (c ErrorCode) IsRoutingError() bool {
	switch c {
	case ErrInvalidState, ErrParentPartitionMisused, ErrNotPrimary:
		return true
	default:
		return false
	}
}

// IsOK reports whether code indicates success.
func (c ErrorCode) IsOK() bool {
	return c == ErrOK || c == ""
}

var errShortWrite = errors.New("idl: short write")

func writeI32Field(ctx context.Context, p thrift.TProtocol, name string, id int16, v int32) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.I32, id); err != nil {
		return err
	}
	if err := p.WriteI32(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeI64Field(ctx context.Context, p thrift.TProtocol, name string, id int16, v int64) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.I64, id); err != nil {
		return err
	}
	if err := p.WriteI64(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeBoolField(ctx context.Context, p thrift.TProtocol, name string, id int16, v bool) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.BOOL, id); err != nil {
		return err
	}
	if err := p.WriteBool(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeStringField(ctx context.Context, p thrift.TProtocol, name string, id int16, v string) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.STRING, id); err != nil {
		return err
	}
	if err := p.WriteString(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeStructField(ctx context.Context, p thrift.TProtocol, name string, id int16, v ThriftStruct) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.STRUCT, id); err != nil {
		return err
	}
	if v == nil {
		if err := p.WriteStructBegin(ctx, name); err != nil {
			return err
		}
		if err := p.WriteFieldStop(ctx); err != nil {
			return err
		}
		if err := p.WriteStructEnd(ctx); err != nil {
			return err
		}
	} else if err := v.Write(ctx, p); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}
