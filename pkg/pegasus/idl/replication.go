package idl

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// PartitionConfiguration is one partition's routing entry as reported by
// the meta server: its gpid, the current primary's address, and the ballot
// distinguishing successive primaries (spec.md §2.4/§GLOSSARY).
type PartitionConfiguration struct {
	Pid             Gpid
	Ballot          int64
	PrimaryEndpoint string // host:port, empty means "no primary"
	MaxReplicaCount int32
}

func (c *PartitionConfiguration) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "partition_configuration"); err != nil {
		return err
	}
	if err := writeStructField(ctx, p, "pid", 1, &c.Pid); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, "ballot", 2, c.Ballot); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "primary", 3, c.PrimaryEndpoint); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "max_replica_count", 4, c.MaxReplicaCount); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (c *PartitionConfiguration) Read(ctx context.Context, p thrift.TProtocol) error {
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
			if err := c.Pid.Read(ctx, p); err != nil {
				return err
			}
		case id == 2 && typeID == thrift.I64:
			if c.Ballot, err = p.ReadI64(ctx); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.STRING:
			if c.PrimaryEndpoint, err = p.ReadString(ctx); err != nil {
				return err
			}
		case id == 4 && typeID == thrift.I32:
			if c.MaxReplicaCount, err = p.ReadI32(ctx); err != nil {
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

// QueryConfigRequest asks a meta server for a table's current partition
// map (spec.md §6: "QueryConfig(table_name)").
type QueryConfigRequest struct {
	AppName string
}

func (r *QueryConfigRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "query_cfg_request"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "app_name", 1, r.AppName); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *QueryConfigRequest) Read(ctx context.Context, p thrift.TProtocol) error {
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
			if r.AppName, err = p.ReadString(ctx); err != nil {
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

// QueryConfigResponse is the meta server's reply: the table id, partition
// count, and per-partition routing entries. Status encodes "not primary"
// via Err plus an optional HintedPrimary (spec.md §6).
type QueryConfigResponse struct {
	Err            ErrorCode
	AppID          int32
	PartitionCount int32
	Partitions     []PartitionConfiguration
	HintedPrimary  string
}

func (r *QueryConfigResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "query_cfg_response"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "err", 1, string(r.Err)); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "app_id", 2, r.AppID); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, "partition_count", 3, r.PartitionCount); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "partitions", thrift.LIST, 4); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(r.Partitions)); err != nil {
		return err
	}
	for i := range r.Partitions {
		if err := r.Partitions[i].Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, "hinted_primary", 5, r.HintedPrimary); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (r *QueryConfigResponse) Read(ctx context.Context, p thrift.TProtocol) error {
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
			r.Err = ErrorCode(s)
		case id == 2 && typeID == thrift.I32:
			if r.AppID, err = p.ReadI32(ctx); err != nil {
				return err
			}
		case id == 3 && typeID == thrift.I32:
			if r.PartitionCount, err = p.ReadI32(ctx); err != nil {
				return err
			}
		case id == 4 && typeID == thrift.LIST:
			_, n, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			r.Partitions = make([]PartitionConfiguration, n)
			for i := 0; i < n; i++ {
				if err := r.Partitions[i].Read(ctx, p); err != nil {
					return err
				}
			}
			if err := p.ReadListEnd(ctx); err != nil {
				return err
			}
		case id == 5 && typeID == thrift.STRING:
			if r.HintedPrimary, err = p.ReadString(ctx); err != nil {
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
