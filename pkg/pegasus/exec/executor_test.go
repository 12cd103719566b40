package exec

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/meta"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
	"github.com/pegasus-kv/go-client/pkg/pegasus/rpc"
	"github.com/pegasus-kv/go-client/pkg/pegasus/table"
)

type wireTransport struct{ conn net.Conn }

func (t *wireTransport) IsOpen() bool                { return true }
func (t *wireTransport) Open() error                 { return nil }
func (t *wireTransport) Close() error                { return t.conn.Close() }
func (t *wireTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *wireTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *wireTransport) Flush(context.Context) error { return nil }
func (t *wireTransport) RemainingBytes() uint64      { return ^uint64(0) }

func serveOnce(t *testing.T, l net.Listener, handle func(method string, protocol thrift.TProtocol, seqid int32)) {
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		transport := thrift.NewTFramedTransport(&wireTransport{conn})
		protocol := thrift.NewTBinaryProtocolTransport(transport)
		ctx := context.Background()
		for {
			name, _, seqid, err := protocol.ReadMessageBegin(ctx)
			if err != nil {
				return
			}
			handle(name, protocol, seqid)
		}
	}()
}

func startMetaServer(t *testing.T, replicaAddr string) net.Listener {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serveOnce(t, l, func(method string, protocol thrift.TProtocol, seqid int32) {
		ctx := context.Background()
		req := &idl.QueryConfigRequest{}
		require.NoError(t, req.Read(ctx, protocol))
		require.NoError(t, protocol.ReadMessageEnd(ctx))

		resp := &idl.QueryConfigResponse{
			Err:            idl.ErrOK,
			AppID:          1,
			PartitionCount: 1,
			Partitions: []idl.PartitionConfiguration{
				{Pid: idl.Gpid{AppID: 1, PartitionIndex: 0}, Ballot: 1, PrimaryEndpoint: replicaAddr},
			},
		}
		require.NoError(t, protocol.WriteMessageBegin(ctx, method, thrift.REPLY, seqid))
		require.NoError(t, resp.Write(ctx, protocol))
		require.NoError(t, protocol.WriteMessageEnd(ctx))
		require.NoError(t, protocol.Flush(ctx))
	})
	return l
}

func TestExecutorRetriesOnRoutingStaleThenSucceeds(t *testing.T) {
	var replicaCalls int
	replicaL, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := replicaL.Accept()
		if err != nil {
			return
		}
		transport := thrift.NewTFramedTransport(&wireTransport{conn})
		protocol := thrift.NewTBinaryProtocolTransport(transport)
		ctx := context.Background()
		for {
			name, _, seqid, err := protocol.ReadMessageBegin(ctx)
			if err != nil {
				return
			}
			req := &idl.UpdateRequest{}
			require.NoError(t, req.Read(ctx, protocol))
			require.NoError(t, protocol.ReadMessageEnd(ctx))

			replicaCalls++
			resp := &idl.GetResponse{Error: idl.ErrInvalidState}
			if replicaCalls > 1 {
				resp = &idl.GetResponse{Error: idl.ErrOK, Value: idl.Blob{Data: []byte("v1")}}
			}
			require.NoError(t, protocol.WriteMessageBegin(ctx, name, thrift.REPLY, seqid))
			require.NoError(t, resp.Write(ctx, protocol))
			require.NoError(t, protocol.WriteMessageEnd(ctx))
			require.NoError(t, protocol.Flush(ctx))
		}
	}()
	defer replicaL.Close()

	metaL := startMetaServer(t, replicaL.Addr().String())
	defer metaL.Close()

	pool := rpc.NewPool(time.Second, nil)
	defer pool.Close()
	resolver := meta.NewResolver([]string{metaL.Addr().String()}, pool, time.Second, nil)
	handle, err := table.Open(context.Background(), "t1", resolver, nil)
	require.NoError(t, err)

	executor := NewExecutor(pool, DefaultConfig(), nil)

	reply := &idl.GetResponse{}
	op := Op{
		Method:    "RPC_RRDB_RRDB_GET",
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: []byte("k")}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}

	err = executor.Execute(context.Background(), handle, []byte("hash"), time.Now().Add(5*time.Second), op)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), reply.Value.Data)
	assert.Equal(t, 2, replicaCalls)
}

func TestExecutorSurfacesApplicationError(t *testing.T) {
	replicaL, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serveOnce(t, replicaL, func(method string, protocol thrift.TProtocol, seqid int32) {
		ctx := context.Background()
		req := &idl.UpdateRequest{}
		require.NoError(t, req.Read(ctx, protocol))
		require.NoError(t, protocol.ReadMessageEnd(ctx))

		resp := &idl.GetResponse{Error: idl.ErrWriteConflict}
		require.NoError(t, protocol.WriteMessageBegin(ctx, method, thrift.REPLY, seqid))
		require.NoError(t, resp.Write(ctx, protocol))
		require.NoError(t, protocol.WriteMessageEnd(ctx))
		require.NoError(t, protocol.Flush(ctx))
	})
	defer replicaL.Close()

	metaL := startMetaServer(t, replicaL.Addr().String())
	defer metaL.Close()

	pool := rpc.NewPool(time.Second, nil)
	defer pool.Close()
	resolver := meta.NewResolver([]string{metaL.Addr().String()}, pool, time.Second, nil)
	handle, err := table.Open(context.Background(), "t1", resolver, nil)
	require.NoError(t, err)

	executor := NewExecutor(pool, DefaultConfig(), nil)
	reply := &idl.GetResponse{}
	op := Op{
		Method:    "RPC_RRDB_RRDB_GET",
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: []byte("k")}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}

	err = executor.Execute(context.Background(), handle, []byte("hash"), time.Now().Add(5*time.Second), op)
	require.Error(t, err)
	ae, ok := perrors.IsApplicationError(err)
	require.True(t, ok)
	assert.Equal(t, string(idl.ErrWriteConflict), ae.Code)
}

func TestExecutorSurfacesErrorWhenReplicaUnreachable(t *testing.T) {
	metaL := startMetaServer(t, "127.0.0.1:1") // nothing listens there
	defer metaL.Close()

	pool := rpc.NewPool(50*time.Millisecond, nil)
	defer pool.Close()
	resolver := meta.NewResolver([]string{metaL.Addr().String()}, pool, time.Second, nil)
	handle, err := table.Open(context.Background(), "t1", resolver, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	cfg.InitialBackoff = 5 * time.Millisecond
	executor := NewExecutor(pool, cfg, nil)

	reply := &idl.GetResponse{}
	op := Op{
		Method:    "RPC_RRDB_RRDB_GET",
		Args:      &idl.UpdateRequest{Key: idl.Blob{Data: []byte("k")}},
		Reply:     reply,
		ErrorCode: func() idl.ErrorCode { return reply.Error },
	}

	err = executor.Execute(context.Background(), handle, []byte("hash"), time.Now().Add(500*time.Millisecond), op)
	require.Error(t, err)
}
