package client

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegasus-kv/go-client/pkg/pegasus/batch"
	"github.com/pegasus-kv/go-client/pkg/pegasus/config"
	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
)

type wireTransport struct{ conn net.Conn }

func (t *wireTransport) IsOpen() bool                { return true }
func (t *wireTransport) Open() error                 { return nil }
func (t *wireTransport) Close() error                { return t.conn.Close() }
func (t *wireTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *wireTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *wireTransport) Flush(context.Context) error { return nil }
func (t *wireTransport) RemainingBytes() uint64      { return ^uint64(0) }

// fakeStep is one request/response exchange a fakeReplica serves in order.
type fakeStep struct {
	newReq  func() idl.ThriftStruct
	respond func(req idl.ThriftStruct) idl.ThriftStruct
}

func startFakeReplica(t *testing.T, steps []fakeStep) net.Listener {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		transport := thrift.NewTFramedTransport(&wireTransport{conn})
		protocol := thrift.NewTBinaryProtocolTransport(transport)
		ctx := context.Background()
		for _, step := range steps {
			name, _, seqid, err := protocol.ReadMessageBegin(ctx)
			if err != nil {
				return
			}
			req := step.newReq()
			if err := req.Read(ctx, protocol); err != nil {
				return
			}
			if err := protocol.ReadMessageEnd(ctx); err != nil {
				return
			}
			resp := step.respond(req)
			if err := protocol.WriteMessageBegin(ctx, name, thrift.REPLY, seqid); err != nil {
				return
			}
			if err := resp.Write(ctx, protocol); err != nil {
				return
			}
			if err := protocol.WriteMessageEnd(ctx); err != nil {
				return
			}
			if err := protocol.Flush(ctx); err != nil {
				return
			}
		}
	}()
	return l
}

func startFakeMeta(t *testing.T, replicaAddr string) net.Listener {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		transport := thrift.NewTFramedTransport(&wireTransport{conn})
		protocol := thrift.NewTBinaryProtocolTransport(transport)
		ctx := context.Background()
		name, _, seqid, err := protocol.ReadMessageBegin(ctx)
		if err != nil {
			return
		}
		req := &idl.QueryConfigRequest{}
		require.NoError(t, req.Read(ctx, protocol))
		require.NoError(t, protocol.ReadMessageEnd(ctx))

		resp := &idl.QueryConfigResponse{
			Err: idl.ErrOK, AppID: 1, PartitionCount: 1,
			Partitions: []idl.PartitionConfiguration{{Pid: idl.Gpid{AppID: 1, PartitionIndex: 0}, Ballot: 1, PrimaryEndpoint: replicaAddr}},
		}
		require.NoError(t, protocol.WriteMessageBegin(ctx, name, thrift.REPLY, seqid))
		require.NoError(t, resp.Write(ctx, protocol))
		require.NoError(t, protocol.WriteMessageEnd(ctx))
		require.NoError(t, protocol.Flush(ctx))
	}()
	return l
}

func newTestClient(t *testing.T, metaAddr string) *Client {
	cfg := &config.Config{MetaServers: []string{metaAddr}, OperationTimeout: time.Second}
	c := NewClient(cfg, nil)
	t.Cleanup(c.Close)
	return c
}

func TestClientOpenTableGetSetDel(t *testing.T) {
	steps := []fakeStep{
		{
			newReq:  func() idl.ThriftStruct { return &idl.PutRequest{} },
			respond: func(idl.ThriftStruct) idl.ThriftStruct { return &idl.SingleError{Error: idl.ErrOK} },
		},
		{
			newReq: func() idl.ThriftStruct { return &idl.UpdateRequest{} },
			respond: func(idl.ThriftStruct) idl.ThriftStruct {
				return &idl.GetResponse{Error: idl.ErrOK, Value: idl.Blob{Data: []byte("v1")}}
			},
		},
		{
			newReq:  func() idl.ThriftStruct { return &idl.UpdateRequest{} },
			respond: func(idl.ThriftStruct) idl.ThriftStruct { return &idl.SingleError{Error: idl.ErrOK} },
		},
	}
	replicaL := startFakeReplica(t, steps)
	defer replicaL.Close()
	metaL := startFakeMeta(t, replicaL.Addr().String())
	defer metaL.Close()

	c := newTestClient(t, metaL.Addr().String())
	tbl, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", tbl.Name())

	require.NoError(t, tbl.Set(context.Background(), []byte("h"), []byte("s"), []byte("v1"), 0, 0))

	value, found, err := tbl.Get(context.Background(), []byte("h"), []byte("s"), 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	require.NoError(t, tbl.Del(context.Background(), []byte("h"), []byte("s"), 0))
}

func TestTableGetNotFoundReturnsNoError(t *testing.T) {
	steps := []fakeStep{
		{
			newReq: func() idl.ThriftStruct { return &idl.UpdateRequest{} },
			respond: func(idl.ThriftStruct) idl.ThriftStruct {
				return &idl.GetResponse{Error: idl.ErrObjectNotFound}
			},
		},
	}
	replicaL := startFakeReplica(t, steps)
	defer replicaL.Close()
	metaL := startFakeMeta(t, replicaL.Addr().String())
	defer metaL.Close()

	c := newTestClient(t, metaL.Addr().String())
	tbl, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)

	value, found, err := tbl.Get(context.Background(), []byte("h"), []byte("missing"), 0)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestTableMultiGetAndMultiSet(t *testing.T) {
	steps := []fakeStep{
		{
			newReq:  func() idl.ThriftStruct { return &idl.MultiPutRequest{} },
			respond: func(idl.ThriftStruct) idl.ThriftStruct { return &idl.SingleError{Error: idl.ErrOK} },
		},
		{
			newReq: func() idl.ThriftStruct { return &idl.MultiGetRequest{} },
			respond: func(idl.ThriftStruct) idl.ThriftStruct {
				return &idl.MultiGetResponse{Error: idl.ErrOK, Kvs: []idl.KeyValue{
					{Key: idl.Blob{Data: []byte("s1")}, Value: idl.Blob{Data: []byte("v1")}},
					{Key: idl.Blob{Data: []byte("s2")}, Value: idl.Blob{Data: []byte("v2")}},
				}}
			},
		},
	}
	replicaL := startFakeReplica(t, steps)
	defer replicaL.Close()
	metaL := startFakeMeta(t, replicaL.Addr().String())
	defer metaL.Close()

	c := newTestClient(t, metaL.Addr().String())
	tbl, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)

	require.NoError(t, tbl.MultiSet(context.Background(), []byte("h"), []KeyValue{
		{SortKey: []byte("s1"), Value: []byte("v1")},
		{SortKey: []byte("s2"), Value: []byte("v2")},
	}, 0, 0))

	kvs, err := tbl.MultiGet(context.Background(), []byte("h"), [][]byte{[]byte("s1"), []byte("s2")}, 0)
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, []byte("v1"), kvs[0].Value)
}

func TestTableMultiGetBoundedReportsPartialFetch(t *testing.T) {
	steps := []fakeStep{
		{
			newReq: func() idl.ThriftStruct { return &idl.MultiGetRequest{} },
			respond: func(req idl.ThriftStruct) idl.ThriftStruct {
				r := req.(*idl.MultiGetRequest)
				assert.Equal(t, int32(1), r.MaxKvCount)
				assert.Equal(t, int32(64), r.MaxKvSize)
				return &idl.MultiGetResponse{
					Error:      idl.ErrOK,
					Kvs:        []idl.KeyValue{{Key: idl.Blob{Data: []byte("s1")}, Value: idl.Blob{Data: []byte("v1")}}},
					AllFetched: false,
				}
			},
		},
	}
	replicaL := startFakeReplica(t, steps)
	defer replicaL.Close()
	metaL := startFakeMeta(t, replicaL.Addr().String())
	defer metaL.Close()

	c := newTestClient(t, metaL.Addr().String())
	tbl, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)

	kvs, allFetched, err := tbl.MultiGetBounded(context.Background(), []byte("h"), [][]byte{[]byte("s1"), []byte("s2")}, 1, 64, 0)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.False(t, allFetched)
}

func TestTableMultiGetSortKeysSetsNoValue(t *testing.T) {
	steps := []fakeStep{
		{
			newReq: func() idl.ThriftStruct { return &idl.MultiGetRequest{} },
			respond: func(req idl.ThriftStruct) idl.ThriftStruct {
				r := req.(*idl.MultiGetRequest)
				assert.True(t, r.NoValue)
				return &idl.MultiGetResponse{
					Error:      idl.ErrOK,
					Kvs:        []idl.KeyValue{{Key: idl.Blob{Data: []byte("s1")}}, {Key: idl.Blob{Data: []byte("s2")}}},
					AllFetched: true,
				}
			},
		},
	}
	replicaL := startFakeReplica(t, steps)
	defer replicaL.Close()
	metaL := startFakeMeta(t, replicaL.Addr().String())
	defer metaL.Close()

	c := newTestClient(t, metaL.Addr().String())
	tbl, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)

	sortKeys, allFetched, err := tbl.MultiGetSortKeys(context.Background(), []byte("h"), 100, 1000000, 0)
	require.NoError(t, err)
	assert.True(t, allFetched)
	assert.Equal(t, [][]byte{[]byte("s1"), []byte("s2")}, sortKeys)
}

func TestBatchGetReturnsResultsInItemOrder(t *testing.T) {
	// The two Gets run concurrently, so either may reach the replica first:
	// answer each one by the sort key it asks for, not by arrival order.
	respondByKey := func(req idl.ThriftStruct) idl.ThriftStruct {
		value := []byte("v1")
		if bytes.HasSuffix(req.(*idl.UpdateRequest).Key.Data, []byte("s2")) {
			value = []byte("v2")
		}
		return &idl.GetResponse{Error: idl.ErrOK, Value: idl.Blob{Data: value}}
	}
	steps := []fakeStep{
		{
			newReq:  func() idl.ThriftStruct { return &idl.UpdateRequest{} },
			respond: respondByKey,
		},
		{
			newReq:  func() idl.ThriftStruct { return &idl.UpdateRequest{} },
			respond: respondByKey,
		},
	}
	replicaL := startFakeReplica(t, steps)
	defer replicaL.Close()
	metaL := startFakeMeta(t, replicaL.Addr().String())
	defer metaL.Close()

	c := newTestClient(t, metaL.Addr().String())
	tbl, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)

	items := []batch.Item{
		tbl.GetItem([]byte("h"), []byte("s1"), 0),
		tbl.GetItem([]byte("h"), []byte("s2"), 0),
	}
	results, err := tbl.BatchGet(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, GetResult{Value: []byte("v1"), Found: true}, results[0])
	assert.Equal(t, GetResult{Value: []byte("v2"), Found: true}, results[1])
}

func TestClientCloseRefusesFurtherOpenTable(t *testing.T) {
	metaL := startFakeMeta(t, "127.0.0.1:1")
	defer metaL.Close()
	cfg := &config.Config{MetaServers: []string{metaL.Addr().String()}, OperationTimeout: time.Second}
	c := NewClient(cfg, nil)

	_, err := c.OpenTable(context.Background(), "t1")
	require.NoError(t, err)

	c.Close()
	_, err = c.OpenTable(context.Background(), "t2")
	assert.Error(t, err)
}
