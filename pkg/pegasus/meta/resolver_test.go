package meta

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/rpc"
)

// fakeMetaServer listens on 127.0.0.1 and answers every QueryConfig call
// with the response produced by handle, so Resolver's wire path and
// round-robin failover can be exercised without a real meta cluster.
type fakeMetaServer struct {
	listener net.Listener
}

func startFakeMetaServer(t *testing.T, handle func(req *idl.QueryConfigRequest) *idl.QueryConfigResponse) *fakeMetaServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &fakeMetaServer{listener: l}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, handle)
		}
	}()
	return srv
}

func (srv *fakeMetaServer) serve(conn net.Conn, handle func(req *idl.QueryConfigRequest) *idl.QueryConfigResponse) {
	transport := thrift.NewTFramedTransport(&netConnTransport{conn})
	protocol := thrift.NewTBinaryProtocolTransport(transport)
	ctx := context.Background()
	for {
		name, _, seqid, err := protocol.ReadMessageBegin(ctx)
		if err != nil {
			return
		}
		req := &idl.QueryConfigRequest{}
		if err := req.Read(ctx, protocol); err != nil {
			return
		}
		_ = protocol.ReadMessageEnd(ctx)

		resp := handle(req)
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
}

func (srv *fakeMetaServer) addr() string { return srv.listener.Addr().String() }

func (srv *fakeMetaServer) close() { _ = srv.listener.Close() }

// netConnTransport is a minimal thrift.TTransport over a net.Conn, mirroring
// rpc.connTransport (kept private to that package) for test-side use.
type netConnTransport struct {
	conn net.Conn
}

func (t *netConnTransport) IsOpen() bool              { return true }
func (t *netConnTransport) Open() error               { return nil }
func (t *netConnTransport) Close() error              { return t.conn.Close() }
func (t *netConnTransport) Read(p []byte) (int, error) { return t.conn.Read(p) }
func (t *netConnTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}
func (t *netConnTransport) Flush(ctx context.Context) error { return nil }
func (t *netConnTransport) RemainingBytes() uint64           { return ^uint64(0) }

func fourPartitionResponse(primary string) *idl.QueryConfigResponse {
	resp := &idl.QueryConfigResponse{
		Err:            idl.ErrOK,
		AppID:          1,
		PartitionCount: 4,
		Partitions:     make([]idl.PartitionConfiguration, 4),
	}
	for i := range resp.Partitions {
		resp.Partitions[i] = idl.PartitionConfiguration{
			Pid:             idl.Gpid{AppID: 1, PartitionIndex: int32(i)},
			Ballot:          1,
			PrimaryEndpoint: primary,
		}
	}
	return resp
}

func TestResolverResolveCachesResult(t *testing.T) {
	calls := 0
	srv := startFakeMetaServer(t, func(req *idl.QueryConfigRequest) *idl.QueryConfigResponse {
		calls++
		return fourPartitionResponse("10.0.0.1:34801")
	})
	defer srv.close()

	pool := rpc.NewPool(time.Second, nil)
	defer pool.Close()
	r := NewResolver([]string{srv.addr()}, pool, time.Second, nil)

	m1, err := r.Resolve(context.Background(), "t1")
	require.NoError(t, err)
	m2, err := r.Resolve(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, m1, m2)
	assert.Equal(t, 4, m1.PartitionCount)
	assert.Equal(t, "10.0.0.1:34801", m1.Primary(2))
}

func TestResolverRefreshCoalescesConcurrentCallers(t *testing.T) {
	calls := 0
	release := make(chan struct{})
	srv := startFakeMetaServer(t, func(req *idl.QueryConfigRequest) *idl.QueryConfigResponse {
		calls++
		<-release
		return fourPartitionResponse("10.0.0.1:34801")
	})
	defer srv.close()

	pool := rpc.NewPool(time.Second, nil)
	defer pool.Close()
	r := NewResolver([]string{srv.addr()}, pool, 5*time.Second, nil)

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := r.Refresh(context.Background(), "t1")
			done <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)

	for i := 0; i < 5; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, 1, calls)
}

func TestResolverVersionMonotonic(t *testing.T) {
	srv := startFakeMetaServer(t, func(req *idl.QueryConfigRequest) *idl.QueryConfigResponse {
		return fourPartitionResponse("10.0.0.1:34801")
	})
	defer srv.close()

	pool := rpc.NewPool(time.Second, nil)
	defer pool.Close()
	r := NewResolver([]string{srv.addr()}, pool, time.Second, nil)

	m1, err := r.Resolve(context.Background(), "t1")
	require.NoError(t, err)
	m2, err := r.Refresh(context.Background(), "t1")
	require.NoError(t, err)

	assert.Greater(t, m2.Version, m1.Version)
}

func TestResolverFailoverOnNotPrimary(t *testing.T) {
	first := true
	srv := startFakeMetaServer(t, func(req *idl.QueryConfigRequest) *idl.QueryConfigResponse {
		if first {
			first = false
			return &idl.QueryConfigResponse{Err: idl.ErrNotPrimary}
		}
		return fourPartitionResponse("10.0.0.1:34801")
	})
	defer srv.close()

	pool := rpc.NewPool(time.Second, nil)
	defer pool.Close()
	// Two entries pointed at the same server: the resolver must retry the
	// second entry after the first reports not-primary with no hint.
	r := NewResolver([]string{srv.addr(), srv.addr()}, pool, time.Second, nil)

	m, err := r.Resolve(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, m.PartitionCount)
}
