package rpc

import (
	"context"
	"net"
)

// connTransport adapts a net.Conn to thrift.TTransport, so the session can
// layer thrift's framed transport and binary protocol directly over a
// plain TCP connection, matching spec.md §6's "binary protocol
// (thrift-compatible)" framing.
type connTransport struct {
	conn net.Conn
}

func newConnTransport(conn net.Conn) *connTransport {
	return &connTransport{conn: conn}
}

func (t *connTransport) IsOpen() bool { return t.conn != nil }

func (t *connTransport) Open() error { return nil }

func (t *connTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *connTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *connTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *connTransport) Flush(ctx context.Context) error {
	return nil
}

func (t *connTransport) RemainingBytes() uint64 {
	return ^uint64(0)
}
