// Package rpc implements the per-endpoint duplex session (spec.md §4.2)
// and the pool that interns one session per endpoint (spec.md §4.3).
package rpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/pegasus-kv/go-client/pkg/pegasus/idl"
	"github.com/pegasus-kv/go-client/pkg/pegasus/log"
	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
)

// ConnState is the session's connection lifecycle state (spec.md §3/§4.2).
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Ready
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Call describes one logical RPC: a method name and the thrift-compatible
// argument/result structures for it (spec.md §6).
type Call struct {
	Method string
	Args   idl.ThriftStruct
	Reply  idl.ThriftStruct
}

type pendingCall struct {
	seqid  int32
	call   *Call
	result chan error
}

// Session is one full-duplex connection to a single replica endpoint.
// Outbound writes and inbound reads run on independent goroutines,
// decoupled by seqid correlation, per spec.md §4.2.
type Session struct {
	endpoint       string
	connectTimeout time.Duration
	logger         log.Logger

	mu        sync.Mutex
	state     ConnState
	conn      net.Conn
	protocol  thrift.TProtocol
	pending   map[int32]*pendingCall
	nextSeqID int32
	readyCh   chan struct{} // closed when the dial attempt finishes (Ready or Failed)
	outbound  chan *pendingCall
	closed    bool
}

// NewSession creates a session in the Disconnected state. It does not dial
// itself; callers that want spec.md §4.3's eager connect must trigger it
// explicitly (Pool.Get does, via ensureConnected in a background goroutine).
func NewSession(endpoint string, connectTimeout time.Duration, logger log.Logger) *Session {
	if logger == nil {
		logger = log.Nop
	}
	return &Session{
		endpoint:       endpoint,
		connectTimeout: connectTimeout,
		logger:         logger,
		state:          Disconnected,
		pending:        make(map[int32]*pendingCall),
		outbound:       make(chan *pendingCall, 64),
	}
}

// Endpoint returns the replica address this session talks to.
func (s *Session) Endpoint() string { return s.endpoint }

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Call enqueues a call, waits for its response or deadline, and decodes the
// result into call.Reply. Per spec.md §4.2: responses may arrive in any
// order, seqid is the only correlation guarantee.
func (s *Session) Call(ctx context.Context, call *Call, deadline time.Time) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return perrors.ConnectionErrorf(nil, "rpc: session %s is closed", s.endpoint)
	}
	if s.state == Failed {
		s.mu.Unlock()
		return perrors.ConnectionErrorf(nil, "rpc: session %s failed", s.endpoint)
	}
	s.nextSeqID++
	pc := &pendingCall{seqid: s.nextSeqID, call: call, result: make(chan error, 1)}
	s.pending[pc.seqid] = pc
	s.mu.Unlock()

	select {
	case s.outbound <- pc:
	case <-ctx.Done():
		s.removePending(pc.seqid)
		return perrors.Timeoutf("rpc: %s: context done before send: %v", call.Method, ctx.Err())
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	if !deadline.IsZero() {
		timer = time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case err := <-pc.result:
		return err
	case <-ctx.Done():
		s.removePending(pc.seqid)
		return perrors.Timeoutf("rpc: %s: %v", call.Method, ctx.Err())
	case <-timerCh:
		s.removePending(pc.seqid)
		return perrors.Timeoutf("rpc: %s: deadline exceeded", call.Method)
	}
}

func (s *Session) removePending(seqid int32) {
	s.mu.Lock()
	delete(s.pending, seqid)
	s.mu.Unlock()
}

// ensureConnected drives Disconnected -> Connecting -> {Ready, Failed}.
// Concurrent callers during Connecting block on the shared readyCh.
func (s *Session) ensureConnected() error {
	s.mu.Lock()
	switch s.state {
	case Ready:
		s.mu.Unlock()
		return nil
	case Failed:
		s.mu.Unlock()
		return perrors.ConnectionErrorf(nil, "rpc: session %s previously failed", s.endpoint)
	case Connecting:
		ch := s.readyCh
		s.mu.Unlock()
		<-ch
		return s.ensureConnected()
	}
	// Disconnected: this goroutine drives the dial.
	s.state = Connecting
	s.readyCh = make(chan struct{})
	s.mu.Unlock()

	conn, err := net.DialTimeout("tcp", s.endpoint, s.connectTimeout)
	if err != nil {
		s.mu.Lock()
		s.state = Failed
		close(s.readyCh)
		s.mu.Unlock()
		return perrors.ConnectionErrorf(err, "rpc: dial %s", s.endpoint)
	}

	transport := thrift.NewTFramedTransport(newConnTransport(conn))
	protocol := thrift.NewTBinaryProtocolTransport(transport)

	s.mu.Lock()
	s.conn = conn
	s.protocol = protocol
	s.state = Ready
	close(s.readyCh)
	s.mu.Unlock()

	go s.writeLoop()
	go s.readLoop()
	return nil
}

func (s *Session) writeLoop() {
	ctx := context.Background()
	for pc := range s.outbound {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		protocol := s.protocol
		s.mu.Unlock()

		var err error
		if err = protocol.WriteMessageBegin(ctx, pc.call.Method, thrift.CALL, pc.seqid); err == nil {
			if err = pc.call.Args.Write(ctx, protocol); err == nil {
				if err = protocol.WriteMessageEnd(ctx); err == nil {
					err = protocol.Flush(ctx)
				}
			}
		}
		if err != nil {
			s.fail(perrors.ConnectionErrorf(err, "rpc: write to %s", s.endpoint))
			return
		}
	}
}

func (s *Session) readLoop() {
	ctx := context.Background()
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		protocol := s.protocol
		s.mu.Unlock()

		_, msgType, seqid, err := protocol.ReadMessageBegin(ctx)
		if err != nil {
			s.fail(perrors.ConnectionErrorf(err, "rpc: read from %s", s.endpoint))
			return
		}

		s.mu.Lock()
		pc, ok := s.pending[seqid]
		if ok {
			delete(s.pending, seqid)
		}
		s.mu.Unlock()

		if !ok {
			// Either a stray message or a call whose waiter already timed
			// out locally (spec.md §4.2 cancellation); discard the body.
			if err := protocol.Skip(ctx, thrift.STRUCT); err != nil {
				s.fail(perrors.ConnectionErrorf(err, "rpc: skip unmatched reply from %s", s.endpoint))
				return
			}
			if err := protocol.ReadMessageEnd(ctx); err != nil {
				s.fail(perrors.ConnectionErrorf(err, "rpc: read from %s", s.endpoint))
				return
			}
			continue
		}

		var callErr error
		if msgType == thrift.EXCEPTION {
			exc := thrift.NewTApplicationException(0, "")
			if err := exc.Read(ctx, protocol); err != nil {
				s.fail(perrors.ConnectionErrorf(err, "rpc: read exception from %s", s.endpoint))
				return
			}
			callErr = perrors.ConnectionErrorf(exc, "rpc: %s: server exception", pc.call.Method)
		} else if err := pc.call.Reply.Read(ctx, protocol); err != nil {
			callErr = perrors.ConnectionErrorf(err, "rpc: decode reply for %s", pc.call.Method)
		}
		if err := protocol.ReadMessageEnd(ctx); err != nil {
			s.fail(perrors.ConnectionErrorf(err, "rpc: read from %s", s.endpoint))
			return
		}

		pc.result <- callErr
		if callErr != nil && !perrors.IsRetryableTransport(callErr) {
			// Decode failures are not connection failures; keep serving.
			continue
		}
	}
}

// fail transitions Ready -> Failed, draining all pending waiters with the
// given error (spec.md §4.2: "Pending waiters complete with
// ConnectionReset; the session self-disposes").
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == Failed || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = Failed
	pending := s.pending
	s.pending = make(map[int32]*pendingCall)
	conn := s.conn
	s.mu.Unlock()

	s.logger.Warningf("rpc: session %s failed: %v", s.endpoint, err)
	for _, pc := range pending {
		pc.result <- err
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Close cancels all pending waiters with Cancelled and terminates the
// session permanently (spec.md §4.2).
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = Failed
	pending := s.pending
	s.pending = make(map[int32]*pendingCall)
	conn := s.conn
	s.mu.Unlock()

	close(s.outbound)
	for _, pc := range pending {
		pc.result <- perrors.ErrCancelled
	}
	if conn != nil {
		_ = conn.Close()
	}
}
