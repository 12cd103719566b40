package rpc

import (
	"sync"
	"time"

	"github.com/pegasus-kv/go-client/pkg/pegasus/log"
)

// Pool interns one Session per endpoint (spec.md §4.3), matching the
// teacher's node dialer's connection reuse pattern. Lookups are
// linearizable: every Get, including a hit on an already-interned session,
// runs under one pool-wide mutex; there is no lock-free read path and no
// per-endpoint lock.
type Pool struct {
	connectTimeout time.Duration
	logger         log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewPool creates an empty session pool.
func NewPool(connectTimeout time.Duration, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.Nop
	}
	return &Pool{
		connectTimeout: connectTimeout,
		logger:         logger,
		sessions:       make(map[string]*Session),
	}
}

// Get returns the live session for endpoint, creating one and starting its
// connect sequence eagerly if none exists yet. A session that has
// transitioned to Failed is evicted and replaced on the next Get.
func (p *Pool) Get(endpoint string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[endpoint]; ok {
		if s.State() != Failed {
			return s
		}
		delete(p.sessions, endpoint)
	}

	s := NewSession(endpoint, p.connectTimeout, p.logger)
	if p.closed {
		s.Close()
		return s
	}
	p.sessions[endpoint] = s
	go func() {
		if err := s.ensureConnected(); err != nil {
			p.logger.Warningf("rpc: eager connect to %s failed: %v", endpoint, err)
		}
	}()
	return s
}

// Close closes every interned session and refuses further Get calls from
// creating new ones that would outlive the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*Session)
	p.closed = true
	p.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
