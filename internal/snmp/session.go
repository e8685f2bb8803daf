package snmp

import (
	"context"
	"errors"
	"sync"

	"github.com/gosnmp/gosnmp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"snmpfs/internal/oid"
)

// Variable is one object instance returned by the agent.
type Variable struct {
	Name  oid.Path
	Type  gosnmp.Asn1BER
	Value interface{}
}

// Value is a typed value to store with Set.
type Value struct {
	Type  gosnmp.Asn1BER
	Value interface{}
}

// Result is the outcome of a single probe. Var is set only when Code is
// NoError.
type Result struct {
	Code Code
	Var  *Variable
}

// Err translates the result code.
func (r Result) Err() error {
	return Translate(r.Code)
}

// Session is one remote session. A session is used by a single goroutine
// at a time; every call blocks until the agent replies or the session's
// own timeout and retries are exhausted.
type Session interface {
	// GetExact reads the instance at p. A missing object or instance
	// reports NoSuchName.
	GetExact(p oid.Path) Result
	// GetNext returns the first instance sorting strictly after p.
	// The end of the agent's tree reports NoSuchName.
	GetNext(p oid.Path) Result
	// Set stores v at p.
	Set(p oid.Path, v Value) Code
}

// Gate bounds the number of probes in flight across all sessions.
// A nil *Gate admits everything.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns a gate admitting at most n concurrent probes.
// n <= 0 yields an unbounded gate.
func NewGate(n int) *Gate {
	if n <= 0 {
		return nil
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a probe slot is free.
func (g *Gate) Acquire() {
	if g == nil {
		return
	}
	// Background never cancels, so Acquire cannot fail.
	_ = g.sem.Acquire(context.Background(), 1)
}

// Release returns a slot taken by Acquire.
func (g *Gate) Release() {
	if g == nil {
		return
	}
	g.sem.Release(1)
}

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("session pool closed")

// DialFunc opens a new session.
type DialFunc func() (Session, error)

// Pool hands out sessions so that no two goroutines share one.
type Pool struct {
	dial DialFunc

	mu     sync.Mutex
	idle   []Session
	max    int
	closed bool
}

// NewPool returns a pool keeping at most maxIdle idle sessions.
func NewPool(dial DialFunc, maxIdle int) *Pool {
	if maxIdle < 1 {
		maxIdle = 1
	}
	return &Pool{dial: dial, max: maxIdle}
}

// Get returns an idle session or dials a new one.
func (p *Pool) Get() (Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	return p.dial()
}

// Put returns a session to the pool. Broken sessions and sessions beyond
// the idle limit are closed.
func (p *Pool) Put(s Session) {
	if s == nil {
		return
	}
	if b, ok := s.(interface{ Broken() bool }); ok && b.Broken() {
		log.Debug("snmp: dropping broken session")
		closeSession(s)
		return
	}

	p.mu.Lock()
	if p.closed || len(p.idle) >= p.max {
		p.mu.Unlock()
		closeSession(s)
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

// Close closes every idle session. Sessions still borrowed are closed
// when they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, s := range idle {
		if err := closeSession(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeSession(s Session) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
