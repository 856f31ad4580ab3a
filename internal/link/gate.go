package link

import (
	"context"
	"sync"
	"time"
)

// Gate lets a caller block until the link is usable (associated and
// addressed). It holds a single readiness bit that a successful wait
// consumes, so every connection cycle needs a fresh Signal. The model
// assumes one waiter.
type Gate struct {
	mu     sync.Mutex
	active bool
	ready  chan struct{} // capacity 1: the readiness bit
	closed chan struct{} // closed by Destroy
	failed chan struct{} // closed by Fail
	err    error
}

// NewGate returns an inactive gate; call Create before use.
func NewGate() *Gate {
	return &Gate{}
}

// Create allocates the readiness resource. It fails with ErrAlreadyActive
// when called twice without an intervening Destroy.
func (g *Gate) Create() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return ErrAlreadyActive
	}
	g.active = true
	g.ready = make(chan struct{}, 1)
	g.closed = make(chan struct{})
	g.failed = make(chan struct{})
	g.err = nil
	return nil
}

// Active reports whether the gate currently exists.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Destroy releases the resource and wakes any waiter with ErrGateClosed.
// Signals arriving afterwards are ignored.
func (g *Gate) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return
	}
	g.active = false
	close(g.closed)
}

// Signal sets the readiness bit and wakes the waiter. It reports false when
// the gate is not active.
func (g *Gate) Signal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return false
	}
	select {
	case g.ready <- struct{}{}:
	default:
		// bit already set
	}
	return true
}

// Fail marks the link as unable to become ready: the waiter, and every
// later wait on this gate, returns err. Only the first failure is kept.
// It reports false when the gate is not active.
func (g *Gate) Fail(err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return false
	}
	if g.err == nil {
		g.err = err
		close(g.failed)
	}
	return true
}

// Reset clears the readiness bit for a fresh connection attempt.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return
	}
	select {
	case <-g.ready:
	default:
	}
}

// WaitReady blocks until the readiness bit is set and consumes it. A
// timeout <= 0 waits until ctx is done.
func (g *Gate) WaitReady(ctx context.Context, timeout time.Duration) error {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return ErrGateClosed
	}
	ready, closed, failed := g.ready, g.closed, g.failed
	g.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ready:
		return nil
	case <-closed:
		return ErrGateClosed
	case <-failed:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.err
	case <-expired:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
