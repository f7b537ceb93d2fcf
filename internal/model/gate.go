package model

import (
	"context"
	"sync"
)

// Gate is a single-flight serialization gate: at most one holder at a
// time, waiters released in FIFO order. The underlying model service is
// not safe under concurrent invocation, so every model call in the
// process passes through one shared Gate.
type Gate struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// NewGate returns an idle gate.
func NewGate() *Gate {
	return &Gate{}
}

// Acquire blocks until the caller owns the gate or ctx is done. Waiters
// are served strictly in arrival order.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	if !g.busy {
		g.busy = true
		g.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	g.waiters = append(g.waiters, ch)
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ch {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err()
			}
		}
		g.mu.Unlock()
		// Ownership was handed over concurrently with cancellation;
		// pass it straight to the next waiter.
		<-ch
		g.Release()
		return ctx.Err()
	}
}

// Release hands the gate to the oldest waiter, or marks it idle. Must be
// called exactly once per successful Acquire, including on error paths.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) > 0 {
		ch := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(ch)
		return
	}
	g.busy = false
}

// Do runs fn while holding the gate.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}
