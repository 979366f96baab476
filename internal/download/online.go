package download

import (
	"context"
	"sync"
)

// OnlineGate is a cancellable connectivity condition. Each manager
// owns its own gate, so concurrent download sessions never share
// suspension state. Workers call Wait before retrying a chunk; the
// wait delays the retry without consuming an attempt.
type OnlineGate struct {
	mu     sync.Mutex
	online bool
	ready  chan struct{}
}

// NewOnlineGate returns a gate in the online state.
func NewOnlineGate() *OnlineGate {
	ready := make(chan struct{})
	close(ready)
	return &OnlineGate{online: true, ready: ready}
}

// SetOffline suspends all waiters until connectivity returns.
func (g *OnlineGate) SetOffline() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.online {
		return
	}
	g.online = false
	g.ready = make(chan struct{})
}

// SetOnline releases all waiters.
func (g *OnlineGate) SetOnline() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.online {
		return
	}
	g.online = true
	close(g.ready)
}

// Online reports the current state.
func (g *OnlineGate) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// Wait blocks until the gate is online or ctx is done.
func (g *OnlineGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
