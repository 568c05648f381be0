package player

import (
	"context"
	"sync"
)

// Gate is a level-triggered pause gate. Playback proceeds while it is open
// and blocks in Wait while it is closed.
type Gate struct {
	mu     sync.Mutex
	closed bool
	ch     chan struct{}
}

func NewGate() *Gate {
	ch := make(chan struct{})
	close(ch)
	return &Gate{ch: ch}
}

// TryClose closes an open gate. It returns false if the gate was already
// closed, so only one closer can own it at a time.
func (g *Gate) TryClose() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	g.ch = make(chan struct{})
	return true
}

// Open reopens the gate. Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		g.closed = false
		close(g.ch)
	}
}

func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
