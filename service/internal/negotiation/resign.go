// internal/negotiation/resign.go
package negotiation

import "sync"

// ResignGate is a two-step local confirmation for resigning. It needs no
// consent from the opponent; it only guards against accidental clicks.
type ResignGate struct {
	mu    sync.Mutex
	armed bool
}

// Start arms the gate. Starting an armed gate is a no-op.
func (g *ResignGate) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

// Cancel disarms the gate and reports whether it was armed.
func (g *ResignGate) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := g.armed
	g.armed = false
	return was
}

// Confirm consumes the armed gate. It returns false when Start was not called
// first, in which case the resignation must not be applied.
func (g *ResignGate) Confirm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.armed {
		return false
	}
	g.armed = false
	return true
}

// Armed reports whether a confirmation is awaited.
func (g *ResignGate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}
