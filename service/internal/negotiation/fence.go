// internal/negotiation/fence.go
package negotiation

import "sync"

// RequestID identifies one generation of an asynchronous request. IDs are
// strictly increasing per Fence and never reused.
type RequestID uint64

// Fence is a generation counter guarding asynchronous resolutions. A resolver
// captures the ID returned by Next and checks Current before applying its
// effects; any later Next or Invalidate turns the captured ID stale.
type Fence struct {
	mu   sync.Mutex
	live RequestID
}

// Next starts a new generation and returns its ID.
func (f *Fence) Next() RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live++
	return f.live
}

// Live returns the current generation.
func (f *Fence) Live() RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// Current reports whether id is still the live generation.
func (f *Fence) Current(id RequestID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return id != 0 && id == f.live
}

// Invalidate makes every outstanding ID stale without starting a request.
func (f *Fence) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live++
}
