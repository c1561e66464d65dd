// internal/negotiation/desk.go
package negotiation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wallwars/wallwars/engine"
)

// CancelCooldown is the minimum age of an offer before its initiator may
// withdraw it.
const CancelCooldown = 2000 * time.Millisecond

var (
	// ErrStaleRequest marks a resolution whose request ID no longer matches the
	// live offer. Callers drop it silently.
	ErrStaleRequest = errors.New("stale request")
	// ErrCooldown is returned when an offer is cancelled before CancelCooldown.
	ErrCooldown = errors.New("offer cannot be cancelled yet")
	// ErrNoPendingOffer is returned when there is nothing to cancel or answer.
	ErrNoPendingOffer = errors.New("no pending offer")
	// ErrOfferPending is returned when an offer of the same kind is already open.
	ErrOfferPending = errors.New("offer already pending")
)

// Kind names the negotiated meta-action.
type Kind string

const (
	KindDraw     Kind = "draw"
	KindTakeback Kind = "takeback"
)

// Outcome is how a pending offer left the desk.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeDeclined   Outcome = "declined"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeSuperseded Outcome = "superseded"
)

// Offer is a pending draw offer or takeback request.
type Offer struct {
	Kind      Kind            `json:"kind"`
	ID        RequestID       `json:"requestId"`
	From      engine.PlayerID `json:"from"`
	CreatedAt time.Time       `json:"createdAt"`
}

// To returns the seat that must answer the offer.
func (o Offer) To() engine.PlayerID { return o.From.Other() }

// Resolution is the final record of an offer.
type Resolution struct {
	Offer   Offer   `json:"offer"`
	Outcome Outcome `json:"outcome"`
}

// Desk tracks at most one pending offer of a single kind. Every exit from the
// pending state goes through take, so each offer is resolved exactly once.
type Desk struct {
	kind  Kind
	now   func() time.Time
	fence Fence

	mu      sync.Mutex
	pending *Offer
}

// NewDesk creates a desk for kind. now defaults to time.Now.
func NewDesk(kind Kind, now func() time.Time) *Desk {
	if now == nil {
		now = time.Now
	}
	return &Desk{kind: kind, now: now}
}

// Kind returns the offer kind handled by the desk.
func (d *Desk) Kind() Kind { return d.kind }

// Open creates a pending offer from seat.
func (d *Desk) Open(from engine.PlayerID) (Offer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return Offer{}, fmt.Errorf("%s: %w", d.kind, ErrOfferPending)
	}
	o := Offer{Kind: d.kind, ID: d.fence.Next(), From: from, CreatedAt: d.now()}
	d.pending = &o
	return o, nil
}

// Pending returns the open offer, if any.
func (d *Desk) Pending() (Offer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return Offer{}, false
	}
	return *d.pending, true
}

// Current reports whether id is the live request of this desk.
func (d *Desk) Current(id RequestID) bool { return d.fence.Current(id) }

// Cancel withdraws the pending offer on behalf of its initiator. It fails with
// ErrCooldown while the offer is younger than CancelCooldown; the offer then
// stays pending.
func (d *Desk) Cancel(from engine.PlayerID, id RequestID) (Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return Resolution{}, fmt.Errorf("%s: %w", d.kind, ErrNoPendingOffer)
	}
	if d.pending.ID != id || !d.fence.Current(id) {
		return Resolution{}, fmt.Errorf("%s %d: %w", d.kind, id, ErrStaleRequest)
	}
	if d.pending.From != from {
		return Resolution{}, fmt.Errorf("%s: only the initiator may cancel: %w", d.kind, ErrNoPendingOffer)
	}
	if age := d.now().Sub(d.pending.CreatedAt); age < CancelCooldown {
		return Resolution{}, fmt.Errorf("%s: %w (%s left)", d.kind, ErrCooldown, CancelCooldown-age)
	}
	return d.take(OutcomeCancelled), nil
}

// Resolve answers the pending offer with id. A mismatching or already
// resolved id returns ErrStaleRequest and changes nothing.
func (d *Desk) Resolve(id RequestID, accepted bool) (Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil || d.pending.ID != id || !d.fence.Current(id) {
		return Resolution{}, fmt.Errorf("%s %d: %w", d.kind, id, ErrStaleRequest)
	}
	outcome := OutcomeDeclined
	if accepted {
		outcome = OutcomeAccepted
	}
	return d.take(outcome), nil
}

// Supersede clears the pending offer because the position it referred to is
// gone. It reports false when nothing was pending.
func (d *Desk) Supersede() (Resolution, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return Resolution{}, false
	}
	return d.take(OutcomeSuperseded), true
}

// take clears the pending offer and fences off any in-flight resolver.
// Callers hold mu and have checked pending != nil.
func (d *Desk) take(outcome Outcome) Resolution {
	r := Resolution{Offer: *d.pending, Outcome: outcome}
	d.pending = nil
	d.fence.Invalidate()
	return r
}
