// internal/game/engine_adapter.go
package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/negotiation"
)

// ActionError is a refused client action. Message is safe to show to the
// user as dismissible status text.
type ActionError struct {
	Seat    engine.PlayerID
	Kind    string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("seat %d %s: %s", e.Seat, e.Kind, e.Message)
}

func (e *ActionError) Unwrap() error { return e.Err }

// userMessage turns an engine or negotiation error into status text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, negotiation.ErrCooldown):
		return "You can cancel the offer two seconds after making it."
	case errors.Is(err, negotiation.ErrOfferPending):
		return "An offer is already pending."
	case errors.Is(err, negotiation.ErrNoPendingOffer):
		return "There is no pending offer."
	case errors.Is(err, engine.ErrMalformedInput):
		return "Could not read that action."
	case errors.Is(err, engine.ErrIllegalAction):
		msg := err.Error()
		if i := strings.LastIndex(msg, engine.ErrIllegalAction.Error()+": "); i >= 0 {
			msg = msg[i+len(engine.ErrIllegalAction.Error())+2:]
		}
		return "Illegal action: " + msg + "."
	}
	return "Action failed."
}

// reject reports a refused action to its seat and returns it as an *ActionError.
// Assumes lock is held by caller.
func (g *Game) reject(seat engine.PlayerID, kind string, err error) error {
	ae := &ActionError{Seat: seat, Kind: kind, Message: userMessage(err), Err: err}
	g.Log.Debugf("Game %s: Rejected %s from seat %d: %v", g.ID, kind, seat, err)
	g.fireEventToSeat(seat, GameEvent{Type: EventPrivateRejected, Seat: seat, Message: ae.Message, Payload: map[string]interface{}{"kind": kind}})
	return ae
}

// ready checks the session accepts actions, settling the clock first.
// Assumes lock is held by caller.
func (g *Game) ready(seat engine.PlayerID, kind string) error {
	if !g.started {
		return g.reject(seat, kind, fmt.Errorf("%w: game has not started", engine.ErrIllegalAction))
	}
	if !seat.Valid() {
		return g.reject(seat, kind, fmt.Errorf("%w: spectators cannot act", engine.ErrIllegalAction))
	}
	if g.settleClock() {
		return g.reject(seat, kind, fmt.Errorf("%w: game is over", engine.ErrIllegalAction))
	}
	return nil
}

// HandleAction is the dispatch boundary for a client's wire action. The seat
// is the authenticated sender; the server clock stamps every action. Draw and
// takeback kinds open offers rather than applying directly, and resign
// confirms an armed resignation gate.
func (g *Game) HandleAction(seat engine.PlayerID, w engine.WireAction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	kind := string(w.Kind)
	if w.Kind == engine.KindTimeout && g.started && seat.Valid() && g.settleClock() {
		// A timeout claim is satisfied once the flag has fallen.
		return nil
	}
	if err := g.ready(seat, kind); err != nil {
		return err
	}
	if w.PlayerID == engine.NoPlayer {
		w.PlayerID = seat
	}
	a, err := engine.FromWire(w, g.Config.BoardHeight)
	if err != nil {
		return g.reject(seat, kind, err)
	}
	a.Timestamp = g.nowMs()

	switch a.Kind {
	case engine.KindMove, engine.KindGiveTime:
		a.PlayerID = seat
		if _, err := g.commit(a); err != nil {
			return g.reject(seat, kind, err)
		}
		return nil
	case engine.KindResign:
		return g.confirmResign(seat)
	case engine.KindTimeout:
		return g.reject(seat, kind, fmt.Errorf("%w: player %d still has time", engine.ErrIllegalAction, a.PlayerID))
	case engine.KindDraw:
		_, err := g.openOffer(g.draws, seat)
		return err
	case engine.KindTakeback:
		_, err := g.openOffer(g.takebacks, seat)
		return err
	}
	return g.reject(seat, kind, fmt.Errorf("%w: unknown action kind %q", engine.ErrMalformedInput, a.Kind))
}

// ---------------------------------------------------------------------------
// Staging and premoves
// ---------------------------------------------------------------------------

// StageResult is the answer to a staging request.
type StageResult struct {
	Queue    []engine.Action `json:"queue"`
	Accepted bool            `json:"accepted"`
	// Path is the explicit two-step route of a pawn jump, for animation.
	Path []engine.Action `json:"path,omitempty"`
}

// Stage toggles candidate in seat's local queue against the current state.
// Nothing is committed; the canonical state is only read.
func (g *Game) Stage(seat engine.PlayerID, queue []engine.Action, candidate engine.Action) StageResult {
	st := g.state.Load()
	if st == nil || !seat.Valid() {
		return StageResult{Queue: queue}
	}
	next, ok := engine.EnqueueToggle(st, seat, queue, candidate, engine.MaxActionsPerMove)
	res := StageResult{Queue: next, Accepted: ok}
	if ok && candidate.IsPawn() {
		res.Path = engine.ResolveDoubleStep(st, seat, candidate)
	}
	return res
}

// SetPremoves queues actions for seat to play as soon as it is their turn.
// Premoves are checked only on promotion; an empty slice clears them.
func (g *Game) SetPremoves(seat engine.PlayerID, actions []engine.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ready(seat, "premove"); err != nil {
		return err
	}
	if len(actions) > engine.MaxActionsPerMove {
		return g.reject(seat, "premove", fmt.Errorf("%w: at most %d premoves", engine.ErrIllegalAction, engine.MaxActionsPerMove))
	}
	st := g.state.Load()
	if st.Turn == seat {
		return g.reject(seat, "premove", fmt.Errorf("%w: it is already your turn", engine.ErrIllegalAction))
	}
	g.premoves[seatIndex(seat)] = append([]engine.Action(nil), actions...)
	return nil
}

// promotePremoves commits the premoves of the seat now on turn. It reports
// whether a move was committed. Assumes lock is held by caller.
func (g *Game) promotePremoves(st *engine.GameState) bool {
	seat := st.Turn
	pending := g.premoves[seatIndex(seat)]
	if len(pending) == 0 {
		return false
	}
	g.premoves[seatIndex(seat)] = nil
	res := engine.Promote(st, seat, nil, pending)
	g.fireEventToSeat(seat, GameEvent{Type: EventPrivatePremove, Seat: seat, Payload: map[string]interface{}{
		"accepted": res.Accepted,
		"dropped":  res.Dropped,
	}})
	if len(res.Queue) == 0 {
		return false
	}
	a := engine.GameAction{Kind: engine.KindMove, PlayerID: seat, Move: engine.NewMove(res.Queue...), Timestamp: g.nowMs()}
	if _, err := g.commit(a); err != nil {
		g.Log.Warnf("Game %s: Promoted premove for seat %d failed: %v", g.ID, seat, err)
		return false
	}
	return true
}

// clearPremoves drops every queued premove. Assumes lock is held by caller.
func (g *Game) clearPremoves() {
	for i := range g.premoves {
		g.premoves[i] = nil
	}
}
