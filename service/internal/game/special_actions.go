// internal/game/special_actions.go
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/negotiation"
)

// OfferDraw opens a draw offer from seat.
func (g *Game) OfferDraw(seat engine.PlayerID) (negotiation.Offer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ready(seat, string(negotiation.KindDraw)); err != nil {
		return negotiation.Offer{}, err
	}
	return g.openOffer(g.draws, seat)
}

// RequestTakeback opens a takeback request from seat.
func (g *Game) RequestTakeback(seat engine.PlayerID) (negotiation.Offer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ready(seat, string(negotiation.KindTakeback)); err != nil {
		return negotiation.Offer{}, err
	}
	return g.openOffer(g.takebacks, seat)
}

// CancelOffer withdraws seat's pending offer of kind. It is refused until
// negotiation.CancelCooldown has passed since the offer was made.
func (g *Game) CancelOffer(seat engine.PlayerID, kind negotiation.Kind, id negotiation.RequestID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	desk, err := g.desk(kind)
	if err != nil {
		return g.reject(seat, "cancel", err)
	}
	res, err := desk.Cancel(seat, id)
	if errors.Is(err, negotiation.ErrStaleRequest) {
		g.Log.Debugf("Game %s: Ignoring stale %s cancel %d from seat %d.", g.ID, kind, id, seat)
		return nil
	}
	if err != nil {
		return g.reject(seat, "cancel", err)
	}
	g.fireOfferResolved(res)
	return nil
}

// RespondOffer answers the pending offer of kind on behalf of seat. Answers
// to an offer that is no longer live are dropped silently.
func (g *Game) RespondOffer(seat engine.PlayerID, kind negotiation.Kind, id negotiation.RequestID, accept bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	desk, err := g.desk(kind)
	if err != nil {
		return g.reject(seat, "respond", err)
	}
	if offer, ok := desk.Pending(); ok && offer.ID == id && offer.To() != seat {
		return g.reject(seat, "respond", fmt.Errorf("%w: only player %d can answer", engine.ErrIllegalAction, offer.To()))
	}
	return g.resolveOffer(desk, id, accept)
}

// desk returns the desk handling kind.
func (g *Game) desk(kind negotiation.Kind) (*negotiation.Desk, error) {
	switch kind {
	case negotiation.KindDraw:
		return g.draws, nil
	case negotiation.KindTakeback:
		return g.takebacks, nil
	}
	return nil, fmt.Errorf("%w: unknown offer kind %q", engine.ErrMalformedInput, kind)
}

// openOffer creates the offer, announces it, and hands it to an automated
// opponent if the counterpart has one. Assumes lock is held by caller.
func (g *Game) openOffer(desk *negotiation.Desk, seat engine.PlayerID) (negotiation.Offer, error) {
	st := g.state.Load()
	if desk.Kind() == negotiation.KindTakeback {
		if n := engine.TakebackCount(st, seat); st.MoveCount() < n {
			return negotiation.Offer{}, g.reject(seat, string(desk.Kind()), fmt.Errorf("%w: nothing to take back", engine.ErrIllegalAction))
		}
	}
	offer, err := desk.Open(seat)
	if err != nil {
		return negotiation.Offer{}, g.reject(seat, string(desk.Kind()), err)
	}
	g.Log.Infof("Game %s: Player %d opened %s offer %d.", g.ID, seat, offer.Kind, offer.ID)
	g.fireEvent(GameEvent{Type: EventOfferOpened, Seat: seat, Offer: &offer})

	if opp := g.opponents[seatIndex(offer.To())]; opp != nil {
		go g.askOpponent(opp, desk, offer, st)
	}
	return offer, nil
}

// askOpponent waits for an automated decision and applies it through the
// fence. A failed or timed-out decision declines the offer.
func (g *Game) askOpponent(opp Opponent, desk *negotiation.Desk, offer negotiation.Offer, st *engine.GameState) {
	ctx, cancel := context.WithTimeout(context.Background(), g.OfferTimeout)
	defer cancel()

	var accept bool
	var err error
	switch offer.Kind {
	case negotiation.KindDraw:
		accept, err = opp.DecideDraw(ctx, st, offer.To())
	case negotiation.KindTakeback:
		accept, err = opp.DecideTakeback(ctx, st, offer.To())
	}
	if err != nil {
		g.Log.Warnf("Game %s: Opponent failed to answer %s offer %d: %v", g.ID, offer.Kind, offer.ID, err)
		accept = false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.resolveOffer(desk, offer.ID, accept); err != nil {
		g.Log.Warnf("Game %s: Applying %s offer %d failed: %v", g.ID, offer.Kind, offer.ID, err)
	}
}

// resolveOffer clears the offer with id and applies an accepted one. A stale
// id is a no-op. Assumes lock is held by caller.
func (g *Game) resolveOffer(desk *negotiation.Desk, id negotiation.RequestID, accept bool) error {
	res, err := desk.Resolve(id, accept)
	if errors.Is(err, negotiation.ErrStaleRequest) {
		g.Log.Debugf("Game %s: Ignoring stale %s resolution %d.", g.ID, desk.Kind(), id)
		return nil
	}
	if err != nil {
		return err
	}
	g.fireOfferResolved(res)
	if res.Outcome != negotiation.OutcomeAccepted {
		return nil
	}

	a := engine.GameAction{Timestamp: g.nowMs()}
	switch res.Offer.Kind {
	case negotiation.KindDraw:
		a.Kind, a.PlayerID = engine.KindDraw, res.Offer.To()
	case negotiation.KindTakeback:
		a.Kind, a.PlayerID = engine.KindTakeback, res.Offer.From
	}
	if g.settleClock() {
		return nil
	}
	if _, err := g.commit(a); err != nil {
		return g.reject(res.Offer.From, string(res.Offer.Kind), err)
	}
	return nil
}

// supersedeOffers clears every pending offer. Assumes lock is held by caller.
func (g *Game) supersedeOffers() {
	for _, desk := range []*negotiation.Desk{g.draws, g.takebacks} {
		if res, ok := desk.Supersede(); ok {
			g.fireOfferResolved(res)
		}
	}
}

// fireOfferResolved announces the single exit of an offer from the desk.
func (g *Game) fireOfferResolved(res negotiation.Resolution) {
	offer := res.Offer
	g.Log.Infof("Game %s: %s offer %d from player %d %s.", g.ID, offer.Kind, offer.ID, offer.From, res.Outcome)
	g.fireEvent(GameEvent{Type: EventOfferResolved, Seat: offer.From, Offer: &offer, Outcome: res.Outcome})
}

// ---------------------------------------------------------------------------
// Resignation gate
// ---------------------------------------------------------------------------

// StartResign arms seat's resignation gate.
func (g *Game) StartResign(seat engine.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ready(seat, "resign"); err != nil {
		return err
	}
	g.resign[seatIndex(seat)].Start()
	g.fireEventToSeat(seat, GameEvent{Type: EventPrivateResign, Seat: seat, Payload: map[string]interface{}{"armed": true}})
	return nil
}

// CancelResign disarms seat's resignation gate.
func (g *Game) CancelResign(seat engine.PlayerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !seat.Valid() {
		return
	}
	if g.resign[seatIndex(seat)].Cancel() {
		g.fireEventToSeat(seat, GameEvent{Type: EventPrivateResign, Seat: seat, Payload: map[string]interface{}{"armed": false}})
	}
}

// ConfirmResign resigns for seat if the gate was armed by StartResign.
func (g *Game) ConfirmResign(seat engine.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ready(seat, "resign"); err != nil {
		return err
	}
	return g.confirmResign(seat)
}

// confirmResign consumes the gate and applies the resignation.
// Assumes lock is held by caller.
func (g *Game) confirmResign(seat engine.PlayerID) error {
	if !g.resign[seatIndex(seat)].Confirm() {
		return g.reject(seat, "resign", fmt.Errorf("%w: resignation not started", engine.ErrIllegalAction))
	}
	if _, err := g.commit(engine.GameAction{Kind: engine.KindResign, PlayerID: seat, Timestamp: g.nowMs()}); err != nil {
		return g.reject(seat, "resign", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Automated seats
// ---------------------------------------------------------------------------

// scheduleAutomatedTurn asks the mover of the seat on turn for a move. The
// answer is applied only if no other transition happened in the meantime.
// Assumes lock is held by caller.
func (g *Game) scheduleAutomatedTurn(st *engine.GameState) {
	if !st.IsPlaying() {
		return
	}
	seat := st.Turn
	m := g.movers[seatIndex(seat)]
	if m == nil {
		return
	}
	id := g.turnFence.Next()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.MoveTimeout)
		defer cancel()
		move, resign, err := m.ChooseMove(ctx, st, seat)

		g.mu.Lock()
		defer g.mu.Unlock()
		if !g.turnFence.Current(id) {
			g.Log.Debugf("Game %s: Dropping stale automated move for seat %d.", g.ID, seat)
			return
		}
		if g.settleClock() {
			return
		}
		a := engine.GameAction{Kind: engine.KindMove, PlayerID: seat, Move: move, Timestamp: g.nowMs()}
		switch {
		case err != nil:
			g.Log.Warnf("Game %s: Automated seat %d failed, resigning: %v", g.ID, seat, err)
			a = engine.GameAction{Kind: engine.KindResign, PlayerID: seat, Timestamp: g.nowMs()}
		case resign:
			g.Log.Infof("Game %s: Automated seat %d resigns.", g.ID, seat)
			a = engine.GameAction{Kind: engine.KindResign, PlayerID: seat, Timestamp: g.nowMs()}
		}
		if _, err := g.commit(a); err != nil {
			g.Log.Warnf("Game %s: Automated seat %d played an illegal move, resigning: %v", g.ID, seat, err)
			if _, err := g.commit(engine.GameAction{Kind: engine.KindResign, PlayerID: seat, Timestamp: g.nowMs()}); err != nil {
				g.Log.Errorf("Game %s: Forced resignation for seat %d failed: %v", g.ID, seat, err)
			}
		}
	}()
}
