// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/negotiation"
)

// SyncState is the full view of a game for one seat. Spectators use seat 0
// and receive no private fields.
type SyncState struct {
	GameID          uuid.UUID                  `json:"gameId"`
	Seat            engine.PlayerID            `json:"seat,omitempty"`
	ServerTime      int64                      `json:"serverTime"`
	State           engine.SerializedGameState `json:"state"`
	DrawOffer       *negotiation.Offer         `json:"drawOffer,omitempty"`
	TakebackRequest *negotiation.Offer         `json:"takebackRequest,omitempty"`
	// Private to Seat.
	ResignPending   bool                       `json:"resignPending,omitempty"`
	Premoves        []string                   `json:"premoves,omitempty"`
	LegalActions    []string                   `json:"legalActions,omitempty"`
	Evaluation      *float64                   `json:"evaluation,omitempty"`
}

// SyncStateFor returns the current view for seat.
func (g *Game) SyncStateFor(seat engine.PlayerID) (SyncState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state.Load()
	if st == nil {
		return SyncState{}, false
	}
	return g.syncState(st, seat), true
}

// SendSyncState pushes the current view to seat.
func (g *Game) SendSyncState(seat engine.PlayerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state.Load()
	if st == nil {
		return
	}
	ss := g.syncState(st, seat)
	g.fireEventToSeat(seat, GameEvent{Type: EventPrivateSyncState, Seat: seat, State: &ss})
}

// syncState builds the view. Assumes lock is held by caller.
func (g *Game) syncState(st *engine.GameState, seat engine.PlayerID) SyncState {
	now := g.nowMs()
	ss := SyncState{
		GameID:     g.ID,
		Seat:       seat,
		ServerTime: now,
		State:      engine.Serialize(st, now),
	}
	if o, ok := g.draws.Pending(); ok {
		ss.DrawOffer = &o
	}
	if o, ok := g.takebacks.Pending(); ok {
		ss.TakebackRequest = &o
	}
	if !seat.Valid() {
		return ss
	}

	ss.ResignPending = g.resign[seatIndex(seat)].Armed()
	height := g.Config.BoardHeight
	for _, a := range g.premoves[seatIndex(seat)] {
		if s, err := engine.EncodeAction(a, height); err == nil {
			ss.Premoves = append(ss.Premoves, s)
		}
	}
	if st.IsPlaying() && st.Turn == seat {
		for _, a := range engine.LegalActions(st, seat) {
			if s, err := engine.EncodeAction(a, height); err == nil {
				ss.LegalActions = append(ss.LegalActions, s)
			}
		}
	}
	if g.movers[seatIndex(seat.Other())] != nil {
		e := engine.Evaluate(st, seat)
		ss.Evaluation = &e
	}
	return ss
}
