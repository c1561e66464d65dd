package engine

import "fmt"

// WireAction is the transport and replay form of a GameAction. Moves travel
// as notation.
type WireAction struct {
	Kind      GameActionKind `json:"kind"`
	Move      string         `json:"move,omitempty"`
	PlayerID  PlayerID       `json:"playerId,omitempty"`
	Seconds   int            `json:"seconds,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ToWire converts a to its wire form for a board of the given height.
func ToWire(a GameAction, height int) (WireAction, error) {
	w := WireAction{Kind: a.Kind, PlayerID: a.PlayerID, Seconds: a.Seconds, Timestamp: a.Timestamp}
	if a.Kind == KindMove {
		s, err := EncodeMove(a.Move, height)
		if err != nil {
			return WireAction{}, err
		}
		w.Move = s
	}
	return w, nil
}

// FromWire decodes w. Only the shape is checked here; legality is decided by
// ApplyGameAction.
func FromWire(w WireAction, height int) (GameAction, error) {
	a := GameAction{Kind: w.Kind, PlayerID: w.PlayerID, Seconds: w.Seconds, Timestamp: w.Timestamp}
	switch w.Kind {
	case KindMove:
		m, err := DecodeMove(w.Move, height)
		if err != nil {
			return GameAction{}, err
		}
		a.Move = m
	case KindResign, KindTimeout, KindGiveTime:
		if !w.PlayerID.Valid() {
			return GameAction{}, fmt.Errorf("%w: %s needs a player", ErrMalformedInput, w.Kind)
		}
	case KindDraw, KindTakeback:
	default:
		return GameAction{}, fmt.Errorf("%w: unknown action kind %q", ErrMalformedInput, w.Kind)
	}
	return a, nil
}
