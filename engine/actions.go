package engine

import "fmt"

// GameActionKind enumerates the transitions ApplyGameAction accepts.
type GameActionKind string

const (
	KindMove     GameActionKind = "move"
	KindResign   GameActionKind = "resign"
	KindTimeout  GameActionKind = "timeout"
	KindDraw     GameActionKind = "draw"
	KindTakeback GameActionKind = "takeback"
	KindGiveTime GameActionKind = "giveTime"
)

// GameAction is a single transition request.
type GameAction struct {
	Kind      GameActionKind
	Move      Move
	PlayerID  PlayerID // optional for draw and takeback
	Seconds   int      // giveTime only
	Timestamp int64    // unix ms
}

// ApplyGameAction returns the state that results from applying a to s. On any
// rule violation it returns an error wrapping ErrIllegalAction and s is left
// untouched.
func ApplyGameAction(s *GameState, a GameAction) (*GameState, error) {
	if !s.IsPlaying() {
		return nil, illegal("game is %s", s.Status)
	}
	switch a.Kind {
	case KindMove:
		return applyMove(s, a, false)
	case KindResign:
		return applyForfeit(s, a.PlayerID, ReasonResignation)
	case KindTimeout:
		return applyForfeit(s, a.PlayerID, ReasonTimeout)
	case KindDraw:
		return applyDraw(s)
	case KindTakeback:
		return applyTakeback(s, a.PlayerID, a.Timestamp)
	case KindGiveTime:
		return applyGiveTime(s, a.PlayerID, a.Seconds)
	}
	return nil, illegal("unknown action kind %q", a.Kind)
}

// TrialMove applies actions as a move by actor, ignoring turn ownership and
// clocks. It is the single source of legality for staging and premoves.
func TrialMove(s *GameState, actor PlayerID, actions []Action) (*GameState, error) {
	if !s.IsPlaying() {
		return nil, illegal("game is %s", s.Status)
	}
	return applyMove(s, GameAction{Kind: KindMove, PlayerID: actor, Move: Move{Actions: actions}}, true)
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalAction, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Move
// ---------------------------------------------------------------------------

// applyMove validates and applies each sub-action in order. In trial mode the
// turn and clock checks are skipped and the result is not meant to be committed.
func applyMove(s *GameState, a GameAction, trial bool) (*GameState, error) {
	mover := a.PlayerID
	if !mover.Valid() {
		return nil, illegal("invalid player %d", mover)
	}
	if !trial && mover != s.Turn {
		return nil, illegal("not player %d's turn", mover)
	}
	if len(a.Move.Actions) > MaxActionsPerMove {
		return nil, illegal("move has %d actions, at most %d allowed", len(a.Move.Actions), MaxActionsPerMove)
	}

	next := s.clone()
	before := s.snapshot()
	start := [2]Cell{s.CatOf(mover), s.MouseOf(mover)}
	cost := 0
	for i, act := range a.Move.Actions {
		spent, err := next.applySubAction(mover, act)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, act, err)
		}
		cost += spent
		if cost > MaxActionsPerMove {
			return nil, illegal("move spends %d actions, at most %d allowed", cost, MaxActionsPerMove)
		}
	}

	canonical := Canonical(a.Move)
	for _, act := range canonical.Actions {
		if act.IsPawn() && act.Target == start[act.PawnType()] {
			return nil, illegal("%s ends the move where it started", act.PawnType())
		}
	}

	if !trial {
		if !next.chargeMove(mover, a.Timestamp) {
			return nil, illegal("player %d has no time left", mover)
		}
	}
	notation, err := EncodeMove(canonical, s.Config.BoardHeight)
	if err != nil {
		return nil, illegal("unencodable move: %v", err)
	}
	next.History = append(next.History, HistoryEntry{
		Index:     len(s.History) + 1,
		Player:    mover,
		Move:      canonical,
		Notation:  notation,
		Timestamp: next.LastMoveTime,
		Before:    before,
	})
	next.Turn = mover.Other()
	next.evaluateTermination(mover)
	return next, nil
}

// applySubAction mutates s (a private clone) and returns the number of action
// slots the sub-action used.
func (s *GameState) applySubAction(mover PlayerID, act Action) (int, error) {
	if !s.Grid.InBounds(act.Target) {
		return 0, illegal("target %s is off the board", act.Target)
	}
	if act.Type == ActionWall {
		w := act.Wall(mover)
		cats, mice := s.chaseTargets()
		if !CanPlaceWall(&s.Grid, w, cats, mice) {
			return 0, illegal("wall %s at %s is blocked or disconnects a cat from its mouse", w.Orientation, w.Cell)
		}
		s.Grid.place(w)
		return 1, nil
	}

	pt := act.PawnType()
	if pt == Mouse && !s.Config.Variant.AllowsMouseMoves() {
		return 0, illegal("mice cannot move in the %s variant", s.Config.Variant)
	}
	idx := pawnIndex(mover, pt)
	from := s.Pawns[idx].Cell
	steps, ok := s.stepCost(from, act.Target)
	if !ok {
		return 0, illegal("%s cannot reach %s from %s", pt, act.Target, from)
	}
	s.Pawns[idx].Cell = act.Target
	return steps, nil
}

// stepCost returns how many steps a pawn needs to go from a to b: 1 for an
// open neighbour, 2 for a two-hop jump with an open midpoint.
func (s *GameState) stepCost(a, b Cell) (int, bool) {
	switch a.ManhattanDistance(b) {
	case 1:
		return 1, s.Grid.Adjacent(a, b)
	case 2:
		for _, mid := range jumpMidpoints(a, b) {
			if s.Grid.Adjacent(a, mid) && s.Grid.Adjacent(mid, b) {
				return 2, true
			}
		}
	}
	return 0, false
}

// jumpMidpoints returns the candidate intermediate cells of a two-step jump:
// the straight midpoint, or both corners of an L-shaped jump.
func jumpMidpoints(a, b Cell) []Cell {
	if a.Row == b.Row {
		return []Cell{{a.Row, (a.Col + b.Col) / 2}}
	}
	if a.Col == b.Col {
		return []Cell{{(a.Row + b.Row) / 2, a.Col}}
	}
	return []Cell{{a.Row, b.Col}, {b.Row, a.Col}}
}

// ---------------------------------------------------------------------------
// Meta actions
// ---------------------------------------------------------------------------

func applyForfeit(s *GameState, loser PlayerID, reason ResultReason) (*GameState, error) {
	if !loser.Valid() {
		return nil, illegal("invalid player %d", loser)
	}
	next := s.clone()
	next.Status = StatusFinished
	next.Result = &Result{Winner: loser.Other(), Reason: reason}
	if reason == ReasonTimeout {
		next.TimeLeft[loser.index()] = 0
	}
	return next, nil
}

func applyDraw(s *GameState) (*GameState, error) {
	next := s.clone()
	next.Status = StatusFinished
	next.Result = &Result{Reason: ReasonDrawAgreement}
	return next, nil
}

// TakebackCount returns how many history entries a takeback requested by p
// removes: 2 when it is p's turn (both players moved since p's last move),
// otherwise 1. Without a requester the last move is undone.
func TakebackCount(s *GameState, requester PlayerID) int {
	if requester.Valid() && requester == s.Turn {
		return 2
	}
	return 1
}

// applyTakeback restores the snapshot taken before the oldest removed move.
// Stored clocks come back exactly; the restored player's turn restarts at ts
// so time spent since the snapshot is not charged again.
func applyTakeback(s *GameState, requester PlayerID, ts int64) (*GameState, error) {
	n := TakebackCount(s, requester)
	if len(s.History) < n {
		return nil, illegal("nothing to take back for player %d", requester)
	}
	keep := len(s.History) - n
	if s.History[keep].Before.Grid.Width == 0 {
		return nil, illegal("move %d has no snapshot to restore", keep+1)
	}
	next := s.clone()
	next.restore(s.History[keep].Before)
	next.History = next.History[:keep]
	if ts > next.LastMoveTime {
		next.LastMoveTime = ts
	}
	return next, nil
}

func applyGiveTime(s *GameState, giver PlayerID, seconds int) (*GameState, error) {
	if !giver.Valid() {
		return nil, illegal("invalid player %d", giver)
	}
	if seconds <= 0 {
		return nil, illegal("cannot give %d seconds", seconds)
	}
	next := s.clone()
	next.TimeLeft[giver.Other().index()] += int64(seconds) * 1000
	return next, nil
}
