// Package engine implements the Wallwars rules: a two-player grid game where
// each player steers a cat towards the opposing mouse while building walls.
//
// Every transition is a pure function from one *GameState to a new one. The
// input state is never modified, so any state value stays valid for replay,
// undo and speculative simulation.
package engine

import "errors"

var (
	// ErrIllegalAction wraps every rule violation. The input state is untouched.
	ErrIllegalAction = errors.New("illegal action")
	// ErrMalformedInput wraps undecodable notation, configuration or serialized state.
	ErrMalformedInput = errors.New("malformed input")
)

// Status is the lifecycle stage of a game.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

// ResultReason explains why a game finished.
type ResultReason string

const (
	ReasonCapture       ResultReason = "capture"
	ReasonResignation   ResultReason = "resignation"
	ReasonTimeout       ResultReason = "timeout"
	ReasonDrawAgreement ResultReason = "draw-agreement"
	ReasonOneMoveRule   ResultReason = "one-move-rule"
)

// Result is set once the game is finished. Winner is NoPlayer for draws.
type Result struct {
	Winner PlayerID     `json:"winner,omitempty"`
	Reason ResultReason `json:"reason"`
}

// IsDraw reports whether the result has no winner.
func (r Result) IsDraw() bool { return r.Winner == NoPlayer }

// Snapshot captures everything a takeback must restore.
type Snapshot struct {
	Pawns        [4]Pawn
	Grid         Grid
	TimeLeft     [2]int64
	LastMoveTime int64
	Turn         PlayerID
}

// HistoryEntry is one committed move.
type HistoryEntry struct {
	Index     int // 1-based
	Player    PlayerID
	Move      Move // canonical order, one action per pawn type
	Notation  string
	Timestamp int64 // unix ms
	Before    Snapshot
}

// GameState is the complete state of a match. Values are produced by the
// transition functions and must be treated as read-only by callers.
type GameState struct {
	Config       GameConfiguration
	Status       Status
	Turn         PlayerID
	Pawns        [4]Pawn // index pawnIndex(player, type)
	Grid         Grid
	TimeLeft     [2]int64 // ms, indexed by PlayerID-1
	LastMoveTime int64    // unix ms
	History      []HistoryEntry
	Result       *Result
}

func pawnIndex(p PlayerID, t PawnType) int { return p.index()*2 + int(t) }

// NewGame creates the initial state. start is the unix-ms timestamp from
// which Player 1's clock runs.
func NewGame(cfg GameConfiguration, pos Positions, start int64) *GameState {
	s := &GameState{
		Config:       cfg,
		Status:       StatusPlaying,
		Turn:         Player1,
		Grid:         NewGrid(cfg.BoardWidth, cfg.BoardHeight),
		LastMoveTime: start,
	}
	for _, p := range []PlayerID{Player1, Player2} {
		s.Pawns[pawnIndex(p, Cat)] = Pawn{Player: p, Type: Cat, Cell: pos.Cats[p.index()]}
		s.Pawns[pawnIndex(p, Mouse)] = Pawn{Player: p, Type: Mouse, Cell: pos.Mice[p.index()]}
		s.TimeLeft[p.index()] = cfg.TimeControl.InitialMs()
	}
	return s
}

// NewDefaultGame creates a game with the variant's default starting layout.
func NewDefaultGame(cfg GameConfiguration, start int64) *GameState {
	return NewGame(cfg, DefaultPositions(cfg), start)
}

// clone returns a deep copy safe to mutate.
func (s *GameState) clone() *GameState {
	out := *s
	out.Grid = s.Grid.Clone()
	out.History = append([]HistoryEntry(nil), s.History...)
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return &out
}

// snapshot captures the restorable part of the state.
func (s *GameState) snapshot() Snapshot {
	return Snapshot{
		Pawns:        s.Pawns,
		Grid:         s.Grid.Clone(),
		TimeLeft:     s.TimeLeft,
		LastMoveTime: s.LastMoveTime,
		Turn:         s.Turn,
	}
}

// restore replaces the restorable part of the state with snap.
func (s *GameState) restore(snap Snapshot) {
	s.Pawns = snap.Pawns
	s.Grid = snap.Grid.Clone()
	s.TimeLeft = snap.TimeLeft
	s.LastMoveTime = snap.LastMoveTime
	s.Turn = snap.Turn
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// IsPlaying reports whether moves are still accepted.
func (s *GameState) IsPlaying() bool { return s.Status == StatusPlaying }

// PawnAt returns the position of p's pawn of type t.
func (s *GameState) PawnAt(p PlayerID, t PawnType) Cell {
	return s.Pawns[pawnIndex(p, t)].Cell
}

// CatOf and MouseOf are shorthands for PawnAt.
func (s *GameState) CatOf(p PlayerID) Cell   { return s.PawnAt(p, Cat) }
func (s *GameState) MouseOf(p PlayerID) Cell { return s.PawnAt(p, Mouse) }

// Clock returns p's stored time budget in ms, not accounting for the running turn.
func (s *GameState) Clock(p PlayerID) int64 { return s.TimeLeft[p.index()] }

// MoveCount returns the number of committed moves.
func (s *GameState) MoveCount() int { return len(s.History) }

// LastMove returns the most recent history entry, if any.
func (s *GameState) LastMove() (HistoryEntry, bool) {
	if len(s.History) == 0 {
		return HistoryEntry{}, false
	}
	return s.History[len(s.History)-1], true
}

// chaseTargets returns each cat paired with the opposing mouse it hunts, in
// the order CanPlaceWall expects.
func (s *GameState) chaseTargets() (cats, mice []Cell) {
	return []Cell{s.CatOf(Player1), s.CatOf(Player2)},
		[]Cell{s.MouseOf(Player2), s.MouseOf(Player1)}
}

// Abort ends a game without a result. Aborting a finished game is a no-op.
func Abort(s *GameState) *GameState {
	if !s.IsPlaying() {
		return s
	}
	out := s.clone()
	out.Status = StatusAborted
	return out
}
