package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SerializedCell is a cell as [row, col], row 0 at the top.
type SerializedCell [2]int

// SerializedPawns holds one player's pawn cells.
type SerializedPawns struct {
	Cat       SerializedCell `json:"cat"`
	Mouse     SerializedCell `json:"mouse"`
	CatSkin   string         `json:"catSkin,omitempty"`
	MouseSkin string         `json:"mouseSkin,omitempty"`
}

// SerializedWall is a placed wall.
type SerializedWall struct {
	Cell        SerializedCell `json:"cell"`
	Orientation string         `json:"orientation"`
	PlayerID    PlayerID       `json:"playerId,omitempty"`
}

// SerializedHistoryEntry is one move in notation.
type SerializedHistoryEntry struct {
	Index    int    `json:"index"`
	Notation string `json:"notation"`
}

// SerializedGameState is the transport form shared with spectators and bot engines.
type SerializedGameState struct {
	Status       Status                     `json:"status"`
	Result       *Result                    `json:"result,omitempty"`
	Turn         PlayerID                   `json:"turn"`
	MoveCount    int                        `json:"moveCount"`
	TimeLeft     map[string]int64           `json:"timeLeft"`
	LastMoveTime int64                      `json:"lastMoveTime"`
	Pawns        map[string]SerializedPawns `json:"pawns"`
	Walls        []SerializedWall           `json:"walls"`
	History      []SerializedHistoryEntry   `json:"history"`
	Config       GameConfiguration          `json:"config"`
}

func toSerializedCell(c Cell) SerializedCell { return SerializedCell{c.Row, c.Col} }

func (c SerializedCell) cell() Cell { return Cell{Row: c[0], Col: c[1]} }

func seatKey(p PlayerID) string { return strconv.Itoa(int(p)) }

// Serialize renders s with clocks evaluated at now (unix ms).
func Serialize(s *GameState, now int64) SerializedGameState {
	out := SerializedGameState{
		Status:       s.Status,
		Result:       s.Result,
		Turn:         s.Turn,
		MoveCount:    s.MoveCount(),
		TimeLeft:     make(map[string]int64, 2),
		LastMoveTime: s.LastMoveTime,
		Pawns:        make(map[string]SerializedPawns, 2),
		Walls:        make([]SerializedWall, 0, s.Grid.WallCount()),
		History:      make([]SerializedHistoryEntry, 0, len(s.History)),
		Config:       s.Config,
	}
	for _, p := range []PlayerID{Player1, Player2} {
		out.TimeLeft[seatKey(p)] = s.TimeLeftAt(p, now)
		cat, mouse := s.Pawns[pawnIndex(p, Cat)], s.Pawns[pawnIndex(p, Mouse)]
		out.Pawns[seatKey(p)] = SerializedPawns{
			Cat:       toSerializedCell(cat.Cell),
			Mouse:     toSerializedCell(mouse.Cell),
			CatSkin:   cat.Skin,
			MouseSkin: mouse.Skin,
		}
	}
	for _, w := range s.Grid.Walls() {
		out.Walls = append(out.Walls, SerializedWall{
			Cell:        toSerializedCell(w.Cell),
			Orientation: w.Orientation.String(),
			PlayerID:    w.Owner,
		})
	}
	for _, h := range s.History {
		out.History = append(out.History, SerializedHistoryEntry{Index: h.Index, Notation: h.Notation})
	}
	return out
}

// MarshalState serializes s to JSON.
func MarshalState(s *GameState, now int64) ([]byte, error) {
	return json.Marshal(Serialize(s, now))
}

// Deserialize rebuilds a state from its transport form. Pawns and walls are
// placed as given; history is kept as notation only, so moves made before
// deserialization cannot be taken back.
func Deserialize(in SerializedGameState) (*GameState, error) {
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	s := &GameState{
		Config:       in.Config,
		Status:       in.Status,
		Turn:         in.Turn,
		Grid:         NewGrid(in.Config.BoardWidth, in.Config.BoardHeight),
		LastMoveTime: in.LastMoveTime,
		Result:       in.Result,
	}
	if s.Status == "" {
		s.Status = StatusPlaying
	}
	if !s.Turn.Valid() {
		return nil, fmt.Errorf("%w: invalid turn %d", ErrMalformedInput, in.Turn)
	}
	for _, p := range []PlayerID{Player1, Player2} {
		sp, ok := in.Pawns[seatKey(p)]
		if !ok {
			return nil, fmt.Errorf("%w: missing pawns for player %d", ErrMalformedInput, p)
		}
		for _, pawn := range []Pawn{
			{Player: p, Type: Cat, Cell: sp.Cat.cell(), Skin: sp.CatSkin},
			{Player: p, Type: Mouse, Cell: sp.Mouse.cell(), Skin: sp.MouseSkin},
		} {
			if !s.Grid.InBounds(pawn.Cell) {
				return nil, fmt.Errorf("%w: %s of player %d off the board", ErrMalformedInput, pawn.Type, p)
			}
			s.Pawns[pawnIndex(p, pawn.Type)] = pawn
		}
		s.TimeLeft[p.index()] = in.TimeLeft[seatKey(p)]
	}
	for _, sw := range in.Walls {
		o, ok := ParseOrientation(sw.Orientation)
		if !ok {
			return nil, fmt.Errorf("%w: wall orientation %q", ErrMalformedInput, sw.Orientation)
		}
		w := Wall{Cell: sw.Cell.cell(), Orientation: o, Owner: sw.PlayerID}
		if !s.Grid.ValidPlacement(w) {
			return nil, fmt.Errorf("%w: wall %s at %s cannot be placed", ErrMalformedInput, o, w.Cell)
		}
		s.Grid.place(w)
	}
	for _, h := range in.History {
		m, err := DecodeMove(h.Notation, in.Config.BoardHeight)
		if err != nil {
			return nil, err
		}
		s.History = append(s.History, HistoryEntry{Index: h.Index, Move: m, Notation: h.Notation, Player: playerForIndex(h.Index)})
	}
	return s, nil
}

// playerForIndex returns who made the 1-based history entry i.
func playerForIndex(i int) PlayerID {
	if i%2 == 1 {
		return Player1
	}
	return Player2
}
