package engine

import "fmt"

// PlayerID identifies a seat. Player 1 always moves first.
type PlayerID uint8

const (
	NoPlayer PlayerID = 0
	Player1  PlayerID = 1
	Player2  PlayerID = 2
)

// Other returns the opposing seat.
func (p PlayerID) Other() PlayerID {
	if p == Player1 {
		return Player2
	}
	return Player1
}

// Valid reports whether p is one of the two seats.
func (p PlayerID) Valid() bool { return p == Player1 || p == Player2 }

func (p PlayerID) index() int { return int(p) - 1 }

// Cell is a (row, col) grid position. Row 0 is the top row.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// ManhattanDistance returns |dr| + |dc|.
func (c Cell) ManhattanDistance(o Cell) int {
	return abs(c.Row-o.Row) + abs(c.Col-o.Col)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Direction is one of the four orthogonal steps.
type Direction uint8

const (
	Right Direction = iota
	Down
	Left
	Up
)

var directions = [4]Direction{Right, Down, Left, Up}

// Step returns the neighbouring cell in direction d. The result may be off-board.
func (c Cell) Step(d Direction) Cell {
	switch d {
	case Right:
		return Cell{c.Row, c.Col + 1}
	case Down:
		return Cell{c.Row + 1, c.Col}
	case Left:
		return Cell{c.Row, c.Col - 1}
	default:
		return Cell{c.Row - 1, c.Col}
	}
}

// WallOrientation selects which edge of a cell a wall covers.
type WallOrientation uint8

const (
	// Vertical blocks the cell and its right neighbour.
	Vertical WallOrientation = iota
	// Horizontal blocks the cell and its upper neighbour.
	Horizontal
)

func (o WallOrientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseOrientation parses "vertical" or "horizontal".
func ParseOrientation(s string) (WallOrientation, bool) {
	switch s {
	case "vertical":
		return Vertical, true
	case "horizontal":
		return Horizontal, true
	}
	return 0, false
}

// Wall is an append-only barrier. Owner is NoPlayer for unowned walls.
type Wall struct {
	Cell        Cell
	Orientation WallOrientation
	Owner       PlayerID
}

// Endpoints returns the two cells the wall separates.
func (w Wall) Endpoints() (Cell, Cell) {
	if w.Orientation == Vertical {
		return w.Cell, w.Cell.Step(Right)
	}
	return w.Cell, w.Cell.Step(Up)
}

// SamePlacement reports whether two walls occupy the same edge, ignoring owner.
func (w Wall) SamePlacement(o Wall) bool {
	return w.Cell == o.Cell && w.Orientation == o.Orientation
}

// wallBetween returns the wall placement that would block a step from c in direction d.
func wallBetween(c Cell, d Direction) Wall {
	switch d {
	case Right:
		return Wall{Cell: c, Orientation: Vertical}
	case Left:
		return Wall{Cell: c.Step(Left), Orientation: Vertical}
	case Up:
		return Wall{Cell: c, Orientation: Horizontal}
	default:
		return Wall{Cell: c.Step(Down), Orientation: Horizontal}
	}
}

// PawnType is cat or mouse.
type PawnType uint8

const (
	Cat PawnType = iota
	Mouse
)

func (t PawnType) String() string {
	if t == Cat {
		return "cat"
	}
	return "mouse"
}

// Pawn is one of the four pieces on the board.
type Pawn struct {
	Player PlayerID
	Type   PawnType
	Cell   Cell
	Skin   string
}

// ActionType enumerates the kinds of sub-action inside a Move.
type ActionType uint8

const (
	ActionCat ActionType = iota
	ActionMouse
	ActionWall
)

func (t ActionType) String() string {
	switch t {
	case ActionCat:
		return "cat"
	case ActionMouse:
		return "mouse"
	default:
		return "wall"
	}
}

// Action is a single sub-action: a pawn destination or a wall placement.
type Action struct {
	Type        ActionType
	Target      Cell
	Orientation WallOrientation // meaningful only for ActionWall
}

// CatTo, MouseTo and WallAt construct actions.
func CatTo(c Cell) Action   { return Action{Type: ActionCat, Target: c} }
func MouseTo(c Cell) Action { return Action{Type: ActionMouse, Target: c} }
func WallAt(c Cell, o WallOrientation) Action {
	return Action{Type: ActionWall, Target: c, Orientation: o}
}

// IsPawn reports whether the action moves a pawn.
func (a Action) IsPawn() bool { return a.Type != ActionWall }

// PawnType returns the pawn moved by a pawn action.
func (a Action) PawnType() PawnType {
	if a.Type == ActionMouse {
		return Mouse
	}
	return Cat
}

// Wall returns the wall placed by a wall action, owned by p.
func (a Action) Wall(p PlayerID) Wall {
	return Wall{Cell: a.Target, Orientation: a.Orientation, Owner: p}
}

// Equal compares actions, ignoring Orientation on pawn actions.
func (a Action) Equal(o Action) bool {
	if a.Type != o.Type || a.Target != o.Target {
		return false
	}
	return a.Type != ActionWall || a.Orientation == o.Orientation
}

func (a Action) String() string {
	if a.Type == ActionWall {
		return fmt.Sprintf("wall%s@%s", a.Orientation, a.Target)
	}
	return fmt.Sprintf("%s->%s", a.Type, a.Target)
}

// Move is an ordered list of zero to two actions. The empty move is a pass.
type Move struct {
	Actions []Action
}

// NewMove builds a move from actions.
func NewMove(actions ...Action) Move {
	return Move{Actions: append([]Action(nil), actions...)}
}

// IsPass reports whether the move carries no actions.
func (m Move) IsPass() bool { return len(m.Actions) == 0 }

// EquivalentTo reports whether two moves contain the same actions regardless of order.
func (m Move) EquivalentTo(o Move) bool {
	if len(m.Actions) != len(o.Actions) {
		return false
	}
	used := make([]bool, len(o.Actions))
outer:
	for _, a := range m.Actions {
		for i, b := range o.Actions {
			if !used[i] && a.Equal(b) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}
