package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Notation grammar:
//
//	cell      := [a-z][0-9]+        column letter, 1-based row counted from the bottom
//	wall      := ('>' | '^') cell   '>' vertical (right of cell), '^' horizontal (above cell)
//	pawnMove  := ('C' | 'M') cell
//	action    := pawnMove | wall
//	move      := action ('.' action)? | '---'
//	turn      := move SP move?
const (
	PassNotation = "---"

	actionSeparator = "."
	turnSeparator   = " "
)

// ---------------------------------------------------------------------------
// Cells
// ---------------------------------------------------------------------------

// FormatCell renders c for a board of the given height.
func FormatCell(c Cell, height int) (string, error) {
	row := height - c.Row
	if c.Col < 0 || c.Col >= MaxBoardWidth || row < 1 || c.Row < 0 {
		return "", fmt.Errorf("%w: cell %s not expressible on a board of height %d", ErrMalformedInput, c, height)
	}
	return string(rune('a'+c.Col)) + strconv.Itoa(row), nil
}

// ParseCell parses a cell token such as "e4".
func ParseCell(s string, height int) (Cell, error) {
	if len(s) < 2 || s[0] < 'a' || s[0] > 'z' {
		return Cell{}, fmt.Errorf("%w: bad cell %q", ErrMalformedInput, s)
	}
	digits := s[1:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Cell{}, fmt.Errorf("%w: bad row in cell %q", ErrMalformedInput, s)
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 || row > height {
		return Cell{}, fmt.Errorf("%w: row of %q outside board of height %d", ErrMalformedInput, s, height)
	}
	return Cell{Row: height - row, Col: int(s[0] - 'a')}, nil
}

// ---------------------------------------------------------------------------
// Canonical form
// ---------------------------------------------------------------------------

// Canonical collapses repeated pawn actions to their final destination and
// orders the result: cat, mouse, vertical walls, horizontal walls. Walls of
// the same orientation are ordered by column, then row.
func Canonical(m Move) Move {
	var cat, mouse *Action
	var walls []Action
	for i := range m.Actions {
		a := m.Actions[i]
		switch a.Type {
		case ActionCat:
			cat = &a
		case ActionMouse:
			mouse = &a
		default:
			walls = append(walls, a)
		}
	}
	sort.SliceStable(walls, func(i, j int) bool {
		a, b := walls[i], walls[j]
		if a.Orientation != b.Orientation {
			return a.Orientation == Vertical
		}
		if a.Target.Col != b.Target.Col {
			return a.Target.Col < b.Target.Col
		}
		return a.Target.Row < b.Target.Row
	})
	out := Move{}
	if cat != nil {
		out.Actions = append(out.Actions, *cat)
	}
	if mouse != nil {
		out.Actions = append(out.Actions, *mouse)
	}
	out.Actions = append(out.Actions, walls...)
	return out
}

// ---------------------------------------------------------------------------
// Encode / decode
// ---------------------------------------------------------------------------

// EncodeAction renders a single action.
func EncodeAction(a Action, height int) (string, error) {
	cell, err := FormatCell(a.Target, height)
	if err != nil {
		return "", err
	}
	switch a.Type {
	case ActionCat:
		return "C" + cell, nil
	case ActionMouse:
		return "M" + cell, nil
	}
	if a.Orientation == Vertical {
		return ">" + cell, nil
	}
	return "^" + cell, nil
}

// EncodeMove renders m in canonical notation. The output does not depend on
// the order in which the actions were staged.
func EncodeMove(m Move, height int) (string, error) {
	c := Canonical(m)
	if c.IsPass() {
		return PassNotation, nil
	}
	if len(c.Actions) > MaxActionsPerMove {
		return "", fmt.Errorf("%w: move has %d actions", ErrMalformedInput, len(c.Actions))
	}
	parts := make([]string, 0, len(c.Actions))
	for _, a := range c.Actions {
		s, err := EncodeAction(a, height)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, actionSeparator), nil
}

// DecodeAction parses a single action token.
func DecodeAction(s string, height int) (Action, error) {
	if len(s) < 3 {
		return Action{}, fmt.Errorf("%w: bad action %q", ErrMalformedInput, s)
	}
	cell, err := ParseCell(s[1:], height)
	if err != nil {
		return Action{}, err
	}
	switch s[0] {
	case 'C':
		return CatTo(cell), nil
	case 'M':
		return MouseTo(cell), nil
	case '>':
		return WallAt(cell, Vertical), nil
	case '^':
		return WallAt(cell, Horizontal), nil
	}
	return Action{}, fmt.Errorf("%w: unknown action prefix in %q", ErrMalformedInput, s)
}

// DecodeMove parses a move and returns it in canonical order.
func DecodeMove(s string, height int) (Move, error) {
	if s == PassNotation {
		return Move{}, nil
	}
	tokens := strings.Split(s, actionSeparator)
	if len(tokens) > MaxActionsPerMove {
		return Move{}, fmt.Errorf("%w: move %q has more than %d actions", ErrMalformedInput, s, MaxActionsPerMove)
	}
	m := Move{Actions: make([]Action, 0, len(tokens))}
	for _, tok := range tokens {
		a, err := DecodeAction(tok, height)
		if err != nil {
			return Move{}, err
		}
		m.Actions = append(m.Actions, a)
	}
	if len(m.Actions) == 2 && m.Actions[0].IsPawn() && m.Actions[0].Type == m.Actions[1].Type {
		return Move{}, fmt.Errorf("%w: move %q moves the same pawn twice", ErrMalformedInput, s)
	}
	if len(m.Actions) == 2 && m.Actions[0].Type == ActionWall && m.Actions[0].Equal(m.Actions[1]) {
		return Move{}, fmt.Errorf("%w: move %q places the same wall twice", ErrMalformedInput, s)
	}
	return Canonical(m), nil
}

// EncodeTurn renders Player 1's move followed by Player 2's reply, if any.
func EncodeTurn(first Move, second *Move, height int) (string, error) {
	a, err := EncodeMove(first, height)
	if err != nil {
		return "", err
	}
	if second == nil {
		return a, nil
	}
	b, err := EncodeMove(*second, height)
	if err != nil {
		return "", err
	}
	return a + turnSeparator + b, nil
}

// DecodeTurn parses a turn into one or two moves.
func DecodeTurn(s string, height int) ([]Move, error) {
	parts := strings.Split(s, turnSeparator)
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: turn %q has more than two moves", ErrMalformedInput, s)
	}
	out := make([]Move, 0, len(parts))
	for _, p := range parts {
		m, err := DecodeMove(p, height)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
