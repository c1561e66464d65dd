package engine

// ---------------------------------------------------------------------------
// Grid storage
// ---------------------------------------------------------------------------

// Per-cell bit layout:
//
//	bit 0     vertical wall on the right edge
//	bit 1     horizontal wall on the upper edge
//	bits 2-3  vertical wall owner (PlayerID)
//	bits 4-5  horizontal wall owner (PlayerID)
const (
	bitVertical   uint8 = 1 << 0
	bitHorizontal uint8 = 1 << 1

	ownerVerticalShift   = 2
	ownerHorizontalShift = 4
	ownerMask            = 0x3
)

// Grid holds wall occupancy for a width × height board. It owns no pawn state.
type Grid struct {
	Width  int
	Height int
	cells  []uint8
	walls  []Wall // placement order
}

// NewGrid returns an empty grid.
func NewGrid(width, height int) Grid {
	return Grid{
		Width:  width,
		Height: height,
		cells:  make([]uint8, width*height),
	}
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := Grid{Width: g.Width, Height: g.Height}
	out.cells = append([]uint8(nil), g.cells...)
	out.walls = append([]Wall(nil), g.walls...)
	return out
}

// InBounds reports whether c lies on the board.
func (g Grid) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < g.Height && c.Col < g.Width
}

func (g Grid) index(c Cell) int { return c.Row*g.Width + c.Col }

func orientationBit(o WallOrientation) uint8 {
	if o == Vertical {
		return bitVertical
	}
	return bitHorizontal
}

// HasWall reports whether a wall occupies w's edge.
func (g Grid) HasWall(w Wall) bool {
	if !g.InBounds(w.Cell) {
		return false
	}
	return g.cells[g.index(w.Cell)]&orientationBit(w.Orientation) != 0
}

// Owner returns the player who placed the wall at w's edge, or NoPlayer.
func (g Grid) Owner(w Wall) PlayerID {
	if !g.HasWall(w) {
		return NoPlayer
	}
	shift := ownerHorizontalShift
	if w.Orientation == Vertical {
		shift = ownerVerticalShift
	}
	return PlayerID(g.cells[g.index(w.Cell)] >> shift & ownerMask)
}

// Walls returns the placed walls in placement order. The slice must not be modified.
func (g Grid) Walls() []Wall { return g.walls }

// WallCount returns the number of placed walls.
func (g Grid) WallCount() int { return len(g.walls) }

// onEdge reports whether the wall would sit on the outer border of the board.
func (g Grid) onEdge(w Wall) bool {
	if w.Orientation == Vertical {
		return w.Cell.Col == g.Width-1
	}
	return w.Cell.Row == 0
}

// ValidPlacement reports whether w is on an interior edge that is still free.
// It does not check connectivity.
func (g Grid) ValidPlacement(w Wall) bool {
	return g.InBounds(w.Cell) && !g.onEdge(w) && !g.HasWall(w)
}

func (g *Grid) setBit(w Wall) {
	i := g.index(w.Cell)
	g.cells[i] |= orientationBit(w.Orientation)
	shift := ownerHorizontalShift
	if w.Orientation == Vertical {
		shift = ownerVerticalShift
	}
	g.cells[i] |= uint8(w.Owner&ownerMask) << shift
}

func (g *Grid) clearBit(w Wall) {
	i := g.index(w.Cell)
	shift := ownerHorizontalShift
	if w.Orientation == Vertical {
		shift = ownerVerticalShift
	}
	g.cells[i] &^= orientationBit(w.Orientation) | ownerMask<<shift
}

// place records the wall. Callers validate first.
func (g *Grid) place(w Wall) {
	g.setBit(w)
	g.walls = append(g.walls, w)
}

// ---------------------------------------------------------------------------
// Adjacency and reachability
// ---------------------------------------------------------------------------

// Blocked reports whether a step from c in direction d leaves the board or crosses a wall.
func (g Grid) Blocked(c Cell, d Direction) bool {
	next := c.Step(d)
	if !g.InBounds(c) || !g.InBounds(next) {
		return true
	}
	return g.HasWall(wallBetween(c, d))
}

// Adjacent reports whether a and b are orthogonal neighbours with no wall between them.
func (g Grid) Adjacent(a, b Cell) bool {
	for _, d := range directions {
		if a.Step(d) == b {
			return !g.Blocked(a, d)
		}
	}
	return false
}

// Neighbors returns the cells reachable from c in one step.
func (g Grid) Neighbors(c Cell) []Cell {
	out := make([]Cell, 0, 4)
	for _, d := range directions {
		if !g.Blocked(c, d) {
			out = append(out, c.Step(d))
		}
	}
	return out
}

// Distance returns the length of the shortest path from a to b, or -1 if b is unreachable.
func (g Grid) Distance(a, b Cell) int {
	if !g.InBounds(a) || !g.InBounds(b) {
		return -1
	}
	if a == b {
		return 0
	}
	dist := make([]int, g.Width*g.Height)
	for i := range dist {
		dist[i] = -1
	}
	dist[g.index(a)] = 0
	queue := []Cell{a}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for _, d := range directions {
			if g.Blocked(cur, d) {
				continue
			}
			next := cur.Step(d)
			ni := g.index(next)
			if dist[ni] != -1 {
				continue
			}
			dist[ni] = dist[g.index(cur)] + 1
			if next == b {
				return dist[ni]
			}
			queue = append(queue, next)
		}
	}
	return -1
}

// Reachable reports whether a path exists from a to b.
func (g Grid) Reachable(a, b Cell) bool { return g.Distance(a, b) >= 0 }

// CanPlaceWall reports whether w may be placed: the edge must be free and, with
// the wall in place, every cats[i] must still reach mice[i]. The grid is left
// exactly as it was on return.
func CanPlaceWall(g *Grid, w Wall, cats, mice []Cell) bool {
	if !g.ValidPlacement(w) {
		return false
	}
	g.setBit(w)
	defer g.clearBit(w)
	for i := range cats {
		if i >= len(mice) || !g.Reachable(cats[i], mice[i]) {
			return false
		}
	}
	return true
}
