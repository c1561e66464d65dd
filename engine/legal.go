package engine

// LegalWalls returns every wall placement currently allowed, ordered by row,
// column, then orientation. The state is not modified.
func LegalWalls(s *GameState) []Wall {
	g := s.Grid.Clone()
	cats, mice := s.chaseTargets()
	var out []Wall
	for r := 0; r < g.Height; r++ {
		for c := 0; c < g.Width; c++ {
			for _, o := range []WallOrientation{Vertical, Horizontal} {
				w := Wall{Cell: Cell{r, c}, Orientation: o}
				if CanPlaceWall(&g, w, cats, mice) {
					out = append(out, w)
				}
			}
		}
	}
	return out
}

// LegalSteps returns the cells p's pawn of type t can reach in a single step.
func LegalSteps(s *GameState, p PlayerID, t PawnType) []Cell {
	if t == Mouse && !s.Config.Variant.AllowsMouseMoves() {
		return nil
	}
	return s.Grid.Neighbors(s.PawnAt(p, t))
}

// LegalActions returns every single sub-action p may take as the first action
// of a move: cat steps, mouse steps (standard variant), then walls.
func LegalActions(s *GameState, p PlayerID) []Action {
	if !s.IsPlaying() || !p.Valid() {
		return nil
	}
	var out []Action
	for _, c := range LegalSteps(s, p, Cat) {
		out = append(out, CatTo(c))
	}
	for _, c := range LegalSteps(s, p, Mouse) {
		out = append(out, MouseTo(c))
	}
	for _, w := range LegalWalls(s) {
		out = append(out, WallAt(w.Cell, w.Orientation))
	}
	return out
}
