package engine

// Evaluate returns p's standing in [-1, +1].
//
// Finished games score +1 for the winner, -1 for the loser and 0 for draws or
// aborts. While playing, the player whose cat is closer to its target mouse
// leads, scaled by the ratio of the two path lengths:
//   - own distance d shorter than opponent distance o → 1 - d/o
//   - otherwise → -1 + o/d
func Evaluate(s *GameState, p PlayerID) float64 {
	if !s.IsPlaying() {
		if s.Result == nil || s.Result.IsDraw() {
			return 0
		}
		if s.Result.Winner == p {
			return 1
		}
		return -1
	}

	opp := p.Other()
	d := float64(s.Grid.Distance(s.CatOf(p), s.MouseOf(opp)))
	o := float64(s.Grid.Distance(s.CatOf(opp), s.MouseOf(p)))
	switch {
	case d == o:
		return 0
	case d < o:
		return 1 - d/o
	default:
		return -1 + o/d
	}
}

// Utility returns Evaluate for both players, indexed by PlayerID-1.
func Utility(s *GameState) [2]float64 {
	return [2]float64{Evaluate(s, Player1), Evaluate(s, Player2)}
}
