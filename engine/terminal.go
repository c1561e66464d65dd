package engine

// evaluateTermination checks capture after mover's committed move.
//
// A cat on the opposing mouse wins for its owner, except on the very first
// move of the game: if the opposing cat is within OneMoveRuleDistance of the
// capturing player's own mouse, the opponent would have captured right back,
// so the game is drawn instead.
func (s *GameState) evaluateTermination(mover PlayerID) {
	opp := mover.Other()
	if s.CatOf(mover) == s.MouseOf(opp) {
		if len(s.History) == 1 && s.oneMoveRuleApplies(mover) {
			s.finish(Result{Reason: ReasonOneMoveRule})
			return
		}
		s.finish(Result{Winner: mover, Reason: ReasonCapture})
		return
	}
	// Walking a mouse into the opposing cat hands the opponent the game.
	if s.CatOf(opp) == s.MouseOf(mover) {
		s.finish(Result{Winner: opp, Reason: ReasonCapture})
	}
}

// oneMoveRuleApplies reports whether the opponent's cat could reach capturer's
// mouse within one move.
func (s *GameState) oneMoveRuleApplies(capturer PlayerID) bool {
	d := s.Grid.Distance(s.CatOf(capturer.Other()), s.MouseOf(capturer))
	return d >= 0 && d <= OneMoveRuleDistance
}

func (s *GameState) finish(r Result) {
	s.Status = StatusFinished
	s.Result = &r
}

// Winner returns the winning player, or NoPlayer when the game is undecided or drawn.
func (s *GameState) Winner() PlayerID {
	if s.Result == nil {
		return NoPlayer
	}
	return s.Result.Winner
}
