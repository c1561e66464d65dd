package engine

// TimeLeftAt returns p's remaining time in ms as of now (unix ms). Only the
// player on turn is charged for the time since the last move, and only while
// the game is playing. Nothing is stored; the value is derived on read.
func (s *GameState) TimeLeftAt(p PlayerID, now int64) int64 {
	left := s.TimeLeft[p.index()]
	if !s.IsPlaying() || p != s.Turn {
		return left
	}
	elapsed := now - s.LastMoveTime
	if elapsed < 0 {
		elapsed = 0
	}
	left -= elapsed
	if left < 0 {
		return 0
	}
	return left
}

// FlaggedPlayer returns the player whose clock has run out as of now, if any.
func (s *GameState) FlaggedPlayer(now int64) (PlayerID, bool) {
	if !s.IsPlaying() {
		return NoPlayer, false
	}
	if s.TimeLeftAt(s.Turn, now) == 0 {
		return s.Turn, true
	}
	return NoPlayer, false
}

// chargeMove deducts the elapsed turn time from mover and adds the increment.
// Timestamps before the last move (including zero) count as no elapsed time.
func (s *GameState) chargeMove(mover PlayerID, ts int64) bool {
	if ts < s.LastMoveTime {
		ts = s.LastMoveTime
	}
	left := s.TimeLeft[mover.index()] - (ts - s.LastMoveTime)
	if left <= 0 {
		return false
	}
	s.TimeLeft[mover.index()] = left + s.Config.TimeControl.IncrementMs()
	s.LastMoveTime = ts
	return true
}
