package engine

import "testing"

// chaseGame builds a 9×9 standard game with custom pawn positions.
func chaseGame(p1Cat, p1Mouse, p2Cat, p2Mouse Cell) *GameState {
	return NewGame(DefaultConfiguration(), Positions{
		Cats: [2]Cell{p1Cat, p2Cat},
		Mice: [2]Cell{p1Mouse, p2Mouse},
	}, testStart)
}

// TestCaptureWins verifies a cat landing on the opposing mouse ends the game.
func TestCaptureWins(t *testing.T) {
	g := chaseGame(Cell{4, 4}, Cell{8, 0}, Cell{0, 0}, Cell{4, 5})
	s := mustApply(t, g, moveAction(Player1, testStart, CatTo(Cell{4, 5})))
	if s.Status != StatusFinished {
		t.Fatalf("Status = %s, want finished", s.Status)
	}
	if s.Winner() != Player1 || s.Result.Reason != ReasonCapture {
		t.Errorf("Result = %+v, want P1 by capture", s.Result)
	}
	mustFail(t, s, moveAction(Player2, testStart))
}

// TestOneMoveRuleDraws verifies a first-move capture is a draw when the
// opposing cat is within two steps of the capturer's mouse.
func TestOneMoveRuleDraws(t *testing.T) {
	g := chaseGame(Cell{4, 4}, Cell{6, 7}, Cell{6, 6}, Cell{4, 5})
	s := mustApply(t, g, moveAction(Player1, testStart, CatTo(Cell{4, 5})))
	if s.Result == nil || s.Result.Reason != ReasonOneMoveRule {
		t.Fatalf("Result = %+v, want one-move-rule draw", s.Result)
	}
	if !s.Result.IsDraw() || s.Winner() != NoPlayer {
		t.Errorf("one-move-rule result has a winner: %+v", s.Result)
	}
}

// TestOneMoveRuleRespectsWalls verifies the distance is measured around walls.
func TestOneMoveRuleRespectsWalls(t *testing.T) {
	g := chaseGame(Cell{4, 4}, Cell{6, 7}, Cell{6, 6}, Cell{4, 5})
	// The vertical wall right of (6,6) pushes P2's cat three steps away.
	s := mustApply(t, g, moveAction(Player1, testStart, WallAt(Cell{6, 6}, Vertical), CatTo(Cell{4, 5})))
	if s.Winner() != Player1 || s.Result.Reason != ReasonCapture {
		t.Errorf("Result = %+v, want P1 by capture", s.Result)
	}
}

// TestOneMoveRuleOnlyOnFirstMove verifies later captures win outright.
func TestOneMoveRuleOnlyOnFirstMove(t *testing.T) {
	g := chaseGame(Cell{4, 4}, Cell{6, 7}, Cell{6, 6}, Cell{4, 5})
	s := mustApply(t, g, moveAction(Player1, testStart))
	s = mustApply(t, s, moveAction(Player2, testStart))
	s = mustApply(t, s, moveAction(Player1, testStart, CatTo(Cell{4, 5})))
	if s.Winner() != Player1 || s.Result.Reason != ReasonCapture {
		t.Errorf("Result = %+v, want P1 by capture on move 3", s.Result)
	}
}

// TestSecondPlayerCaptureWins verifies the rule does not apply to Player 2's reply.
func TestSecondPlayerCaptureWins(t *testing.T) {
	g := chaseGame(Cell{0, 0}, Cell{4, 5}, Cell{4, 3}, Cell{8, 8})
	s := mustApply(t, g, moveAction(Player1, testStart))
	s = mustApply(t, s, moveAction(Player2, testStart, CatTo(Cell{4, 5})))
	if s.Winner() != Player2 || s.Result.Reason != ReasonCapture {
		t.Errorf("Result = %+v, want P2 by capture", s.Result)
	}
}

// TestMouseIntoCatLoses verifies walking a mouse onto the opposing cat hands
// the opponent the win.
func TestMouseIntoCatLoses(t *testing.T) {
	g := chaseGame(Cell{0, 0}, Cell{4, 4}, Cell{4, 5}, Cell{8, 8})
	s := mustApply(t, g, moveAction(Player1, testStart, MouseTo(Cell{4, 5})))
	if s.Winner() != Player2 || s.Result.Reason != ReasonCapture {
		t.Errorf("Result = %+v, want P2 by capture", s.Result)
	}
}

// TestNoCaptureKeepsPlaying verifies ordinary moves leave the result unset.
func TestNoCaptureKeepsPlaying(t *testing.T) {
	s := mustApply(t, newStandardGame(), moveAction(Player1, testStart, CatTo(Cell{6, 0})))
	if !s.IsPlaying() || s.Result != nil || s.Winner() != NoPlayer {
		t.Errorf("Status = %s, Result = %+v", s.Status, s.Result)
	}
}
