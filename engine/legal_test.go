package engine

import "testing"

// TestLegalActionsInitial verifies the opening action count on a 9×9 board.
func TestLegalActionsInitial(t *testing.T) {
	g := newStandardGame()

	if n := len(LegalSteps(g, Player1, Cat)); n != 3 {
		t.Errorf("cat steps = %d, want 3", n)
	}
	if n := len(LegalSteps(g, Player1, Mouse)); n != 2 {
		t.Errorf("mouse steps = %d, want 2", n)
	}
	if n := len(LegalWalls(g)); n != 144 {
		t.Errorf("walls = %d, want 144", n)
	}
	if n := len(LegalActions(g, Player1)); n != 149 {
		t.Errorf("actions = %d, want 149", n)
	}
}

// TestLegalActionsAreApplicable verifies every listed action is accepted.
func TestLegalActionsAreApplicable(t *testing.T) {
	g := newStandardGame()
	g = mustApply(t, g, moveAction(Player1, testStart, WallAt(Cell{8, 0}, Vertical)))
	g = mustApply(t, g, moveAction(Player2, testStart))

	for _, a := range LegalActions(g, Player1) {
		if _, err := TrialMove(g, Player1, []Action{a}); err != nil {
			t.Errorf("listed action %s rejected: %v", a, err)
		}
	}
	// Sealing P1's mouse must not be listed.
	for _, w := range LegalWalls(g) {
		if w.Cell == (Cell{8, 0}) && w.Orientation == Horizontal {
			t.Errorf("enclosing wall listed")
		}
	}
	if g.Grid.WallCount() != 1 {
		t.Errorf("LegalWalls mutated the grid")
	}
}

// TestLegalActionsClassicAndFinished verifies mice are frozen in classic and
// finished games list nothing.
func TestLegalActionsClassicAndFinished(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Variant = VariantClassic
	g := NewDefaultGame(cfg, testStart)
	for _, a := range LegalActions(g, Player1) {
		if a.Type == ActionMouse {
			t.Fatalf("classic lists mouse action %s", a)
		}
	}
	done := mustApply(t, g, GameAction{Kind: KindDraw})
	if n := len(LegalActions(done, Player1)); n != 0 {
		t.Errorf("finished game lists %d actions", n)
	}
}
