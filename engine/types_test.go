package engine

import "testing"

// TestPlayerOther verifies seat alternation.
func TestPlayerOther(t *testing.T) {
	if Player1.Other() != Player2 || Player2.Other() != Player1 {
		t.Errorf("Other() does not alternate")
	}
	if NoPlayer.Valid() || PlayerID(3).Valid() || !Player2.Valid() {
		t.Errorf("Valid() wrong")
	}
}

// TestWallBetween verifies the wall separating each pair of neighbours.
func TestWallBetween(t *testing.T) {
	c := Cell{4, 4}
	cases := []struct {
		d    Direction
		want Wall
	}{
		{Right, Wall{Cell: Cell{4, 4}, Orientation: Vertical}},
		{Left, Wall{Cell: Cell{4, 3}, Orientation: Vertical}},
		{Up, Wall{Cell: Cell{4, 4}, Orientation: Horizontal}},
		{Down, Wall{Cell: Cell{5, 4}, Orientation: Horizontal}},
	}
	for _, tc := range cases {
		got := wallBetween(c, tc.d)
		if !got.SamePlacement(tc.want) {
			t.Errorf("wallBetween(%v, %d) = %+v, want %+v", c, tc.d, got, tc.want)
		}
	}
}

// TestMoveEquivalence verifies action order does not matter.
func TestMoveEquivalence(t *testing.T) {
	a := NewMove(CatTo(Cell{1, 1}), WallAt(Cell{2, 2}, Vertical))
	b := NewMove(WallAt(Cell{2, 2}, Vertical), CatTo(Cell{1, 1}))
	if !a.EquivalentTo(b) {
		t.Errorf("reordered moves not equivalent")
	}
	if a.EquivalentTo(NewMove(CatTo(Cell{1, 1}), WallAt(Cell{2, 2}, Horizontal))) {
		t.Errorf("different walls reported equivalent")
	}
	if !(Move{}).IsPass() || a.IsPass() {
		t.Errorf("IsPass wrong")
	}
}

// TestOrientationParse verifies orientation names round-trip.
func TestOrientationParse(t *testing.T) {
	for _, o := range []WallOrientation{Vertical, Horizontal} {
		got, ok := ParseOrientation(o.String())
		if !ok || got != o {
			t.Errorf("ParseOrientation(%q) = %v, %v", o.String(), got, ok)
		}
	}
	if _, ok := ParseOrientation("diagonal"); ok {
		t.Errorf("diagonal accepted")
	}
}
