package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestNewGameDefaults verifies the initial state of a default game.
func TestNewGameDefaults(t *testing.T) {
	g := newStandardGame()

	if g.Status != StatusPlaying || g.Turn != Player1 || g.Result != nil {
		t.Fatalf("initial status/turn/result = %s/%d/%v", g.Status, g.Turn, g.Result)
	}
	if g.MoveCount() != 0 || g.Grid.WallCount() != 0 {
		t.Errorf("initial history %d, walls %d", g.MoveCount(), g.Grid.WallCount())
	}
	for _, p := range []PlayerID{Player1, Player2} {
		if g.Clock(p) != 180_000 {
			t.Errorf("Clock(%d) = %d, want 180000", p, g.Clock(p))
		}
	}
	want := map[PlayerID][2]Cell{
		Player1: {{7, 0}, {8, 0}},
		Player2: {{7, 8}, {8, 8}},
	}
	for p, cells := range want {
		if g.CatOf(p) != cells[0] || g.MouseOf(p) != cells[1] {
			t.Errorf("player %d pawns = %v/%v, want %v", p, g.CatOf(p), g.MouseOf(p), cells)
		}
	}
	if _, ok := g.LastMove(); ok {
		t.Errorf("LastMove reported a move on a fresh game")
	}
}

// TestClassicLayout verifies cats start in the top corners.
func TestClassicLayout(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Variant = VariantClassic
	cfg.BoardWidth, cfg.BoardHeight = 8, 6
	g := NewDefaultGame(cfg, testStart)
	if g.CatOf(Player1) != (Cell{0, 0}) || g.CatOf(Player2) != (Cell{0, 7}) {
		t.Errorf("classic cats = %v %v", g.CatOf(Player1), g.CatOf(Player2))
	}
	if g.MouseOf(Player1) != (Cell{5, 0}) || g.MouseOf(Player2) != (Cell{5, 7}) {
		t.Errorf("classic mice = %v %v", g.MouseOf(Player1), g.MouseOf(Player2))
	}
}

// TestLazyClock verifies the running clock is derived on read.
func TestLazyClock(t *testing.T) {
	g := newStandardGame()
	if got := g.TimeLeftAt(Player1, testStart+5000); got != 175_000 {
		t.Errorf("TimeLeftAt(+5s) = %d, want 175000", got)
	}
	if got := g.TimeLeftAt(Player1, testStart-5000); got != 180_000 {
		t.Errorf("TimeLeftAt(before start) = %d, want 180000", got)
	}
	if _, ok := g.FlaggedPlayer(testStart + 179_999); ok {
		t.Errorf("flagged with 1ms left")
	}
	p, ok := g.FlaggedPlayer(testStart + 180_000)
	if !ok || p != Player1 {
		t.Errorf("FlaggedPlayer = %d, %v; want 1, true", p, ok)
	}

	done := mustApply(t, g, GameAction{Kind: KindDraw})
	if got := done.TimeLeftAt(Player1, testStart+500_000); got != 180_000 {
		t.Errorf("finished clock kept running: %d", got)
	}
}

// TestAbort verifies Abort ends a playing game and ignores finished ones.
func TestAbort(t *testing.T) {
	g := newStandardGame()
	a := Abort(g)
	if a.Status != StatusAborted || a.Result != nil {
		t.Errorf("Abort = %s/%v", a.Status, a.Result)
	}
	if !g.IsPlaying() {
		t.Errorf("Abort mutated its input")
	}
	done := mustApply(t, g, GameAction{Kind: KindResign, PlayerID: Player1})
	if Abort(done) != done {
		t.Errorf("Abort replaced a finished game")
	}
	if _, err := ApplyGameAction(a, moveAction(Player1, testStart)); !errors.Is(err, ErrIllegalAction) {
		t.Errorf("move on aborted game err = %v", err)
	}
}

// TestConfigurationSanitize verifies invalid fields fall back to defaults.
func TestConfigurationSanitize(t *testing.T) {
	cfg, warnings := ParseConfiguration([]byte(`{"variant":"chess","boardWidth":40,"boardHeight":7,"timeControl":{"initialSeconds":-1,"incrementSeconds":5}}`))
	if len(warnings) != 3 {
		t.Errorf("warnings = %v, want 3", warnings)
	}
	if cfg.Variant != VariantStandard || cfg.BoardWidth != 9 || cfg.BoardHeight != 7 {
		t.Errorf("sanitized = %+v", cfg)
	}
	if cfg.TimeControl.InitialSeconds != 180 || cfg.TimeControl.IncrementSeconds != 5 {
		t.Errorf("time control = %+v", cfg.TimeControl)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sanitized config invalid: %v", err)
	}

	cfg, warnings = ParseConfiguration([]byte(`not json`))
	if len(warnings) != 1 || cfg != DefaultConfiguration() {
		t.Errorf("garbage config = %+v, %v", cfg, warnings)
	}

	bad := DefaultConfiguration()
	bad.BoardHeight = 2
	if err := bad.Validate(); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("Validate(height 2) = %v", err)
	}
}

// TestSerializeRoundTrip verifies the transport form rebuilds pawns, walls,
// clocks and history.
func TestSerializeRoundTrip(t *testing.T) {
	s := newStandardGame()
	s = mustApply(t, s, moveAction(Player1, testStart+1000, CatTo(Cell{6, 0}), WallAt(Cell{4, 4}, Vertical)))
	s = mustApply(t, s, moveAction(Player2, testStart+4000, WallAt(Cell{2, 2}, Horizontal)))

	data, err := MarshalState(s, s.LastMoveTime)
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}
	var wire SerializedGameState
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if wire.Pawns["1"].Cat != (SerializedCell{6, 0}) || len(wire.Walls) != 2 {
		t.Errorf("wire form = %+v", wire)
	}

	back, err := Deserialize(wire)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if back.Pawns != s.Pawns || back.Turn != s.Turn || back.TimeLeft != s.TimeLeft {
		t.Errorf("round trip pawns/turn/clocks differ")
	}
	if back.Grid.Owner(Wall{Cell: Cell{2, 2}, Orientation: Horizontal}) != Player2 {
		t.Errorf("wall owner lost")
	}
	if back.MoveCount() != 2 || back.History[1].Notation != s.History[1].Notation || back.History[1].Player != Player2 {
		t.Errorf("history = %+v", back.History)
	}
	if _, err := ApplyGameAction(back, GameAction{Kind: KindTakeback, PlayerID: Player2}); !errors.Is(err, ErrIllegalAction) {
		t.Errorf("takeback past deserialization err = %v", err)
	}

	wire.Walls = append(wire.Walls, SerializedWall{Cell: SerializedCell{0, 0}, Orientation: "diagonal"})
	if _, err := Deserialize(wire); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("bad orientation err = %v", err)
	}
}
