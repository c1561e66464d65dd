package engine

import (
	"encoding/json"
	"fmt"
)

// Variant selects the rule set.
type Variant string

const (
	// VariantClassic: mice never move.
	VariantClassic Variant = "classic"
	// VariantStandard: mice may move like cats.
	VariantStandard Variant = "standard"
)

// AllowsMouseMoves reports whether mouse actions are legal in this variant.
func (v Variant) AllowsMouseMoves() bool { return v == VariantStandard }

// ParseVariant parses a variant name.
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantClassic, VariantStandard:
		return Variant(s), true
	}
	return "", false
}

const (
	MinBoardSize = 3
	// MaxBoardWidth is bounded by the notation's single column letter.
	MaxBoardWidth  = 26
	MaxBoardHeight = 99

	// OneMoveRuleDistance is the largest path length from the opposing cat to
	// the capturing player's mouse for which a first-move capture is drawn.
	OneMoveRuleDistance = 2

	// MaxActionsPerMove is the number of sub-actions a move may spend.
	MaxActionsPerMove = 2
)

// TimeControl is the per-player clock budget.
type TimeControl struct {
	InitialSeconds   int    `json:"initialSeconds"`
	IncrementSeconds int    `json:"incrementSeconds"`
	Preset           string `json:"preset,omitempty"`
}

// InitialMs returns the starting budget in milliseconds.
func (tc TimeControl) InitialMs() int64 { return int64(tc.InitialSeconds) * 1000 }

// IncrementMs returns the per-move increment in milliseconds.
func (tc TimeControl) IncrementMs() int64 { return int64(tc.IncrementSeconds) * 1000 }

// GameConfiguration holds the settings fixed at match start.
type GameConfiguration struct {
	Variant     Variant     `json:"variant"`
	TimeControl TimeControl `json:"timeControl"`
	Rated       bool        `json:"rated"`
	BoardWidth  int         `json:"boardWidth"`
	BoardHeight int         `json:"boardHeight"`
}

// DefaultConfiguration returns a 9×9 standard game at 3+2.
func DefaultConfiguration() GameConfiguration {
	return GameConfiguration{
		Variant: VariantStandard,
		TimeControl: TimeControl{
			InitialSeconds:   180,
			IncrementSeconds: 2,
			Preset:           "blitz",
		},
		Rated:       false,
		BoardWidth:  9,
		BoardHeight: 9,
	}
}

// Validate checks the configuration for values the engine cannot play with.
func (c GameConfiguration) Validate() error {
	if _, ok := ParseVariant(string(c.Variant)); !ok {
		return fmt.Errorf("%w: unknown variant %q", ErrMalformedInput, c.Variant)
	}
	if c.BoardWidth < MinBoardSize || c.BoardWidth > MaxBoardWidth {
		return fmt.Errorf("%w: board width %d out of range [%d, %d]", ErrMalformedInput, c.BoardWidth, MinBoardSize, MaxBoardWidth)
	}
	if c.BoardHeight < MinBoardSize || c.BoardHeight > MaxBoardHeight {
		return fmt.Errorf("%w: board height %d out of range [%d, %d]", ErrMalformedInput, c.BoardHeight, MinBoardSize, MaxBoardHeight)
	}
	if c.TimeControl.InitialSeconds <= 0 || c.TimeControl.IncrementSeconds < 0 {
		return fmt.Errorf("%w: invalid time control %+v", ErrMalformedInput, c.TimeControl)
	}
	return nil
}

// ParseConfiguration decodes a configuration from JSON. Corrupt or out-of-range
// fields are replaced by their defaults and reported as warnings; the returned
// configuration is always valid.
func ParseConfiguration(data []byte) (GameConfiguration, []string) {
	def := DefaultConfiguration()
	var raw GameConfiguration
	if err := json.Unmarshal(data, &raw); err != nil {
		return def, []string{fmt.Sprintf("configuration is not valid JSON, using defaults: %v", err)}
	}
	return Sanitize(raw)
}

// Sanitize replaces every invalid field of c with the default value.
func Sanitize(c GameConfiguration) (GameConfiguration, []string) {
	def := DefaultConfiguration()
	var warnings []string
	if _, ok := ParseVariant(string(c.Variant)); !ok {
		warnings = append(warnings, fmt.Sprintf("unknown variant %q, using %q", c.Variant, def.Variant))
		c.Variant = def.Variant
	}
	if c.BoardWidth < MinBoardSize || c.BoardWidth > MaxBoardWidth {
		warnings = append(warnings, fmt.Sprintf("board width %d out of range, using %d", c.BoardWidth, def.BoardWidth))
		c.BoardWidth = def.BoardWidth
	}
	if c.BoardHeight < MinBoardSize || c.BoardHeight > MaxBoardHeight {
		warnings = append(warnings, fmt.Sprintf("board height %d out of range, using %d", c.BoardHeight, def.BoardHeight))
		c.BoardHeight = def.BoardHeight
	}
	if c.TimeControl.InitialSeconds <= 0 {
		warnings = append(warnings, fmt.Sprintf("initial time %ds invalid, using %ds", c.TimeControl.InitialSeconds, def.TimeControl.InitialSeconds))
		c.TimeControl.InitialSeconds = def.TimeControl.InitialSeconds
	}
	if c.TimeControl.IncrementSeconds < 0 {
		warnings = append(warnings, fmt.Sprintf("increment %ds invalid, using %ds", c.TimeControl.IncrementSeconds, def.TimeControl.IncrementSeconds))
		c.TimeControl.IncrementSeconds = def.TimeControl.IncrementSeconds
	}
	return c, warnings
}

// Positions holds the starting cells of all four pawns.
type Positions struct {
	Cats [2]Cell // indexed by PlayerID-1
	Mice [2]Cell
}

// DefaultPositions returns the variant's starting layout.
//
// Classic: cats in the top corners, each player's mouse in the bottom corner on
// the same side. Standard: each player's cat sits directly above their own
// mouse in the bottom corners, so both cats must cross the board.
func DefaultPositions(cfg GameConfiguration) Positions {
	w, h := cfg.BoardWidth, cfg.BoardHeight
	if cfg.Variant == VariantStandard {
		return Positions{
			Cats: [2]Cell{{h - 2, 0}, {h - 2, w - 1}},
			Mice: [2]Cell{{h - 1, 0}, {h - 1, w - 1}},
		}
	}
	return Positions{
		Cats: [2]Cell{{0, 0}, {0, w - 1}},
		Mice: [2]Cell{{h - 1, 0}, {h - 1, w - 1}},
	}
}
