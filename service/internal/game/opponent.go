// internal/game/opponent.go
package game

import (
	"context"
	"time"

	"github.com/wallwars/wallwars/engine"
)

// Opponent answers offers addressed to a seat that has no live client behind
// it. Decisions may take arbitrarily long; the session fences late answers.
type Opponent interface {
	DecideDraw(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (bool, error)
	DecideTakeback(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (bool, error)
}

// Mover plays moves for an automated seat. resign is true when the seat gives up.
type Mover interface {
	ChooseMove(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (move engine.Move, resign bool, err error)
}

// AutoAccept accepts every offer after Delay. It stands in for the second
// seat when both players share one device.
type AutoAccept struct {
	Delay time.Duration
}

func (a AutoAccept) wait(ctx context.Context) error {
	if a.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a AutoAccept) DecideDraw(ctx context.Context, _ *engine.GameState, _ engine.PlayerID) (bool, error) {
	if err := a.wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (a AutoAccept) DecideTakeback(ctx context.Context, _ *engine.GameState, _ engine.PlayerID) (bool, error) {
	if err := a.wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Evaluator is a local computer opponent. It accepts a draw when its position
// scores at or below DrawThreshold and never grants takebacks.
type Evaluator struct {
	DrawThreshold float64
	Think         time.Duration
}

func (e Evaluator) DecideDraw(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (bool, error) {
	if err := (AutoAccept{Delay: e.Think}).wait(ctx); err != nil {
		return false, err
	}
	return engine.Evaluate(st, seat) <= e.DrawThreshold, nil
}

func (e Evaluator) DecideTakeback(ctx context.Context, _ *engine.GameState, _ engine.PlayerID) (bool, error) {
	return false, ctx.Err()
}

// ChooseMove plays the single action that maximizes Evaluate one ply ahead.
// A capture is always taken when available.
func (e Evaluator) ChooseMove(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (engine.Move, bool, error) {
	if err := (AutoAccept{Delay: e.Think}).wait(ctx); err != nil {
		return engine.Move{}, false, err
	}
	best, bestScore := engine.Move{}, -2.0
	for _, a := range engine.LegalActions(st, seat) {
		if err := ctx.Err(); err != nil {
			return engine.Move{}, false, err
		}
		next, err := engine.TrialMove(st, seat, []engine.Action{a})
		if err != nil {
			continue
		}
		if score := engine.Evaluate(next, seat); score > bestScore {
			best, bestScore = engine.NewMove(a), score
		}
	}
	return best, false, nil
}
