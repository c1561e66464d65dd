package engine

// Local staging: a player builds a compound move one action at a time before
// committing it. Every check here is a trial application through TrialMove, so
// no rule logic lives outside the state machine.

// CanEnqueue reports whether queue plus candidate is a legal move for actor
// against s and fits within maxActions.
func CanEnqueue(s *GameState, actor PlayerID, queue []Action, candidate Action, maxActions int) bool {
	if len(queue)+1 > maxActions {
		return false
	}
	trial := make([]Action, 0, len(queue)+1)
	trial = append(trial, queue...)
	trial = append(trial, candidate)
	_, err := TrialMove(s, actor, trial)
	return err == nil
}

// EnqueueToggle returns the queue that results from selecting candidate:
// re-selecting a staged action removes it, a pawn action replaces any staged
// action for the same pawn, and walls append until the cap. After a removal,
// staged actions that were only legal because of the removed one are dropped
// too, so the result is always a legal move. The bool is false when adding
// candidate would not be legal; the input queue is then returned unchanged.
func EnqueueToggle(s *GameState, actor PlayerID, queue []Action, candidate Action, maxActions int) ([]Action, bool) {
	for i, a := range queue {
		if a.Equal(candidate) {
			rest := make([]Action, 0, len(queue)-1)
			rest = append(rest, queue[:i]...)
			rest = append(rest, queue[i+1:]...)
			return restage(s, actor, rest, maxActions), true
		}
	}
	next := stageAction(queue, candidate)
	if !legalQueue(s, actor, next, maxActions) {
		return queue, false
	}
	return next, true
}

// stageAction replaces a staged action for the same pawn, or appends.
func stageAction(queue []Action, a Action) []Action {
	out := append([]Action(nil), queue...)
	if a.IsPawn() {
		for i, q := range out {
			if q.Type == a.Type {
				out[i] = a
				return out
			}
		}
	}
	return append(out, a)
}

// restage rebuilds queue in order and stops at the first action that no
// longer fits.
func restage(s *GameState, actor PlayerID, queue []Action, maxActions int) []Action {
	out := make([]Action, 0, len(queue))
	for _, a := range queue {
		next := stageAction(out, a)
		if !legalQueue(s, actor, next, maxActions) {
			break
		}
		out = next
	}
	return out
}

func legalQueue(s *GameState, actor PlayerID, queue []Action, maxActions int) bool {
	if len(queue) > maxActions {
		return false
	}
	_, err := TrialMove(s, actor, queue)
	return err == nil
}

// ResolveDoubleStep expands a two-cell pawn jump into an explicit two-step
// path. The straight midpoint is tried first, then both corners of an L-shaped
// jump. It returns nil when the action is not a two-cell jump or no path
// simulates successfully.
func ResolveDoubleStep(s *GameState, actor PlayerID, action Action) []Action {
	if !action.IsPawn() {
		return nil
	}
	from := s.PawnAt(actor, action.PawnType())
	if from.ManhattanDistance(action.Target) != 2 {
		return nil
	}
	for _, mid := range jumpMidpoints(from, action.Target) {
		path := []Action{{Type: action.Type, Target: mid}, action}
		if _, err := TrialMove(s, actor, path); err == nil {
			return path
		}
	}
	return nil
}

// PromoteResult reports which premoves were accepted and which were dropped.
// Queue is the staged move after promotion.
type PromoteResult struct {
	Queue    []Action
	Accepted []Action
	Dropped  []Action
}

// Promote moves pending premoves into the current queue once it is actor's
// turn. Each pending action is staged in order on top of everything accepted
// so far; the first one that is not legal is dropped together with every
// action after it.
func Promote(s *GameState, actor PlayerID, current, pending []Action) PromoteResult {
	res := PromoteResult{Queue: append([]Action(nil), current...)}
	for i, a := range pending {
		next := stageAction(res.Queue, a)
		if !legalQueue(s, actor, next, MaxActionsPerMove) {
			res.Dropped = append([]Action(nil), pending[i:]...)
			return res
		}
		res.Queue = next
		res.Accepted = append(res.Accepted, a)
	}
	return res
}
