// internal/game/game.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/negotiation"
	"github.com/wallwars/wallwars/service/internal/replay"
)

// OnGameEndFunc is executed once when a game finishes or is aborted.
type OnGameEndFunc func(gameID uuid.UUID, status engine.Status, result *engine.Result)

// GameEventType names an event pushed to clients.
type GameEventType string

const (
	EventGameStart        GameEventType = "game_start"         // Public: initial state.
	EventGameMove         GameEventType = "game_move"          // Public: a move was committed.
	EventGameTakeback     GameEventType = "game_takeback"      // Public: moves were taken back.
	EventGameTimeGiven    GameEventType = "game_time_given"    // Public: a player added time to the opponent's clock.
	EventGameEnd          GameEventType = "game_end"           // Public: the game finished or was aborted.
	EventOfferOpened      GameEventType = "offer_opened"       // Public: a draw offer or takeback request is pending.
	EventOfferResolved    GameEventType = "offer_resolved"     // Public: a pending offer left the desk.
	EventPrivateRejected  GameEventType = "private_rejected"   // Private: the seat's action was refused.
	EventPrivateResign    GameEventType = "private_resign"     // Private: resignation gate armed or disarmed.
	EventPrivatePremove   GameEventType = "private_premove"    // Private: premoves promoted or dropped.
	EventPrivateSyncState GameEventType = "private_sync_state" // Private: full state for one seat.
)

// GameEvent is the envelope for everything broadcast to clients.
type GameEvent struct {
	Type     GameEventType          `json:"type"`
	Seat     engine.PlayerID        `json:"seat,omitempty"`
	Notation string                 `json:"notation,omitempty"`
	Offer    *negotiation.Offer     `json:"offer,omitempty"`
	Outcome  negotiation.Outcome    `json:"outcome,omitempty"`
	Result   *engine.Result         `json:"result,omitempty"`
	Message  string                 `json:"message,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	State    *SyncState             `json:"state,omitempty"`
}

// Recorder receives committed actions and state updates for replay and
// spectators. *replay.Sink implements it.
type Recorder interface {
	PublishAction(ctx context.Context, rec replay.ActionRecord) error
	PublishState(ctx context.Context, gameID uuid.UUID, st engine.SerializedGameState) error
}

// Game is one match session. The canonical state is an immutable
// *engine.GameState swapped atomically after every successful transition;
// readers never take the lock. Transitions and negotiation are serialized by mu.
type Game struct {
	ID        uuid.UUID
	Config    engine.GameConfiguration
	Positions *engine.Positions // nil for the variant's default layout

	state atomic.Pointer[engine.GameState]
	mu    sync.Mutex

	draws     *negotiation.Desk
	takebacks *negotiation.Desk
	resign    [2]negotiation.ResignGate
	turnFence negotiation.Fence // guards in-flight automated moves
	premoves  [2][]engine.Action

	opponents [2]Opponent
	movers    [2]Mover

	// Communication callbacks. All are invoked with the session lock held.
	BroadcastFn       func(ev GameEvent)
	BroadcastToSeatFn func(seat engine.PlayerID, ev GameEvent)
	OnGameEnd         OnGameEndFunc

	Recorder     Recorder
	RecordBuffer int // action records that may wait for the recorder
	Log          *logrus.Entry
	Now          func() time.Time
	OfferTimeout time.Duration // bound on an opponent's draw/takeback decision
	MoveTimeout  time.Duration // bound on an automated seat's move

	started     bool
	ended       bool
	startedAt   int64
	actionIndex int
	records     chan replay.ActionRecord // nil until the first record
	recordsLost atomic.Bool              // set once any action failed to reach the recorder
}

// NewGame creates a session for cfg. Invalid configuration fields are
// replaced by defaults and logged.
func NewGame(cfg engine.GameConfiguration) *Game {
	id := uuid.New()
	log := logrus.WithField("game_id", id)
	sanitized, warnings := engine.Sanitize(cfg)
	for _, w := range warnings {
		log.Warnf("Game configuration: %s", w)
	}
	g := &Game{
		ID:           id,
		Config:       sanitized,
		Log:          log,
		Now:          time.Now,
		OfferTimeout: 30 * time.Second,
		RecordBuffer: 256,
		MoveTimeout:  time.Duration(sanitized.TimeControl.InitialSeconds) * time.Second,
	}
	g.draws = negotiation.NewDesk(negotiation.KindDraw, g.now)
	g.takebacks = negotiation.NewDesk(negotiation.KindTakeback, g.now)
	return g
}

func (g *Game) now() time.Time { return g.Now() }

func (g *Game) nowMs() int64 { return g.Now().UnixMilli() }

// SetOpponent makes seat answer offers through opp instead of a live client.
func (g *Game) SetOpponent(seat engine.PlayerID, opp Opponent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opponents[seatIndex(seat)] = opp
}

// SetMover makes seat play automatically through m.
func (g *Game) SetMover(seat engine.PlayerID, m Mover) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.movers[seatIndex(seat)] = m
}

func seatIndex(seat engine.PlayerID) int { return int(seat) - 1 }

// Start creates the initial position with Player 1's clock running.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return errors.New("game already started")
	}
	pos := engine.DefaultPositions(g.Config)
	if g.Positions != nil {
		pos = *g.Positions
	}
	g.startedAt = g.nowMs()
	st := engine.NewGame(g.Config, pos, g.startedAt)
	g.state.Store(st)
	g.started = true

	g.Log.Infof("Game %s: Started (%s %dx%d, %d+%d).", g.ID, g.Config.Variant,
		g.Config.BoardWidth, g.Config.BoardHeight,
		g.Config.TimeControl.InitialSeconds, g.Config.TimeControl.IncrementSeconds)
	ss := g.syncState(st, engine.NoPlayer)
	g.fireEvent(GameEvent{Type: EventGameStart, State: &ss})
	g.publishState(st)
	g.scheduleAutomatedTurn(st)
	return nil
}

// State returns the current canonical state, or nil before Start.
func (g *Game) State() *engine.GameState { return g.state.Load() }

// StartedAt returns the unix-ms start timestamp.
func (g *Game) StartedAt() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startedAt
}

// TimeLeft returns seat's clock as of now without touching the state.
func (g *Game) TimeLeft(seat engine.PlayerID) int64 {
	st := g.state.Load()
	if st == nil {
		return 0
	}
	return st.TimeLeftAt(seat, g.nowMs())
}

// CheckClock applies a timeout if the player on turn has run out of time. It
// reports whether the game is over afterwards.
func (g *Game) CheckClock() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settleClock()
}

// Abort ends a game without a result.
func (g *Game) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state.Load()
	if st == nil || !st.IsPlaying() {
		return
	}
	next := engine.Abort(st)
	g.state.Store(next)
	g.Log.Infof("Game %s: Aborted.", g.ID)
	g.finish(next)
}

// ---------------------------------------------------------------------------
// Transitions (lock held by caller)
// ---------------------------------------------------------------------------

// settleClock issues the timeout for a flagged player.
func (g *Game) settleClock() bool {
	st := g.state.Load()
	if st == nil {
		return false
	}
	if !st.IsPlaying() {
		return true
	}
	flagged, ok := st.FlaggedPlayer(g.nowMs())
	if !ok {
		return false
	}
	g.Log.Infof("Game %s: Player %d flagged.", g.ID, flagged)
	if _, err := g.commit(engine.GameAction{Kind: engine.KindTimeout, PlayerID: flagged, Timestamp: g.nowMs()}); err != nil {
		g.Log.Errorf("Game %s: Failed to apply timeout for player %d: %v", g.ID, flagged, err)
		return false
	}
	return true
}

// commit applies a to the canonical state and runs every follow-up: offers
// referring to the old position are superseded, events are broadcast, the
// action is recorded, and the next automated turn is scheduled.
func (g *Game) commit(a engine.GameAction) (*engine.GameState, error) {
	cur := g.state.Load()
	if cur == nil {
		return nil, fmt.Errorf("%w: game not started", engine.ErrIllegalAction)
	}
	next, err := engine.ApplyGameAction(cur, a)
	if err != nil {
		return nil, err
	}
	g.state.Store(next)
	g.recordAction(a, next)

	switch a.Kind {
	case engine.KindMove:
		g.supersedeOffers()
		last, _ := next.LastMove()
		g.fireEvent(GameEvent{Type: EventGameMove, Seat: a.PlayerID, Notation: last.Notation})
	case engine.KindTakeback:
		g.supersedeOffers()
		g.clearPremoves()
		g.fireEvent(GameEvent{Type: EventGameTakeback, Seat: a.PlayerID, Payload: map[string]interface{}{
			"removed":   len(cur.History) - len(next.History),
			"moveCount": next.MoveCount(),
		}})
	case engine.KindGiveTime:
		g.fireEvent(GameEvent{Type: EventGameTimeGiven, Seat: a.PlayerID, Payload: map[string]interface{}{"seconds": a.Seconds}})
	}
	g.publishState(next)

	if !next.IsPlaying() {
		g.finish(next)
		return next, nil
	}
	if a.Kind == engine.KindMove || a.Kind == engine.KindTakeback {
		g.turnFence.Invalidate()
		if g.promotePremoves(next) {
			return g.state.Load(), nil
		}
		g.scheduleAutomatedTurn(next)
	}
	return next, nil
}

// finish clears every piece of pending negotiation state and announces the end.
func (g *Game) finish(st *engine.GameState) {
	if g.ended {
		return
	}
	g.ended = true
	g.turnFence.Invalidate()
	g.supersedeOffers()
	g.clearPremoves()
	for i := range g.resign {
		if g.resign[i].Cancel() {
			g.fireEventToSeat(engine.PlayerID(i+1), GameEvent{Type: EventPrivateResign, Payload: map[string]interface{}{"armed": false}})
		}
	}

	if g.records != nil {
		close(g.records)
	}

	g.Log.Infof("Game %s: Ended (%s). Result: %+v", g.ID, st.Status, st.Result)
	g.fireEvent(GameEvent{Type: EventGameEnd, Result: st.Result, Payload: map[string]interface{}{"status": st.Status}})
	if g.OnGameEnd != nil {
		g.OnGameEnd(g.ID, st.Status, st.Result)
	}
}

// ---------------------------------------------------------------------------
// Broadcasting and recording
// ---------------------------------------------------------------------------

// fireEvent broadcasts an event to all connected clients.
func (g *Game) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	} else {
		g.Log.Debugf("Game %s: BroadcastFn is nil, dropping event %s.", g.ID, ev.Type)
	}
}

// fireEventToSeat sends an event to one seat.
func (g *Game) fireEventToSeat(seat engine.PlayerID, ev GameEvent) {
	if g.BroadcastToSeatFn != nil {
		g.BroadcastToSeatFn(seat, ev)
	} else {
		g.Log.Debugf("Game %s: BroadcastToSeatFn is nil, dropping private event %s for seat %d.", g.ID, ev.Type, seat)
	}
}

// recordAction sends the committed action to the recorder asynchronously.
func (g *Game) recordAction(a engine.GameAction, next *engine.GameState) {
	g.actionIndex++
	if g.Recorder == nil {
		return
	}
	w, err := engine.ToWire(a, g.Config.BoardHeight)
	if err != nil {
		g.Log.Errorf("Game %s: Cannot encode action %d for replay: %v", g.ID, g.actionIndex, err)
		return
	}
	rec := replay.ActionRecord{GameID: g.ID, ActionIndex: g.actionIndex, Action: w, RecordedAt: g.nowMs()}
	if a.Kind == engine.KindMove {
		if last, ok := next.LastMove(); ok {
			rec.Notation = last.Notation
		}
	}
	if g.records == nil {
		g.records = make(chan replay.ActionRecord, g.RecordBuffer)
		go g.recordLoop(g.Recorder, g.records)
	}
	select {
	case g.records <- rec:
	default:
		g.recordsLost.Store(true)
		g.Log.Errorf("Game %s: Record queue full, dropping action %d. The archive is incomplete.", g.ID, rec.ActionIndex)
	}
}

// RecordsComplete reports whether every committed action so far was handed
// to the recorder successfully. A replay of an incomplete archive cannot
// rebuild the game.
func (g *Game) RecordsComplete() bool { return !g.recordsLost.Load() }

// recordLoop publishes action records one at a time so the stored order
// matches the commit order.
func (g *Game) recordLoop(rec Recorder, records <-chan replay.ActionRecord) {
	for r := range records {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rec.PublishAction(ctx, r); err != nil {
			g.recordsLost.Store(true)
			g.Log.Errorf("Game %s: Failed publishing action %d (%s): %v", g.ID, r.ActionIndex, r.Action.Kind, err)
		}
		cancel()
	}
}

// publishState pushes the serialized state to spectators asynchronously.
func (g *Game) publishState(st *engine.GameState) {
	if g.Recorder == nil {
		return
	}
	ser := engine.Serialize(st, g.nowMs())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.Recorder.PublishState(ctx, g.ID, ser); err != nil {
			g.Log.Warnf("Game %s: Failed publishing state: %v", g.ID, err)
		}
	}()
}
