// internal/server/hub.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/botengine"
	"github.com/wallwars/wallwars/service/internal/game"
	"github.com/wallwars/wallwars/service/internal/replay"
	"github.com/wallwars/wallwars/service/internal/seat"
	"github.com/wallwars/wallwars/service/internal/store"
)

// Options configures a Hub.
type Options struct {
	Defaults engine.GameConfiguration
	// Recorder receives every committed action. Optional.
	Recorder game.Recorder
	// Archive serves recorded actions for replays. Optional.
	Archive Archive
	// Engine plays OpponentEngine seats. Optional.
	Engine *botengine.Client
	// Results stores finished games. Optional.
	Results ResultStore
	// Seats signs the tokens that bind connections to seats. A random-key
	// issuer is created when nil.
	Seats *seat.Issuer

	OfferTimeout     time.Duration
	MoveTimeout      time.Duration
	AutoAcceptDelay  time.Duration
	BotDrawThreshold float64

	Log *logrus.Entry
}

// Archive reads back the actions recorded for a game. *replay.Sink implements it.
type Archive interface {
	LoadActions(ctx context.Context, gameID uuid.UUID) ([]replay.ActionRecord, error)
}

// ResultStore persists finished games. *store.Results implements it.
type ResultStore interface {
	SaveResult(ctx context.Context, res store.GameResult) error
}

// ReplayResponse is returned by GET /games/{id}/replay. State is omitted
// when the archive is known to be missing actions.
type ReplayResponse struct {
	GameID   uuid.UUID                   `json:"gameId"`
	Complete bool                        `json:"complete"`
	Actions  []replay.ActionRecord       `json:"actions"`
	State    *engine.SerializedGameState `json:"state,omitempty"`
}

// Hub owns the running games and their connections.
type Hub struct {
	opts Options
	log  *logrus.Entry

	mu    sync.Mutex
	rooms map[uuid.UUID]*room
}

// NewHub returns an empty hub.
func NewHub(opts Options) (*Hub, error) {
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "hub")
	}
	if opts.Seats == nil {
		iss, err := seat.NewIssuer(nil, 0)
		if err != nil {
			return nil, err
		}
		opts.Seats = iss
	}
	return &Hub{opts: opts, log: opts.Log, rooms: make(map[uuid.UUID]*room)}, nil
}

// Handler routes the HTTP API.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /games", h.handleCreate)
	mux.HandleFunc("GET /games/{id}", h.handleGet)
	mux.HandleFunc("GET /games/{id}/ws", h.handleWS)
	mux.HandleFunc("GET /games/{id}/replay", h.handleReplay)
	return mux
}

// CreateGame starts a new game against opponent.
func (h *Hub) CreateGame(req CreateGameRequest) (*game.Game, []string, error) {
	cfg, warnings := h.opts.Defaults, []string(nil)
	if len(req.Config) > 0 {
		cfg, warnings = engine.ParseConfiguration(req.Config)
	}
	if req.Opponent == "" {
		req.Opponent = OpponentHuman
	}
	if req.Opponent == OpponentEngine && h.opts.Engine == nil {
		return nil, warnings, errors.New("no bot engine configured")
	}

	g := game.NewGame(cfg)
	if h.opts.OfferTimeout > 0 {
		g.OfferTimeout = h.opts.OfferTimeout
	}
	if h.opts.MoveTimeout > 0 {
		g.MoveTimeout = h.opts.MoveTimeout
	}
	if h.opts.Recorder != nil {
		g.Recorder = h.opts.Recorder
	}
	switch req.Opponent {
	case OpponentHuman:
	case OpponentPass:
		auto := game.AutoAccept{Delay: h.opts.AutoAcceptDelay}
		g.SetOpponent(engine.Player1, auto)
		g.SetOpponent(engine.Player2, auto)
	case OpponentComputer:
		ev := game.Evaluator{DrawThreshold: h.opts.BotDrawThreshold}
		g.SetOpponent(engine.Player2, ev)
		g.SetMover(engine.Player2, ev)
	case OpponentEngine:
		g.SetOpponent(engine.Player2, h.opts.Engine)
		g.SetMover(engine.Player2, h.opts.Engine)
	default:
		return nil, warnings, fmt.Errorf("unknown opponent %q", req.Opponent)
	}

	r := newRoom(g)
	g.BroadcastFn = r.broadcast
	g.BroadcastToSeatFn = r.sendToSeat
	g.OnGameEnd = func(id uuid.UUID, status engine.Status, result *engine.Result) {
		h.log.WithField("game_id", id).Infof("Game %s finished with status %s.", id, status)
		if h.opts.Results != nil && status == engine.StatusFinished {
			go h.saveResult(g, time.Now())
		}
		go h.reapIfIdle(id)
	}

	h.mu.Lock()
	h.rooms[g.ID] = r
	h.mu.Unlock()

	if err := g.Start(); err != nil {
		h.removeRoom(g.ID)
		return nil, warnings, err
	}
	return g, warnings, nil
}

func (h *Hub) room(id uuid.UUID) (*room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) removeRoom(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, id)
}

// reapIfIdle drops a finished game nobody is watching.
func (h *Hub) reapIfIdle(id uuid.UUID) {
	r, ok := h.room(id)
	if !ok {
		return
	}
	st := r.game.State()
	if st != nil && !st.IsPlaying() && r.clientCount() == 0 {
		h.removeRoom(id)
		h.log.Debugf("Game %s: Removed idle finished game.", id)
	}
}

// saveResult stores the outcome of g. It must not run under the game lock.
func (h *Hub) saveResult(g *game.Game, endedAt time.Time) {
	st := g.State()
	if st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.opts.Results.SaveResult(ctx, store.FromState(g.ID, st, g.StartedAt(), endedAt)); err != nil {
		h.log.Errorf("Game %s: Saving result failed: %v", g.ID, err)
	}
}

// GameCount returns the number of games held by the hub.
func (h *Hub) GameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// ---------------------------------------------------------------------------
// HTTP handlers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Hub) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorReply{Type: "error", Message: "invalid request body"})
			return
		}
	}
	g, warnings, err := h.CreateGame(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorReply{Type: "error", Message: err.Error()})
		return
	}
	for _, warn := range warnings {
		g.Log.Warnf("Game %s: Configuration: %s", g.ID, warn)
	}
	opp := req.Opponent
	if opp == "" {
		opp = OpponentHuman
	}
	tokens := make(map[engine.PlayerID]string, 2)
	for _, p := range []engine.PlayerID{engine.Player1, engine.Player2} {
		tok, err := h.opts.Seats.Issue(g.ID, p)
		if err != nil {
			h.log.Errorf("Game %s: Issuing seat token failed: %v", g.ID, err)
			writeJSON(w, http.StatusInternalServerError, errorReply{Type: "error", Message: "could not issue seat tokens"})
			return
		}
		tokens[p] = tok
	}
	writeJSON(w, http.StatusCreated, CreateGameResponse{GameID: g.ID, Config: g.Config, Opponent: opp, Warnings: warnings, Tokens: tokens})
}

func (h *Hub) lookup(w http.ResponseWriter, r *http.Request) (*room, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorReply{Type: "error", Message: "invalid game id"})
		return nil, false
	}
	rm, ok := h.room(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorReply{Type: "error", Message: "game not found"})
		return nil, false
	}
	return rm, true
}

// handleGet returns the spectator view of a game.
func (h *Hub) handleGet(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.lookup(w, r)
	if !ok {
		return
	}
	rm.game.CheckClock()
	ss, ok := rm.game.SyncStateFor(engine.NoPlayer)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorReply{Type: "error", Message: "game not started"})
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

// handleReplay rebuilds a game from its recorded actions.
func (h *Hub) handleReplay(w http.ResponseWriter, r *http.Request) {
	if h.opts.Archive == nil {
		writeJSON(w, http.StatusNotImplemented, errorReply{Type: "error", Message: "replays are not recorded"})
		return
	}
	rm, ok := h.lookup(w, r)
	if !ok {
		return
	}
	g := rm.game
	records, err := h.opts.Archive.LoadActions(r.Context(), g.ID)
	if err != nil {
		h.log.Errorf("Game %s: Loading replay failed: %v", g.ID, err)
		writeJSON(w, http.StatusBadGateway, errorReply{Type: "error", Message: "replay unavailable"})
		return
	}
	if !g.RecordsComplete() {
		h.log.Warnf("Game %s: Serving incomplete replay of %d actions.", g.ID, len(records))
		writeJSON(w, http.StatusOK, ReplayResponse{GameID: g.ID, Actions: records})
		return
	}
	st, err := replay.Replay(g.Config, g.Positions, g.StartedAt(), records)
	if err != nil {
		h.log.Errorf("Game %s: Replay diverged: %v", g.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorReply{Type: "error", Message: "replay is inconsistent"})
		return
	}
	ser := engine.Serialize(st, time.Now().UnixMilli())
	writeJSON(w, http.StatusOK, ReplayResponse{GameID: g.ID, Complete: true, Actions: records, State: &ser})
}

// handleWS upgrades to a WebSocket bound to the seat named by the token in
// the query string. Connections without a token join as spectators.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.lookup(w, r)
	if !ok {
		return
	}
	player := engine.NoPlayer
	if tok := r.URL.Query().Get("token"); tok != "" {
		p, err := h.opts.Seats.Verify(tok, rm.game.ID)
		if err != nil {
			h.log.Debugf("Game %s: Rejected connection: %v", rm.game.ID, err)
			writeJSON(w, http.StatusUnauthorized, errorReply{Type: "error", Message: "invalid seat token"})
			return
		}
		player = p
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warnf("Game %s: WebSocket upgrade failed: %v", rm.game.ID, err)
		return
	}
	c := newClient(conn, player, rm.game.Log)
	rm.add(c)
	defer func() {
		rm.remove(c)
		h.reapIfIdle(rm.game.ID)
	}()
	c.serve(r.Context(), rm)
}
