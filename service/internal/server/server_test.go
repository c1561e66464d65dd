// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/replay"
	"github.com/wallwars/wallwars/service/internal/store"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, Options{Defaults: engine.DefaultConfiguration()})
}

func newTestServerWith(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	hub, err := NewHub(opts)
	require.NoError(t, err)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return hub, srv
}

func createGame(t *testing.T, srv *httptest.Server, body string) (*http.Response, CreateGameResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/games", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out CreateGameResponse
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func wsURL(srv *httptest.Server, gameID uuid.UUID) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/games/" + gameID.String() + "/ws"
}

// dialSeat connects with the token for seat, or as a spectator for NoPlayer.
func dialSeat(t *testing.T, ctx context.Context, srv *httptest.Server, created CreateGameResponse, seat engine.PlayerID) *websocket.Conn {
	t.Helper()
	url := wsURL(srv, created.GameID)
	if seat.Valid() {
		require.NotEmpty(t, created.Tokens[seat])
		url += "?token=" + created.Tokens[seat]
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readUntil reads messages until one of type msgType arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	for {
		var msg map[string]interface{}
		require.NoError(t, wsjson.Read(ctx, conn, &msg), "waiting for %s", msgType)
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestPlayOverWebSocket(t *testing.T) {
	_, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, created := createGame(t, srv, `{"opponent":"human"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	p1 := dialSeat(t, ctx, srv, created, engine.Player1)
	p2 := dialSeat(t, ctx, srv, created, engine.Player2)
	sync1 := readUntil(t, ctx, p1, "private_sync_state")
	state := sync1["state"].(map[string]interface{})
	assert.NotEmpty(t, state["legalActions"], "seat on turn gets its legal actions")
	readUntil(t, ctx, p2, "private_sync_state")

	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{
		Type:   MsgAction,
		Action: &engine.WireAction{Kind: engine.KindMove, Move: "Cb2"},
	}))
	moved := readUntil(t, ctx, p2, "game_move")
	assert.Equal(t, "Cb2", moved["notation"])
	readUntil(t, ctx, p1, "game_move")

	// Out of turn.
	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{
		Type:   MsgAction,
		Action: &engine.WireAction{Kind: engine.KindMove, Move: "Cc2"},
	}))
	rejected := readUntil(t, ctx, p1, "private_rejected")
	assert.NotEmpty(t, rejected["message"])
}

func TestDrawOfferOverWebSocket(t *testing.T) {
	_, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, created := createGame(t, srv, `{}`)
	p1 := dialSeat(t, ctx, srv, created, engine.Player1)
	p2 := dialSeat(t, ctx, srv, created, engine.Player2)
	readUntil(t, ctx, p1, "private_sync_state")
	readUntil(t, ctx, p2, "private_sync_state")

	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{Type: MsgOffer, OfferKind: "draw"}))
	opened := readUntil(t, ctx, p2, "offer_opened")
	offer := opened["offer"].(map[string]interface{})
	reqID := offer["requestId"].(float64)

	require.NoError(t, wsjson.Write(ctx, p2, map[string]interface{}{
		"type":      "respond_offer",
		"offerKind": "draw",
		"requestId": reqID,
		"accept":    true,
	}))
	ended := readUntil(t, ctx, p1, "game_end")
	result := ended["result"].(map[string]interface{})
	assert.Equal(t, string(engine.ReasonDrawAgreement), result["reason"])
}

func TestStageOverWebSocket(t *testing.T) {
	_, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, created := createGame(t, srv, `{}`)
	p1 := dialSeat(t, ctx, srv, created, engine.Player1)

	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{Type: MsgStage, Candidate: "Cc2"}))
	res := readUntil(t, ctx, p1, "stage_result")
	assert.Equal(t, true, res["accepted"])
	assert.Equal(t, []interface{}{"Cc2"}, res["queue"])
	assert.Equal(t, []interface{}{"Cb2", "Cc2"}, res["path"])

	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{Type: MsgStage, Candidate: "nonsense"}))
	errMsg := readUntil(t, ctx, p1, "error")
	assert.NotEmpty(t, errMsg["message"])
}

func TestComputerOpponentReplies(t *testing.T) {
	_, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, created := createGame(t, srv, `{"opponent":"computer"}`)
	p1 := dialSeat(t, ctx, srv, created, engine.Player1)
	readUntil(t, ctx, p1, "private_sync_state")

	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{
		Type:   MsgAction,
		Action: &engine.WireAction{Kind: engine.KindMove, Move: "Cb2"},
	}))
	first := readUntil(t, ctx, p1, "game_move")
	assert.EqualValues(t, engine.Player1, first["seat"])
	second := readUntil(t, ctx, p1, "game_move")
	assert.EqualValues(t, engine.Player2, second["seat"])
}

func TestCreateGameRequests(t *testing.T) {
	_, srv := newTestServer(t)

	resp, created := createGame(t, srv, `{"config":{"variant":"classic","boardWidth":2,"boardHeight":7,"timeControl":{"initialSeconds":60,"incrementSeconds":1}}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, engine.VariantClassic, created.Config.Variant)
	assert.Equal(t, 9, created.Config.BoardWidth, "invalid width falls back")
	assert.Equal(t, 7, created.Config.BoardHeight)
	assert.Len(t, created.Warnings, 1)
	assert.Equal(t, OpponentHuman, created.Opponent)

	for _, body := range []string{`{"opponent":"alien"}`, `{"opponent":"engine"}`, `not json`} {
		resp, _ := createGame(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestGetGame(t *testing.T) {
	hub, srv := newTestServer(t)
	_, created := createGame(t, srv, `{}`)
	assert.Equal(t, 1, hub.GameCount())

	resp, err := http.Get(srv.URL + "/games/" + created.GameID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, created.GameID.String(), view["gameId"])
	assert.Nil(t, view["legalActions"], "spectators get no private fields")

	for path, status := range map[string]int{
		"/games/not-a-uuid":                              http.StatusBadRequest,
		"/games/6f1c2c43-3a7c-4f34-9c8e-0b3c58f7d1a2":    http.StatusNotFound,
		"/games/6f1c2c43-3a7c-4f34-9c8e-0b3c58f7d1a2/ws": http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode, path)
	}
}

// memArchive records actions in memory and serves them back.
type memArchive struct {
	mu      sync.Mutex
	actions map[uuid.UUID][]replay.ActionRecord
}

func (m *memArchive) PublishAction(_ context.Context, rec replay.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[rec.GameID] = append(m.actions[rec.GameID], rec)
	return nil
}

func (m *memArchive) PublishState(context.Context, uuid.UUID, engine.SerializedGameState) error {
	return nil
}

func (m *memArchive) LoadActions(_ context.Context, id uuid.UUID) ([]replay.ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]replay.ActionRecord(nil), m.actions[id]...), nil
}

func (m *memArchive) count(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions[id])
}

func TestReplayRebuildsGame(t *testing.T) {
	archive := &memArchive{actions: make(map[uuid.UUID][]replay.ActionRecord)}
	_, srv := newTestServerWith(t, Options{Defaults: engine.DefaultConfiguration(), Recorder: archive, Archive: archive})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, created := createGame(t, srv, `{}`)
	id := created.GameID
	p1 := dialSeat(t, ctx, srv, created, engine.Player1)
	p2 := dialSeat(t, ctx, srv, created, engine.Player2)
	readUntil(t, ctx, p2, "private_sync_state")

	require.NoError(t, wsjson.Write(ctx, p1, ClientMessage{Type: MsgAction, Action: &engine.WireAction{Kind: engine.KindMove, Move: "Cb2"}}))
	readUntil(t, ctx, p2, "game_move")
	require.NoError(t, wsjson.Write(ctx, p2, ClientMessage{Type: MsgAction, Action: &engine.WireAction{Kind: engine.KindMove, Move: "Ch2.>e5"}}))
	readUntil(t, ctx, p1, "game_move")
	require.Eventually(t, func() bool { return archive.count(id) == 2 }, time.Second, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/games/" + id.String() + "/replay")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ReplayResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Complete)
	assert.Len(t, out.Actions, 2)
	require.NotNil(t, out.State)
	assert.Equal(t, 2, out.State.MoveCount)
	assert.Len(t, out.State.Walls, 1)
	assert.Equal(t, engine.Player1, out.State.Turn)
}

// lossyArchive fails to store the first action it is given.
type lossyArchive struct {
	*memArchive
	mu     sync.Mutex
	failed bool
}

func (l *lossyArchive) PublishAction(ctx context.Context, rec replay.ActionRecord) error {
	l.mu.Lock()
	first := !l.failed
	l.failed = true
	l.mu.Unlock()
	if first {
		return errors.New("connection reset")
	}
	return l.memArchive.PublishAction(ctx, rec)
}

func TestReplayOfIncompleteArchive(t *testing.T) {
	archive := &lossyArchive{memArchive: &memArchive{actions: make(map[uuid.UUID][]replay.ActionRecord)}}
	hub, srv := newTestServerWith(t, Options{Defaults: engine.DefaultConfiguration(), Recorder: archive, Archive: archive})

	g, _, err := hub.CreateGame(CreateGameRequest{})
	require.NoError(t, err)
	require.NoError(t, g.HandleAction(engine.Player1, engine.WireAction{Kind: engine.KindMove, Move: "Cb2"}))
	require.NoError(t, g.HandleAction(engine.Player2, engine.WireAction{Kind: engine.KindMove, Move: "Ch2"}))
	require.Eventually(t, func() bool { return archive.count(g.ID) == 1 && !g.RecordsComplete() }, time.Second, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/games/" + g.ID.String() + "/replay")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ReplayResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Complete)
	assert.Len(t, out.Actions, 1)
	assert.Nil(t, out.State)
}

func TestReplayWithoutArchive(t *testing.T) {
	_, srv := newTestServer(t)
	_, created := createGame(t, srv, `{}`)
	resp, err := http.Get(srv.URL + "/games/" + created.GameID.String() + "/replay")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestSeatTokens(t *testing.T) {
	_, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, created := createGame(t, srv, `{}`)
	_, other := createGame(t, srv, `{}`)
	require.Len(t, created.Tokens, 2)

	for name, tok := range map[string]string{
		"garbage":    "not-a-token",
		"other game": other.Tokens[engine.Player1],
	} {
		resp, err := http.Get(strings.Replace(wsURL(srv, created.GameID), "ws", "http", 1) + "?token=" + tok)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
	}

	watcher := dialSeat(t, ctx, srv, created, engine.NoPlayer)
	view := readUntil(t, ctx, watcher, "private_sync_state")
	state := view["state"].(map[string]interface{})
	assert.Nil(t, state["legalActions"], "spectators get no private fields")

	require.NoError(t, wsjson.Write(ctx, watcher, ClientMessage{
		Type:   MsgAction,
		Action: &engine.WireAction{Kind: engine.KindMove, Move: "Cb2"},
	}))
	errMsg := readUntil(t, ctx, watcher, "error")
	assert.NotEmpty(t, errMsg["message"])
}

// memResults collects saved results.
type memResults struct {
	mu      sync.Mutex
	results []store.GameResult
}

func (m *memResults) SaveResult(_ context.Context, res store.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *memResults) saved() []store.GameResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.GameResult(nil), m.results...)
}

func TestFinishedGameIsSaved(t *testing.T) {
	results := &memResults{}
	hub, err := NewHub(Options{Defaults: engine.DefaultConfiguration(), Results: results})
	require.NoError(t, err)

	g, _, err := hub.CreateGame(CreateGameRequest{})
	require.NoError(t, err)
	require.NoError(t, g.StartResign(engine.Player1))
	require.NoError(t, g.ConfirmResign(engine.Player1))

	require.Eventually(t, func() bool { return len(results.saved()) == 1 }, time.Second, 5*time.Millisecond)
	res := results.saved()[0]
	assert.Equal(t, g.ID, res.GameID)
	assert.Equal(t, engine.Player2, res.Winner)
	assert.Equal(t, engine.ReasonResignation, res.Reason)
	assert.Empty(t, res.Moves)

	aborted, _, err := hub.CreateGame(CreateGameRequest{})
	require.NoError(t, err)
	aborted.Abort()
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, results.saved(), 1, "aborted games are not saved")
}
