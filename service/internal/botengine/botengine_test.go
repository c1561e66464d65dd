// internal/botengine/botengine_test.go
package botengine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wallwars/wallwars/engine"
)

// fakeTransport answers from a script of decisions, echoing the request ID.
type fakeTransport struct {
	mu       sync.Mutex
	script   []Decision
	version  int
	wrongID  bool
	err      error
	requests []Request
}

func (f *fakeTransport) RoundTrip(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return Response{}, f.err
	}
	d := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	resp := Response{EngineAPIVersion: APIVersion, RequestID: req.RequestID, Response: d}
	if f.version != 0 {
		resp.EngineAPIVersion = f.version
	}
	if f.wrongID {
		resp.RequestID = "other"
	}
	return resp, nil
}

// hangingTransport blocks until the request's context ends for the first
// hangs calls, then answers with a move.
type hangingTransport struct {
	mu    sync.Mutex
	hangs int
	calls int
}

func (h *hangingTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	h.mu.Lock()
	h.calls++
	hang := h.calls <= h.hangs
	h.mu.Unlock()
	if hang {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	return Response{EngineAPIVersion: APIVersion, RequestID: req.RequestID, Response: moveDecision("Cb2")}, nil
}

func (h *hangingTransport) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func newGame() *engine.GameState {
	return engine.NewDefaultGame(engine.DefaultConfiguration(), 1_700_000_000_000)
}

func moveDecision(notation string) Decision {
	eval := 0.25
	return Decision{Action: ActionMove, MoveNotation: notation, Evaluation: &eval}
}

// TestChooseMove verifies the request envelope and the decoded move.
func TestChooseMove(t *testing.T) {
	ft := &fakeTransport{script: []Decision{moveDecision("Cb2")}}
	c := NewClient(ft, nil)

	m, resign, err := c.ChooseMove(context.Background(), newGame(), engine.Player1)
	require.NoError(t, err)
	assert.False(t, resign)
	require.Len(t, m.Actions, 1)
	assert.Equal(t, engine.CatTo(engine.Cell{Row: 7, Col: 1}), m.Actions[0])

	require.Len(t, ft.requests, 1)
	req := ft.requests[0]
	assert.Equal(t, APIVersion, req.EngineAPIVersion)
	assert.Equal(t, KindMove, req.Kind)
	assert.Equal(t, engine.Player1, req.PlayerID)
	assert.Equal(t, engine.Player1, req.State.Turn)
	assert.NotEmpty(t, req.RequestID)
}

// TestChooseMoveRetriesIllegalMove verifies one retry after an illegal answer.
func TestChooseMoveRetriesIllegalMove(t *testing.T) {
	ft := &fakeTransport{script: []Decision{moveDecision("Ch2"), moveDecision("Cb2")}}
	c := NewClient(ft, nil)

	m, _, err := c.ChooseMove(context.Background(), newGame(), engine.Player1)
	require.NoError(t, err)
	assert.Len(t, m.Actions, 1)
	assert.Len(t, ft.requests, 2)
	assert.NotEqual(t, ft.requests[0].RequestID, ft.requests[1].RequestID)
}

// TestChooseMoveFailures verifies bad replies surface as ErrProtocol after the retry.
func TestChooseMoveFailures(t *testing.T) {
	tests := []struct {
		name string
		ft   *fakeTransport
	}{
		{"illegal twice", &fakeTransport{script: []Decision{moveDecision("Ch2")}}},
		{"bad notation", &fakeTransport{script: []Decision{moveDecision("??")}}},
		{"draw answer to move", &fakeTransport{script: []Decision{{Action: ActionAcceptDraw}}}},
		{"version mismatch", &fakeTransport{script: []Decision{moveDecision("Cb2")}, version: 1}},
		{"wrong request id", &fakeTransport{script: []Decision{moveDecision("Cb2")}, wrongID: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClient(tc.ft, nil)
			_, _, err := c.ChooseMove(context.Background(), newGame(), engine.Player1)
			assert.True(t, errors.Is(err, ErrProtocol), "err = %v", err)
			assert.Len(t, tc.ft.requests, 2)
		})
	}
}

// TestChooseMoveTransportError verifies transport errors are returned as is.
func TestChooseMoveTransportError(t *testing.T) {
	boom := errors.New("pipe closed")
	ft := &fakeTransport{err: boom}
	_, _, err := NewClient(ft, nil).ChooseMove(context.Background(), newGame(), engine.Player1)
	assert.ErrorIs(t, err, boom)
}

// TestChooseMoveResign verifies a resign answer.
// TestChooseMoveRetriesAfterTimeout verifies a late engine gets a second
// attempt within the caller's deadline.
func TestChooseMoveRetriesAfterTimeout(t *testing.T) {
	t.Run("split deadline", func(t *testing.T) {
		ht := &hangingTransport{hangs: 1}
		c := NewClient(ht, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		start := time.Now()
		m, resign, err := c.ChooseMove(ctx, newGame(), engine.Player1)
		require.NoError(t, err)
		assert.False(t, resign)
		require.Len(t, m.Actions, 1)
		assert.Equal(t, 2, ht.callCount())
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("attempt timeout", func(t *testing.T) {
		ht := &hangingTransport{hangs: 1}
		c := NewClient(ht, nil)
		c.AttemptTimeout = 50 * time.Millisecond

		_, _, err := c.ChooseMove(context.Background(), newGame(), engine.Player1)
		require.NoError(t, err)
		assert.Equal(t, 2, ht.callCount())
	})

	t.Run("both attempts late", func(t *testing.T) {
		ht := &hangingTransport{hangs: 2}
		c := NewClient(ht, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		_, _, err := c.ChooseMove(ctx, newGame(), engine.Player1)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 2, ht.callCount())
	})
}

func TestChooseMoveResign(t *testing.T) {
	ft := &fakeTransport{script: []Decision{{Action: ActionResign}}}
	_, resign, err := NewClient(ft, nil).ChooseMove(context.Background(), newGame(), engine.Player1)
	require.NoError(t, err)
	assert.True(t, resign)
}

// TestDecideDraw verifies draw answers and that takebacks are declined unasked.
func TestDecideDraw(t *testing.T) {
	tests := []struct {
		action Action
		want   bool
		err    bool
	}{
		{ActionAcceptDraw, true, false},
		{ActionDeclineDraw, false, false},
		{ActionResign, false, false},
		{ActionMove, false, true},
	}
	for _, tc := range tests {
		t.Run(string(tc.action), func(t *testing.T) {
			ft := &fakeTransport{script: []Decision{{Action: tc.action}}}
			got, err := NewClient(ft, nil).DecideDraw(context.Background(), newGame(), engine.Player2)
			if tc.err {
				assert.ErrorIs(t, err, ErrProtocol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, KindDraw, ft.requests[0].Kind)
		})
	}

	ft := &fakeTransport{}
	ok, err := NewClient(ft, nil).DecideTakeback(context.Background(), newGame(), engine.Player2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, ft.requests)
}

const helperEnv = "WALLWARS_BOT_HELPER"

// TestHelperProcess is not a real test. It is the fake engine launched by
// TestProcessRoundTrip: before every real reply it prints a non-protocol
// line and a reply to an unknown request.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	enc := json.NewEncoder(os.Stdout)
	for sc.Scan() {
		var req Request
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			fmt.Fprintln(os.Stderr, "bad request:", err)
			continue
		}
		fmt.Println("engine ready")
		enc.Encode(Response{EngineAPIVersion: APIVersion, RequestID: "stale", Response: Decision{Action: ActionResign}})
		d := moveDecision("Cb2")
		if req.Kind == KindDraw {
			d = Decision{Action: ActionDeclineDraw}
		}
		enc.Encode(Response{EngineAPIVersion: APIVersion, RequestID: req.RequestID, Response: d})
	}
	os.Exit(0)
}

// TestProcessRoundTrip drives a real subprocess over JSON lines.
func TestProcessRoundTrip(t *testing.T) {
	t.Setenv(helperEnv, "1")
	p, err := StartProcess(os.Args[0], []string{"-test.run=^TestHelperProcess$"}, nil)
	require.NoError(t, err)

	c := NewClient(p, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, resign, err := c.ChooseMove(ctx, newGame(), engine.Player1)
	require.NoError(t, err)
	assert.False(t, resign)
	assert.Equal(t, engine.NewMove(engine.CatTo(engine.Cell{Row: 7, Col: 1})), m)

	accept, err := c.DecideDraw(ctx, newGame(), engine.Player2)
	require.NoError(t, err)
	assert.False(t, accept)

	assert.NoError(t, p.Close())
}
