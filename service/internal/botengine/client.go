// internal/botengine/client.go
package botengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wallwars/wallwars/engine"
)

// Client plays a seat through an external engine. It satisfies the session's
// Mover and Opponent interfaces.
type Client struct {
	Transport Transport
	Log       *logrus.Entry
	// Retries is how many times a failed, late or illegal answer is re-asked.
	Retries int
	// AttemptTimeout bounds a single request. When zero, the caller's
	// remaining deadline is split evenly over the attempts left.
	AttemptTimeout time.Duration
	Now            func() time.Time
}

// NewClient returns a client that retries once.
func NewClient(t Transport, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.WithField("component", "botengine")
	}
	return &Client{Transport: t, Log: log, Retries: 1, Now: time.Now}
}

// ask sends one request and checks the envelope of the reply.
func (c *Client) ask(ctx context.Context, kind RequestKind, st *engine.GameState, seat engine.PlayerID) (Decision, error) {
	req := Request{
		EngineAPIVersion: APIVersion,
		RequestID:        uuid.NewString(),
		Kind:             kind,
		State:            engine.Serialize(st, c.Now().UnixMilli()),
		PlayerID:         seat,
	}
	resp, err := c.Transport.RoundTrip(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if resp.EngineAPIVersion != APIVersion {
		return Decision{}, fmt.Errorf("%w: engine speaks version %d, want %d", ErrProtocol, resp.EngineAPIVersion, APIVersion)
	}
	if resp.RequestID != req.RequestID {
		return Decision{}, fmt.Errorf("%w: reply to %q, want %q", ErrProtocol, resp.RequestID, req.RequestID)
	}
	return resp.Response, nil
}

// attemptContext derives the context for one of left remaining attempts.
func (c *Client) attemptContext(ctx context.Context, left int) (context.Context, context.CancelFunc) {
	if c.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, c.AttemptTimeout)
	}
	deadline, ok := ctx.Deadline()
	if !ok || left <= 1 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/time.Duration(left))
}

// ChooseMove asks the engine for seat's move. A reply that does not decode,
// is not legal in st or misses its attempt deadline counts as a failure and
// is retried while ctx is live.
func (c *Client) ChooseMove(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (engine.Move, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return engine.Move{}, false, lastErr
		}
		actx, cancel := c.attemptContext(ctx, c.Retries+1-attempt)
		d, err := c.ask(actx, KindMove, st, seat)
		cancel()
		if err == nil {
			var m engine.Move
			m, err = c.parseMove(d, st, seat)
			if err == nil {
				return m, d.Action == ActionResign, nil
			}
		}
		lastErr = err
		c.Log.Warnf("Bot engine move request failed (attempt %d/%d): %v", attempt+1, c.Retries+1, err)
	}
	return engine.Move{}, false, lastErr
}

func (c *Client) parseMove(d Decision, st *engine.GameState, seat engine.PlayerID) (engine.Move, error) {
	switch d.Action {
	case ActionResign:
		return engine.Move{}, nil
	case ActionMove:
	default:
		return engine.Move{}, fmt.Errorf("%w: unexpected action %q for a move request", ErrProtocol, d.Action)
	}
	m, err := engine.DecodeMove(d.MoveNotation, st.Config.BoardHeight)
	if err != nil {
		return engine.Move{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if _, err := engine.TrialMove(st, seat, m.Actions); err != nil {
		return engine.Move{}, fmt.Errorf("%w: engine move %q: %v", ErrProtocol, d.MoveNotation, err)
	}
	if d.Evaluation != nil {
		c.Log.Debugf("Bot engine plays %s (evaluation %.3f).", d.MoveNotation, *d.Evaluation)
	}
	return m, nil
}

// DecideDraw asks the engine whether seat accepts a draw. Resigning in
// answer to a draw offer is read as a decline.
func (c *Client) DecideDraw(ctx context.Context, st *engine.GameState, seat engine.PlayerID) (bool, error) {
	d, err := c.ask(ctx, KindDraw, st, seat)
	if err != nil {
		return false, err
	}
	switch d.Action {
	case ActionAcceptDraw:
		return true, nil
	case ActionDeclineDraw, ActionResign:
		return false, nil
	}
	return false, fmt.Errorf("%w: unexpected action %q for a draw request", ErrProtocol, d.Action)
}

// DecideTakeback declines; engines are never asked about takebacks.
func (c *Client) DecideTakeback(ctx context.Context, _ *engine.GameState, _ engine.PlayerID) (bool, error) {
	return false, ctx.Err()
}
