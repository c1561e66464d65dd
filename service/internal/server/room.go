// internal/server/room.go
package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/game"
	"github.com/wallwars/wallwars/service/internal/negotiation"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// room fans the events of one game out to its connections. The game invokes
// broadcast and sendToSeat with its own lock held, so neither may block or
// call back into the game.
type room struct {
	game *game.Game

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newRoom(g *game.Game) *room {
	return &room{game: g, clients: make(map[*client]struct{})}
}

func (r *room) add(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

func (r *room) remove(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

func (r *room) clientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *room) broadcast(ev game.GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		c.enqueue(ev)
	}
}

func (r *room) sendToSeat(seat engine.PlayerID, ev game.GameEvent) {
	if !seat.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.seat == seat {
			c.enqueue(ev)
		}
	}
}

// client is one WebSocket connection bound to a seat.
type client struct {
	conn *websocket.Conn
	seat engine.PlayerID
	send chan interface{}
	log  *logrus.Entry

	closeOnce sync.Once
	overflow  chan struct{}
}

func newClient(conn *websocket.Conn, seat engine.PlayerID, log *logrus.Entry) *client {
	return &client{
		conn:     conn,
		seat:     seat,
		send:     make(chan interface{}, sendBuffer),
		log:      log.WithField("seat", seat),
		overflow: make(chan struct{}),
	}
}

// enqueue queues v without blocking. A client that cannot keep up is dropped.
func (c *client) enqueue(v interface{}) {
	select {
	case c.send <- v:
	default:
		c.closeOnce.Do(func() { close(c.overflow) })
	}
}

// serve runs the connection until it closes. Writes happen on a separate
// goroutine fed by the send queue.
func (c *client) serve(ctx context.Context, r *room) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx, cancel)

	if ss, ok := r.game.SyncStateFor(c.seat); ok {
		c.enqueue(game.GameEvent{Type: game.EventPrivateSyncState, Seat: c.seat, State: &ss})
	}

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.log.Debugf("Connection read ended: %v", err)
			}
			c.conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		c.dispatch(r.game, msg)
	}
}

func (c *client) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.overflow:
			c.log.Warn("Client too slow, closing connection.")
			c.conn.Close(websocket.StatusPolicyViolation, "Too slow.")
			return
		case v := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, v)
			wcancel()
			if err != nil {
				c.log.Debugf("Write failed: %v", err)
				return
			}
		}
	}
}

// dispatch hands a client message to the game. Refusals are already pushed
// to the seat as private_rejected events by the game.
func (c *client) dispatch(g *game.Game, msg ClientMessage) {
	height := g.Config.BoardHeight
	var err error
	switch msg.Type {
	case MsgAction:
		if msg.Action == nil {
			c.enqueue(errorReply{Type: "error", Message: "missing action"})
			return
		}
		err = g.HandleAction(c.seat, *msg.Action)
	case MsgOffer:
		switch msg.OfferKind {
		case negotiation.KindDraw:
			_, err = g.OfferDraw(c.seat)
		case negotiation.KindTakeback:
			_, err = g.RequestTakeback(c.seat)
		default:
			c.enqueue(errorReply{Type: "error", Message: "unknown offer kind"})
			return
		}
	case MsgCancelOffer:
		err = g.CancelOffer(c.seat, msg.OfferKind, msg.RequestID)
	case MsgRespondOffer:
		err = g.RespondOffer(c.seat, msg.OfferKind, msg.RequestID, msg.Accept)
	case MsgResignStart:
		err = g.StartResign(c.seat)
	case MsgResignCancel:
		g.CancelResign(c.seat)
	case MsgResignConfirm:
		err = g.ConfirmResign(c.seat)
	case MsgStage:
		queue, qerr := decodeActions(msg.Queue, height)
		cand, cerr := engine.DecodeAction(msg.Candidate, height)
		if qerr != nil || cerr != nil {
			c.enqueue(errorReply{Type: "error", Message: "could not read staged actions"})
			return
		}
		res := g.Stage(c.seat, queue, cand)
		c.enqueue(stageReply{
			Type:     "stage_result",
			Queue:    encodeActions(res.Queue, height),
			Accepted: res.Accepted,
			Path:     encodeActions(res.Path, height),
		})
	case MsgPremove:
		actions, perr := decodeActions(msg.Premoves, height)
		if perr != nil {
			c.enqueue(errorReply{Type: "error", Message: "could not read premoves"})
			return
		}
		err = g.SetPremoves(c.seat, actions)
	case MsgSync:
		g.CheckClock()
		if ss, ok := g.SyncStateFor(c.seat); ok {
			c.enqueue(game.GameEvent{Type: game.EventPrivateSyncState, Seat: c.seat, State: &ss})
		}
	default:
		c.enqueue(errorReply{Type: "error", Message: "unknown message type"})
		return
	}
	if err != nil {
		c.log.Debugf("%s refused: %v", msg.Type, err)
		if !c.seat.Valid() {
			// Spectators have no private channel in the game.
			c.enqueue(errorReply{Type: "error", Message: "spectators cannot act"})
		}
	}
}
