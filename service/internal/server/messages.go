// internal/server/messages.go
package server

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/wallwars/wallwars/engine"
	"github.com/wallwars/wallwars/service/internal/negotiation"
)

// ClientMessageType names a message sent by a connected client.
type ClientMessageType string

const (
	MsgAction        ClientMessageType = "action"         // wire action: move, resign, timeout, draw, takeback, giveTime
	MsgOffer         ClientMessageType = "offer"          // open a draw offer or takeback request
	MsgCancelOffer   ClientMessageType = "cancel_offer"   // withdraw own offer
	MsgRespondOffer  ClientMessageType = "respond_offer"  // accept or decline the opponent's offer
	MsgResignStart   ClientMessageType = "resign_start"   // arm the resignation gate
	MsgResignCancel  ClientMessageType = "resign_cancel"  // disarm it
	MsgResignConfirm ClientMessageType = "resign_confirm" // resign
	MsgStage         ClientMessageType = "stage"          // toggle a staged action
	MsgPremove       ClientMessageType = "premove"        // replace queued premoves
	MsgSync          ClientMessageType = "sync"           // request a full state
)

// ClientMessage is the single envelope for everything a client sends. Actions
// inside Queue, Candidate and Premoves are in move notation, e.g. "Cb2" or ">e5".
type ClientMessage struct {
	Type      ClientMessageType     `json:"type"`
	Action    *engine.WireAction    `json:"action,omitempty"`
	OfferKind negotiation.Kind      `json:"offerKind,omitempty"`
	RequestID negotiation.RequestID `json:"requestId,omitempty"`
	Accept    bool                  `json:"accept,omitempty"`
	Queue     []string              `json:"queue,omitempty"`
	Candidate string                `json:"candidate,omitempty"`
	Premoves  []string              `json:"premoves,omitempty"`
}

// stageReply answers MsgStage to the sending connection only.
type stageReply struct {
	Type     string   `json:"type"`
	Queue    []string `json:"queue"`
	Accepted bool     `json:"accepted"`
	Path     []string `json:"path,omitempty"`
}

// errorReply reports an envelope that could not be handled.
type errorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OpponentMode selects who plays the second seat.
type OpponentMode string

const (
	OpponentHuman    OpponentMode = "human"    // a second client connects
	OpponentPass     OpponentMode = "pass"     // both seats on one device; offers are granted automatically
	OpponentComputer OpponentMode = "computer" // built-in evaluator
	OpponentEngine   OpponentMode = "engine"   // external bot engine
)

// CreateGameRequest is the body of POST /games. Config is decoded leniently:
// invalid fields fall back to the server defaults.
type CreateGameRequest struct {
	Config   json.RawMessage `json:"config,omitempty"`
	Opponent OpponentMode    `json:"opponent,omitempty"`
}

// CreateGameResponse is returned by POST /games.
type CreateGameResponse struct {
	GameID   uuid.UUID                  `json:"gameId"`
	Config   engine.GameConfiguration   `json:"config"`
	Opponent OpponentMode               `json:"opponent"`
	Warnings []string                   `json:"warnings,omitempty"`
	Tokens   map[engine.PlayerID]string `json:"tokens"` // pass as ?token= when connecting
}

// decodeActions parses a list of single actions in notation.
func decodeActions(in []string, height int) ([]engine.Action, error) {
	out := make([]engine.Action, 0, len(in))
	for _, s := range in {
		a, err := engine.DecodeAction(s, height)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// encodeActions renders actions in notation. Unencodable actions are skipped.
func encodeActions(in []engine.Action, height int) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if s, err := engine.EncodeAction(a, height); err == nil {
			out = append(out, s)
		}
	}
	return out
}
