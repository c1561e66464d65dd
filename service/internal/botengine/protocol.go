// internal/botengine/protocol.go
package botengine

import (
	"errors"

	"github.com/wallwars/wallwars/engine"
)

// APIVersion is the engine protocol version spoken by this client.
const APIVersion = 2

// ErrProtocol wraps malformed, mismatched or unexpected engine replies.
var ErrProtocol = errors.New("bot engine protocol error")

// RequestKind selects what the engine must decide.
type RequestKind string

const (
	KindMove RequestKind = "move"
	KindDraw RequestKind = "draw"
)

// Request is one line sent to the engine.
type Request struct {
	EngineAPIVersion int                        `json:"engineApiVersion"`
	RequestID        string                     `json:"requestId"`
	Kind             RequestKind                `json:"kind"`
	State            engine.SerializedGameState `json:"state"`
	PlayerID         engine.PlayerID            `json:"playerId"`
}

// Action is the engine's decision.
type Action string

const (
	ActionMove        Action = "move"
	ActionResign      Action = "resign"
	ActionAcceptDraw  Action = "accept-draw"
	ActionDeclineDraw Action = "decline-draw"
)

// Decision is the body of a Response.
type Decision struct {
	Action       Action   `json:"action"`
	MoveNotation string   `json:"moveNotation,omitempty"`
	Evaluation   *float64 `json:"evaluation,omitempty"`
}

// Response is one line read back from the engine.
type Response struct {
	EngineAPIVersion int      `json:"engineApiVersion"`
	RequestID        string   `json:"requestId"`
	Response         Decision `json:"response"`
}
