// internal/replay/replay.go
package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wallwars/wallwars/engine"
)

// ActionRecord is one committed action in replay order.
type ActionRecord struct {
	GameID      uuid.UUID         `json:"gameId"`
	ActionIndex int               `json:"actionIndex"`
	Action      engine.WireAction `json:"action"`
	Notation    string            `json:"notation,omitempty"`
	RecordedAt  int64             `json:"recordedAt"`
}

// StateRecord is a serialized position published for spectators.
type StateRecord struct {
	GameID uuid.UUID                  `json:"gameId"`
	State  engine.SerializedGameState `json:"state"`
}

// Client is the subset of *redis.Client the sink uses.
type Client interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// Sink appends action records to a per-game Redis list and publishes state
// updates on a per-game channel.
type Sink struct {
	rdb    Client
	prefix string
}

// NewSink returns a sink writing under keys prefixed by prefix.
func NewSink(rdb Client, prefix string) *Sink {
	if prefix == "" {
		prefix = "wallwars"
	}
	return &Sink{rdb: rdb, prefix: prefix}
}

// ActionsKey is the list holding a game's action records.
func (s *Sink) ActionsKey(gameID uuid.UUID) string {
	return fmt.Sprintf("%s:game:%s:actions", s.prefix, gameID)
}

// StateChannel is the pub/sub channel carrying a game's state updates.
func (s *Sink) StateChannel(gameID uuid.UUID) string {
	return fmt.Sprintf("%s:game:%s:state", s.prefix, gameID)
}

// PublishAction appends rec to the game's action list.
func (s *Sink) PublishAction(ctx context.Context, rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action %d: %w", rec.ActionIndex, err)
	}
	if err := s.rdb.RPush(ctx, s.ActionsKey(rec.GameID), data).Err(); err != nil {
		return fmt.Errorf("rpush action %d: %w", rec.ActionIndex, err)
	}
	return nil
}

// PublishState broadcasts the serialized state to subscribers.
func (s *Sink) PublishState(ctx context.Context, gameID uuid.UUID, st engine.SerializedGameState) error {
	data, err := json.Marshal(StateRecord{GameID: gameID, State: st})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.StateChannel(gameID), data).Err(); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}

// LoadActions reads back every recorded action of a game in order.
func (s *Sink) LoadActions(ctx context.Context, gameID uuid.UUID) ([]ActionRecord, error) {
	raw, err := s.rdb.LRange(ctx, s.ActionsKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange actions: %w", err)
	}
	out := make([]ActionRecord, 0, len(raw))
	for i, r := range raw {
		var rec ActionRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, fmt.Errorf("decode action %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Replay rebuilds a game from its recorded actions. start is the unix-ms
// timestamp the game began at; a nil pos means the variant's default layout.
func Replay(cfg engine.GameConfiguration, pos *engine.Positions, start int64, records []ActionRecord) (*engine.GameState, error) {
	layout := engine.DefaultPositions(cfg)
	if pos != nil {
		layout = *pos
	}
	st := engine.NewGame(cfg, layout, start)
	for _, rec := range records {
		a, err := engine.FromWire(rec.Action, cfg.BoardHeight)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", rec.ActionIndex, err)
		}
		next, err := engine.ApplyGameAction(st, a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", rec.ActionIndex, err)
		}
		st = next
	}
	return st, nil
}
