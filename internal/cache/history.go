package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// GameActionsListKey is the queue of action records consumed by the
// history service.
const GameActionsListKey = "game_actions"

// gameActionsMaxLen caps the queue so a stalled consumer cannot grow it
// without bound. Oldest records are dropped first.
const gameActionsMaxLen = 100000

// GameActionRecord is one applied action, queued for asynchronous
// archival. ActorPublicID is -1 for room-level events with no actor.
type GameActionRecord struct {
	RoomID        string         `json:"roomId"`
	ActionIndex   int            `json:"actionIndex"`
	ActorPublicID int            `json:"actorId"`
	ActionType    string         `json:"actionType"`
	Payload       map[string]any `json:"payload,omitempty"`
	Timestamp     int64          `json:"timestamp"`
}

// PublishGameAction appends a record to the action queue.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	pipe := Rdb.TxPipeline()
	pipe.RPush(ctx, GameActionsListKey, data)
	pipe.LTrim(ctx, GameActionsListKey, -gameActionsMaxLen, -1)
	_, err = pipe.Exec(ctx)
	return err
}
