package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRoomNotFound reports a load for a room with no stored state, either
// never created or already expired.
var ErrRoomNotFound = errors.New("room state not found")

// ErrRoomContended reports an optimistic update that kept losing to
// concurrent writers.
var ErrRoomContended = errors.New("room state contended")

// updateRetries bounds how many times an optimistic update is replayed
// before giving up.
const updateRetries = 5

// RoomStatePrefix namespaces serialized room state keys.
const RoomStatePrefix = "room:"

func roomStateKey(roomID string) string {
	return RoomStatePrefix + roomID
}

// SaveRoomState writes serialized room state with the given TTL. Prefer
// TimerManager.SaveBumpAction / SaveBumpTurn, which pair the save with
// the timer update; this standalone form is for writes outside a turn,
// like the initial save when a room fills.
func SaveRoomState(ctx context.Context, roomID string, state []byte, ttl time.Duration) error {
	return Rdb.Set(ctx, roomStateKey(roomID), state, ttl).Err()
}

// LoadRoomState fetches serialized room state.
func LoadRoomState(ctx context.Context, roomID string) ([]byte, error) {
	data, err := Rdb.Get(ctx, roomStateKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateRoomState applies mutate to a room's stored state under an
// optimistic WATCH, so two writers racing on the same key cannot drop
// each other's change. mutate receives the current serialized state
// (nil when no state exists yet) and returns the replacement. The
// transaction is replayed when a concurrent write invalidates the
// watch; after updateRetries losses it gives up with ErrRoomContended.
func UpdateRoomState(ctx context.Context, roomID string, ttl time.Duration, mutate func(old []byte) ([]byte, error)) error {
	key := roomStateKey(roomID)
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			old = nil
		} else if err != nil {
			return err
		}
		next, err := mutate(old)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}
	for i := 0; i < updateRetries; i++ {
		err := Rdb.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return ErrRoomContended
}

// DeleteRoomState removes a room's stored state at teardown.
func DeleteRoomState(ctx context.Context, roomID string) error {
	return Rdb.Del(ctx, roomStateKey(roomID)).Err()
}
