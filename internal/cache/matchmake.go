package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"safeashouses/engine"
)

// Matchmaking keys. The waiting set is a ZSET scored by player count;
// the per-user mapping records which room a session identity belongs to.
const (
	WaitingRoomsKey  = "waitingRooms"
	UserToRoomPrefix = "userToRoom:"
)

// matchUserScript atomically resolves a join: reconnect if the user is
// already mapped to a room, otherwise seat them in the fullest waiting
// room (removing it from the waiting set when it fills) or open a new
// room under the caller-provided id. Atomicity here is the whole point:
// two users racing for the last seat must never both get it.
var matchUserScript = redis.NewScript(`
local zset_key = KEYS[1]
local max_players = tonumber(ARGV[1])
local user_id = ARGV[2]
local user_to_room_prefix = ARGV[3]
local new_room_id = ARGV[4]

local user_to_room_key = user_to_room_prefix .. user_id
local existing_room_id = redis.call('get', user_to_room_key)
if existing_room_id then
  return {'RECONNECT', existing_room_id}
end

local room_data = redis.call('zrevrangebyscore', zset_key, max_players - 1, 1, 'LIMIT', 0, 1)
local room_id
local new_score
if #room_data > 0 then
  room_id = room_data[1]
  new_score = redis.call('zincrby', zset_key, 1, room_id)
  if tonumber(new_score) >= max_players then
    redis.call('zrem', zset_key, room_id)
  end
else
  room_id = new_room_id
  redis.call('zadd', zset_key, 1, room_id)
  new_score = 1
end

redis.call('set', user_to_room_key, room_id)

return {'MATCH', room_id, tostring(new_score)}
`)

// MatchResult is the outcome of one matchmaking attempt.
type MatchResult struct {
	RoomID string
	// Reconnect is true when the user was already mapped to a room; the
	// caller should resync them rather than seat them again.
	Reconnect bool
	// PlayerCount is the room's seat count after this match. Zero on
	// reconnects, where the waiting set was not touched.
	PlayerCount int
}

// MatchUser runs the matchmaking script for userID. candidateRoomID is
// used only if a brand-new room has to be opened; generate a fresh id
// per call.
func MatchUser(ctx context.Context, userID, candidateRoomID string) (MatchResult, error) {
	raw, err := matchUserScript.Run(ctx, Rdb,
		[]string{WaitingRoomsKey},
		engine.PlayerCount, userID, UserToRoomPrefix, candidateRoomID,
	).Result()
	if err != nil {
		return MatchResult{}, fmt.Errorf("match user %s: %w", userID, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) < 2 {
		return MatchResult{}, fmt.Errorf("match user %s: unexpected reply %v", userID, raw)
	}
	verdict, _ := reply[0].(string)
	roomID, _ := reply[1].(string)

	switch verdict {
	case "RECONNECT":
		return MatchResult{RoomID: roomID, Reconnect: true}, nil
	case "MATCH":
		res := MatchResult{RoomID: roomID}
		if len(reply) > 2 {
			if s, ok := reply[2].(string); ok {
				if n, err := strconv.Atoi(s); err == nil {
					res.PlayerCount = n
				}
			}
		}
		return res, nil
	default:
		return MatchResult{}, fmt.Errorf("match user %s: unexpected verdict %q", userID, verdict)
	}
}

// RoomForUser returns the room a user is mapped to, or "" when unmapped.
func RoomForUser(ctx context.Context, userID string) (string, error) {
	roomID, err := Rdb.Get(ctx, UserToRoomPrefix+userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return roomID, nil
}

// ClearUserRoom removes a user's room mapping. Used when a room is torn
// down and to self-heal a stale mapping to a vanished room.
func ClearUserRoom(ctx context.Context, userID string) error {
	return Rdb.Del(ctx, UserToRoomPrefix+userID).Err()
}

// RemoveWaitingRoom drops a room from the waiting set, for teardown of
// rooms that never filled.
func RemoveWaitingRoom(ctx context.Context, roomID string) error {
	return Rdb.ZRem(ctx, WaitingRoomsKey, roomID).Err()
}
