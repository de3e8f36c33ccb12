package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Timer key prefixes. A timer is a TTL'd key whose expiry, delivered via
// keyspace notifications, is the deadline firing. Any listener process
// observes expiries for every room, so timers survive worker crashes.
const (
	TurnMainPrefix   = "turn-timer:main:"
	TurnActionPrefix = "turn-timer:action:"
	AbandonPrefix    = "game-timer:abandon:"
)

// expiredChannel is the keyspace notification channel for DB 0.
const expiredChannel = "__keyevent@0__:expired"

// Default timer durations.
const (
	DefaultMainTTL    = 30 * time.Second
	DefaultActionTTL  = 10 * time.Second
	DefaultAbandonTTL = 30 * time.Minute
	DefaultStateTTL   = 24 * time.Hour
)

// TimerKind classifies an expired timer key.
type TimerKind int

const (
	TimerUnknown TimerKind = iota
	TimerTurnMain
	TimerTurnAction
	TimerAbandon
)

// TimerManager runs the three layered per-room timers:
//
//   - main turn timer: the active player's full turn budget
//   - action timer: a shorter idle window, re-armed on every action
//   - abandon timer: a long-stop for rooms nobody is playing in
//
// State saves and timer bumps for one action travel in a single
// MULTI/EXEC so a room never persists with a stale deadline.
type TimerManager struct {
	rdb *redis.Client
	log *logrus.Logger

	MainTTL    time.Duration
	ActionTTL  time.Duration
	AbandonTTL time.Duration
	StateTTL   time.Duration

	// Expiry callbacks, set before Listen. Both turn timer layers route
	// to OnTurnExpired; the caller cannot tell which layer fired first
	// and does not need to.
	OnTurnExpired    func(roomID string)
	OnAbandonExpired func(roomID string)
}

// NewTimerManager builds a manager on the shared client with default
// durations.
func NewTimerManager(rdb *redis.Client, log *logrus.Logger) *TimerManager {
	return &TimerManager{
		rdb:        rdb,
		log:        log,
		MainTTL:    DefaultMainTTL,
		ActionTTL:  DefaultActionTTL,
		AbandonTTL: DefaultAbandonTTL,
		StateTTL:   DefaultStateTTL,
	}
}

// InitializeGameTimers arms all three timers for a room at game start.
func (tm *TimerManager) InitializeGameTimers(ctx context.Context, roomID string) error {
	pipe := tm.rdb.TxPipeline()
	pipe.Set(ctx, AbandonPrefix+roomID, "active", tm.AbandonTTL)
	pipe.Set(ctx, TurnMainPrefix+roomID, "active", tm.MainTTL)
	pipe.Set(ctx, TurnActionPrefix+roomID, "active", tm.ActionTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}
	tm.log.WithField("room", roomID).Debug("initialized game timers")
	return nil
}

// StartTurnTimers re-arms both turn timer layers without touching state.
func (tm *TimerManager) StartTurnTimers(ctx context.Context, roomID string) error {
	pipe := tm.rdb.TxPipeline()
	pipe.Set(ctx, TurnMainPrefix+roomID, "active", tm.MainTTL)
	pipe.Set(ctx, TurnActionPrefix+roomID, "active", tm.ActionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SaveBumpAction persists room state and refreshes the action timer in
// one transaction. The main timer keeps draining: acting buys the player
// another idle window, never more total turn time.
func (tm *TimerManager) SaveBumpAction(ctx context.Context, roomID string, state []byte) error {
	pipe := tm.rdb.TxPipeline()
	pipe.Expire(ctx, TurnActionPrefix+roomID, tm.ActionTTL)
	pipe.Set(ctx, roomStateKey(roomID), state, tm.StateTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}
	tm.log.WithField("room", roomID).Debug("saved state, bumped action timer")
	return nil
}

// SaveBumpTurn persists room state and rebuilds both turn timers in one
// transaction, for a turn handoff.
func (tm *TimerManager) SaveBumpTurn(ctx context.Context, roomID string, state []byte) error {
	pipe := tm.rdb.TxPipeline()
	pipe.Del(ctx, TurnMainPrefix+roomID, TurnActionPrefix+roomID)
	pipe.Set(ctx, TurnMainPrefix+roomID, "active", tm.MainTTL)
	pipe.Set(ctx, TurnActionPrefix+roomID, "active", tm.ActionTTL)
	pipe.Set(ctx, roomStateKey(roomID), state, tm.StateTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}
	tm.log.WithField("room", roomID).Debug("saved state, advanced turn timers")
	return nil
}

// BumpAbandon refreshes the abandon long-stop, marking the room alive.
func (tm *TimerManager) BumpAbandon(ctx context.Context, roomID string) error {
	return tm.rdb.Set(ctx, AbandonPrefix+roomID, "active", tm.AbandonTTL).Err()
}

// ClearRoom deletes every timer for a room at teardown, so a dead room
// cannot fire ghost expiries.
func (tm *TimerManager) ClearRoom(ctx context.Context, roomID string) error {
	return tm.rdb.Del(ctx,
		TurnMainPrefix+roomID,
		TurnActionPrefix+roomID,
		AbandonPrefix+roomID,
	).Err()
}

// parseExpiredKey classifies an expired key and extracts its room id.
func parseExpiredKey(key string) (roomID string, kind TimerKind) {
	switch {
	case strings.HasPrefix(key, TurnMainPrefix):
		return key[len(TurnMainPrefix):], TimerTurnMain
	case strings.HasPrefix(key, TurnActionPrefix):
		return key[len(TurnActionPrefix):], TimerTurnAction
	case strings.HasPrefix(key, AbandonPrefix):
		return key[len(AbandonPrefix):], TimerAbandon
	default:
		return "", TimerUnknown
	}
}

// Listen enables keyspace expiry notifications and dispatches expired
// timer keys to the callbacks until ctx is done. Run it on the processes
// playing the listener role; expiries for unrelated keys are ignored.
func (tm *TimerManager) Listen(ctx context.Context) error {
	if err := tm.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		return err
	}

	sub := tm.rdb.Subscribe(ctx, expiredChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	tm.log.Info("timer manager subscribed to key expiration events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID, kind := parseExpiredKey(msg.Payload)
			switch kind {
			case TimerTurnMain, TimerTurnAction:
				tm.log.WithField("room", roomID).Debug("turn timer expired")
				if tm.OnTurnExpired != nil {
					tm.OnTurnExpired(roomID)
				}
			case TimerAbandon:
				tm.log.WithField("room", roomID).Debug("abandon timer expired")
				if tm.OnAbandonExpired != nil {
					tm.OnAbandonExpired(roomID)
				}
			}
		}
	}
}
