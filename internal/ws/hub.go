// Package ws is the connection layer: websocket registration per room,
// JWT session identity, and cross-worker event delivery over redis
// pubsub. A room's players may be connected to different workers; every
// worker holding a connection for a room subscribes to that room's
// channel and delivers what it hears to its local sockets.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"safeashouses/internal/game"
)

// RoomChannelPrefix namespaces the per-room pubsub channels.
const RoomChannelPrefix = "ws:room:"

// writeTimeout bounds one socket write; a stuck client cannot stall the
// fan-out.
const writeTimeout = 5 * time.Second

// envelope is the pubsub frame: the event plus optional targeting. Only
// and Exclude carry session ids; both empty means deliver to everyone.
type envelope struct {
	Event   game.Event `json:"event"`
	Only    string     `json:"only,omitempty"`
	Exclude string     `json:"exclude,omitempty"`
}

// Hub tracks this worker's live connections and bridges room events
// through redis so every worker delivers them.
type Hub struct {
	rdb *redis.Client
	log *logrus.Logger

	mu    sync.Mutex
	rooms map[string]*roomConns
}

type roomConns struct {
	conns  map[string]*websocket.Conn // session id -> socket
	cancel context.CancelFunc
}

// NewHub builds a hub on the shared redis client.
func NewHub(rdb *redis.Client, log *logrus.Logger) *Hub {
	return &Hub{
		rdb:   rdb,
		log:   log,
		rooms: make(map[string]*roomConns),
	}
}

// Register attaches a connection to a room. The first local connection
// for a room starts that room's pubsub pump. An existing connection for
// the same session is replaced; reconnects supersede, never duplicate.
func (h *Hub) Register(roomID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rc, ok := h.rooms[roomID]
	if !ok {
		pumpCtx, cancel := context.WithCancel(context.Background())
		rc = &roomConns{
			conns:  make(map[string]*websocket.Conn),
			cancel: cancel,
		}
		h.rooms[roomID] = rc
		go h.pump(pumpCtx, roomID)
	}
	if old, ok := rc.conns[sessionID]; ok && old != conn {
		old.Close(websocket.StatusPolicyViolation, "superseded by a new connection")
	}
	rc.conns[sessionID] = conn
}

// Unregister detaches a connection. The last local connection leaving a
// room stops its pump. Only the exact registered socket is removed, so
// a reconnect racing a stale close never loses its fresh connection.
func (h *Hub) Unregister(roomID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rc, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if cur, ok := rc.conns[sessionID]; !ok || cur != conn {
		return
	}
	delete(rc.conns, sessionID)
	if len(rc.conns) == 0 {
		rc.cancel()
		delete(h.rooms, roomID)
	}
}

// pump subscribes to a room channel and fans messages out to this
// worker's local connections until cancelled.
func (h *Hub) pump(ctx context.Context, roomID string) {
	sub := h.rdb.Subscribe(ctx, RoomChannelPrefix+roomID)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.log.WithError(err).WithField("room", roomID).Warn("bad event envelope")
				continue
			}
			h.deliver(roomID, &env)
		}
	}
}

// deliver writes an envelope to the matching local sockets.
func (h *Hub) deliver(roomID string, env *envelope) {
	h.mu.Lock()
	rc, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	targets := make(map[string]*websocket.Conn, len(rc.conns))
	for sessionID, conn := range rc.conns {
		if env.Only != "" && sessionID != env.Only {
			continue
		}
		if env.Exclude != "" && sessionID == env.Exclude {
			continue
		}
		targets[sessionID] = conn
	}
	h.mu.Unlock()

	for sessionID, conn := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := wsjson.Write(ctx, conn, env.Event); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"room": roomID, "session": sessionID,
			}).Debug("dropping undeliverable event")
		}
		cancel()
	}
}

// publish sends an envelope to every worker serving the room.
func (h *Hub) publish(ctx context.Context, roomID string, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.WithError(err).Error("marshal event envelope")
		return
	}
	if err := h.rdb.Publish(ctx, RoomChannelPrefix+roomID, data).Err(); err != nil {
		h.log.WithError(err).WithField("room", roomID).Error("publish event")
	}
}

// Broadcast sends ev to every player in the room, across workers.
func (h *Hub) Broadcast(ctx context.Context, roomID string, ev game.Event) {
	h.publish(ctx, roomID, envelope{Event: ev})
}

// BroadcastTo sends ev to one session in the room.
func (h *Hub) BroadcastTo(ctx context.Context, roomID, sessionID string, ev game.Event) {
	h.publish(ctx, roomID, envelope{Event: ev, Only: sessionID})
}

// BroadcastExcept sends ev to everyone in the room but one session.
func (h *Hub) BroadcastExcept(ctx context.Context, roomID, sessionID string, ev game.Event) {
	h.publish(ctx, roomID, envelope{Event: ev, Exclude: sessionID})
}

// WireRoom points a rehydrated room's broadcast callbacks at this hub.
func (h *Hub) WireRoom(ctx context.Context, r *game.Room) {
	roomID := r.ID
	r.BroadcastFn = func(ev game.Event) { h.Broadcast(ctx, roomID, ev) }
	r.BroadcastToPlayerFn = func(sessionID string, ev game.Event) { h.BroadcastTo(ctx, roomID, sessionID, ev) }
	r.BroadcastExceptFn = func(sessionID string, ev game.Event) { h.BroadcastExcept(ctx, roomID, sessionID, ev) }
}
