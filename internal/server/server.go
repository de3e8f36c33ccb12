// Package server is the stateless worker: it accepts connections,
// matchmakes sessions into rooms, and applies one action at a time
// through a load, mutate, persist cycle against the shared store.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safeashouses/engine"
	"safeashouses/internal/cache"
	"safeashouses/internal/config"
	"safeashouses/internal/database"
	"safeashouses/internal/game"
	"safeashouses/internal/state"
	"safeashouses/internal/ws"
)

// Inbound action names.
const (
	ActionJoinGame   = "joinGame"
	ActionPlaceCard  = "placeCard"
	ActionMoveUnit   = "moveUnit"
	ActionFlip       = "flip"
	ActionBuyCard    = "buyCard"
	ActionSubmitTurn = "submitTurn"
)

// InboundMessage is one client request over the socket.
type InboundMessage struct {
	Action string `json:"action"`
	Card   string `json:"card,omitempty"`
	Tile   string `json:"tile,omitempty"`
	From   string `json:"from,omitempty"`
	UnitID int    `json:"unitId"`
	Bet    int    `json:"bet,omitempty"`
}

// Server handles websocket traffic for one worker process.
type Server struct {
	Log    *logrus.Logger
	Cfg    config.Config
	Hub    *ws.Hub
	Timers *cache.TimerManager

	secret []byte
}

// New builds a server from its wired dependencies.
func New(log *logrus.Logger, cfg config.Config, hub *ws.Hub, timers *cache.TimerManager) *Server {
	return &Server{
		Log:    log,
		Cfg:    cfg,
		Hub:    hub,
		Timers: timers,
		secret: []byte(cfg.SessionSecret),
	}
}

// Routes returns the HTTP surface: session issuance and the game socket.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", ws.SessionHandler(s.secret, s.Cfg.SessionTTL))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// handleWS upgrades a connection, matchmakes its session into a room,
// and runs the read loop until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID, name, err := ws.ParseSession(s.secret, ws.TokenFromRequest(r))
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusGoingAway, "server closing websocket")

	ctx := r.Context()
	log := s.Log.WithFields(logrus.Fields{"session": sessionID, "name": name})

	roomID, err := s.joinGame(ctx, sessionID, name)
	if err != nil {
		log.WithError(err).Error("join failed")
		conn.Close(websocket.StatusInternalError, "matchmaking failed")
		return
	}
	log = log.WithField("room", roomID)

	s.Hub.Register(roomID, sessionID, conn)
	defer func() {
		s.Hub.Unregister(roomID, sessionID, conn)
		s.notifyDisconnect(sessionID, roomID)
	}()
	log.Info("player connected")

	for {
		var msg InboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.WithError(err).Debug("read loop ended")
			return
		}
		if err := s.dispatch(ctx, sessionID, roomID, &msg); err != nil {
			// Rule rejections were already reported to the player as
			// events; anything else is an infrastructure problem.
			if !isRuleError(err) {
				log.WithError(err).WithField("action", msg.Action).Error("dispatch failed")
			}
		}
	}
}

// joinGame resolves a session to a room: reconnect, seat in a waiting
// room, or open a new one. The fourth seat starts the game.
func (s *Server) joinGame(ctx context.Context, sessionID, name string) (string, error) {
	res, err := cache.MatchUser(ctx, sessionID, uuid.NewString())
	if err != nil {
		return "", err
	}

	if res.Reconnect {
		ok, err := s.resyncPlayer(ctx, sessionID, res.RoomID)
		if err != nil {
			return "", err
		}
		if ok {
			return res.RoomID, nil
		}
		// The mapping points at a room whose state expired. Clear it and
		// match once more from scratch.
		if err := cache.ClearUserRoom(ctx, sessionID); err != nil {
			return "", err
		}
		res, err = cache.MatchUser(ctx, sessionID, uuid.NewString())
		if err != nil {
			return "", err
		}
		if res.Reconnect {
			return "", errors.New("stale room mapping persisted after clear")
		}
	}

	return res.RoomID, s.seatPlayer(ctx, sessionID, name, res.RoomID)
}

// resyncPlayer replays the current round state to a reconnecting player.
// Returns false when the room's state is gone.
func (s *Server) resyncPlayer(ctx context.Context, sessionID, roomID string) (bool, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err == cache.ErrRoomNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if room.GameStarted {
		room.SendRoundState(sessionID, false)
	}
	s.Hub.BroadcastTo(ctx, roomID, sessionID, game.Event{
		Type:        game.EventJoinGameAck,
		PlayerCount: len(room.Players),
	})
	return true, nil
}

// seatPlayer adds a session to a room, creating the room state on first
// join. Once the last seat fills, the game starts and all timers arm.
func (s *Server) seatPlayer(ctx context.Context, sessionID, name, roomID string) error {
	// Seating runs under an optimistic update: two sessions matched into
	// the same room can land on different workers, and a plain
	// load-mutate-save would let one seat overwrite the other. The
	// closure mutates an unwired copy, so a replayed attempt never
	// broadcasts; side effects run once, after the commit.
	var count int
	var started bool
	err := cache.UpdateRoomState(ctx, roomID, s.Timers.StateTTL, func(old []byte) ([]byte, error) {
		var room *game.Room
		if old == nil {
			room = game.NewRoom(roomID, uint64(time.Now().UnixNano()))
		} else {
			var err error
			room, err = state.UnmarshalRoom(old)
			if err != nil {
				return nil, err
			}
		}

		var err error
		count, err = room.AddPlayer(sessionID, name)
		if err != nil {
			return nil, err
		}
		started = false
		if room.IsFull() && !room.GameStarted {
			if err := room.StartGame(); err != nil {
				return nil, err
			}
			started = true
		}
		return state.MarshalRoom(room)
	})
	if err != nil {
		return err
	}

	s.Hub.BroadcastTo(ctx, roomID, sessionID, game.Event{
		Type:        game.EventJoinGameAck,
		PlayerCount: count,
	})

	if started {
		room, err := s.loadRoom(ctx, roomID)
		if err != nil {
			return err
		}
		room.AnnounceStart()
		if err := s.Timers.InitializeGameTimers(ctx, roomID); err != nil {
			return err
		}
		s.publishAction(room, -1, "gameStart", nil)
	}
	return nil
}

// loadRoom rehydrates a room from the store and wires its broadcasts.
func (s *Server) loadRoom(ctx context.Context, roomID string) (*game.Room, error) {
	data, err := cache.LoadRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room, err := state.UnmarshalRoom(data)
	if err != nil {
		return nil, err
	}
	room.TurnDuration = s.Timers.MainTTL
	s.Hub.WireRoom(ctx, room)
	return room, nil
}

// dispatch applies one client action through the load, mutate, persist
// cycle. Turn handoffs rebuild both turn timers; other actions bump only
// the action timer.
func (s *Server) dispatch(ctx context.Context, sessionID, roomID string, msg *InboundMessage) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}

	p := room.PlayerByID(sessionID)
	actor := -1
	if p != nil {
		actor = p.PublicID
	}

	var gameOver bool
	switch msg.Action {
	case ActionJoinGame:
		// Already seated at connect time; treat a repeat as a resync.
		if room.GameStarted {
			room.SendRoundState(sessionID, false)
		}
		return nil
	case ActionPlaceCard:
		_, err = room.PlaceCard(sessionID, msg.Card, msg.Tile, msg.Bet)
	case ActionMoveUnit:
		err = room.MoveUnit(sessionID, msg.From, msg.Tile, msg.UnitID)
	case ActionFlip:
		err = room.Flip(sessionID, msg.Tile, msg.UnitID)
	case ActionBuyCard:
		_, err = room.BuyCard(sessionID)
	case ActionSubmitTurn:
		gameOver, err = room.SubmitTurn(sessionID)
	default:
		s.Log.WithField("action", msg.Action).Debug("unknown action")
		return nil
	}
	if err != nil {
		return err
	}

	s.publishAction(room, actor, msg.Action, map[string]any{
		"card": msg.Card, "tile": msg.Tile, "from": msg.From,
		"unitId": msg.UnitID, "bet": msg.Bet,
	})

	if gameOver {
		return s.finishRoom(ctx, room)
	}

	data, err := state.MarshalRoom(room)
	if err != nil {
		return err
	}
	if msg.Action == ActionSubmitTurn {
		return s.Timers.SaveBumpTurn(ctx, roomID, data)
	}
	return s.Timers.SaveBumpAction(ctx, roomID, data)
}

// publishAction queues an action record for the history consumer.
// Best-effort: history must never block or fail play.
func (s *Server) publishAction(room *game.Room, actor int, actionType string, payload map[string]any) {
	room.ActionCount++
	rec := cache.GameActionRecord{
		RoomID:        room.ID,
		ActionIndex:   room.ActionCount,
		ActorPublicID: actor,
		ActionType:    actionType,
		Payload:       payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cache.Rdb == nil {
			return
		}
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			s.Log.WithError(err).WithField("room", rec.RoomID).Warn("failed publishing action record")
		}
	}()
}

// notifyDisconnect reports a dropped connection to the rest of the room.
// The seat stays; the session can reconnect through matchmaking.
func (s *Server) notifyDisconnect(sessionID, roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return
	}
	room.NotifyDisconnect(sessionID)
}

// HandleTurnExpired is the timer callback for a drained turn timer: the
// active player ran out of time, so the turn advances without them.
func (s *Server) HandleTurnExpired(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log := s.Log.WithField("room", roomID)

	room, err := s.loadRoom(ctx, roomID)
	if err == cache.ErrRoomNotFound {
		// Already torn down; a ghost expiry from the second timer layer.
		return
	}
	if err != nil {
		log.WithError(err).Error("load on turn expiry failed")
		return
	}
	if !room.GameStarted {
		return
	}

	log.Debug("turn timer expired, forcing advance")
	if room.AdvanceTurn() {
		if err := s.finishRoom(ctx, room); err != nil {
			log.WithError(err).Error("finish after forced advance failed")
		}
		return
	}

	s.publishAction(room, -1, "turnTimeout", nil)
	data, err := state.MarshalRoom(room)
	if err != nil {
		log.WithError(err).Error("marshal on turn expiry failed")
		return
	}
	if err := s.Timers.SaveBumpTurn(ctx, roomID, data); err != nil {
		log.WithError(err).Error("save on turn expiry failed")
	}
}

// HandleAbandonExpired is the timer callback for the long-stop: nothing
// has happened in the room for the full abandon window, so it is torn
// down without a winner.
func (s *Server) HandleAbandonExpired(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log := s.Log.WithField("room", roomID)

	room, err := s.loadRoom(ctx, roomID)
	if err != nil && err != cache.ErrRoomNotFound {
		log.WithError(err).Error("load on abandon expiry failed")
		return
	}
	log.Info("room abandoned, tearing down")
	s.teardown(ctx, room, roomID)
}

// finishRoom archives a completed game and tears its store state down.
func (s *Server) finishRoom(ctx context.Context, room *game.Room) error {
	s.publishAction(room, -1, "gameOver", map[string]any{"winner": room.Winner})

	if database.DB != nil {
		balances := make(map[int]int, len(room.Players))
		for _, p := range room.Players {
			balances[p.PublicID] = p.Coins
		}
		res := database.GameResult{
			RoomID:     room.ID,
			WinnerSeat: room.Winner,
			Rounds:     room.Round,
			Balances:   balances,
			FinishedAt: time.Now(),
		}
		go func() {
			dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := database.SaveResult(dbCtx, res); err != nil {
				s.Log.WithError(err).WithField("room", res.RoomID).Error("archive failed")
			}
		}()
	}

	s.teardown(ctx, room, room.ID)
	return nil
}

// teardown removes every store key for a room: state, timers, waiting
// set entry, and the player mappings, so finished sessions can match
// into fresh rooms.
func (s *Server) teardown(ctx context.Context, room *game.Room, roomID string) {
	if err := cache.DeleteRoomState(ctx, roomID); err != nil {
		s.Log.WithError(err).WithField("room", roomID).Warn("delete room state failed")
	}
	if err := s.Timers.ClearRoom(ctx, roomID); err != nil {
		s.Log.WithError(err).WithField("room", roomID).Warn("clear timers failed")
	}
	if err := cache.RemoveWaitingRoom(ctx, roomID); err != nil {
		s.Log.WithError(err).WithField("room", roomID).Warn("remove waiting room failed")
	}
	if room != nil {
		for _, p := range room.Players {
			if err := cache.ClearUserRoom(ctx, p.ID); err != nil {
				s.Log.WithError(err).WithField("session", p.ID).Warn("clear room mapping failed")
			}
		}
	}
}

// isRuleError reports whether err is a game-rule rejection rather than
// an infrastructure failure.
func isRuleError(err error) bool {
	switch {
	case errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrCardNotHeld),
		errors.Is(err, game.ErrNotEnoughCoins),
		errors.Is(err, game.ErrGameNotStarted),
		errors.Is(err, game.ErrDeckExhausted),
		errors.Is(err, game.ErrUnknownPlayer),
		errors.Is(err, engine.ErrOutOfBounds),
		errors.Is(err, engine.ErrTileFull),
		errors.Is(err, engine.ErrIllegalMove),
		errors.Is(err, engine.ErrNotAdjacent),
		errors.Is(err, engine.ErrUnitNotFound),
		errors.Is(err, engine.ErrUnitAnchored),
		errors.Is(err, engine.ErrTileContested),
		errors.Is(err, engine.ErrAlreadyFaceUp):
		return true
	}
	return false
}
