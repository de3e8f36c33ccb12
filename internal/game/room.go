// Package game implements the room aggregate: the authoritative per-match
// object composing a board, a deck, and the seated players.
//
// A Room lives in memory only for the duration of one request. Workers
// rehydrate it from the shared store, apply one action, persist it, and
// throw it away; timers and broadcast delivery belong to the layers
// around it. Broadcasting happens through injected callbacks so the
// aggregate stays transport-free.
package game

import (
	"errors"
	"fmt"
	"time"

	"safeashouses/engine"
	"safeashouses/internal/models"
)

// Rejected-action errors. A rejection is always reported to the caller as
// a specific event and never mutates room state.
var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrCardNotHeld    = errors.New("card not in hand")
	ErrNotEnoughCoins = errors.New("not enough coins")
	ErrRoomFull       = errors.New("room is full")
	ErrGameNotStarted = errors.New("game not started")
	ErrDeckExhausted  = errors.New("deck exhausted")
	ErrUnknownPlayer  = errors.New("player not in room")
)

// DefaultTurnDuration bounds one turn unless overridden by configuration.
const DefaultTurnDuration = 30 * time.Second

// Room is the turn owner for one match.
type Room struct {
	ID          string
	Pot         int
	ActiveIndex int
	Round       int
	GameStarted bool

	// Winner is the winning seat's public id once the game ends, -1
	// before that.
	Winner int

	// ActionCount numbers applied actions for the history queue.
	ActionCount int

	Players []*models.Player
	Deck    *engine.Deck
	Board   *engine.Board

	TurnDuration time.Duration

	// Broadcast callbacks, injected by the gateway layer.
	BroadcastFn         func(ev Event)                  // everyone in the room
	BroadcastToPlayerFn func(playerID string, ev Event) // one player
	BroadcastExceptFn   func(playerID string, ev Event) // everyone but one
}

// NewRoom creates an empty room awaiting players.
func NewRoom(id string, deckSeed uint64) *Room {
	return &Room{
		ID:           id,
		Winner:       -1,
		Deck:         engine.NewDeck(deckSeed),
		Board:        engine.NewBoard(),
		TurnDuration: DefaultTurnDuration,
	}
}

// fireAll broadcasts to every player in the room.
func (r *Room) fireAll(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

// fireTo sends an event to a single player.
func (r *Room) fireTo(playerID string, ev Event) {
	if r.BroadcastToPlayerFn != nil {
		r.BroadcastToPlayerFn(playerID, ev)
	}
}

// fireExcept broadcasts to everyone except playerID.
func (r *Room) fireExcept(playerID string, ev Event) {
	if r.BroadcastExceptFn != nil {
		r.BroadcastExceptFn(playerID, ev)
	}
}

// PlayerByID returns the seated player with the given internal identity.
func (r *Room) PlayerByID(id string) *models.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ActivePlayer returns the player whose turn it is.
func (r *Room) ActivePlayer() *models.Player {
	if len(r.Players) == 0 {
		return nil
	}
	return r.Players[r.ActiveIndex]
}

// IsFull reports whether every seat is taken.
func (r *Room) IsFull() bool {
	return len(r.Players) >= engine.PlayerCount
}

// AddPlayer seats a player and returns the resulting player count.
// Idempotent: re-adding a seated identity changes nothing, which is what
// makes a page-reload join a reconnect rather than a second seat.
func (r *Room) AddPlayer(id, name string) (int, error) {
	if existing := r.PlayerByID(id); existing != nil {
		return len(r.Players), nil
	}
	if r.IsFull() {
		return len(r.Players), ErrRoomFull
	}
	p := models.NewPlayer(id, len(r.Players), name)
	r.Players = append(r.Players, p)
	r.Board.SeedTerritory(id)
	return len(r.Players), nil
}

// StartGame deals hands, captures each player's home base, seeds the
// river cards face-up, and announces the opening round and first turn.
func (r *Room) StartGame() error {
	if r.GameStarted {
		return nil
	}
	if !r.IsFull() {
		return fmt.Errorf("start with %d/%d players", len(r.Players), engine.PlayerCount)
	}
	r.GameStarted = true
	r.Round = 1

	for i, p := range r.Players {
		p.Hand = r.Deck.Deal(engine.HandSize)
		r.Board.CaptureBase(i, p.ID)
	}
	for _, v := range engine.Rivers {
		if c, ok := r.Deck.DrawOne(); ok {
			r.Board.Tile(v).River().Card = c
		}
	}

	r.AnnounceStart()
	return nil
}

// AnnounceStart replays the opening announcements: a fresh round state
// for every seat followed by the turn cue. StartGame fires it itself;
// callers that started the game on an unwired copy call it again once
// the room's broadcast callbacks are attached.
func (r *Room) AnnounceStart() {
	for _, p := range r.Players {
		r.SendRoundState(p.ID, true)
	}
	r.announceTurn()
}

// SendRoundState sends the full round snapshot to one player: the public
// table, their private hand, and the river cards. fresh marks the initial
// deal as opposed to a reconnect resync.
func (r *Room) SendRoundState(playerID string, fresh bool) {
	p := r.PlayerByID(playerID)
	if p == nil {
		return
	}
	r.fireTo(playerID, Event{
		Type:       EventRoundStart,
		Players:    r.playerInfos(),
		Self:       &SelfInfo{ID: p.PublicID, Name: p.Name, Hand: p.HandKeys()},
		RiverCards: r.riverCards(),
		FreshStart: fresh,
	})
}

// playerInfos builds the public view of every seat.
func (r *Room) playerInfos() []PlayerInfo {
	infos := make([]PlayerInfo, len(r.Players))
	for i, p := range r.Players {
		infos[i] = PlayerInfo{
			ID:        p.PublicID,
			Name:      p.Name,
			HandSize:  len(p.Hand),
			Territory: len(r.Board.Territory(p.ID)),
			Coins:     p.Coins,
		}
	}
	return infos
}

// riverCards returns the visible river cards in river order.
func (r *Room) riverCards() []string {
	keys := make([]string, 0, len(engine.Rivers))
	for _, v := range engine.Rivers {
		river := r.Board.Tile(v).River()
		if river == nil || river.Card == engine.EmptyCard {
			continue
		}
		keys = append(keys, river.Card.Key())
	}
	return keys
}

// announceTurn tells the active player it is their turn and everyone else
// whose turn it is.
func (r *Room) announceTurn() {
	active := r.ActivePlayer()
	if active == nil {
		return
	}
	durMS := r.TurnDuration.Milliseconds()
	r.fireTo(active.ID, Event{
		Type:       EventYourTurn,
		PublicID:   publicID(active.PublicID),
		DurationMS: durMS,
	})
	r.fireExcept(active.ID, Event{
		Type:       EventWaitTurn,
		PublicID:   publicID(active.PublicID),
		DurationMS: durMS,
	})
}

// AdvanceTurn moves the turn to the next seat: river counters tick, win
// conditions are checked, income is paid, and the new turn is announced.
// Returns true when the game ended; the caller owns cleanup of store
// state and timers. Safe to run redundantly: a duplicate advance on an
// already-advanced room just re-announces the turn.
func (r *Room) AdvanceTurn() (gameOver bool) {
	if !r.GameStarted || len(r.Players) == 0 {
		return false
	}

	r.Board.UpdateRivers()

	r.ActiveIndex = (r.ActiveIndex + 1) % len(r.Players)
	if r.ActiveIndex == 0 {
		r.Round++
	}

	winnerID := r.Board.CheckRiverWin()
	if winnerID == "" {
		winnerID = r.Board.CheckBaseWin()
	}
	if winnerID != "" {
		if w := r.PlayerByID(winnerID); w != nil {
			r.Winner = w.PublicID
			r.fireAll(Event{Type: EventWinner, PublicID: publicID(w.PublicID)})
		}
		return true
	}

	r.applyIncome()
	r.announceTurn()
	return false
}

// applyIncome pays every player their per-round income and broadcasts the
// resulting balances.
func (r *Room) applyIncome() {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	income := r.Board.CalculateIncome(ids)

	balances := make(map[int]int, len(r.Players))
	for _, p := range r.Players {
		p.Coins += income[p.ID]
		balances[p.PublicID] = p.Coins
	}
	r.fireAll(Event{Type: EventIncome, Balances: balances})
}

// requireActive validates that callerID is seated and holds the turn.
func (r *Room) requireActive(callerID string) (*models.Player, error) {
	p := r.PlayerByID(callerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if !r.GameStarted {
		return nil, ErrGameNotStarted
	}
	if r.ActivePlayer().ID != callerID {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// PlaceCard plays a card from the caller's hand onto a tile. Only the
// active player may place, and only cards they hold. On success the card
// leaves the hand for the discard pile, and the other players learn the
// minimum: a face-down placement reveals only the new unit id, a swallow
// reveals the card it merged into a face-up stack.
func (r *Room) PlaceCard(callerID, cardKey, tileKey string, bet int) (engine.PlaceResult, error) {
	reject := func(reason string) {
		r.fireTo(callerID, Event{Type: EventPlaceCardRej, Tile: tileKey, Card: cardKey, Reason: reason})
	}

	p, err := r.requireActive(callerID)
	if err != nil {
		reject(err.Error())
		return engine.PlaceResult{}, err
	}
	card, err := engine.CardFromKey(cardKey)
	if err != nil {
		reject(err.Error())
		return engine.PlaceResult{}, err
	}
	v, err := engine.VecFromKey(tileKey)
	if err != nil {
		reject(err.Error())
		return engine.PlaceResult{}, err
	}
	if !p.HasCard(card) {
		reject(ErrCardNotHeld.Error())
		return engine.PlaceResult{}, ErrCardNotHeld
	}

	res, err := r.Board.PlaceCard(v, card, callerID, bet)
	if err != nil {
		reject(err.Error())
		return engine.PlaceResult{}, err
	}

	p.RemoveCard(card)
	r.Deck.ToDiscard(card)
	r.Pot += bet

	r.fireTo(callerID, Event{
		Type:      EventPlaceCardAck,
		Tile:      tileKey,
		Card:      cardKey,
		Bet:       bet,
		UnitID:    res.Unit.ID,
		Swallowed: res.Swallowed,
		Captured:  res.TerritoryCaptured,
	})

	pub := Event{
		Type:     EventPlaceCardPublic,
		Tile:     tileKey,
		Bet:      bet,
		UnitID:   res.Unit.ID,
		PublicID: publicID(p.PublicID),
		Captured: res.TerritoryCaptured,
	}
	if res.Swallowed || res.Unit.FaceUp {
		pub.Card = cardKey
		pub.Swallowed = res.Swallowed
	}
	r.fireExcept(callerID, pub)
	return res, nil
}

// MoveUnit relocates one of the caller's units. Board legality rules
// apply; the move is public, so everyone gets the same notification.
func (r *Room) MoveUnit(callerID, fromKey, toKey string, unitID int) error {
	reject := func(reason string) {
		r.fireTo(callerID, Event{Type: EventMoveRej, From: fromKey, Tile: toKey, UnitID: unitID, Reason: reason})
	}

	p, err := r.requireActive(callerID)
	if err != nil {
		reject(err.Error())
		return err
	}
	from, err := engine.VecFromKey(fromKey)
	if err != nil {
		reject(err.Error())
		return err
	}
	to, err := engine.VecFromKey(toKey)
	if err != nil {
		reject(err.Error())
		return err
	}

	captured, err := r.Board.MoveUnit(from, to, callerID, unitID)
	if err != nil {
		reject(err.Error())
		return err
	}

	r.fireTo(callerID, Event{Type: EventMoveAck, From: fromKey, Tile: toKey, UnitID: unitID, Captured: captured})
	r.fireExcept(callerID, Event{
		Type:     EventMovePublic,
		From:     fromKey,
		Tile:     toKey,
		UnitID:   unitID,
		PublicID: publicID(p.PublicID),
		Captured: captured,
	})
	return nil
}

// Flip turns one of the caller's face-down units face-up. The flip is
// public and reveals the unit's card to the table.
func (r *Room) Flip(callerID, tileKey string, unitID int) error {
	reject := func(reason string) {
		r.fireTo(callerID, Event{Type: EventFlipRej, Tile: tileKey, UnitID: unitID, Reason: reason})
	}

	p, err := r.requireActive(callerID)
	if err != nil {
		reject(err.Error())
		return err
	}
	v, err := engine.VecFromKey(tileKey)
	if err != nil {
		reject(err.Error())
		return err
	}
	if err := r.Board.FlipUnit(callerID, v, unitID); err != nil {
		reject(err.Error())
		return err
	}

	// A unit flips before it can swallow, so the revealed stack is the
	// single card it was placed with.
	unit := r.Board.Tile(v).Unit(callerID, unitID)
	r.fireAll(Event{
		Type:     EventFlipAck,
		Tile:     tileKey,
		UnitID:   unitID,
		Card:     unit.Stack[0].Key(),
		PublicID: publicID(p.PublicID),
	})
	return nil
}

// BuyCard sells the active player one card off the deck. The price goes
// into the pot. Rejected before the balance would go negative.
func (r *Room) BuyCard(callerID string) (engine.Card, error) {
	reject := func() {
		r.fireTo(callerID, Event{Type: EventBuyCardRej})
	}

	p, err := r.requireActive(callerID)
	if err != nil {
		reject()
		return engine.EmptyCard, err
	}
	if p.Coins < engine.CardPrice {
		reject()
		return engine.EmptyCard, ErrNotEnoughCoins
	}
	card, ok := r.Deck.DrawOne()
	if !ok {
		reject()
		return engine.EmptyCard, ErrDeckExhausted
	}

	p.Coins -= engine.CardPrice
	r.Pot += engine.CardPrice
	p.AddCard(card)

	r.fireTo(callerID, Event{Type: EventBuyCardAck, Card: card.Key()})
	r.fireExcept(callerID, Event{Type: EventBuyCardPublic, PublicID: publicID(p.PublicID)})
	return card, nil
}

// SubmitTurn is the active player voluntarily ending their turn.
func (r *Room) SubmitTurn(callerID string) (gameOver bool, err error) {
	if _, err := r.requireActive(callerID); err != nil {
		return false, err
	}
	return r.AdvanceTurn(), nil
}

// NotifyDisconnect tells the table a seat went dark. Forced turn
// advancement for a disconnected active player is the timer layer's job.
func (r *Room) NotifyDisconnect(playerID string) {
	p := r.PlayerByID(playerID)
	if p == nil {
		return
	}
	r.fireExcept(playerID, Event{Type: EventDCPlayer, PublicID: publicID(p.PublicID)})
}
