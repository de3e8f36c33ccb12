package game

// EventType names a realtime notification sent to clients.
type EventType string

// Outbound event types. "Ack" events answer the acting player, "Rej"
// events report a rejected action to them, "Public" events carry the
// redacted view broadcast to everyone else.
const (
	EventJoinGameAck     EventType = "joinGameAck"
	EventRoundStart      EventType = "roundStart"
	EventYourTurn        EventType = "yourTurn"
	EventWaitTurn        EventType = "waitTurn"
	EventPlaceCardAck    EventType = "placeCardAck"
	EventPlaceCardRej    EventType = "placeCardRej"
	EventPlaceCardPublic EventType = "placeCardPublic"
	EventMoveAck         EventType = "moveAck"
	EventMoveRej         EventType = "moveRej"
	EventMovePublic      EventType = "movePublic"
	EventFlipAck         EventType = "flipAck"
	EventFlipRej         EventType = "flipRej"
	EventBuyCardAck      EventType = "buyCardAck"
	EventBuyCardRej      EventType = "buyCardRej"
	EventBuyCardPublic   EventType = "buyCardPublic"
	EventIncome          EventType = "income"
	EventWinner          EventType = "winner"
	EventDCPlayer        EventType = "dcPlayer"
)

// PlayerInfo is the public view of a seat: positional identity only,
// never the internal session id.
type PlayerInfo struct {
	ID        int    `json:"id"` // public positional id
	Name      string `json:"name"`
	HandSize  int    `json:"handSize"`
	Territory int    `json:"territory"`
	Coins     int    `json:"coins"`
}

// SelfInfo is the private view a player gets of their own seat.
type SelfInfo struct {
	ID   int      `json:"id"` // public positional id
	Name string   `json:"name"`
	Hand []string `json:"hand"` // card keys
}

// Event is the envelope for every outbound notification. Fields are
// sparse; each event type populates the subset it needs.
type Event struct {
	Type EventType `json:"type"`

	Tile   string `json:"tile,omitempty"`   // tile key "x,y"
	From   string `json:"from,omitempty"`   // origin tile key for moves
	Card   string `json:"card,omitempty"`   // card key "suit,rank"
	UnitID int    `json:"unitId,omitempty"` // board unit id
	Bet    int    `json:"bet,omitempty"`

	// PublicID identifies the acting or affected seat in public events.
	PublicID *int `json:"publicId,omitempty"`

	// DurationMS carries the remaining turn budget on turn notifications.
	DurationMS int64 `json:"durationMs,omitempty"`

	// Swallowed marks a placement that merged into an existing unit.
	Swallowed bool `json:"swallowed,omitempty"`

	// Captured marks a placement or move that transferred territory.
	Captured bool `json:"captured,omitempty"`

	Reason string `json:"reason,omitempty"` // rejection reason

	PlayerCount int          `json:"playerCount,omitempty"`
	Players     []PlayerInfo `json:"players,omitempty"`
	Self        *SelfInfo    `json:"self,omitempty"`
	RiverCards  []string     `json:"riverCards,omitempty"`
	FreshStart  bool         `json:"freshStart,omitempty"`

	// Balances maps public id to coin balance on income events.
	Balances map[int]int `json:"balances,omitempty"`
}

func publicID(id int) *int { return &id }
