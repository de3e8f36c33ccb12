// Package state converts a room to and from its stored JSON form.
//
// Rooms live in the shared store between actions, so any worker can load
// one, apply a single action, and write it back. The serialized form is
// self-contained: everything needed to rebuild an equivalent room, and
// nothing derivable from the board constants (structures are recreated
// at their fixed coordinates, only their dynamic fields are stored).
package state

import (
	"encoding/json"
	"fmt"
	"strconv"

	"safeashouses/engine"
	"safeashouses/internal/game"
	"safeashouses/internal/models"
)

// SerializedRoom is the stored form of one room.
type SerializedRoom struct {
	ID          string             `json:"id"`
	Pot         int                `json:"pot"`
	ActiveIndex int                `json:"actIndex"`
	Round       int                `json:"round"`
	GameStarted bool               `json:"gameStarted"`
	Winner      int                `json:"winner"`
	ActionCount int                `json:"actionCount"`
	Players     []SerializedPlayer `json:"players"`
	Deck        SerializedDeck     `json:"deck"`
	Board       SerializedBoard    `json:"board"`
}

// SerializedPlayer carries the full seat state, private hand included.
// The stored form never leaves the server side, so no redaction here.
type SerializedPlayer struct {
	ID       string   `json:"id"`
	PublicID int      `json:"publicId"`
	Name     string   `json:"name"`
	Coins    int      `json:"coins"`
	Hand     []string `json:"hand"`
}

// SerializedDeck stores both piles as card keys plus the generator state,
// so a rebuilt deck shuffles identically. The seed is a decimal string:
// uint64 does not survive a JSON number round trip.
type SerializedDeck struct {
	Draw    []string `json:"draw"`
	Discard []string `json:"discard"`
	Seed    string   `json:"seed"`
}

// SerializedBoard is sparse: only tiles with state appear.
type SerializedBoard struct {
	Tiles      map[string]SerializedTile `json:"tiles"`
	Territory  map[string][]string       `json:"territory"`
	NextUnitID int                       `json:"nextUnitId"`
}

// SerializedTile holds one tile's dynamic state keyed by tile key.
type SerializedTile struct {
	Owner string                      `json:"owner,omitempty"`
	Units map[string][]SerializedUnit `json:"units,omitempty"`
	Bets  map[string]int              `json:"bets,omitempty"`
	River *SerializedRiver            `json:"river,omitempty"`
}

// SerializedUnit is one unit stack.
type SerializedUnit struct {
	ID     int      `json:"id"`
	Cards  []string `json:"cards"`
	FaceUp bool     `json:"faceUp"`
}

// SerializedRiver holds a river structure's dynamic fields. Defense and
// position come from the board constants.
type SerializedRiver struct {
	Owner string `json:"owner,omitempty"`
	Turns int    `json:"turns,omitempty"`
	Card  string `json:"card,omitempty"`
}

// ---------------------------------------------------------------------------
// Room -> stored form
// ---------------------------------------------------------------------------

// Snapshot captures a room into its serialized form.
func Snapshot(r *game.Room) *SerializedRoom {
	s := &SerializedRoom{
		ID:          r.ID,
		Pot:         r.Pot,
		ActiveIndex: r.ActiveIndex,
		Round:       r.Round,
		GameStarted: r.GameStarted,
		Winner:      r.Winner,
		ActionCount: r.ActionCount,
		Players:     make([]SerializedPlayer, len(r.Players)),
		Deck: SerializedDeck{
			Draw:    cardKeys(r.Deck.Draw),
			Discard: cardKeys(r.Deck.Discard),
			Seed:    strconv.FormatUint(r.Deck.Seed(), 10),
		},
		Board: snapshotBoard(r.Board),
	}
	for i, p := range r.Players {
		s.Players[i] = SerializedPlayer{
			ID:       p.ID,
			PublicID: p.PublicID,
			Name:     p.Name,
			Coins:    p.Coins,
			Hand:     cardKeys(p.Hand),
		}
	}
	return s
}

func snapshotBoard(b *engine.Board) SerializedBoard {
	sb := SerializedBoard{
		Tiles:      make(map[string]SerializedTile),
		Territory:  make(map[string][]string),
		NextUnitID: b.NextUnitID(),
	}
	b.Tiles(func(v engine.Vec2, t *engine.Tile) {
		st, ok := snapshotTile(t)
		if ok {
			sb.Tiles[v.Key()] = st
		}
	})
	b.Tiles(func(v engine.Vec2, t *engine.Tile) {
		if t.Owner != "" {
			sb.Territory[t.Owner] = append(sb.Territory[t.Owner], v.Key())
		}
	})
	return sb
}

// snapshotTile returns the stored form of t and whether t has any state
// worth storing.
func snapshotTile(t *engine.Tile) (SerializedTile, bool) {
	st := SerializedTile{Owner: t.Owner}
	dirty := t.Owner != ""

	for playerID, units := range t.Units {
		if len(units) == 0 {
			continue
		}
		if st.Units == nil {
			st.Units = make(map[string][]SerializedUnit)
		}
		for _, u := range units {
			st.Units[playerID] = append(st.Units[playerID], SerializedUnit{
				ID:     u.ID,
				Cards:  cardKeys(u.Stack),
				FaceUp: u.FaceUp,
			})
		}
		dirty = true
	}
	for playerID, bet := range t.Bets {
		if bet == 0 {
			continue
		}
		if st.Bets == nil {
			st.Bets = make(map[string]int)
		}
		st.Bets[playerID] = bet
		dirty = true
	}
	if river := t.River(); river != nil {
		sr := SerializedRiver{Owner: river.Owner, Turns: river.Turns}
		if river.Card != engine.EmptyCard {
			sr.Card = river.Card.Key()
		}
		if sr.Owner != "" || sr.Turns != 0 || sr.Card != "" {
			st.River = &sr
			dirty = true
		}
	}
	return st, dirty
}

// ---------------------------------------------------------------------------
// Stored form -> Room
// ---------------------------------------------------------------------------

// Restore rebuilds a live room from its serialized form. Broadcast
// callbacks are left nil; the caller wires them before use.
func Restore(s *SerializedRoom) (*game.Room, error) {
	seed, err := strconv.ParseUint(s.Deck.Seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("deck seed: %w", err)
	}

	r := game.NewRoom(s.ID, seed)
	// NewDeck's constructor shuffle advances the generator; put back the
	// exact persisted state so future reshuffles match the live room's.
	r.Deck.SetSeed(seed)
	r.Pot = s.Pot
	r.ActiveIndex = s.ActiveIndex
	r.Round = s.Round
	r.GameStarted = s.GameStarted
	r.Winner = s.Winner
	r.ActionCount = s.ActionCount

	r.Deck.Draw, err = cardsFromKeys(s.Deck.Draw)
	if err != nil {
		return nil, fmt.Errorf("deck draw: %w", err)
	}
	r.Deck.Discard, err = cardsFromKeys(s.Deck.Discard)
	if err != nil {
		return nil, fmt.Errorf("deck discard: %w", err)
	}

	for _, sp := range s.Players {
		hand, err := cardsFromKeys(sp.Hand)
		if err != nil {
			return nil, fmt.Errorf("player %d hand: %w", sp.PublicID, err)
		}
		p := models.NewPlayer(sp.ID, sp.PublicID, sp.Name)
		p.Coins = sp.Coins
		p.Hand = hand
		r.Players = append(r.Players, p)
		r.Board.SeedTerritory(p.ID)
	}

	// A corrupt active index would otherwise surface as a panic deep in
	// turn validation; fail the load instead.
	if len(r.Players) == 0 {
		if s.ActiveIndex != 0 {
			return nil, fmt.Errorf("active index %d in an empty room", s.ActiveIndex)
		}
	} else if s.ActiveIndex < 0 || s.ActiveIndex >= len(r.Players) {
		return nil, fmt.Errorf("active index %d out of range for %d players", s.ActiveIndex, len(r.Players))
	}

	if err := restoreBoard(r.Board, &s.Board); err != nil {
		return nil, err
	}
	return r, nil
}

func restoreBoard(b *engine.Board, sb *SerializedBoard) error {
	b.SetNextUnitID(sb.NextUnitID)

	for key, st := range sb.Tiles {
		v, err := engine.VecFromKey(key)
		if err != nil {
			return fmt.Errorf("tile %q: %w", key, err)
		}
		tile := b.Tile(v)

		if st.Owner != "" {
			b.RestoreOwner(v, st.Owner)
		}
		for playerID, units := range st.Units {
			for _, su := range units {
				stack, err := cardsFromKeys(su.Cards)
				if err != nil {
					return fmt.Errorf("tile %q unit %d: %w", key, su.ID, err)
				}
				tile.AddUnit(playerID, &engine.Unit{ID: su.ID, Stack: stack, FaceUp: su.FaceUp})
			}
		}
		for playerID, bet := range st.Bets {
			tile.Bets[playerID] = bet
		}
		if st.River != nil {
			river := tile.River()
			if river == nil {
				return fmt.Errorf("tile %q: river state on a riverless tile", key)
			}
			river.Owner = st.River.Owner
			river.Turns = st.River.Turns
			if st.River.Card != "" {
				c, err := engine.CardFromKey(st.River.Card)
				if err != nil {
					return fmt.Errorf("tile %q river card: %w", key, err)
				}
				river.Card = c
			}
		}
	}

	// Territory entries can include seeded-but-empty identities beyond
	// what tile owners imply.
	for playerID := range sb.Territory {
		b.SeedTerritory(playerID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wire helpers
// ---------------------------------------------------------------------------

// MarshalRoom encodes a room for the store.
func MarshalRoom(r *game.Room) ([]byte, error) {
	return json.Marshal(Snapshot(r))
}

// UnmarshalRoom decodes a stored room into a live one.
func UnmarshalRoom(data []byte) (*game.Room, error) {
	var s SerializedRoom
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return Restore(&s)
}

func cardKeys(cards []engine.Card) []string {
	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = c.Key()
	}
	return keys
}

func cardsFromKeys(keys []string) ([]engine.Card, error) {
	cards := make([]engine.Card, len(keys))
	for i, k := range keys {
		c, err := engine.CardFromKey(k)
		if err != nil {
			return nil, err
		}
		cards[i] = c
	}
	return cards, nil
}
