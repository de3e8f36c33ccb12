// Package engine implements the board rules for a four-player territory
// card game: a 9x9 grid of tiles, corner bases, a contested river tile,
// stacked card units, territory capture, income and win detection.
//
// The package is pure data and logic. It performs no I/O and holds no
// references to players beyond their opaque identity strings, which makes
// it safe to rehydrate from a persisted snapshot on any worker.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Board geometry and game constants.
const (
	BoardSize = 9

	// RegMove is the default placement/movement radius; AceMove applies
	// when the moving unit's stack contains an Ace.
	RegMove = 1
	AceMove = 2

	// KingRadius bounds the income bonus around a King income modifier.
	KingRadius = 2

	// RiverWinTurns is the continuous-control threshold for a river win.
	RiverWinTurns = 10

	PlayerCount   = 4
	HandSize      = 5
	StartingCoins = 10
	CardPrice     = 2

	// Per-tile, per-player unit caps. Face-up and face-down counts are
	// capped independently.
	TileFaceUpLimit   = 4
	TileFaceDownLimit = 4
)

// Suit constants, packed into the upper 4 bits of Card.
const (
	SuitBlack uint8 = 0
	SuitRed   uint8 = 1
	SuitGreen uint8 = 2
	SuitBlue  uint8 = 3

	NumSuits = 4
)

// Rank constants, packed into the lower 4 bits of Card.
// Ranks run 1..13 so a Card is never the zero value.
const (
	RankAce   uint8 = 1
	RankJack  uint8 = 11
	RankQueen uint8 = 12
	RankKing  uint8 = 13

	NumRanks = 13
)

// Card is a packed uint8: upper 4 bits = suit, lower 4 bits = rank.
// The wire and storage representation is the compact key "suit,rank";
// Card values never cross a process boundary directly.
type Card uint8

// EmptyCard represents the absence of a card.
const EmptyCard Card = 0xFF

// NewCard constructs a Card from suit and rank.
func NewCard(suit, rank uint8) Card {
	return Card((suit << 4) | (rank & 0x0F))
}

// Suit returns the suit bits (upper 4).
func (c Card) Suit() uint8 { return uint8(c) >> 4 }

// Rank returns the rank bits (lower 4).
func (c Card) Rank() uint8 { return uint8(c) & 0x0F }

// Key returns the compact string encoding "suit,rank".
func (c Card) Key() string {
	return fmt.Sprintf("%d,%d", c.Suit(), c.Rank())
}

// CardFromKey parses the compact "suit,rank" encoding.
func CardFromKey(key string) (Card, error) {
	s, r, ok := splitPair(key)
	if !ok || s < 0 || s >= NumSuits || r < 1 || r > NumRanks {
		return EmptyCard, fmt.Errorf("bad card key %q", key)
	}
	return NewCard(uint8(s), uint8(r)), nil
}

// ModScope identifies which game mechanic a rank modifies when present
// in a unit's stack.
type ModScope uint8

const (
	ScopeMove   ModScope = iota // Ace, King
	ScopeCombat                 // Jack, Queen
	ScopeIncome                 // King
)

// InScope reports whether this card's rank is a modifier for the scope.
func (c Card) InScope(scope ModScope) bool {
	switch scope {
	case ScopeMove:
		return c.Rank() == RankAce || c.Rank() == RankKing
	case ScopeCombat:
		return c.Rank() == RankJack || c.Rank() == RankQueen
	case ScopeIncome:
		return c.Rank() == RankKing
	}
	return false
}

// splitPair parses "a,b" into two ints.
func splitPair(key string) (int, int, bool) {
	i := strings.IndexByte(key, ',')
	if i < 0 {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(key[:i])
	b, errB := strconv.Atoi(key[i+1:])
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
