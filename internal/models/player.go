// Package models holds the plain data types shared between the room
// aggregate, serialization, and the gateway.
package models

import "safeashouses/engine"

// Player is one seat at the table.
//
// ID is the internal session identity: stable across reconnects and never
// revealed to other players. PublicID is the positional table identity
// (0-based join order) that opponents see.
type Player struct {
	ID       string
	PublicID int
	Name     string
	Coins    int
	Hand     []engine.Card
}

// NewPlayer seats a player with the starting coin balance and an empty hand.
func NewPlayer(id string, publicID int, name string) *Player {
	return &Player{
		ID:       id,
		PublicID: publicID,
		Name:     name,
		Coins:    engine.StartingCoins,
	}
}

// HasCard reports whether the player holds the given card.
func (p *Player) HasCard(c engine.Card) bool {
	for _, h := range p.Hand {
		if h == c {
			return true
		}
	}
	return false
}

// RemoveCard takes one copy of the card out of the hand. Returns false if
// the player does not hold it.
func (p *Player) RemoveCard(c engine.Card) bool {
	for i, h := range p.Hand {
		if h == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// AddCard puts a card into the hand.
func (p *Player) AddCard(c engine.Card) {
	p.Hand = append(p.Hand, c)
}

// HandKeys returns the hand as compact card keys for the wire.
func (p *Player) HandKeys() []string {
	keys := make([]string, len(p.Hand))
	for i, c := range p.Hand {
		keys[i] = c.Key()
	}
	return keys
}
