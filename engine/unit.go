package engine

import "sort"

// Unit is one placed stack of cards belonging to a single player on a
// single tile. Unit ids are assigned by the owning Board and increase
// monotonically; they are stable across serialization.
type Unit struct {
	ID     int
	Stack  []Card
	FaceUp bool
}

// NewUnit creates a unit containing a single card.
func NewUnit(id int, card Card) *Unit {
	return &Unit{ID: id, Stack: []Card{card}}
}

// AddToStack absorbs a card into the unit, keeping the stack rank-sorted.
func (u *Unit) AddToStack(card Card) {
	u.Stack = append(u.Stack, card)
	sort.Slice(u.Stack, func(i, j int) bool {
		return u.Stack[i].Rank() < u.Stack[j].Rank()
	})
}

// Mods returns the cards in the stack that act as modifiers for the scope.
func (u *Unit) Mods(scope ModScope) []Card {
	var mods []Card
	for _, c := range u.Stack {
		if c.InScope(scope) {
			mods = append(mods, c)
		}
	}
	return mods
}

// HasRank reports whether any card of the given rank is in the stack.
func (u *Unit) HasRank(rank uint8) bool {
	for _, c := range u.Stack {
		if c.Rank() == rank {
			return true
		}
	}
	return false
}

// Movable reports whether the unit may move at all. A King in the stack
// anchors the unit in place.
func (u *Unit) Movable() bool {
	return !u.HasRank(RankKing)
}

// MoveRadius returns the unit's movement radius: AceMove with an Ace in
// the stack, RegMove otherwise. Zero for an anchored unit.
func (u *Unit) MoveRadius() int {
	if !u.Movable() {
		return 0
	}
	if u.HasRank(RankAce) {
		return AceMove
	}
	return RegMove
}

// Flip turns the unit face-up. Flipping is one-way.
func (u *Unit) Flip() {
	u.FaceUp = true
}
