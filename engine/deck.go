package engine

// Deck is a closed 52-card multiset split between a draw pile and a
// discard pile. Cards leave only into hands and onto the board; nothing
// is fabricated. Draws refill from the discard pile when the draw pile
// runs dry.
type Deck struct {
	Draw    []Card
	Discard []Card

	// rng is an xorshift64 state, persisted so a rehydrated deck shuffles
	// refills the same way the original would have.
	rng uint64
}

// NewDeck builds the full 4-suit x 13-rank deck and shuffles it with the
// given seed.
func NewDeck(seed uint64) *Deck {
	d := &Deck{
		Draw: make([]Card, 0, NumSuits*NumRanks),
		rng:  seed,
	}
	if d.rng == 0 {
		d.rng = 1 // xorshift can't start at 0
	}
	for suit := uint8(0); suit < NumSuits; suit++ {
		for rank := RankAce; rank <= RankKing; rank++ {
			d.Draw = append(d.Draw, NewCard(suit, rank))
		}
	}
	d.shuffle()
	return d
}

func (d *Deck) nextRand() uint64 {
	x := d.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	d.rng = x
	return x
}

// shuffle performs a Fisher-Yates shuffle of the draw pile.
func (d *Deck) shuffle() {
	for i := len(d.Draw) - 1; i > 0; i-- {
		j := int(d.nextRand() % uint64(i+1))
		d.Draw[i], d.Draw[j] = d.Draw[j], d.Draw[i]
	}
}

// DrawOne removes and returns the top card. When the draw pile is empty
// the discard pile is shuffled back in first. Returns false only when
// both piles are empty.
func (d *Deck) DrawOne() (Card, bool) {
	if len(d.Draw) == 0 {
		if len(d.Discard) == 0 {
			return EmptyCard, false
		}
		d.Draw = d.Discard
		d.Discard = nil
		d.shuffle()
	}
	c := d.Draw[0]
	d.Draw = d.Draw[1:]
	return c, true
}

// Deal draws up to count cards.
func (d *Deck) Deal(count int) []Card {
	out := make([]Card, 0, count)
	for i := 0; i < count; i++ {
		c, ok := d.DrawOne()
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

// ToDiscard places a card on the discard pile.
func (d *Deck) ToDiscard(c Card) {
	d.Discard = append(d.Discard, c)
}

// Seed exposes the RNG state for serialization.
func (d *Deck) Seed() uint64 { return d.rng }

// SetSeed restores the RNG state during rehydration.
func (d *Deck) SetSeed(s uint64) {
	d.rng = s
	if d.rng == 0 {
		d.rng = 1
	}
}
