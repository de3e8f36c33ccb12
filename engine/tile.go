package engine

// StructureType discriminates the closed set of tile structures.
type StructureType uint8

const (
	StructureBase StructureType = iota
	StructureRiver
)

// Default structure defense values.
const (
	BaseDef  = 15
	RiverDef = 10
)

// Structure is a tagged variant: a Base or a River. River fields are
// meaningful only when Type == StructureRiver.
type Structure struct {
	Type StructureType
	Def  int

	// River state: the identity controlling the river, the count of
	// consecutive turns of that control, and the face-up card seeded onto
	// the river at round start.
	Owner string
	Turns int
	Card  Card
}

// NewBase returns a base structure.
func NewBase() *Structure {
	return &Structure{Type: StructureBase, Def: BaseDef, Card: EmptyCard}
}

// NewRiver returns a river structure with no controller yet.
func NewRiver() *Structure {
	return &Structure{Type: StructureRiver, Def: RiverDef, Card: EmptyCard}
}

// Tile is one grid cell. Per-player collections are sparse maps with
// explicit presence: a missing key means that player has nothing here.
type Tile struct {
	// Owner is the identity holding this tile's territory, or "" if the
	// tile is unowned.
	Owner string

	// Units maps player identity to that player's unit stacks on the tile.
	Units map[string][]*Unit

	// Bets maps player identity to their pending bet on this tile.
	Bets map[string]int

	// Struct is the optional structure occupying the tile.
	Struct *Structure
}

// NewTile returns an empty, unowned tile.
func NewTile() *Tile {
	return &Tile{
		Units: make(map[string][]*Unit),
		Bets:  make(map[string]int),
	}
}

// NoCards reports whether no player has any unit on the tile.
func (t *Tile) NoCards() bool {
	for _, units := range t.Units {
		if len(units) > 0 {
			return false
		}
	}
	return true
}

// SolitaireFor reports whether the tile holds units of playerID and of
// nobody else. A solitaire tile is the only place new cards can merge
// into an existing unit; a contested tile never is.
func (t *Tile) SolitaireFor(playerID string) bool {
	if len(t.Units[playerID]) == 0 {
		return false
	}
	for id, units := range t.Units {
		if id != playerID && len(units) > 0 {
			return false
		}
	}
	return true
}

// Contested reports whether units of two or more players share the tile.
func (t *Tile) Contested() bool {
	owners := 0
	for _, units := range t.Units {
		if len(units) > 0 {
			owners++
		}
	}
	return owners > 1
}

// unitCount returns playerID's unit count of the given face state.
func (t *Tile) unitCount(playerID string, faceUp bool) int {
	n := 0
	for _, u := range t.Units[playerID] {
		if u.FaceUp == faceUp {
			n++
		}
	}
	return n
}

// CanAccept reports whether playerID may add one more unit of the given
// face state. Face-up and face-down counts are capped independently.
func (t *Tile) CanAccept(playerID string, faceUp bool) bool {
	if faceUp {
		return t.unitCount(playerID, true) < TileFaceUpLimit
	}
	return t.unitCount(playerID, false) < TileFaceDownLimit
}

// Unit returns playerID's unit with the given id, or nil.
func (t *Tile) Unit(playerID string, unitID int) *Unit {
	for _, u := range t.Units[playerID] {
		if u.ID == unitID {
			return u
		}
	}
	return nil
}

// FaceUpUnit returns one of playerID's face-up units, or nil. Used for
// the swallow rule on solitaire tiles.
func (t *Tile) FaceUpUnit(playerID string) *Unit {
	for _, u := range t.Units[playerID] {
		if u.FaceUp {
			return u
		}
	}
	return nil
}

// AddUnit appends a unit to playerID's list.
func (t *Tile) AddUnit(playerID string, u *Unit) {
	t.Units[playerID] = append(t.Units[playerID], u)
}

// RemoveUnit detaches playerID's unit with the given id and returns it,
// or nil if absent.
func (t *Tile) RemoveUnit(playerID string, unitID int) *Unit {
	units := t.Units[playerID]
	for i, u := range units {
		if u.ID == unitID {
			t.Units[playerID] = append(units[:i], units[i+1:]...)
			if len(t.Units[playerID]) == 0 {
				delete(t.Units, playerID)
			}
			return u
		}
	}
	return nil
}

// River returns the tile's river structure, or nil.
func (t *Tile) River() *Structure {
	if t.Struct != nil && t.Struct.Type == StructureRiver {
		return t.Struct
	}
	return nil
}
