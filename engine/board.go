package engine

import (
	"errors"
	"sort"
)

// Rejection errors. None of these mutate state.
var (
	ErrOutOfBounds   = errors.New("tile out of bounds")
	ErrTileFull      = errors.New("tile cannot accept another unit")
	ErrIllegalMove   = errors.New("illegal move geometry")
	ErrNotAdjacent   = errors.New("tile not adjacent to owned territory")
	ErrUnitNotFound  = errors.New("unit not found")
	ErrUnitAnchored  = errors.New("unit cannot move")
	ErrTileContested = errors.New("tile is contested")
	ErrAlreadyFaceUp = errors.New("unit is already face up")
)

// Bases lists the four player base tiles in public-id order: player 0
// owns Bases[0] and so on.
var Bases = [PlayerCount]Vec2{
	{X: 0, Y: 0},
	{X: 0, Y: 8},
	{X: 8, Y: 0},
	{X: 8, Y: 8},
}

// Rivers lists the contested river tiles.
var Rivers = []Vec2{{X: 4, Y: 4}}

// PlaceResult reports what a successful placement did.
type PlaceResult struct {
	// Unit is the stack the card ended up in: a fresh unit, or the
	// existing one that swallowed the card.
	Unit *Unit
	// TerritoryCaptured is true when the placement transferred tile
	// ownership to the placer.
	TerritoryCaptured bool
	// Swallowed is true when the card merged into an existing face-up
	// unit instead of creating a new one.
	Swallowed bool
}

// Board is the authoritative grid state: tiles, structures, and the
// global territory map. The territory map and tile owners are kept in
// lockstep; every owned tile appears in exactly one player's set.
type Board struct {
	grid      [BoardSize][BoardSize]*Tile
	territory map[string]map[Vec2]struct{}

	// nextUnitID is the monotonically increasing id for units created on
	// this board. Persisted so rehydrated boards keep allocating fresh ids.
	nextUnitID int
}

// NewBoard builds an empty board with bases and rivers in place.
func NewBoard() *Board {
	b := &Board{
		territory:  make(map[string]map[Vec2]struct{}),
		nextUnitID: 1,
	}
	for x := 0; x < BoardSize; x++ {
		for y := 0; y < BoardSize; y++ {
			b.grid[x][y] = NewTile()
		}
	}
	for _, v := range Bases {
		b.grid[v.X][v.Y].Struct = NewBase()
	}
	for _, v := range Rivers {
		b.grid[v.X][v.Y].Struct = NewRiver()
	}
	return b
}

// Tile returns the tile at v, or nil if v is out of bounds.
func (b *Board) Tile(v Vec2) *Tile {
	if !v.InBounds() {
		return nil
	}
	return b.grid[v.X][v.Y]
}

// Territory returns playerID's owned coordinates. The returned map is the
// live set; callers must not mutate it.
func (b *Board) Territory(playerID string) map[Vec2]struct{} {
	return b.territory[playerID]
}

// SeedTerritory ensures playerID has a (possibly empty) territory set.
// Per-player maps use explicit presence, so a player must be seeded
// before any ownership bookkeeping happens on their behalf.
func (b *Board) SeedTerritory(playerID string) {
	if _, ok := b.territory[playerID]; !ok {
		b.territory[playerID] = make(map[Vec2]struct{})
	}
}

// NextUnitID exposes the id counter for serialization.
func (b *Board) NextUnitID() int { return b.nextUnitID }

// SetNextUnitID restores the id counter during rehydration.
func (b *Board) SetNextUnitID(n int) { b.nextUnitID = n }

// RestoreOwner sets tile ownership during rehydration, keeping the
// territory index consistent with the owner field.
func (b *Board) RestoreOwner(v Vec2, playerID string) {
	if !v.InBounds() || playerID == "" {
		return
	}
	b.transferTile(v, playerID)
}

// newUnit allocates a unit id and creates the unit.
func (b *Board) newUnit(card Card) *Unit {
	u := NewUnit(b.nextUnitID, card)
	b.nextUnitID++
	return u
}

// transferTile moves tile ownership at v to playerID, updating the
// territory map of both the previous and the new owner atomically with
// the owner field.
func (b *Board) transferTile(v Vec2, playerID string) {
	tile := b.grid[v.X][v.Y]
	if tile.Owner == playerID {
		return
	}
	if tile.Owner != "" {
		delete(b.territory[tile.Owner], v)
	}
	tile.Owner = playerID
	b.SeedTerritory(playerID)
	b.territory[playerID][v] = struct{}{}
}

// IsValidPlacement reports whether playerID may place a card at v: some
// tile within RegMove of v must already be owned by them. Base capture at
// round start bypasses this via CaptureBase.
func (b *Board) IsValidPlacement(v Vec2, playerID string) bool {
	if !v.InBounds() {
		return false
	}
	for _, c := range v.Square(RegMove) {
		if b.grid[c.X][c.Y].Owner == playerID {
			return true
		}
	}
	return false
}

// PlaceCard places a card face-down at v for playerID, or swallows it
// into an existing face-up unit when the tile is solitaire for the
// player. A tile with no cards and a different owner is captured.
// Rejections happen before any mutation.
func (b *Board) PlaceCard(v Vec2, card Card, playerID string, bet int) (PlaceResult, error) {
	tile := b.Tile(v)
	if tile == nil {
		return PlaceResult{}, ErrOutOfBounds
	}
	if !b.IsValidPlacement(v, playerID) {
		return PlaceResult{}, ErrNotAdjacent
	}

	captures := tile.NoCards() && tile.Owner != playerID

	// Swallow: solitaire for this player with a face-up unit present.
	if tile.SolitaireFor(playerID) {
		if u := tile.FaceUpUnit(playerID); u != nil {
			u.AddToStack(card)
			tile.Bets[playerID] = bet
			return PlaceResult{Unit: u, Swallowed: true}, nil
		}
	}

	if !tile.CanAccept(playerID, false) {
		return PlaceResult{}, ErrTileFull
	}

	if captures {
		b.transferTile(v, playerID)
	}
	u := b.newUnit(card)
	tile.AddUnit(playerID, u)
	tile.Bets[playerID] = bet
	return PlaceResult{Unit: u, TerritoryCaptured: captures}, nil
}

// MoveUnit relocates playerID's unit from orig to dest. The origin must
// hold only that player's cards, the unit must be movable, and dest must
// lie within the unit's radius and accept its face state. Capture rules
// apply at the destination exactly as for placement.
func (b *Board) MoveUnit(orig, dest Vec2, playerID string, unitID int) (captured bool, err error) {
	origTile := b.Tile(orig)
	destTile := b.Tile(dest)
	if origTile == nil || destTile == nil {
		return false, ErrOutOfBounds
	}
	unit := origTile.Unit(playerID, unitID)
	if unit == nil {
		return false, ErrUnitNotFound
	}
	if !origTile.SolitaireFor(playerID) {
		// Units locked in combat cannot retreat.
		return false, ErrTileContested
	}
	if !unit.Movable() {
		return false, ErrUnitAnchored
	}
	if !orig.WithinSquare(dest, unit.MoveRadius()) {
		return false, ErrIllegalMove
	}
	if !destTile.CanAccept(playerID, unit.FaceUp) {
		return false, ErrTileFull
	}

	captured = destTile.NoCards() && destTile.Owner != playerID
	origTile.RemoveUnit(playerID, unitID)
	if captured {
		b.transferTile(dest, playerID)
	}
	destTile.AddUnit(playerID, unit)
	return captured, nil
}

// FlipUnit turns playerID's face-down unit at v face-up, subject to the
// tile's face-up cap.
func (b *Board) FlipUnit(playerID string, v Vec2, unitID int) error {
	tile := b.Tile(v)
	if tile == nil {
		return ErrOutOfBounds
	}
	unit := tile.Unit(playerID, unitID)
	if unit == nil {
		return ErrUnitNotFound
	}
	if unit.FaceUp {
		return ErrAlreadyFaceUp
	}
	if !tile.CanAccept(playerID, true) {
		return ErrTileFull
	}
	unit.Flip()
	return nil
}

// UpdateRivers advances each river's continuous-control counter: same
// owner as last turn increments, a new owner resets the count to 1.
// Unowned river tiles leave the counter untouched.
func (b *Board) UpdateRivers() {
	for _, v := range Rivers {
		tile := b.grid[v.X][v.Y]
		river := tile.River()
		if river == nil || tile.Owner == "" {
			continue
		}
		if river.Owner == tile.Owner {
			river.Turns++
		} else {
			river.Owner = tile.Owner
			river.Turns = 1
		}
	}
}

// CheckRiverWin returns the identity of a player who has held a river for
// RiverWinTurns consecutive turns, or "" if nobody has.
func (b *Board) CheckRiverWin() string {
	for _, v := range Rivers {
		if river := b.grid[v.X][v.Y].River(); river != nil {
			if river.Owner != "" && river.Turns >= RiverWinTurns {
				return river.Owner
			}
		}
	}
	return ""
}

// CheckBaseWin returns the identity owning every base tile, or "" if any
// base is unowned or bases disagree.
func (b *Board) CheckBaseWin() string {
	owner := ""
	for _, v := range Bases {
		tileOwner := b.grid[v.X][v.Y].Owner
		if tileOwner == "" {
			return ""
		}
		if owner == "" {
			owner = tileOwner
		} else if owner != tileOwner {
			return ""
		}
	}
	return owner
}

// CaptureBase seeds ownership of base index idx for playerID. This is the
// round-start step that bypasses the adjacency rule.
func (b *Board) CaptureBase(idx int, playerID string) {
	if idx < 0 || idx >= PlayerCount {
		return
	}
	b.transferTile(Bases[idx], playerID)
}

// CalculateIncome computes each listed player's per-round income: one
// coin per owned tile, plus a bonus for at most one King income modifier
// per player equal to the count of owned tiles within KingRadius of the
// King's tile.
func (b *Board) CalculateIncome(playerIDs []string) map[string]int {
	income := make(map[string]int, len(playerIDs))
	for _, id := range playerIDs {
		owned := b.territory[id]
		income[id] = len(owned)

		kingTile, ok := b.findKingTile(id)
		if !ok {
			continue
		}
		bonus := 0
		for _, c := range kingTile.Square(KingRadius) {
			if _, mine := owned[c]; mine {
				bonus++
			}
		}
		income[id] += bonus
	}
	return income
}

// findKingTile returns the first owned tile (in key order, for
// determinism) where playerID has a unit carrying a King income modifier.
func (b *Board) findKingTile(playerID string) (Vec2, bool) {
	owned := make([]Vec2, 0, len(b.territory[playerID]))
	for v := range b.territory[playerID] {
		owned = append(owned, v)
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].X != owned[j].X {
			return owned[i].X < owned[j].X
		}
		return owned[i].Y < owned[j].Y
	})
	for _, v := range owned {
		for _, u := range b.grid[v.X][v.Y].Units[playerID] {
			if len(u.Mods(ScopeIncome)) > 0 {
				return v, true
			}
		}
	}
	return Vec2{}, false
}

// Tiles iterates every tile with its coordinate. Used by serialization.
func (b *Board) Tiles(fn func(v Vec2, t *Tile)) {
	for x := 0; x < BoardSize; x++ {
		for y := 0; y < BoardSize; y++ {
			fn(Vec2{X: x, Y: y}, b.grid[x][y])
		}
	}
}
