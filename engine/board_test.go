package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "player-a"
	bob   = "player-b"
)

// seededBoard returns a board where alice owns her base (index 0, at 0,0)
// and bob owns his (index 1, at 0,8).
func seededBoard() *Board {
	b := NewBoard()
	b.SeedTerritory(alice)
	b.SeedTerritory(bob)
	b.CaptureBase(0, alice)
	b.CaptureBase(1, bob)
	return b
}

func card(rank uint8) Card { return NewCard(SuitRed, rank) }

func TestPlaceCardCapturesUnownedAdjacentTile(t *testing.T) {
	b := seededBoard()

	res, err := b.PlaceCard(Vec2{X: 1, Y: 1}, card(5), alice, 0)
	require.NoError(t, err)
	assert.True(t, res.TerritoryCaptured)
	assert.False(t, res.Swallowed)
	require.NotNil(t, res.Unit)
	assert.False(t, res.Unit.FaceUp)

	tile := b.Tile(Vec2{X: 1, Y: 1})
	assert.Equal(t, alice, tile.Owner)
	_, owned := b.Territory(alice)[Vec2{X: 1, Y: 1}]
	assert.True(t, owned)
}

func TestPlaceCardRejectsNonAdjacentTile(t *testing.T) {
	b := seededBoard()

	_, err := b.PlaceCard(Vec2{X: 4, Y: 4}, card(5), alice, 0)
	assert.ErrorIs(t, err, ErrNotAdjacent)

	// Rejection must not touch state.
	assert.Empty(t, b.Tile(Vec2{X: 4, Y: 4}).Units)
}

func TestPlaceCardNeverRecapturesOwnTile(t *testing.T) {
	b := seededBoard()

	res, err := b.PlaceCard(Vec2{X: 0, Y: 1}, card(3), alice, 0)
	require.NoError(t, err)
	require.True(t, res.TerritoryCaptured)

	// A second placement on the now-owned tile creates a second unit but
	// captures nothing.
	res2, err := b.PlaceCard(Vec2{X: 0, Y: 1}, card(4), alice, 0)
	require.NoError(t, err)
	assert.False(t, res2.TerritoryCaptured)
	assert.NotEqual(t, res.Unit.ID, res2.Unit.ID)
}

func TestPlaceCardSwallowsIntoFaceUpUnit(t *testing.T) {
	b := seededBoard()
	v := Vec2{X: 1, Y: 0}

	res, err := b.PlaceCard(v, card(9), alice, 0)
	require.NoError(t, err)
	require.NoError(t, b.FlipUnit(alice, v, res.Unit.ID))

	res2, err := b.PlaceCard(v, card(2), alice, 0)
	require.NoError(t, err)
	assert.True(t, res2.Swallowed)
	assert.Equal(t, res.Unit.ID, res2.Unit.ID)
	assert.Len(t, res2.Unit.Stack, 2)
	// Stack stays rank-sorted after a swallow.
	assert.Equal(t, uint8(2), res2.Unit.Stack[0].Rank())
}

func TestPlaceCardDoesNotSwallowOnContestedTile(t *testing.T) {
	b := seededBoard()
	// Give bob territory adjacent to alice's placements.
	b.transferTile(Vec2{X: 1, Y: 2}, bob)

	v := Vec2{X: 1, Y: 1}
	res, err := b.PlaceCard(v, card(9), alice, 0)
	require.NoError(t, err)
	require.NoError(t, b.FlipUnit(alice, v, res.Unit.ID))

	// Bob joins the tile: it is now contested. Alice's next card must not
	// merge into her face-up stack.
	_, err = b.PlaceCard(v, card(6), bob, 0)
	require.NoError(t, err)
	res2, err := b.PlaceCard(v, card(2), alice, 0)
	require.NoError(t, err)
	assert.False(t, res2.Swallowed)
	assert.NotEqual(t, res.Unit.ID, res2.Unit.ID)
}

func TestPlaceCardRespectsFaceDownCap(t *testing.T) {
	b := seededBoard()
	v := Vec2{X: 1, Y: 1}

	for i := 0; i < TileFaceDownLimit; i++ {
		_, err := b.PlaceCard(v, card(uint8(i+2)), alice, 0)
		require.NoError(t, err)
	}
	_, err := b.PlaceCard(v, card(9), alice, 0)
	assert.ErrorIs(t, err, ErrTileFull)
}

func TestSolitaireAndContestedAreExclusive(t *testing.T) {
	b := seededBoard()
	b.transferTile(Vec2{X: 1, Y: 2}, bob)
	v := Vec2{X: 1, Y: 1}

	tile := b.Tile(v)
	assert.False(t, tile.SolitaireFor(alice))
	assert.False(t, tile.Contested())

	_, err := b.PlaceCard(v, card(5), alice, 0)
	require.NoError(t, err)
	assert.True(t, tile.SolitaireFor(alice))
	assert.False(t, tile.Contested())

	_, err = b.PlaceCard(v, card(6), bob, 0)
	require.NoError(t, err)
	assert.False(t, tile.SolitaireFor(alice))
	assert.False(t, tile.SolitaireFor(bob))
	assert.True(t, tile.Contested())
}

func TestMoveUnitDefaultRadius(t *testing.T) {
	b := seededBoard()
	orig := Vec2{X: 1, Y: 1}
	res, err := b.PlaceCard(orig, card(5), alice, 0)
	require.NoError(t, err)

	_, err = b.MoveUnit(orig, Vec2{X: 3, Y: 3}, alice, res.Unit.ID)
	assert.ErrorIs(t, err, ErrIllegalMove)

	captured, err := b.MoveUnit(orig, Vec2{X: 2, Y: 2}, alice, res.Unit.ID)
	require.NoError(t, err)
	assert.True(t, captured)
	assert.Nil(t, b.Tile(orig).Unit(alice, res.Unit.ID))
	assert.NotNil(t, b.Tile(Vec2{X: 2, Y: 2}).Unit(alice, res.Unit.ID))
}

func TestMoveUnitAceExtendsRadius(t *testing.T) {
	b := seededBoard()
	orig := Vec2{X: 1, Y: 1}
	res, err := b.PlaceCard(orig, card(RankAce), alice, 0)
	require.NoError(t, err)

	captured, err := b.MoveUnit(orig, Vec2{X: 3, Y: 3}, alice, res.Unit.ID)
	require.NoError(t, err)
	assert.True(t, captured)
}

func TestMoveUnitKingNeverMoves(t *testing.T) {
	b := seededBoard()
	orig := Vec2{X: 1, Y: 1}
	res, err := b.PlaceCard(orig, card(RankKing), alice, 0)
	require.NoError(t, err)

	for _, dest := range []Vec2{{X: 1, Y: 2}, {X: 2, Y: 2}, {X: 0, Y: 1}} {
		_, err := b.MoveUnit(orig, dest, alice, res.Unit.ID)
		assert.ErrorIs(t, err, ErrUnitAnchored)
	}
}

func TestMoveUnitBlockedFromContestedTile(t *testing.T) {
	b := seededBoard()
	b.transferTile(Vec2{X: 1, Y: 2}, bob)
	v := Vec2{X: 1, Y: 1}

	res, err := b.PlaceCard(v, card(5), alice, 0)
	require.NoError(t, err)
	_, err = b.PlaceCard(v, card(6), bob, 0)
	require.NoError(t, err)

	_, err = b.MoveUnit(v, Vec2{X: 2, Y: 1}, alice, res.Unit.ID)
	assert.ErrorIs(t, err, ErrTileContested)
}

func TestRecaptureAfterUnitLeaves(t *testing.T) {
	b := seededBoard()
	b.transferTile(Vec2{X: 1, Y: 2}, bob)
	v := Vec2{X: 1, Y: 1}

	res, err := b.PlaceCard(v, card(5), alice, 0)
	require.NoError(t, err)
	require.True(t, res.TerritoryCaptured)

	// Alice's unit moves away, leaving her tile cardless; bob recaptures.
	_, err = b.MoveUnit(v, Vec2{X: 2, Y: 1}, alice, res.Unit.ID)
	require.NoError(t, err)

	res2, err := b.PlaceCard(v, card(6), bob, 0)
	require.NoError(t, err)
	assert.True(t, res2.TerritoryCaptured)
	assert.Equal(t, bob, b.Tile(v).Owner)
	_, aliceOwns := b.Territory(alice)[v]
	assert.False(t, aliceOwns)
}

func TestFlipUnitRespectsFaceUpCap(t *testing.T) {
	b := seededBoard()
	v := Vec2{X: 1, Y: 1}

	var ids []int
	for i := 0; i < TileFaceDownLimit; i++ {
		res, err := b.PlaceCard(v, card(uint8(i+2)), alice, 0)
		require.NoError(t, err)
		ids = append(ids, res.Unit.ID)
	}
	for i := 0; i < TileFaceUpLimit; i++ {
		require.NoError(t, b.FlipUnit(alice, v, ids[i]))
	}
	if TileFaceDownLimit > TileFaceUpLimit {
		err := b.FlipUnit(alice, v, ids[TileFaceUpLimit])
		assert.ErrorIs(t, err, ErrTileFull)
	}

	err := b.FlipUnit(alice, v, ids[0])
	assert.ErrorIs(t, err, ErrAlreadyFaceUp)
}

func TestUpdateRiversCountsContinuousControl(t *testing.T) {
	b := seededBoard()
	river := b.Tile(Rivers[0]).River()
	require.NotNil(t, river)

	// Unowned river: counter untouched.
	b.UpdateRivers()
	assert.Equal(t, 0, river.Turns)

	b.transferTile(Rivers[0], alice)
	for i := 1; i < RiverWinTurns; i++ {
		b.UpdateRivers()
		assert.Equal(t, i, river.Turns)
		assert.Equal(t, "", b.CheckRiverWin())
	}
	b.UpdateRivers()
	assert.Equal(t, alice, b.CheckRiverWin())
}

func TestRiverOwnershipInterruptResetsCounter(t *testing.T) {
	b := seededBoard()
	river := b.Tile(Rivers[0]).River()

	b.transferTile(Rivers[0], alice)
	for i := 0; i < 5; i++ {
		b.UpdateRivers()
	}
	assert.Equal(t, 5, river.Turns)

	b.transferTile(Rivers[0], bob)
	b.UpdateRivers()
	assert.Equal(t, bob, river.Owner)
	assert.Equal(t, 1, river.Turns)
}

func TestCheckBaseWinRequiresAllFourBases(t *testing.T) {
	b := NewBoard()
	b.SeedTerritory(alice)
	b.SeedTerritory(bob)

	assert.Equal(t, "", b.CheckBaseWin())

	for i := 0; i < PlayerCount-1; i++ {
		b.CaptureBase(i, alice)
	}
	// One base still unowned: no winner.
	assert.Equal(t, "", b.CheckBaseWin())

	b.CaptureBase(PlayerCount-1, bob)
	// Mismatch: no winner.
	assert.Equal(t, "", b.CheckBaseWin())

	b.CaptureBase(PlayerCount-1, alice)
	assert.Equal(t, alice, b.CheckBaseWin())
}

func TestCalculateIncomeTerritorySize(t *testing.T) {
	b := seededBoard()
	_, err := b.PlaceCard(Vec2{X: 1, Y: 1}, card(5), alice, 0)
	require.NoError(t, err)

	income := b.CalculateIncome([]string{alice, bob})
	assert.Equal(t, 2, income[alice]) // base + captured tile
	assert.Equal(t, 1, income[bob])   // base only
}

func TestCalculateIncomeKingBonusCountsNearbyTerritory(t *testing.T) {
	b := seededBoard()

	// Build a cluster around (2,2) and put a King there.
	cluster := []Vec2{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 2, Y: 1}}
	for _, v := range cluster {
		_, err := b.PlaceCard(v, card(5), alice, 0)
		require.NoError(t, err)
	}
	_, err := b.PlaceCard(Vec2{X: 2, Y: 2}, card(RankKing), alice, 0)
	require.NoError(t, err)

	income := b.CalculateIncome([]string{alice})
	// Territory: base + 4 cluster tiles = 5. Of those, the 4 cluster
	// tiles lie within KingRadius of (2,2); the base at (0,0) does too.
	assert.Equal(t, 5+5, income[alice])
}

func TestCalculateIncomeCountsAtMostOneKing(t *testing.T) {
	b := seededBoard()
	cluster := []Vec2{{X: 1, Y: 1}, {X: 2, Y: 2}}
	for _, v := range cluster {
		_, err := b.PlaceCard(v, card(RankKing), alice, 0)
		require.NoError(t, err)
	}

	income := b.CalculateIncome([]string{alice})
	// Territory is 3 (base + 2). Only the first King tile (1,1) counts;
	// all 3 owned tiles lie within radius 2 of it.
	assert.Equal(t, 3+3, income[alice])
}

func TestUnitIDsAreMonotonic(t *testing.T) {
	b := seededBoard()
	res1, err := b.PlaceCard(Vec2{X: 1, Y: 0}, card(2), alice, 0)
	require.NoError(t, err)
	res2, err := b.PlaceCard(Vec2{X: 0, Y: 1}, card(3), alice, 0)
	require.NoError(t, err)
	assert.Greater(t, res2.Unit.ID, res1.Unit.ID)
}
