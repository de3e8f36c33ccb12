package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardKeyRoundTrip(t *testing.T) {
	for suit := uint8(0); suit < NumSuits; suit++ {
		for rank := RankAce; rank <= RankKing; rank++ {
			c := NewCard(suit, rank)
			got, err := CardFromKey(c.Key())
			require.NoError(t, err)
			assert.Equal(t, c, got)
			assert.Equal(t, suit, got.Suit())
			assert.Equal(t, rank, got.Rank())
		}
	}
}

func TestCardFromKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "3", "a,b", "4,1", "0,0", "0,14", "-1,5"} {
		_, err := CardFromKey(key)
		assert.Error(t, err, "key %q should not parse", key)
	}
}

func TestModScopes(t *testing.T) {
	ace := NewCard(SuitRed, RankAce)
	king := NewCard(SuitGreen, RankKing)
	jack := NewCard(SuitBlack, RankJack)
	queen := NewCard(SuitBlue, RankQueen)
	seven := NewCard(SuitRed, 7)

	assert.True(t, ace.InScope(ScopeMove))
	assert.True(t, king.InScope(ScopeMove))
	assert.False(t, jack.InScope(ScopeMove))

	assert.True(t, jack.InScope(ScopeCombat))
	assert.True(t, queen.InScope(ScopeCombat))
	assert.False(t, king.InScope(ScopeCombat))

	assert.True(t, king.InScope(ScopeIncome))
	assert.False(t, ace.InScope(ScopeIncome))
	assert.False(t, seven.InScope(ScopeMove))
}

func TestVecKeyRoundTrip(t *testing.T) {
	v := Vec2{X: 4, Y: 8}
	got, err := VecFromKey(v.Key())
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = VecFromKey("nonsense")
	assert.Error(t, err)
}

func TestVecSquareClipsToBoard(t *testing.T) {
	corner := Vec2{X: 0, Y: 0}
	sq := corner.Square(1)
	assert.Len(t, sq, 4) // (0,0) (0,1) (1,0) (1,1)

	center := Vec2{X: 4, Y: 4}
	assert.Len(t, center.Square(1), 9)
	assert.Len(t, center.Square(2), 25)
}

func TestWithinSquareIsChebyshev(t *testing.T) {
	v := Vec2{X: 4, Y: 4}
	assert.True(t, v.WithinSquare(Vec2{X: 5, Y: 5}, 1))
	assert.True(t, v.WithinSquare(Vec2{X: 3, Y: 5}, 1))
	assert.False(t, v.WithinSquare(Vec2{X: 6, Y: 4}, 1))
	assert.True(t, v.WithinSquare(Vec2{X: 6, Y: 2}, 2))
}
