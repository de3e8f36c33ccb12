package engine

import "fmt"

// Vec2 is a tile coordinate on the board. Comparable, so it can key maps.
type Vec2 struct {
	X int
	Y int
}

// Key returns the compact string encoding "x,y" used on the wire and in
// persisted state.
func (v Vec2) Key() string {
	return fmt.Sprintf("%d,%d", v.X, v.Y)
}

// VecFromKey parses the compact "x,y" encoding.
func VecFromKey(key string) (Vec2, error) {
	x, y, ok := splitPair(key)
	if !ok {
		return Vec2{}, fmt.Errorf("bad tile key %q", key)
	}
	return Vec2{X: x, Y: y}, nil
}

// InBounds reports whether the coordinate lies on the board.
func (v Vec2) InBounds() bool {
	return v.X >= 0 && v.X < BoardSize && v.Y >= 0 && v.Y < BoardSize
}

// WithinSquare reports whether dest lies inside the axis-aligned square of
// the given radius centered on v (Chebyshev distance).
func (v Vec2) WithinSquare(dest Vec2, radius int) bool {
	return abs(dest.X-v.X) <= radius && abs(dest.Y-v.Y) <= radius
}

// Square returns every in-bounds coordinate within the given radius of v,
// including v itself.
func (v Vec2) Square(radius int) []Vec2 {
	out := make([]Vec2, 0, (2*radius+1)*(2*radius+1))
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			c := Vec2{X: v.X + dx, Y: v.Y + dy}
			if c.InBounds() {
				out = append(out, c)
			}
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
