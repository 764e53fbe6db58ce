package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Quadrant indices. Bit 0 is set for the eastern half of a Rect and bit 1 is
// set for the southern half, so children are always ordered NW, NE, SW, SE.
const (
	NW = iota
	NE
	SW
	SE

	QuadrantCount
)

// Rect is an axis-aligned rectangle spanning [X0, X1] x [Y0, Y1].
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Square returns a square of the given width centered on the origin.
func Square(width float64) Rect {
	h := width / 2
	return Rect{-h, -h, h, h}
}

// Width returns the extent of the Rect along the x axis.
func (r *Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the extent of the Rect along the y axis.
func (r *Rect) Height() float64 { return r.Y1 - r.Y0 }

// MaxWidth returns the larger of Width and Height.
func (r *Rect) MaxWidth() float64 {
	return math.Max(r.Width(), r.Height())
}

// Mid returns the center of the Rect.
func (r *Rect) Mid() mgl64.Vec2 {
	return mgl64.Vec2{(r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2}
}

// Contains returns true if p lies inside the closed Rect.
func (r *Rect) Contains(p mgl64.Vec2) bool {
	return p[0] >= r.X0 && p[0] <= r.X1 && p[1] >= r.Y0 && p[1] <= r.Y1
}

// Quadrant returns the index of the child quadrant which p should be routed
// to. Points on the midlines are routed east and north.
func (r *Rect) Quadrant(p mgl64.Vec2) int {
	mid := r.Mid()
	q := 0
	if p[0] >= mid[0] {
		q |= 1
	}
	if p[1] < mid[1] {
		q |= 2
	}
	return q
}

// Child returns the sub-rectangle covering quadrant q.
func (r *Rect) Child(q int) Rect {
	mid := r.Mid()
	c := *r
	if q&1 == 0 {
		c.X1 = mid[0]
	} else {
		c.X0 = mid[0]
	}
	if q&2 == 0 {
		c.Y0 = mid[1]
	} else {
		c.Y1 = mid[1]
	}
	return c
}

// Finite returns true if neither component of p is NaN or infinite.
func Finite(p mgl64.Vec2) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
		!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}
