// Package render draws the particle cloud of a running simulation onto a
// terminal.
package render

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/quadgrav/geom"
)

// Rasterize bins the points in xs which lie inside bounds onto a w x h grid
// of cells and writes the per-cell counts into counts, which must have length
// w*h. Rows run from the top of bounds (row 0) to the bottom. Returns the
// number of points which landed on the grid.
func Rasterize(xs []mgl64.Vec2, bounds geom.Rect, w, h int, counts []int) int {
	if len(counts) != w*h {
		panic(fmt.Sprintf(
			"Count buffer has length %d, but the grid is %d x %d.",
			len(counts), w, h,
		))
	}
	for i := range counts {
		counts[i] = 0
	}
	if w == 0 || h == 0 {
		return 0
	}

	dx, dy := float64(w)/bounds.Width(), float64(h)/bounds.Height()
	n := 0
	for _, x := range xs {
		if !bounds.Contains(x) {
			continue
		}

		col := cell(x.X()-bounds.X0, dx, w)
		row := cell(bounds.Y1-x.Y(), dy, h)
		counts[row*w+col]++
		n++
	}
	return n
}

// cell returns the index of the bin containing offset, where points on the
// far edge fall into the last bin.
func cell(offset, scale float64, n int) int {
	i := int(math.Floor(offset * scale))
	if i >= n {
		i = n - 1
	} else if i < 0 {
		i = 0
	}
	return i
}

// MaxCount returns the largest value in counts.
func MaxCount(counts []int) int {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}

// Level maps a cell count onto [0, levels) logarithmically, where only empty
// cells are level 0 and the fullest cell is level levels-1.
func Level(count, max, levels int) int {
	if count <= 0 || max <= 0 {
		return 0
	} else if levels <= 2 || max == 1 {
		return levels - 1
	}

	f := math.Log(float64(count)) / math.Log(float64(max))
	lvl := 1 + int(math.Round(f*float64(levels-2)))
	if lvl > levels-1 {
		lvl = levels - 1
	}
	return lvl
}
