package io

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/table"
)

// ReadInitialConditions reads a whitespace-separated text table whose first
// four columns are x, y, vx, and vy.
func ReadInitialConditions(fname string) (xs, vs []mgl64.Vec2, err error) {
	cols, err := table.ReadTable(fname, []int{0, 1, 2, 3}, nil)
	if err != nil {
		return nil, nil, err
	}

	x, y, vx, vy := cols[0], cols[1], cols[2], cols[3]
	if len(x) == 0 {
		return nil, nil, fmt.Errorf("Initial conditions file %s is empty.", fname)
	}

	xs, vs = make([]mgl64.Vec2, len(x)), make([]mgl64.Vec2, len(x))
	for i := range xs {
		xs[i] = mgl64.Vec2{x[i], y[i]}
		vs[i] = mgl64.Vec2{vx[i], vy[i]}
		if !finite(x[i], y[i], vx[i], vy[i]) {
			return nil, nil, fmt.Errorf(
				"Line %d of %s has a non-finite value.", i+1, fname,
			)
		}
	}
	return xs, vs, nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// WriteInitialConditions writes xs and vs as a text table which can be read
// by ReadInitialConditions.
func WriteInitialConditions(fname string, xs, vs []mgl64.Vec2) error {
	if len(xs) != len(vs) {
		return fmt.Errorf(
			"Position buffer has length %d, but velocity buffer has length %d.",
			len(xs), len(vs),
		)
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i := range xs {
		_, err = fmt.Fprintf(
			w, "%.17g %.17g %.17g %.17g\n",
			xs[i].X(), xs[i].Y(), vs[i].X(), vs[i].Y(),
		)
		if err != nil {
			f.Close()
			return fmt.Errorf("Could not write %s: %w", fname, err)
		}
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("Could not write %s: %w", fname, err)
	}
	return f.Close()
}

// Galaxy generates a rotating disk of n particles with the given radius.
// Particles are uniform in area and move tangentially, counter-clockwise,
// with the given speed. A particle placed exactly at the origin is at rest.
func Galaxy(n int, radius, speed float64, seed int64) (xs, vs []mgl64.Vec2) {
	gen := rand.New(rand.NewSource(seed))
	xs, vs = make([]mgl64.Vec2, n), make([]mgl64.Vec2, n)

	for i := range xs {
		r := math.Sqrt(gen.Float64()) * radius
		phi := gen.Float64() * 2 * math.Pi
		xs[i] = mgl64.Vec2{r * math.Cos(phi), r * math.Sin(phi)}

		t := mgl64.Vec2{-xs[i].Y(), xs[i].X()}
		if l := t.Len(); l > 0 {
			vs[i] = t.Mul(speed / l)
		}
	}
	return xs, vs
}
