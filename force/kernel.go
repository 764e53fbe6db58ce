// Package force computes softened gravitational accelerations for a set of
// particles from an aggregation tree.
package force

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/quadgrav/tree"
)

// Mode selects how contributions to a particle's acceleration are gathered.
type Mode int

const (
	// BarnesHut walks the tree once per particle and accepts a subdivided
	// node as a single point mass when its width over its distance is below
	// Theta. Every particle's mass is counted exactly once per query.
	BarnesHut Mode = iota
	// Summary sums over the flat summary list of every nonzero node. Mass
	// is counted once per tree level, so this is a cruder field model kept
	// for comparison against older runs.
	Summary
	// Direct sums over every particle pair.
	Direct
	EndMode
)

var modeNames = [EndMode]string{"BarnesHut", "Summary", "Direct"}

func (m Mode) String() string {
	if m < 0 || m >= EndMode {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode returns the Mode with the given (case-insensitive) name.
func ParseMode(name string) (Mode, error) {
	var m Mode
	for m = 0; m < EndMode; m++ {
		if strings.ToLower(m.String()) == strings.ToLower(strings.TrimSpace(name)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf(
		"Force mode '%s' not recognized. Must be one of [%s].",
		name, strings.Join(modeNames[:], " | "),
	)
}

// Kernel evaluates accelerations. A Kernel holds per-worker scratch space, so
// Accelerations must not be called concurrently on the same Kernel.
type Kernel struct {
	G         float64
	Softening float64
	// Mass is the uniform particle mass, used by Direct.
	Mass  float64
	Mode  Mode
	Theta float64
	// Workers is the number of goroutines used. Values below one use one
	// worker per CPU.
	Workers int

	workspaces []workspace
}

type workspace struct {
	stack     []int32
	low, high int
}

// Input bundles the per-step, read-only data an evaluation may need. Tree is
// used by BarnesHut, List by Summary and Xs by Direct. Skip marks particles
// which receive no acceleration and, for Direct, exert none.
type Input struct {
	Tree *tree.Tree
	List []tree.Summary
	Xs   []mgl64.Vec2
	Skip []bool
}

func (k *Kernel) workers(n int) int {
	w := k.Workers
	if w < 1 {
		w = runtime.NumCPU()
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Accelerations writes the acceleration of every particle in in.Xs into acc.
// Particles are split into contiguous chunks, one per worker. Each particle's
// sum is accumulated in the same order regardless of the worker count.
func (k *Kernel) Accelerations(in *Input, acc []mgl64.Vec2) {
	if len(acc) != len(in.Xs) {
		panic(fmt.Sprintf(
			"Acceleration buffer has length %d, but there are %d particles.",
			len(acc), len(in.Xs),
		))
	}

	n := len(in.Xs)
	workers := k.workers(n)
	if len(k.workspaces) < workers {
		k.workspaces = make([]workspace, workers)
	}
	for id := 0; id < workers; id++ {
		k.workspaces[id].low = id * n / workers
		k.workspaces[id].high = (id + 1) * n / workers
	}

	out := make(chan int, workers)
	for id := 0; id < workers-1; id++ {
		go k.chanAccelerate(id, in, acc, out)
	}
	k.chanAccelerate(workers-1, in, acc, out)

	for i := 0; i < workers; i++ {
		<-out
	}
}

func (k *Kernel) chanAccelerate(
	id int, in *Input, acc []mgl64.Vec2, out chan<- int,
) {
	w := &k.workspaces[id]
	for i := w.low; i < w.high; i++ {
		if in.Skip != nil && in.Skip[i] {
			acc[i] = mgl64.Vec2{}
			continue
		}

		switch k.Mode {
		case BarnesHut:
			acc[i] = k.walk(in.Tree, in.Xs[i], w)
		case Summary:
			acc[i] = k.sumList(in.List, in.Xs[i])
		case Direct:
			acc[i] = k.sumDirect(in.Xs, in.Skip, in.Xs[i])
		default:
			panic("Impossible")
		}
	}
	out <- id
}

// Acceleration returns the acceleration of a single particle at p. It uses
// the calling goroutine only.
func (k *Kernel) Acceleration(in *Input, p mgl64.Vec2) mgl64.Vec2 {
	switch k.Mode {
	case BarnesHut:
		return k.walk(in.Tree, p, &workspace{})
	case Summary:
		return k.sumList(in.List, p)
	case Direct:
		return k.sumDirect(in.Xs, in.Skip, p)
	}
	panic("Impossible")
}

// accumulate adds the softened contribution of mass m at c to the
// acceleration (ax, ay) of a particle at p. A particle contributes nothing to
// itself, since d is zero.
func (k *Kernel) accumulate(
	ax, ay float64, p, c mgl64.Vec2, m float64,
) (float64, float64) {
	dx, dy := c[0]-p[0], c[1]-p[1]
	d2 := dx*dx + dy*dy + k.Softening
	f := k.G * m / (d2 * math.Sqrt(d2))
	return ax + f*dx, ay + f*dy
}

func (k *Kernel) walk(t *tree.Tree, p mgl64.Vec2, w *workspace) mgl64.Vec2 {
	ax, ay := 0.0, 0.0
	theta2 := k.Theta * k.Theta

	w.stack = append(w.stack[:0], tree.Root)
	for len(w.stack) > 0 {
		i := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		n := t.Node(i)
		if n.Mass == 0 {
			continue
		}

		if first, ok := n.Children(); ok {
			width := n.Bounds.MaxWidth()
			dx, dy := n.COM[0]-p[0], n.COM[1]-p[1]
			if width*width >= theta2*(dx*dx+dy*dy) {
				w.stack = append(w.stack, first+3, first+2, first+1, first)
				continue
			}
		}

		ax, ay = k.accumulate(ax, ay, p, n.COM, n.Mass)
	}

	return mgl64.Vec2{ax, ay}
}

func (k *Kernel) sumList(list []tree.Summary, p mgl64.Vec2) mgl64.Vec2 {
	ax, ay := 0.0, 0.0
	for j := range list {
		ax, ay = k.accumulate(ax, ay, p, list[j].COM, list[j].Mass)
	}
	return mgl64.Vec2{ax, ay}
}

func (k *Kernel) sumDirect(xs []mgl64.Vec2, skip []bool, p mgl64.Vec2) mgl64.Vec2 {
	ax, ay := 0.0, 0.0
	for j := range xs {
		if skip != nil && skip[j] {
			continue
		}
		ax, ay = k.accumulate(ax, ay, p, xs[j], k.Mass)
	}
	return mgl64.Vec2{ax, ay}
}
