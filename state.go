package quadgrav

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/quadgrav/geom"
)

// State holds two generations of particle positions and velocities. One
// generation is active and may be read by anyone; the other is written by the
// Simulation during a step and published by Swap.
type State struct {
	xs, vs [2][]mgl64.Vec2
	active atomic.Int32

	// excluded marks particles which have been removed from the dynamics
	// after becoming non-finite. Only the stepping goroutine may touch it.
	excluded []bool
}

// NewState copies xs and vs into generation A, which starts out active.
func NewState(xs, vs []mgl64.Vec2) (*State, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("Cannot create a State with no particles.")
	} else if len(xs) != len(vs) {
		return nil, fmt.Errorf(
			"Position buffer has length %d, but velocity buffer has length %d.",
			len(xs), len(vs),
		)
	}

	for i := range xs {
		if !geom.Finite(xs[i]) || !geom.Finite(vs[i]) {
			return nil, fmt.Errorf(
				"Particle %d has non-finite initial state x = %v, v = %v.",
				i, xs[i], vs[i],
			)
		}
	}

	s := &State{}
	for gen := 0; gen < 2; gen++ {
		s.xs[gen] = make([]mgl64.Vec2, len(xs))
		s.vs[gen] = make([]mgl64.Vec2, len(vs))
	}
	copy(s.xs[0], xs)
	copy(s.vs[0], vs)
	s.excluded = make([]bool, len(xs))

	return s, nil
}

// Len returns the number of particles.
func (s *State) Len() int { return len(s.excluded) }

// Active returns the index of the active generation: 0 for A, 1 for B.
func (s *State) Active() int { return int(s.active.Load()) }

// Positions returns the active generation's positions.
func (s *State) Positions() []mgl64.Vec2 { return s.xs[s.active.Load()] }

// Velocities returns the active generation's velocities.
func (s *State) Velocities() []mgl64.Vec2 { return s.vs[s.active.Load()] }

// Excluded returns the per-particle exclusion flags.
func (s *State) Excluded() []bool { return s.excluded }

// inactive returns the generation which the next step writes into.
func (s *State) inactive() (xs, vs []mgl64.Vec2) {
	gen := 1 - s.active.Load()
	return s.xs[gen], s.vs[gen]
}

// Swap makes the inactive generation active.
func (s *State) Swap() {
	s.active.Store(1 - s.active.Load())
}
