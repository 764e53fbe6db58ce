package quadgrav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Momentum returns the total momentum of the live particles in the active
// generation.
func (sim *Simulation) Momentum() mgl64.Vec2 {
	vs, excluded := sim.Velocities(), sim.Excluded()
	p := mgl64.Vec2{}
	for i := range vs {
		if !excluded[i] {
			p = p.Add(vs[i])
		}
	}
	return p.Mul(sim.cfg.Mass)
}

// KineticEnergy returns the total kinetic energy of the live particles.
func (sim *Simulation) KineticEnergy() float64 {
	vs, excluded := sim.Velocities(), sim.Excluded()
	sum := 0.0
	for i := range vs {
		if !excluded[i] {
			sum += vs[i].Dot(vs[i])
		}
	}
	return 0.5 * sim.cfg.Mass * sum
}

// PotentialEnergy returns the softened pairwise potential energy of the live
// particles. It is O(N^2) and meant for diagnostics of small runs.
func (sim *Simulation) PotentialEnergy() float64 {
	xs, excluded := sim.Positions(), sim.Excluded()
	m, eps := sim.cfg.Mass, sim.cfg.Softening

	sum := 0.0
	for i := range xs {
		if excluded[i] {
			continue
		}
		for j := i + 1; j < len(xs); j++ {
			if excluded[j] {
				continue
			}
			d := xs[j].Sub(xs[i])
			sum -= m * m / math.Sqrt(d.Dot(d)+eps)
		}
	}
	return sim.cfg.G * sum
}

// CenterOfMass returns the center of mass of the live particles. It is the
// origin if every particle has been excluded.
func (sim *Simulation) CenterOfMass() mgl64.Vec2 {
	xs, excluded := sim.Positions(), sim.Excluded()
	com, n := mgl64.Vec2{}, 0
	for i := range xs {
		if !excluded[i] {
			com = com.Add(xs[i])
			n++
		}
	}
	if n == 0 {
		return mgl64.Vec2{}
	}
	return com.Mul(1 / float64(n))
}
