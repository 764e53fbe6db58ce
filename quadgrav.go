// Package quadgrav advances a 2D gravitational N-body system with a fixed
// timestep. Each step builds a quadrant aggregation tree over the active
// positions, evaluates softened accelerations from it, integrates with
// semi-implicit Euler into the inactive buffer generation, and swaps.
package quadgrav

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/quadgrav/force"
	"github.com/phil-mansfield/quadgrav/geom"
	"github.com/phil-mansfield/quadgrav/tree"
)

// NonFinitePolicy decides what happens to a particle whose integrated
// position or velocity is NaN or infinite.
type NonFinitePolicy int

const (
	// Exclude freezes the particle at its last finite state and removes it
	// from all later tree builds, force evaluations, and integration.
	Exclude NonFinitePolicy = iota
	// Clamp restores the last finite position, zeroes the velocity, and
	// keeps the particle live.
	Clamp
	EndNonFinitePolicy
)

var policyNames = [EndNonFinitePolicy]string{"Exclude", "Clamp"}

func (p NonFinitePolicy) String() string {
	if p < 0 || p >= EndNonFinitePolicy {
		return fmt.Sprintf("NonFinitePolicy(%d)", int(p))
	}
	return policyNames[p]
}

// ParseNonFinitePolicy returns the policy with the given (case-insensitive)
// name.
func ParseNonFinitePolicy(name string) (NonFinitePolicy, error) {
	var p NonFinitePolicy
	for p = 0; p < EndNonFinitePolicy; p++ {
		if strings.ToLower(p.String()) == strings.ToLower(strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return 0, fmt.Errorf(
		"NonFinite policy '%s' not recognized. Must be one of [%s].",
		name, strings.Join(policyNames[:], " | "),
	)
}

// Config holds the constants of a run. They are read once by NewSimulation.
type Config struct {
	// Mass is the mass of every particle.
	Mass float64
	// G is the gravitational constant.
	G float64
	// Softening is added to every squared separation.
	Softening float64
	// Dt is the fixed timestep.
	Dt float64
	// Width is the side length of the root square, centered on the origin.
	Width float64
	// MinWidth is the size below which tree nodes are not subdivided.
	MinWidth float64
	// MergeEps is the per-axis distance below which two points share a leaf.
	MergeEps float64
	// Theta is the Barnes-Hut opening angle.
	Theta float64

	Mode      force.Mode
	Workers   int
	NonFinite NonFinitePolicy

	// MaxCatchUp bounds the number of steps a single Advance call may run.
	// Zero means unbounded.
	MaxCatchUp int
}

// DefaultConfig returns the configuration of the reference galaxy run.
func DefaultConfig() Config {
	return Config{
		Mass:      1,
		G:         1e-4,
		Softening: 0.01,
		Dt:        0.016,
		Width:     4,
		MinWidth:  1e-9,
		MergeEps:  1e-6,
		Theta:     0.5,
		Mode:      force.BarnesHut,
		Workers:   runtime.NumCPU(),
		NonFinite: Exclude,
	}
}

// Validate returns an error describing the first invalid field of c.
func (c *Config) Validate() error {
	switch {
	case !(c.Mass > 0):
		return fmt.Errorf("Mass must be positive, but is %g.", c.Mass)
	case !(c.G >= 0):
		return fmt.Errorf("G must be non-negative, but is %g.", c.G)
	case !(c.Softening > 0):
		return fmt.Errorf(
			"Softening must be positive, but is %g. A particle's own "+
				"contribution is singular without softening.", c.Softening,
		)
	case !(c.Dt > 0) || math.IsInf(c.Dt, 0):
		return fmt.Errorf("Dt must be positive and finite, but is %g.", c.Dt)
	case !(c.Width > 0) || math.IsInf(c.Width, 0):
		return fmt.Errorf("Width must be positive and finite, but is %g.", c.Width)
	case !(c.MinWidth >= 0):
		return fmt.Errorf("MinWidth must be non-negative, but is %g.", c.MinWidth)
	case !(c.MergeEps >= 0):
		return fmt.Errorf("MergeEps must be non-negative, but is %g.", c.MergeEps)
	case !(c.Theta >= 0):
		return fmt.Errorf("Theta must be non-negative, but is %g.", c.Theta)
	case c.Mode < 0 || c.Mode >= force.EndMode:
		return fmt.Errorf("Unrecognized force mode %d.", int(c.Mode))
	case c.NonFinite < 0 || c.NonFinite >= EndNonFinitePolicy:
		return fmt.Errorf("Unrecognized NonFinite policy %d.", int(c.NonFinite))
	case c.Workers < 0:
		return fmt.Errorf("Workers must be non-negative, but is %d.", c.Workers)
	case c.MaxCatchUp < 0:
		return fmt.Errorf("MaxCatchUp must be non-negative, but is %d.", c.MaxCatchUp)
	}
	return nil
}

// Stats counts what the Simulation has done so far.
type Stats struct {
	Steps int64
	// OutOfBounds is the total number of times a particle was left out of
	// the tree because it was outside the root square.
	OutOfBounds int
	// Degenerate is the total number of forced sample merges.
	Degenerate int
	// NonFinite is the total number of non-finite integration results.
	NonFinite int
	// Excluded is the number of particles currently excluded.
	Excluded int
	// DroppedTime is simulated time discarded by MaxCatchUp or because the
	// accumulator grew too large to resolve Dt.
	DroppedTime float64

	// Nodes and Summaries describe the most recent step.
	Nodes, Summaries int
}

// Simulation is the fixed-timestep driver. Advance and Step must be called
// from a single goroutine. Positions may be called from any goroutine.
type Simulation struct {
	cfg   Config
	state *State

	tree   *tree.Tree
	list   []tree.Summary
	kernel force.Kernel
	acc    []mgl64.Vec2

	accumulator float64
	time        float64
	stats       Stats
}

// NewSimulation creates a Simulation whose initial state is a copy of xs and
// vs.
func NewSimulation(cfg Config, xs, vs []mgl64.Vec2) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	state, err := NewState(xs, vs)
	if err != nil {
		return nil, err
	}

	sim := &Simulation{
		cfg:   cfg,
		state: state,
		tree:  tree.New(geom.Square(cfg.Width), cfg.MinWidth, cfg.MergeEps),
		kernel: force.Kernel{
			G:         cfg.G,
			Softening: cfg.Softening,
			Mass:      cfg.Mass,
			Mode:      cfg.Mode,
			Theta:     cfg.Theta,
			Workers:   cfg.Workers,
		},
		acc: make([]mgl64.Vec2, len(xs)),
	}
	return sim, nil
}

// Advance feeds elapsed wall-clock seconds into the accumulator and runs as
// many whole timesteps as it now holds. Leftover time carries over to the
// next call. Negative and non-finite values are ignored. If the accumulator
// is so large that subtracting Dt no longer changes it, all of it is dropped.
// It returns the number of steps run.
func (sim *Simulation) Advance(elapsed float64) int {
	if !(elapsed > 0) || math.IsInf(elapsed, 0) {
		return 0
	}
	sim.accumulator += elapsed

	dt, steps := sim.cfg.Dt, 0
	for sim.accumulator >= dt {
		if sim.accumulator-dt == sim.accumulator {
			sim.stats.DroppedTime += sim.accumulator
			sim.accumulator = 0
			break
		}
		if sim.cfg.MaxCatchUp > 0 && steps == sim.cfg.MaxCatchUp {
			dropped := sim.accumulator - math.Mod(sim.accumulator, dt)
			sim.stats.DroppedTime += dropped
			sim.accumulator -= dropped
			break
		}
		sim.Step()
		sim.accumulator -= dt
		steps++
	}
	return steps
}

// Step advances the system by exactly one timestep.
func (sim *Simulation) Step() {
	xs, vs := sim.state.Positions(), sim.state.Velocities()
	nextXs, nextVs := sim.state.inactive()
	skip := sim.state.excluded

	bs := sim.tree.Build(xs, sim.cfg.Mass, skip)
	if sim.cfg.Mode == force.Summary {
		sim.list = sim.tree.Flatten(sim.list)
	} else {
		sim.list = sim.list[:0]
	}

	in := force.Input{Tree: sim.tree, List: sim.list, Xs: xs, Skip: skip}
	sim.kernel.Accelerations(&in, sim.acc)

	sim.integrate(xs, vs, nextXs, nextVs)
	sim.checkFinite(xs, vs, nextXs, nextVs)

	sim.state.Swap()

	sim.time += sim.cfg.Dt
	sim.stats.Steps++
	sim.stats.OutOfBounds += bs.OutOfBounds
	sim.stats.Degenerate += bs.Degenerate
	sim.stats.Nodes = sim.tree.Len()
	sim.stats.Summaries = len(sim.list)
}

// integrate applies semi-implicit Euler: velocities are kicked first and the
// kicked velocities drift the positions.
func (sim *Simulation) integrate(xs, vs, nextXs, nextVs []mgl64.Vec2) {
	dt := sim.cfg.Dt
	for i := range xs {
		if sim.state.excluded[i] {
			nextXs[i], nextVs[i] = xs[i], vs[i]
			continue
		}
		v := vs[i].Add(sim.acc[i].Mul(dt))
		nextXs[i] = xs[i].Add(v.Mul(dt))
		nextVs[i] = v
	}
}

// checkFinite applies the NonFinitePolicy to freshly integrated particles so
// that no NaN or infinity ever reaches a published generation.
func (sim *Simulation) checkFinite(xs, vs, nextXs, nextVs []mgl64.Vec2) {
	for i := range nextXs {
		if sim.state.excluded[i] {
			continue
		} else if geom.Finite(nextXs[i]) && geom.Finite(nextVs[i]) {
			continue
		}

		sim.stats.NonFinite++
		switch sim.cfg.NonFinite {
		case Exclude:
			sim.state.excluded[i] = true
			sim.stats.Excluded++
			nextXs[i], nextVs[i] = xs[i], vs[i]
		case Clamp:
			nextXs[i], nextVs[i] = xs[i], mgl64.Vec2{}
		default:
			panic("Impossible")
		}
	}
}

// Positions returns the active generation's positions. The slice is not
// written until the step after next, so a reader on another goroutine may use
// it for one frame.
func (sim *Simulation) Positions() []mgl64.Vec2 { return sim.state.Positions() }

// Velocities returns the active generation's velocities.
func (sim *Simulation) Velocities() []mgl64.Vec2 { return sim.state.Velocities() }

// Excluded returns the per-particle exclusion flags.
func (sim *Simulation) Excluded() []bool { return sim.state.Excluded() }

// State returns the underlying double buffer.
func (sim *Simulation) State() *State { return sim.state }

// Len returns the number of particles.
func (sim *Simulation) Len() int { return sim.state.Len() }

// Time returns the simulated time.
func (sim *Simulation) Time() float64 { return sim.time }

// Steps returns the number of steps taken.
func (sim *Simulation) Steps() int64 { return sim.stats.Steps }

// Accumulated returns the wall-clock time waiting to be simulated.
func (sim *Simulation) Accumulated() float64 { return sim.accumulator }

// Stats returns a copy of the Simulation's counters.
func (sim *Simulation) Stats() Stats { return sim.stats }

// Config returns the Simulation's configuration.
func (sim *Simulation) Config() Config { return sim.cfg }

// Tree returns the tree built by the most recent step.
func (sim *Simulation) Tree() *tree.Tree { return sim.tree }
