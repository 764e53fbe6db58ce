package io

import (
	"fmt"
	"math"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/quadgrav"
	"github.com/phil-mansfield/quadgrav/force"
)

const (
	ExampleSimulationFile = `[Simulation]

#######################
# Required Parameters #
#######################

# Number of fixed timesteps to run in -Run mode.
Steps = 1000

# Number of particles in the generated galaxy disk. Not needed if
# InitialConditions is set.
Particles = 10000

#######################
# Optional Parameters #
#######################

# Whitespace-separated text file with columns x y vx vy. If set, Particles,
# Seed, DiskRadius, and DiskSpeed are ignored.
# InitialConditions = path/to/ics.txt

# Directory which snapshots are written to every SnapshotEvery steps. No
# snapshots are written if Output isn't set.
# Output = path/to/output/dir
# SnapshotEvery = 100

# Physical constants. Every particle has mass Mass.
# Gravity = 0.0001
# Softening = 0.01
# TimeStep = 0.016
# Mass = 1

# Width of the square, centered on the origin, which the tree covers.
# Particles outside of it are left out of the tree for that step. They still
# feel the particles inside it.
# Width = 4

# Tree nodes narrower than MinWidth are never subdivided, and points closer
# than MergeEps along both axes are merged into a single sample.
# MinWidth = 1e-9
# MergeEps = 1e-6

# ForceMode can be set to one of:
# [ BarnesHut | Summary | Direct ]
# Theta is the BarnesHut opening angle. Theta = 0 is exact, but slow.
# ForceMode = BarnesHut
# Theta = 0.5

# Number of goroutines used for force evaluation. The default is the number
# of logical cores.
# Workers = 8

# What to do with particles that become NaN or infinite:
# [ Exclude | Clamp ]
# NonFinite = Exclude

# Maximum number of steps the viewer may run per frame. 0 means the [View]
# section's MaxCatchUp is used.
# MaxCatchUp = 0

# Parameters of the generated galaxy disk.
# Seed = 0
# DiskRadius = 1
# DiskSpeed = 0.1

# Output files which are useful for profiling and debugging. Generally, there
# isn't a reason to use these unless something goes wrong.
# ProfileFile = prof.out
# LogFile = log.out`

	ExampleViewFile = `[View]

# The [View] section is read from the same file as the [Simulation] section.

# Frames per second of the terminal viewer. Each frame feeds the elapsed wall
# clock time to the simulation.
# FPS = 60

# Start paused. Space toggles pausing.
# Paused = false

# Maximum number of steps run per frame when the [Simulation] section does not
# set one. Wall clock time beyond this, e.g. after the machine sleeps, is
# dropped.
# MaxCatchUp = 8`

	ExamplePlotFile = `[Plot]

#######################
# Required Parameters #
#######################

# Directory containing snapshot files written by -Run mode.
Input = path/to/output/dir

# Directory where the .png files will be written to.
Output = path/to/plot/dir

#######################
# Optional Parameters #
#######################

# Axis range of the scatter plots. The default is the tree width of the
# snapshot.
# Range = 2

# Plot every Stride-th snapshot.
# Stride = 1`
)

// SimulationConfig holds the [Simulation] section of a configuration file.
type SimulationConfig struct {
	// Required
	Steps     int
	Particles int

	// Optional
	InitialConditions string
	Output            string
	SnapshotEvery     int

	Gravity, Softening, TimeStep, Mass float64
	Width, MinWidth, MergeEps          float64
	ForceMode                          string
	Theta                              float64
	Workers                            int
	NonFinite                          string
	MaxCatchUp                         int

	Seed                  int64
	DiskRadius, DiskSpeed float64

	LogFile, ProfileFile string
}

type SimulationWrapper struct {
	Simulation SimulationConfig
}

// DefaultSimulationWrapper returns a wrapper whose optional fields are set to
// the reference galaxy run.
func DefaultSimulationWrapper() *SimulationWrapper {
	def := quadgrav.DefaultConfig()
	con := SimulationConfig{}

	con.SnapshotEvery = 100
	con.Gravity = def.G
	con.Softening = def.Softening
	con.TimeStep = def.Dt
	con.Mass = def.Mass
	con.Width = def.Width
	con.MinWidth = def.MinWidth
	con.MergeEps = def.MergeEps
	con.ForceMode = def.Mode.String()
	con.Theta = def.Theta
	con.Workers = def.Workers
	con.NonFinite = def.NonFinite.String()
	con.MaxCatchUp = def.MaxCatchUp

	con.DiskRadius = 1
	con.DiskSpeed = 0.1

	return &SimulationWrapper{con}
}

func (con *SimulationConfig) ValidSteps() bool {
	return con.Steps > 0
}
func (con *SimulationConfig) ValidParticles() bool {
	return con.Particles > 0
}
func (con *SimulationConfig) ValidInitialConditions() bool {
	return con.InitialConditions != ""
}
func (con *SimulationConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *SimulationConfig) ValidSnapshotEvery() bool {
	return con.SnapshotEvery > 0
}
func (con *SimulationConfig) ValidDiskRadius() bool {
	return con.DiskRadius > 0 && !math.IsInf(con.DiskRadius, 0)
}
func (con *SimulationConfig) ValidDiskSpeed() bool {
	return con.DiskSpeed >= 0 && !math.IsInf(con.DiskSpeed, 0)
}
func (con *SimulationConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SimulationConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

// Check returns an error describing the first missing or invalid field.
func (con *SimulationConfig) Check() error {
	if !con.ValidSteps() {
		return fmt.Errorf("Invalid/non-existent 'Steps' value, %d.", con.Steps)
	} else if con.ValidOutput() && !con.ValidSnapshotEvery() {
		return fmt.Errorf(
			"Invalid 'SnapshotEvery' value, %d.", con.SnapshotEvery,
		)
	}
	return con.CheckInitial()
}

// CheckInitial is Check without the fields which only headless runs use.
func (con *SimulationConfig) CheckInitial() error {
	if !con.ValidInitialConditions() && !con.ValidParticles() {
		return fmt.Errorf(
			"You must set either a valid 'Particles' or " +
				"'InitialConditions' value.",
		)
	} else if !con.ValidInitialConditions() && !con.ValidDiskRadius() {
		return fmt.Errorf("Invalid 'DiskRadius' value, %g.", con.DiskRadius)
	} else if !con.ValidInitialConditions() && !con.ValidDiskSpeed() {
		return fmt.Errorf("Invalid 'DiskSpeed' value, %g.", con.DiskSpeed)
	}

	_, err := con.Core()
	return err
}

// Core converts the physical and numerical parameters of con into a driver
// configuration and validates them.
func (con *SimulationConfig) Core() (quadgrav.Config, error) {
	mode, err := force.ParseMode(con.ForceMode)
	if err != nil {
		return quadgrav.Config{}, err
	}
	policy, err := quadgrav.ParseNonFinitePolicy(con.NonFinite)
	if err != nil {
		return quadgrav.Config{}, err
	}

	cfg := quadgrav.Config{
		Mass:       con.Mass,
		G:          con.Gravity,
		Softening:  con.Softening,
		Dt:         con.TimeStep,
		Width:      con.Width,
		MinWidth:   con.MinWidth,
		MergeEps:   con.MergeEps,
		Theta:      con.Theta,
		Mode:       mode,
		Workers:    con.Workers,
		NonFinite:  policy,
		MaxCatchUp: con.MaxCatchUp,
	}
	if err := cfg.Validate(); err != nil {
		return quadgrav.Config{}, err
	}
	return cfg, nil
}

// ViewConfig holds the [View] section of a configuration file.
type ViewConfig struct {
	FPS        int
	Paused     bool
	MaxCatchUp int
}

type ViewWrapper struct {
	View ViewConfig
}

func DefaultViewWrapper() *ViewWrapper {
	return &ViewWrapper{ViewConfig{FPS: 60, MaxCatchUp: 8}}
}

func (con *ViewConfig) ValidFPS() bool {
	return con.FPS > 0 && con.FPS <= 1000
}
func (con *ViewConfig) ValidMaxCatchUp() bool {
	return con.MaxCatchUp > 0
}

// ViewSimulationWrapper reads both sections a -View run needs from one file.
type ViewSimulationWrapper struct {
	View       ViewConfig
	Simulation SimulationConfig
}

func DefaultViewSimulationWrapper() *ViewSimulationWrapper {
	return &ViewSimulationWrapper{
		View:       DefaultViewWrapper().View,
		Simulation: DefaultSimulationWrapper().Simulation,
	}
}

// PlotConfig holds the [Plot] section of a configuration file.
type PlotConfig struct {
	// Required
	Input, Output string

	// Optional
	Range  float64
	Stride int
}

type PlotWrapper struct {
	Plot PlotConfig
}

func DefaultPlotWrapper() *PlotWrapper {
	return &PlotWrapper{PlotConfig{Stride: 1}}
}

func (con *PlotConfig) ValidInput() bool {
	return con.Input != ""
}
func (con *PlotConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *PlotConfig) ValidRange() bool {
	return con.Range > 0
}
func (con *PlotConfig) ValidStride() bool {
	return con.Stride > 0
}

// ReadSimulationConfig reads and checks the [Simulation] section of fname.
// Other sections in the file are ignored.
func ReadSimulationConfig(fname string) (*SimulationConfig, error) {
	wrap := DefaultSimulationWrapper()
	if err := gcfg.FatalOnly(gcfg.ReadFileInto(wrap, fname)); err != nil {
		return nil, err
	}
	if err := wrap.Simulation.Check(); err != nil {
		return nil, err
	}
	return &wrap.Simulation, nil
}

// ReadViewConfig reads and checks the [View] and [Simulation] sections of
// fname. If the [Simulation] section leaves MaxCatchUp unbounded, the [View]
// section's cap is applied to it.
func ReadViewConfig(fname string) (*ViewConfig, *SimulationConfig, error) {
	wrap := DefaultViewSimulationWrapper()
	if err := gcfg.FatalOnly(gcfg.ReadFileInto(wrap, fname)); err != nil {
		return nil, nil, err
	}
	if !wrap.View.ValidFPS() {
		return nil, nil, fmt.Errorf("Invalid 'FPS' value, %d.", wrap.View.FPS)
	} else if !wrap.View.ValidMaxCatchUp() {
		return nil, nil, fmt.Errorf(
			"Invalid [View] 'MaxCatchUp' value, %d.", wrap.View.MaxCatchUp,
		)
	}
	if wrap.Simulation.MaxCatchUp == 0 {
		wrap.Simulation.MaxCatchUp = wrap.View.MaxCatchUp
	}
	if err := wrap.Simulation.CheckInitial(); err != nil {
		return nil, nil, err
	}
	return &wrap.View, &wrap.Simulation, nil
}

// ReadPlotConfig reads and checks the [Plot] section of fname.
func ReadPlotConfig(fname string) (*PlotConfig, error) {
	wrap := DefaultPlotWrapper()
	if err := gcfg.FatalOnly(gcfg.ReadFileInto(wrap, fname)); err != nil {
		return nil, err
	}
	con := &wrap.Plot

	if !con.ValidInput() {
		return nil, fmt.Errorf("Invalid/non-existent 'Input' value.")
	} else if !con.ValidOutput() {
		return nil, fmt.Errorf("Invalid/non-existent 'Output' value.")
	} else if !con.ValidStride() {
		return nil, fmt.Errorf("Invalid 'Stride' value, %d.", con.Stride)
	}
	return con, nil
}
