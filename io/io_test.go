package io

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/quadgrav"
	"github.com/phil-mansfield/quadgrav/force"
)

func writeFile(t *testing.T, name, text string) string {
	fname := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))
	return fname
}

func TestExampleFilesParse(t *testing.T) {
	sim := DefaultSimulationWrapper()
	require.NoError(t, gcfg.ReadStringInto(sim, ExampleSimulationFile))
	require.NoError(t, sim.Simulation.Check())
	assert.Equal(t, 1000, sim.Simulation.Steps)
	assert.Equal(t, 10000, sim.Simulation.Particles)

	cfg, err := sim.Simulation.Core()
	require.NoError(t, err)
	def := quadgrav.DefaultConfig()
	assert.Equal(t, def, cfg)

	view := DefaultViewWrapper()
	require.NoError(t, gcfg.ReadStringInto(view, ExampleViewFile))
	assert.Equal(t, 60, view.View.FPS)
	assert.Equal(t, 8, view.View.MaxCatchUp)

	plot := DefaultPlotWrapper()
	require.NoError(t, gcfg.ReadStringInto(plot, ExamplePlotFile))
	assert.Equal(t, "path/to/output/dir", plot.Plot.Input)
	assert.Equal(t, 1, plot.Plot.Stride)
}

func TestReadSimulationConfig(t *testing.T) {
	fname := writeFile(t, "sim.ini", `[Simulation]
Steps = 20
Particles = 64
Gravity = 0.5
ForceMode = direct
NonFinite = Clamp
Theta = 0
Seed = 7

[View]
FPS = 30`)

	con, err := ReadSimulationConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, int64(7), con.Seed)

	cfg, err := con.Core()
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.G)
	assert.Equal(t, force.Direct, cfg.Mode)
	assert.Equal(t, quadgrav.Clamp, cfg.NonFinite)
	assert.Equal(t, 0.0, cfg.Theta)
	assert.Equal(t, 0.01, cfg.Softening, "unset fields keep their defaults")

	view, sim, err := ReadViewConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, 30, view.FPS)
	assert.Equal(t, 64, sim.Particles)
}

func TestSimulationConfigErrors(t *testing.T) {
	texts := []string{
		"[Simulation]\nParticles = 10",
		"[Simulation]\nSteps = 10",
		"[Simulation]\nSteps = 10\nParticles = 10\nForceMode = Octree",
		"[Simulation]\nSteps = 10\nParticles = 10\nNonFinite = Ignore",
		"[Simulation]\nSteps = 10\nParticles = 10\nSoftening = 0",
		"[Simulation]\nSteps = 10\nParticles = 10\nTimeStep = -1",
		"[Simulation]\nSteps = 10\nParticles = 10\nDiskRadius = 0",
		"[Simulation]\nSteps = 10\nParticles = 10\nOutput = out\nSnapshotEvery = 0",
		"[Simulation]\nSteps = ten\nParticles = 10",
	}
	for i, text := range texts {
		_, err := ReadSimulationConfig(writeFile(t, "bad.ini", text))
		assert.Error(t, err, "case %d", i)
	}

	_, err := ReadSimulationConfig(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestViewConfigSkipsSteps(t *testing.T) {
	fname := writeFile(t, "view.ini", "[Simulation]\nParticles = 10\n")
	view, _, err := ReadViewConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, 60, view.FPS)

	fname = writeFile(t, "view.ini", "[Simulation]\nParticles = 10\n[View]\nFPS = 0\n")
	_, _, err = ReadViewConfig(fname)
	assert.Error(t, err)

	fname = writeFile(t, "view.ini", "[Simulation]\nParticles = 10\n[View]\nMaxCatchUp = 0\n")
	_, _, err = ReadViewConfig(fname)
	assert.Error(t, err)
}

func TestViewConfigCatchUp(t *testing.T) {
	fname := writeFile(t, "view.ini", "[Simulation]\nParticles = 10\n")
	_, sim, err := ReadViewConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, 8, sim.MaxCatchUp, "the viewer never runs unbounded")

	cfg, err := sim.Core()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxCatchUp)

	fname = writeFile(t, "view.ini",
		"[Simulation]\nParticles = 10\nMaxCatchUp = 3\n[View]\nMaxCatchUp = 20\n")
	view, sim, err := ReadViewConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, 20, view.MaxCatchUp)
	assert.Equal(t, 3, sim.MaxCatchUp)

	sim, err = ReadSimulationConfig(writeFile(t, "run.ini",
		"[Simulation]\nSteps = 1\nParticles = 10\n"))
	require.NoError(t, err)
	assert.Zero(t, sim.MaxCatchUp)
}

func TestReadPlotConfig(t *testing.T) {
	con, err := ReadPlotConfig(writeFile(t, "plot.ini",
		"[Plot]\nInput = in\nOutput = out\nRange = 3\nStride = 2\n"))
	require.NoError(t, err)
	assert.Equal(t, &PlotConfig{"in", "out", 3, 2}, con)
	assert.True(t, con.ValidRange())

	_, err = ReadPlotConfig(writeFile(t, "plot.ini", "[Plot]\nInput = in\n"))
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	xs, vs := Galaxy(257, 1, 0.1, 3)
	h := &SnapshotHeader{
		Count: 257, Step: 40, Time: 0.64, Mass: 1,
		Width: 4, G: 1e-4, Softening: 0.01, Dt: 0.016,
	}

	dir := t.TempDir()
	fname := SnapshotName(dir, h.Step)
	assert.Equal(t, "snap000040.dat", filepath.Base(fname))
	require.NoError(t, WriteSnapshot(fname, h, xs, vs))

	hd := &SnapshotHeader{}
	require.NoError(t, ReadSnapshotHeader(fname, hd))
	assert.Equal(t, h, hd)

	hd, rxs, rvs, err := ReadSnapshot(fname)
	require.NoError(t, err)
	assert.Equal(t, h, hd)
	assert.Equal(t, xs, rxs)
	assert.Equal(t, vs, rvs)
}

func TestSnapshotErrors(t *testing.T) {
	dir := t.TempDir()
	xs := make([]mgl64.Vec2, 3)
	h := &SnapshotHeader{Count: 4}
	assert.Error(t, WriteSnapshot(filepath.Join(dir, "a.dat"), h, xs, xs))

	h.Count = 3
	assert.Error(t, WriteSnapshot(filepath.Join(dir, "a.dat"), h, xs, xs[:2]))

	bad := writeFile(t, "bad.dat", "\x05\x00\x00\x00\x40\x00\x00\x00")
	_, _, _, err := ReadSnapshot(bad)
	assert.Error(t, err, "unknown endianness flag")

	bad = writeFile(t, "bad.dat", "\x00\x00\x00\x00\x10\x00\x00\x00")
	_, _, _, err = ReadSnapshot(bad)
	assert.Error(t, err, "wrong header size")

	good := filepath.Join(dir, "good.dat")
	require.NoError(t, WriteSnapshot(good, h, xs, xs))
	text, err := os.ReadFile(good)
	require.NoError(t, err)
	truncated := writeFile(t, "short.dat", string(text[:len(text)-8]))
	_, _, _, err = ReadSnapshot(truncated)
	assert.Error(t, err)
}

func TestListSnapshots(t *testing.T) {
	dir := t.TempDir()
	xs := []mgl64.Vec2{{0, 0}}
	for _, step := range []int64{200, 0, 100} {
		h := &SnapshotHeader{Count: 1, Step: step}
		require.NoError(t, WriteSnapshot(SnapshotName(dir, step), h, xs, xs))
	}

	files, err := ListSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, SnapshotName(dir, 0), files[0])
	assert.Equal(t, SnapshotName(dir, 200), files[2])
}

func TestInitialConditionsRoundTrip(t *testing.T) {
	xs := []mgl64.Vec2{{0.25, -1}, {1e-7, 3}, {-0.5, 0.125}}
	vs := []mgl64.Vec2{{0, 0.1}, {-2, 0}, {0.3, 0.7}}

	fname := filepath.Join(t.TempDir(), "ics.txt")
	require.NoError(t, WriteInitialConditions(fname, xs, vs))

	rxs, rvs, err := ReadInitialConditions(fname)
	require.NoError(t, err)
	assert.Equal(t, xs, rxs)
	assert.Equal(t, vs, rvs)

	assert.Error(t, WriteInitialConditions(fname, xs, vs[:1]))
}

func TestReadInitialConditionsNonFinite(t *testing.T) {
	fname := writeFile(t, "ics.txt", "0 0 0 0\n1 NaN 0 0\n")
	_, _, err := ReadInitialConditions(fname)
	assert.Error(t, err)
}

func TestGalaxy(t *testing.T) {
	xs, vs := Galaxy(1000, 2, 0.1, 42)
	require.Len(t, xs, 1000)

	for i := range xs {
		assert.LessOrEqual(t, xs[i].Len(), 2.0)
		assert.InDelta(t, 0.1, vs[i].Len(), 1e-12)
		assert.InDelta(t, 0, xs[i].Dot(vs[i]), 1e-12, "tangential")

		cross := xs[i].X()*vs[i].Y() - xs[i].Y()*vs[i].X()
		assert.Greater(t, cross, 0.0, "counter-clockwise")
	}

	xs2, vs2 := Galaxy(1000, 2, 0.1, 42)
	assert.Equal(t, xs, xs2, "seeded")
	assert.Equal(t, vs, vs2)

	// Half the particles fall inside radius R/sqrt(2) when uniform in area.
	inner := 0
	for _, x := range xs {
		if x.Len() < 2/math.Sqrt2 {
			inner++
		}
	}
	assert.InDelta(t, 500, inner, 60)
}
