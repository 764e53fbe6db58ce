package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/quadgrav"
	"github.com/phil-mansfield/quadgrav/io"
	"github.com/phil-mansfield/quadgrav/render"
)

// runFiles are the log and CPU profile a -Run or -View invocation writes to.
// Either may be nil.
type runFiles struct {
	log, prof *os.File
}

// Close stops profiling and closes whichever files were opened.
func (rf *runFiles) Close() {
	if rf.prof != nil {
		pprof.StopCPUProfile()
		if err := rf.prof.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}
	if rf.log != nil {
		if err := rf.log.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		run, view, plot string
		exampleConfig   string
	)
	vars := map[string]*string{
		"Run":           &run,
		"View":          &view,
		"Plot":          &plot,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&run, "Run", "",
		"Configuration file for headless [Simulation] mode.",
	)
	flag.StringVar(
		&view, "View", "",
		"Configuration file with a [Simulation] and an optional [View] "+
			"section. Runs the terminal viewer.",
	)
	flag.StringVar(
		&plot, "Plot", "",
		"Configuration file for [Plot] mode.",
	)
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the "+
			"specified type to stdout. Accepted arguments are 'Simulation', "+
			"'View', and 'Plot'.",
	)

	flag.Parse()

	modeName, err := selectMode(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Run":
		con, err := io.ReadSimulationConfig(run)
		if err != nil {
			log.Fatal(err.Error())
		}
		runMain(con)

	case "View":
		viewCon, simCon, err := io.ReadViewConfig(view)
		if err != nil {
			log.Fatal(err.Error())
		}
		viewMain(viewCon, simCon)

	case "Plot":
		con, err := io.ReadPlotConfig(plot)
		if err != nil {
			log.Fatal(err.Error())
		}
		plotMain(con)

	case "ExampleConfig":
		switch exampleConfig {
		case "Simulation":
			fmt.Println(io.ExampleSimulationFile)
		case "View":
			fmt.Println(io.ExampleViewFile)
		case "Plot":
			fmt.Println(io.ExamplePlotFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. Only recognized " +
					"arguments are 'Simulation', 'View', and 'Plot'.",
			)
		}
	default:
		panic("Impossible")
	}
}

// selectMode returns the name of the one mode flag which was set.
func selectMode(flags map[string]*string) (string, error) {
	set := []string{}
	for name, val := range flags {
		if *val != "" {
			set = append(set, name)
		}
	}
	sort.Strings(set)

	switch len(set) {
	case 0:
		return "", fmt.Errorf("No mode flag was given.")
	case 1:
		return set[0], nil
	}
	return "", fmt.Errorf(
		"Mode flags %s were all given, but quadgrav runs one mode at a time.",
		strings.Join(set, ", "),
	)
}

// simulationSetupIO opens the log and profile files con asks for, then
// builds the initial conditions and the Simulation for the named mode.
func simulationSetupIO(
	con *io.SimulationConfig, modeName string,
) (sim *quadgrav.Simulation, rf *runFiles) {
	var err error
	rf = &runFiles{}

	if con.ValidLogFile() {
		rf.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.SetOutput(rf.log)
	}

	log.Printf("Running %s main.", modeName)

	if con.ValidProfileFile() {
		rf.prof, err = os.Create(con.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		if err = pprof.StartCPUProfile(rf.prof); err != nil {
			log.Fatal(err.Error())
		}
	}

	var xs, vs []mgl64.Vec2
	if con.ValidInitialConditions() {
		xs, vs, err = io.ReadInitialConditions(con.InitialConditions)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.Printf(
			"Read %d particles from %s.", len(xs), con.InitialConditions,
		)
	} else {
		xs, vs = io.Galaxy(con.Particles, con.DiskRadius, con.DiskSpeed, con.Seed)
		log.Printf("Generated a galaxy disk of %d particles.", len(xs))
	}

	cfg, err := con.Core()
	if err != nil {
		log.Fatal(err.Error())
	}
	sim, err = quadgrav.NewSimulation(cfg, xs, vs)
	if err != nil {
		log.Fatal(err.Error())
	}

	log.Printf(
		"G = %g, Softening = %g, Dt = %g, ForceMode = %s, Theta = %g, "+
			"Workers = %d, MaxCatchUp = %d.",
		cfg.G, cfg.Softening, cfg.Dt, cfg.Mode, cfg.Theta,
		cfg.Workers, cfg.MaxCatchUp,
	)
	return sim, rf
}

func writeSnapshot(dir string, sim *quadgrav.Simulation) {
	cfg := sim.Config()
	hd := &io.SnapshotHeader{
		Count:     int64(sim.Len()),
		Step:      sim.Steps(),
		Time:      sim.Time(),
		Mass:      cfg.Mass,
		Width:     cfg.Width,
		G:         cfg.G,
		Softening: cfg.Softening,
		Dt:        cfg.Dt,
	}

	fname := io.SnapshotName(dir, hd.Step)
	err := io.WriteSnapshot(fname, hd, sim.Positions(), sim.Velocities())
	if err != nil {
		log.Fatal(err.Error())
	}
}

func runMain(con *io.SimulationConfig) {
	sim, rf := simulationSetupIO(con, "Run")
	defer rf.Close()

	if con.ValidOutput() {
		if err := os.MkdirAll(con.Output, 0755); err != nil {
			log.Fatal(err.Error())
		}
		writeSnapshot(con.Output, sim)
	}

	p0, k0 := sim.Momentum(), sim.KineticEnergy()
	e0 := k0 + sim.PotentialEnergy()
	progress := con.Steps / 10
	if progress == 0 {
		progress = 1
	}

	for i := 1; i <= con.Steps; i++ {
		sim.Step()

		if i%progress == 0 {
			stats := sim.Stats()
			log.Printf(
				"Ran %d/%d steps: %d nodes, %d excluded, %d outside the root.",
				i, con.Steps, stats.Nodes, stats.Excluded, stats.OutOfBounds,
			)
		}
		if con.ValidOutput() && (i%con.SnapshotEvery == 0 || i == con.Steps) {
			writeSnapshot(con.Output, sim)
		}
	}

	stats := sim.Stats()
	p1, k1 := sim.Momentum(), sim.KineticEnergy()
	e1 := k1 + sim.PotentialEnergy()
	log.Printf("Simulated time %g in %d steps.", sim.Time(), stats.Steps)
	log.Printf("Momentum drift: %g.", p1.Sub(p0).Len())
	log.Printf("Kinetic energy: %g -> %g.", k0, k1)
	log.Printf("Total energy: %g -> %g.", e0, e1)
	log.Printf(
		"Non-finite results: %d, excluded: %d, forced merges: %d, "+
			"dropped time: %g.",
		stats.NonFinite, stats.Excluded, stats.Degenerate, stats.DroppedTime,
	)
}

func viewMain(viewCon *io.ViewConfig, simCon *io.SimulationConfig) {
	sim, rf := simulationSetupIO(simCon, "View")
	defer rf.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal(err.Error())
	}
	if err = screen.Init(); err != nil {
		log.Fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = render.Run(ctx, screen, sim, viewCon.FPS, viewCon.Paused)
	stop()
	screen.Fini()

	if err != nil {
		log.Fatal(err.Error())
	}
	log.Printf(
		"Viewer stopped after %d steps, t = %g, dropped time %g.",
		sim.Steps(), sim.Time(), sim.Stats().DroppedTime,
	)
}

func plotMain(con *io.PlotConfig) {
	files, err := io.ListSnapshots(con.Input)
	if err != nil {
		log.Fatal(err.Error())
	} else if len(files) == 0 {
		log.Fatalf("No snapshots found in %s.", con.Input)
	}
	if err = os.MkdirAll(con.Output, 0755); err != nil {
		log.Fatal(err.Error())
	}

	var ts, ps, ks []float64
	for i := 0; i < len(files); i += con.Stride {
		hd, xs, vs, err := io.ReadSnapshot(files[i])
		if err != nil {
			log.Fatal(err.Error())
		}

		p, k := momentumAndEnergy(hd.Mass, vs)
		ts, ps, ks = append(ts, hd.Time), append(ps, p), append(ks, k)

		lim := hd.Width / 2
		if con.ValidRange() {
			lim = con.Range
		}
		base := strings.TrimSuffix(filepath.Base(files[i]), ".dat")
		plotPositions(filepath.Join(con.Output, base+".png"), hd, xs, lim)
	}

	plotDiagnostics(filepath.Join(con.Output, "diagnostics.png"), ts, ps, ks)
	log.Printf("Plotting %d snapshots to %s.", len(ts), con.Output)
	plt.Execute()
}

func momentumAndEnergy(mass float64, vs []mgl64.Vec2) (p, k float64) {
	sum := mgl64.Vec2{}
	for _, v := range vs {
		sum = sum.Add(v)
		k += 0.5 * mass * v.Dot(v)
	}
	return sum.Mul(mass).Len(), k
}

func plotPositions(
	fname string, hd *io.SnapshotHeader, xs []mgl64.Vec2, lim float64,
) {
	x, y := make([]float64, len(xs)), make([]float64, len(xs))
	for i := range xs {
		x[i], y[i] = xs[i].X(), xs[i].Y()
	}

	plt.Figure(plt.FigSize(8, 8))
	plt.Plot(x, y, ",k")
	plt.Title(fmt.Sprintf("Step %d: $t$ = %.3f", hd.Step, hd.Time))
	plt.XLabel(`$X$`, plt.FontSize(16))
	plt.YLabel(`$Y$`, plt.FontSize(16))
	plt.XLim(-lim, +lim)
	plt.YLim(-lim, +lim)
	plt.SaveFig(fname)
}

func plotDiagnostics(fname string, ts, ps, ks []float64) {
	plt.Figure()
	plt.Plot(ts, ks, plt.LW(3), plt.C("r"))
	plt.Plot(ts, ps, plt.LW(3), plt.C("b"))
	plt.Title(`Kinetic energy (red) and $|\vec{p}|$ (blue)`)
	plt.XLabel(`$t$`, plt.FontSize(16))
	if positive(ks) && positive(ps) {
		plt.YScale("log")
	}
	plt.Grid(plt.Axis("y"))
	plt.Grid(plt.Axis("x"), plt.Which("both"))
	plt.SaveFig(fname)
}

func positive(xs []float64) bool {
	for _, x := range xs {
		if !(x > 0) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
