package render

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/phil-mansfield/quadgrav"
	"github.com/phil-mansfield/quadgrav/geom"
)

// ramp is the density ramp, from empty to fullest.
var ramp = []rune(" .:-=+*#%@")

// View draws the active positions of a Simulation onto a tcell screen. The
// root square is mapped onto the largest region of the terminal which looks
// square, assuming cells are twice as tall as they are wide. The bottom row
// is a status line.
type View struct {
	screen tcell.Screen
	bounds geom.Rect
	counts []int

	Paused bool
}

// NewView returns a View of the given world-space bounds.
func NewView(screen tcell.Screen, bounds geom.Rect) *View {
	return &View{screen: screen, bounds: bounds}
}

// viewport returns the origin and size, in cells, of the region the particle
// cloud is drawn into.
func (v *View) viewport() (x0, y0, w, h int) {
	sw, sh := v.screen.Size()
	h = sh - 1
	if sw/2 < h {
		h = sw / 2
	}
	if h < 0 {
		h = 0
	}
	w = 2 * h
	return (sw - w) / 2, (sh - 1 - h) / 2, w, h
}

// Draw renders the Simulation's active generation and status line, then
// shows the screen.
func (v *View) Draw(sim *quadgrav.Simulation) {
	v.screen.Clear()

	x0, y0, w, h := v.viewport()
	if cap(v.counts) < w*h {
		v.counts = make([]int, w*h)
	}
	v.counts = v.counts[:w*h]

	Rasterize(sim.Positions(), v.bounds, w, h, v.counts)
	max := MaxCount(v.counts)

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			lvl := Level(v.counts[row*w+col], max, len(ramp))
			if lvl == 0 {
				continue
			}
			gray := int32(95 + 160*lvl/(len(ramp)-1))
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(gray, gray, gray))
			v.screen.SetContent(x0+col, y0+row, ramp[lvl], nil, style)
		}
	}

	v.drawStatus(sim)
	v.screen.Show()
}

func (v *View) drawStatus(sim *quadgrav.Simulation) {
	_, sh := v.screen.Size()
	stats := sim.Stats()

	status := fmt.Sprintf(
		" step %d  t = %.3f  N = %d  excluded %d  outside %d",
		stats.Steps, sim.Time(), sim.Len(), stats.Excluded, stats.OutOfBounds,
	)
	if v.Paused {
		status += "  [paused]"
	}

	style := tcell.StyleDefault.Reverse(true)
	for i, r := range []rune(status) {
		v.screen.SetContent(i, sh-1, r, nil, style)
	}
}

// HandleEvent reacts to a single screen event and returns false if the
// viewer should stop.
func (v *View) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				v.Paused = !v.Paused
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// Run drives sim from the wall clock at the given frame rate and draws every
// frame until ctx is cancelled or the user quits. The screen must already be
// initialized; Run does not finalize it.
func Run(ctx context.Context, screen tcell.Screen, sim *quadgrav.Simulation, fps int, paused bool) error {
	if fps <= 0 {
		return fmt.Errorf("Frame rate must be positive, but is %d.", fps)
	}

	view := NewView(screen, geom.Square(sim.Config().Width))
	view.Paused = paused

	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	view.Draw(sim)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !view.HandleEvent(ev) {
				return nil
			}
			view.Draw(sim)

		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			if !view.Paused {
				sim.Advance(elapsed)
			}
			view.Draw(sim)
		}
	}
}
