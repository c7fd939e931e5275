// Package game drives a sim.World from the command line, either headless or
// in a raylib window with a substrate heatmap under the cells.
package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/camera"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/renderer"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/sim"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/ui"
)

// Options configures a Game.
type Options struct {
	sim.Options
	Headless       bool
	StepsPerUpdate int
}

// Game owns the world and, in graphical mode, the view state.
type Game struct {
	world *sim.World
	cfg   *config.Config

	// View state
	camera        *camera.Camera
	field         *renderer.FieldRenderer
	inspector     *ui.Inspector
	selected      uint32
	hasSelection  bool
	substrate     int
	showField     bool
	fieldDirty    bool
	paused        bool
	speed         int
	screenW       float64
	screenH       float64
	lastErr       error
	lastReportLog int64
}

// NewGameWithOptions builds the world. In graphical mode it must be called
// after the raylib window is created.
func NewGameWithOptions(cfg *config.Config, opts Options) (*Game, error) {
	world, err := sim.New(cfg, opts.Options)
	if err != nil {
		return nil, err
	}

	speed := opts.StepsPerUpdate
	if speed < 1 {
		speed = 1
	}
	g := &Game{
		world:      world,
		cfg:        cfg,
		speed:      speed,
		showField:  true,
		fieldDirty: true,
	}

	if !opts.Headless {
		g.screenW = float64(rl.GetScreenWidth())
		g.screenH = float64(rl.GetScreenHeight())
		mesh := world.Microenvironment().Mesh()
		g.camera = camera.New(g.screenW, g.screenH, mesh.XMin, mesh.YMin, mesh.XMax, mesh.YMax)
		g.field = renderer.NewFieldRenderer()
		g.inspector = ui.NewInspector(0, 0, 280)
	}
	return g, nil
}

// Update handles input and advances the world unless paused.
func (g *Game) Update() error {
	g.handleInput()
	if g.paused {
		return nil
	}
	if err := g.step(); err != nil {
		// Stay on the failed tick until the user steps again
		g.paused = true
		return err
	}
	return nil
}

// UpdateHeadless advances the world without touching raylib.
func (g *Game) UpdateHeadless() error {
	return g.step()
}

// step advances the world speed times and logs each coupling report with
// failures.
func (g *Game) step() error {
	for i := 0; i < g.speed; i++ {
		if err := g.world.Step(); err != nil {
			g.lastErr = err
			return err
		}
		g.fieldDirty = true

		if r := g.world.LastReport(); !r.OK() && r.Tick != g.lastReportLog {
			g.lastReportLog = r.Tick
			slog.Warn("coupling tick had failures", "report", r)
		}
	}
	return nil
}

// World returns the simulated world.
func (g *Game) World() *sim.World { return g.world }

// Unload releases all resources.
func (g *Game) Unload() {
	if g.field != nil {
		g.field.Unload()
	}
	if err := g.world.Close(); err != nil {
		slog.Error("failed to close world", "error", err)
	}
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int64 {
	return g.world.Tick()
}
