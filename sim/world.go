// Package sim owns the tissue: an ECS world of cells over a substrate field,
// stepped in a fixed order so that field writes and the coupling tick never
// interleave.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/coupling"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/field"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/intracellular"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/phenotype"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/telemetry"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

// ErrNoSuchCell is returned for operations on an unknown cell ID.
var ErrNoSuchCell = errors.New("no such cell")

// Options configures a World.
type Options struct {
	Seed        int64 // 0 = config random_seed
	LogStats    bool
	OutputDir   string
	Workers     int // overrides coupling.workers when > 0
	StatsWindow float64
	Logger      *slog.Logger
}

// cellDefinition is a registered cell type.
type cellDefinition struct {
	name     string
	typeID   uint8
	volume   float64
	model    string
	schema   *vars.Index
	custom   []string // custom data names in slot order
	energy   int      // custom data slot mirroring cell energy, -1 if none
	defaults []float64
	exchange []field.Exchange // by density index
}

// World holds the complete simulation state.
type World struct {
	cfg    *config.Config
	world  *ecs.World
	rng    *rand.Rand
	seed   int64
	logger *slog.Logger

	cellMapper *ecs.Map7[
		components.Cell,
		components.Position,
		components.Volume,
		components.Status,
		components.CustomData,
		components.Molecular,
		components.Phenotype,
	]
	cellFilter *ecs.Filter7[
		components.Cell,
		components.Position,
		components.Volume,
		components.Status,
		components.CustomData,
		components.Molecular,
		components.Phenotype,
	]
	statusMap *ecs.Map1[components.Status]

	// Network storage (per cell by ID)
	networks map[uint32]intracellular.Network
	entities map[uint32]ecs.Entity

	definitions []cellDefinition
	env         *field.Microenvironment
	accessor    *field.Accessor
	registry    *intracellular.Registry
	writer      *phenotype.Writer
	scheduler   *coupling.Scheduler

	// Telemetry
	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	logStats  bool

	lastReport coupling.TickReport

	// State
	tick   int64
	time   float64 // minutes
	nextID uint32
}

// New builds a world from cfg: cell types, microenvironment and initial
// tissue, in that order.
func New(cfg *config.Config, opts Options) (*World, error) {
	world := ecs.NewWorld()

	seed := opts.Seed
	if seed == 0 {
		seed = cfg.RandomSeed
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &World{
		cfg:    cfg,
		world:  world,
		rng:    rand.New(rand.NewSource(seed)),
		seed:   seed,
		logger: logger,
		cellMapper: ecs.NewMap7[
			components.Cell,
			components.Position,
			components.Volume,
			components.Status,
			components.CustomData,
			components.Molecular,
			components.Phenotype,
		](world),
		cellFilter: ecs.NewFilter7[
			components.Cell,
			components.Position,
			components.Volume,
			components.Status,
			components.CustomData,
			components.Molecular,
			components.Phenotype,
		](world),
		statusMap: ecs.NewMap1[components.Status](world),
		networks:  make(map[uint32]intracellular.Network),
		entities:  make(map[uint32]ecs.Entity),
		writer:    phenotype.NewWriter(cfg.Phenotype),
		logStats:  opts.LogStats,
	}

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindow > 0 {
		statsWindow = opts.StatsWindow
	}
	w.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	w.collector = telemetry.NewCollector(statsWindow, cfg.Coupling.DT)
	w.bookmarks = telemetry.NewBookmarkDetector(10)

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	w.output = output
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}
	if dir := output.Dir(); dir != "" {
		logger.Info("writing output", "dir", dir, "seed", seed)
	}

	if err := w.SetupMicroenvironment(); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.CreateCellTypes(); err != nil {
		w.Close()
		return nil, err
	}

	schedOpts := []coupling.Option{coupling.WithLogger(logger)}
	if opts.Workers > 0 {
		schedOpts = append(schedOpts, coupling.WithWorkers(opts.Workers))
	}
	w.scheduler, err = coupling.FromConfig(cfg, w.env, schedOpts...)
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, def := range w.definitions {
		probe, err := w.registry.New(def.model)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("cell definition %q: %w", def.name, err)
		}
		if err := w.scheduler.Prepare(def.model, probe, def.schema); err != nil {
			w.Close()
			return nil, fmt.Errorf("cell definition %q: %w", def.name, err)
		}
	}

	if err := w.SetupTissue(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Collect implements coupling.Population over every cell in the world.
func (w *World) Collect(dst []coupling.Agent) []coupling.Agent {
	query := w.cellFilter.Query()
	for query.Next() {
		cell, _, vol, status, custom, mol, ph := query.Get()
		def := &w.definitions[cell.TypeID]
		dst = append(dst, coupling.Agent{
			ID:        cell.ID,
			Status:    status,
			Volume:    vol,
			Molecular: mol,
			Custom:    custom,
			Phenotype: ph,
			Model:     def.model,
			Network:   w.networks[cell.ID],
			Schema:    def.schema,
		})
	}
	return dst
}

// MarkDead flags a cell as dead. Dead cells stay in the world and are
// skipped by the coupling loop.
func (w *World) MarkDead(id uint32) error {
	e, ok := w.entityOf(id)
	if !ok {
		return fmt.Errorf("cell %d: %w", id, ErrNoSuchCell)
	}
	status := w.statusMap.Get(e)
	if !status.Dead {
		status.Dead = true
		w.collector.RecordDeath()
	}
	return nil
}

// CellType returns the name and custom data names of a cell type.
func (w *World) CellType(typeID uint8) (name string, custom []string, ok bool) {
	if int(typeID) >= len(w.definitions) {
		return "", nil, false
	}
	def := &w.definitions[typeID]
	return def.name, def.custom, true
}

// Network returns a cell's reaction network.
func (w *World) Network(id uint32) (intracellular.Network, bool) {
	n, ok := w.networks[id]
	return n, ok
}

// Microenvironment returns the substrate field.
func (w *World) Microenvironment() *field.Microenvironment { return w.env }

// Config returns the configuration the world was built from.
func (w *World) Config() *config.Config { return w.cfg }

// Scheduler returns the coupling scheduler.
func (w *World) Scheduler() *coupling.Scheduler { return w.scheduler }

// LastReport returns the most recent coupling tick report.
func (w *World) LastReport() coupling.TickReport { return w.lastReport }

// Perf returns the performance collector.
func (w *World) Perf() *telemetry.PerfCollector { return w.perf }

// Tick returns the number of completed steps.
func (w *World) Tick() int64 { return w.tick }

// Time returns the simulated time in minutes.
func (w *World) Time() float64 { return w.time }

// Seed returns the RNG seed in use.
func (w *World) Seed() int64 { return w.seed }

// Close stops the coupling workers and flushes output files.
func (w *World) Close() error {
	if w.scheduler != nil {
		w.scheduler.Close()
	}
	return w.output.Close()
}
