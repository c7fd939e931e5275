package sim

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/telemetry"
)

// Step advances the world by one coupling tick:
//
//  1. diffusion sub-steps, each followed by cell uptake/secretion
//  2. one coupling tick over every live cell
//  3. stochastic death from each cell's death rate
//  4. out-of-domain flagging
//  5. telemetry
//
// Each phase completes before the next starts. Only a systemic coupling
// failure is returned; per-cell failures are in LastReport.
func (w *World) Step() error {
	w.perf.StartTick()

	// 1. Diffusion and exchange
	steps := w.cfg.Derived.DiffusionSteps
	dt := w.cfg.Derived.DiffusionStepDT
	for i := 0; i < steps; i++ {
		w.perf.StartPhase(telemetry.PhaseDiffusion)
		w.env.Step(dt)

		w.perf.StartPhase(telemetry.PhaseExchange)
		w.updateExchange(dt)
	}

	// 2. Coupling
	w.perf.StartPhase(telemetry.PhaseCoupling)
	report, err := w.scheduler.RunTick(w)
	if err != nil {
		w.perf.EndTick()
		return fmt.Errorf("tick %d: %w", w.tick, err)
	}
	w.lastReport = report
	w.collector.RecordTick(report)
	w.perf.RecordCells(report.Attempted())

	// 3-4. Death and domain checks
	w.perf.StartPhase(telemetry.PhaseDeath)
	w.updateDeath()
	w.updateDomain()

	w.tick++
	w.time += w.scheduler.DT()

	// 5. Telemetry
	w.perf.StartPhase(telemetry.PhaseTelemetry)
	w.flushTelemetry()
	w.writeCellSnapshot()

	w.perf.EndTick()
	return nil
}

// updateExchange moves substrate between each live cell's voxel and its
// internalized totals.
func (w *World) updateExchange(dt float64) {
	mesh := w.env.Mesh()

	query := w.cellFilter.Query()
	for query.Next() {
		cell, pos, vol, status, _, mol, _ := query.Get()

		if !status.Active() {
			continue
		}
		voxel, ok := mesh.VoxelIndex(pos.X, pos.Y, pos.Z)
		if !ok {
			continue
		}

		def := &w.definitions[cell.TypeID]
		for d, ex := range def.exchange {
			w.env.Exchange(voxel, d, ex, vol.Total, &mol.Internalized[d], dt)
		}
	}
}

// updateDeath kills each live cell with probability deathRate·dt.
func (w *World) updateDeath() {
	dt := w.scheduler.DT()

	query := w.cellFilter.Query()
	for query.Next() {
		_, _, _, status, _, _, ph := query.Get()

		if !status.Active() || ph.DeathRate <= 0 {
			continue
		}
		if w.rng.Float64() < ph.DeathRate*dt {
			status.Dead = true
			w.collector.RecordDeath()
		}
	}
}

// updateDomain flags cells that have left the domain.
func (w *World) updateDomain() {
	mesh := w.env.Mesh()

	query := w.cellFilter.Query()
	for query.Next() {
		_, pos, _, status, _, _, _ := query.Get()

		if !status.OutOfDomain && !mesh.Contains(pos.X, pos.Y, pos.Z) {
			status.OutOfDomain = true
		}
	}
}

// CellState is a copy of one cell's records.
type CellState struct {
	ID           uint32
	TypeID       uint8
	Position     components.Position
	Volume       float64
	Status       components.Status
	Custom       []float64
	Internalized []float64
	Phenotype    components.Phenotype

	// Energy is the mirrored energy custom data value, or the phenotype
	// energy for cell types without that slot.
	Energy float64
}

func (w *World) cellState(cell *components.Cell, pos *components.Position, vol *components.Volume,
	status *components.Status, custom *components.CustomData, mol *components.Molecular,
	ph *components.Phenotype) CellState {
	c := CellState{
		ID:           cell.ID,
		TypeID:       cell.TypeID,
		Position:     *pos,
		Volume:       vol.Total,
		Status:       *status,
		Custom:       custom.Clone().Values,
		Internalized: mol.Clone().Internalized,
		Phenotype:    *ph,
		Energy:       ph.Energy,
	}
	if slot := w.definitions[cell.TypeID].energy; slot >= 0 && slot < len(c.Custom) {
		c.Energy = c.Custom[slot]
	}
	return c
}

// Radius returns the radius of a sphere of the cell's volume.
func (c CellState) Radius() float64 {
	return math.Cbrt(3 * c.Volume / (4 * math.Pi))
}

// Cells returns a copy of every cell's state.
func (w *World) Cells() []CellState {
	var out []CellState
	query := w.cellFilter.Query()
	for query.Next() {
		out = append(out, w.cellState(query.Get()))
	}
	return out
}

// Cell returns a copy of one cell's state.
func (w *World) Cell(id uint32) (CellState, bool) {
	e, ok := w.entityOf(id)
	if !ok {
		return CellState{}, false
	}
	return w.cellState(w.cellMapper.Get(e)), true
}

// Extracellular returns the field value of every substrate at a cell's
// position, in density order.
func (w *World) Extracellular(id uint32) ([]float64, error) {
	e, ok := w.entityOf(id)
	if !ok {
		return nil, fmt.Errorf("cell %d: %w", id, ErrNoSuchCell)
	}
	_, pos, _, status, _, _, _ := w.cellMapper.Get(e)
	if status.OutOfDomain {
		return nil, fmt.Errorf("cell %d: out of domain", id)
	}

	names := w.env.Names()
	out := make([]float64, len(names))
	for d, name := range names {
		v, err := w.accessor.Local(name, pos.X, pos.Y, pos.Z)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", id, err)
		}
		out[d] = v
	}
	return out, nil
}

// CellAt returns the cell whose disc contains the point (x, y), preferring
// the one with the nearest center.
func (w *World) CellAt(x, y float64) (uint32, bool) {
	var (
		best  uint32
		bestD = math.Inf(1)
		found bool
	)
	for _, c := range w.Cells() {
		d := math.Hypot(c.Position.X-x, c.Position.Y-y)
		if d <= c.Radius() && d < bestD {
			best, bestD, found = c.ID, d, true
		}
	}
	return best, found
}

// CustomValue returns a cell's custom data value by name.
func (w *World) CustomValue(id uint32, name string) (float64, error) {
	e, ok := w.entityOf(id)
	if !ok {
		return 0, fmt.Errorf("cell %d: %w", id, ErrNoSuchCell)
	}
	cell, _, _, _, custom, _, _ := w.cellMapper.Get(e)
	slot, err := w.definitions[cell.TypeID].schema.Resolve(name)
	if err != nil {
		return 0, fmt.Errorf("cell %d: %w", id, err)
	}
	return custom.Values[slot], nil
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (w *World) flushTelemetry() {
	if !w.collector.ShouldFlush(w.tick) {
		return
	}

	stats := w.collector.Flush(w.tick, w.sample())
	perfStats := w.perf.Stats()

	// Log stats if enabled (console output)
	if w.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	// Write to CSV if output manager is enabled
	if err := w.output.WriteTelemetry(stats); err != nil {
		w.logger.Error("failed to write telemetry", "error", err)
	}
	if err := w.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		w.logger.Error("failed to write perf", "error", err)
	}

	for _, bm := range w.bookmarks.Check(stats) {
		if w.logStats {
			bm.LogBookmark()
		}
		if err := w.output.WriteBookmark(bm); err != nil {
			w.logger.Error("failed to write bookmark", "error", err)
		}
	}
}

// sample collects the population state for a stats window.
func (w *World) sample() telemetry.Sample {
	var s telemetry.Sample

	n := w.env.NumDensities()
	names := w.env.Names()
	mesh := w.env.Mesh()
	s.Substrates = make([]telemetry.SubstrateSample, n)
	for d := 0; d < n; d++ {
		total := w.env.Total(d)
		s.Substrates[d] = telemetry.SubstrateSample{
			Name:       names[d],
			FieldTotal: total,
			FieldMean:  total / (float64(mesh.Voxels()) * mesh.VoxelVolume()),
		}
	}

	query := w.cellFilter.Query()
	for query.Next() {
		_, _, vol, status, _, mol, ph := query.Get()

		switch {
		case status.Dead:
			s.Dead++
			continue
		case status.OutOfDomain:
			s.OutOfDomain++
			continue
		}

		s.Live++
		if ph.State == components.Proliferative {
			s.Proliferative++
		} else {
			s.Arrested++
		}
		s.Energies = append(s.Energies, ph.Energy)
		for d := 0; d < n; d++ {
			sub := &s.Substrates[d]
			sub.Intracellular = append(sub.Intracellular, vol.Concentration(mol.Internalized[d]))
			sub.Internalized += mol.Internalized[d]
		}
	}
	return s
}

// writeCellSnapshot appends every cell to cells.csv on the snapshot interval.
func (w *World) writeCellSnapshot() {
	interval := int64(w.cfg.Telemetry.SnapshotInterval)
	if w.output == nil || interval <= 0 || w.tick%interval != 0 {
		return
	}

	records := make([]telemetry.CellRecord, 0, len(w.networks))
	query := w.cellFilter.Query()
	for query.Next() {
		cell, pos, vol, status, _, mol, ph := query.Get()
		records = append(records, telemetry.NewCellRecord(w.tick, *cell, *pos, *vol, *status, *mol, *ph))
	}
	if err := w.output.WriteCells(records); err != nil {
		w.logger.Error("failed to write cells", "error", err)
	}
}

// entityOf returns the entity of a live cell ID.
func (w *World) entityOf(id uint32) (ecs.Entity, bool) {
	e, ok := w.entities[id]
	if !ok || !w.world.Alive(e) {
		return ecs.Entity{}, false
	}
	return e, true
}
