// Package coupling runs the per-cell intracellular/extracellular coupling
// loop: once per macroscopic tick, every active cell pulls its intracellular
// substrate concentrations, advances its own reaction network, and writes
// the results back to its internalized totals, custom data and phenotype.
//
// Cells are independent. Per-cell work runs in parallel on a worker pool and
// only touches that cell's network; all writes to cell records happen in a
// single-threaded apply phase after the join.
package coupling

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/field"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/intracellular"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/phenotype"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

// ErrSystemic marks failures that abort the whole tick: a missing field or
// population.
var ErrSystemic = errors.New("systemic coupling failure")

// errPanic marks a recovered panic inside one cell's update.
var errPanic = errors.New("panic in cell update")

// defaultParallelThreshold is the minimum active count to use the pool.
// Below this, single-threaded is faster due to goroutine overhead.
const defaultParallelThreshold = 64

// Binding couples a substrate to a network variable. The post-integration
// value is mirrored into the named custom data slot when CustomData is set.
type Binding struct {
	Substrate  string
	Variable   string
	CustomData string
}

// Output mirrors a network variable with no substrate into custom data.
type Output struct {
	Variable   string
	CustomData string
}

// Agent is the scheduler's borrowed view of one cell for a tick. The record
// pointers belong to the population and must stay valid, and the
// population must not change structurally, until RunTick returns.
type Agent struct {
	ID uint32

	Status    *components.Status
	Volume    *components.Volume
	Molecular *components.Molecular
	Custom    *components.CustomData
	Phenotype *components.Phenotype

	// Model names the network schema; cells with the same Model share
	// resolved variable slots.
	Model   string
	Network intracellular.Network
	// Schema resolves custom data names for this cell's definition.
	Schema *vars.Index

	// resolved in the gather phase
	net    *netSlots
	custom *customSlots
	skip   skipReason
}

// Population provides the cells for a tick.
type Population interface {
	// Collect appends a handle for every cell, live or not, to dst.
	Collect(dst []Agent) []Agent
}

type skipReason uint8

const (
	skipNone skipReason = iota
	skipInactive
	skipDisabled
)

// netSlots holds resolved network slots for one variable schema.
type netSlots struct {
	names   []string // schema the slots were resolved against
	inputs  []int    // per binding
	outputs []int    // per output
}

// customSlots holds resolved custom data slots for one schema; -1 = no mirror.
type customSlots struct {
	bindings []int
	outputs  []int
	err      error
}

// result captures one cell's computed update, applied after the join.
type result struct {
	conc      []float64 // per binding, post-integration concentration
	extra     []float64 // per output
	phenotype components.Phenotype
	err       error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the worker count (0 = GOMAXPROCS).
func WithWorkers(n int) Option { return func(s *Scheduler) { s.workers = n } }

// WithParallelThreshold sets the cell count below which a tick runs on the
// calling goroutine.
func WithParallelThreshold(n int) Option { return func(s *Scheduler) { s.parallelThreshold = n } }

// WithLogger sets the logger for per-cell failure reports.
func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// WithPhenotype sets the phenotype feedback writer. Without one, phenotypes
// are left untouched.
func WithPhenotype(w *phenotype.Writer) Option { return func(s *Scheduler) { s.writer = w } }

// Scheduler runs the coupling loop.
type Scheduler struct {
	dt       float64
	accessor *field.Accessor
	bindings []Binding
	outputs  []Output
	density  []int // per binding

	writer            *phenotype.Writer
	logger            *slog.Logger
	workers           int
	parallelThreshold int

	// names of every value a result carries, for the phenotype view
	valueNames []string

	netCache    map[string]*netSlots
	customCache map[*vars.Index]*customSlots
	disabled    map[uint32]error

	agents  []Agent
	results []result
	pool    *pool
	tick    int64
}

// New creates a scheduler over the given field. Every binding's substrate is
// resolved here; an unknown substrate is a configuration error and a nil
// field is systemic.
func New(env *field.Microenvironment, dt float64, bindings []Binding, outputs []Output, opts ...Option) (*Scheduler, error) {
	acc, err := field.NewAccessor(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSystemic, err)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("%w: coupling dt must be positive, got %g", intracellular.ErrConfiguration, dt)
	}

	s := &Scheduler{
		dt:                dt,
		accessor:          acc,
		bindings:          append([]Binding(nil), bindings...),
		outputs:           append([]Output(nil), outputs...),
		density:           make([]int, len(bindings)),
		parallelThreshold: defaultParallelThreshold,
		netCache:          make(map[string]*netSlots),
		customCache:       make(map[*vars.Index]*customSlots),
		disabled:          make(map[uint32]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	for i, b := range s.bindings {
		idx, err := acc.Resolve(b.Substrate)
		if err != nil {
			return nil, fmt.Errorf("%w: binding %q: %w", intracellular.ErrConfiguration, b.Variable, err)
		}
		s.density[i] = idx
		s.valueNames = append(s.valueNames, b.Variable)
	}
	for _, o := range s.outputs {
		s.valueNames = append(s.valueNames, o.Variable)
	}

	s.pool = newPool(s.workers, s.computeRange)
	return s, nil
}

// FromConfig creates a scheduler from the coupling and phenotype config.
func FromConfig(cfg *config.Config, env *field.Microenvironment, opts ...Option) (*Scheduler, error) {
	bindings := make([]Binding, len(cfg.Coupling.Bindings))
	for i, b := range cfg.Coupling.Bindings {
		bindings[i] = Binding{Substrate: b.Substrate, Variable: b.Variable, CustomData: b.CustomData}
	}
	outputs := make([]Output, len(cfg.Coupling.Outputs))
	for i, o := range cfg.Coupling.Outputs {
		outputs[i] = Output{Variable: o.Variable, CustomData: o.CustomData}
	}

	base := []Option{
		WithWorkers(cfg.Coupling.Workers),
		WithPhenotype(phenotype.NewWriter(cfg.Phenotype)),
	}
	if cfg.Coupling.ParallelThreshold > 0 {
		base = append(base, WithParallelThreshold(cfg.Coupling.ParallelThreshold))
	}
	return New(env, cfg.Coupling.DT, bindings, outputs, append(base, opts...)...)
}

// DT returns the macroscopic step.
func (s *Scheduler) DT() float64 { return s.dt }

// Prepare resolves every coupling variable against a model's network and a
// cell definition's custom data schema. Call once per cell definition at
// setup so schema mismatches surface before the first tick.
func (s *Scheduler) Prepare(model string, probe intracellular.Network, schema *vars.Index) error {
	if _, err := s.resolveNet(model, probe); err != nil {
		return err
	}
	if cs := s.resolveCustom(schema); cs.err != nil {
		return cs.err
	}
	return nil
}

// Disabled reports whether a cell's network is disabled and the error that
// disabled it.
func (s *Scheduler) Disabled(id uint32) (bool, error) {
	err, ok := s.disabled[id]
	return ok, err
}

// Enable clears a cell's disabled flag.
func (s *Scheduler) Enable(id uint32) { delete(s.disabled, id) }

// Close stops the worker pool.
func (s *Scheduler) Close() {
	s.pool.stop()
}

// RunTick performs one coupling step over the population. Per-cell failures
// are isolated and counted in the report; only a missing population is
// returned as an error.
func (s *Scheduler) RunTick(pop Population) (TickReport, error) {
	start := time.Now()
	s.tick++
	report := TickReport{Tick: s.tick}

	if pop == nil {
		return report, fmt.Errorf("%w: population unavailable", ErrSystemic)
	}

	// Phase A: gather (single-threaded)
	s.agents = pop.Collect(s.agents[:0])
	n := len(s.agents)
	report.Cells = n
	if cap(s.results) < n {
		s.results = make([]result, n)
	}
	s.results = s.results[:n]

	active := 0
	for i := range s.agents {
		a := &s.agents[i]
		r := &s.results[i]
		r.err = nil
		a.skip = skipNone

		if a.Status == nil || !a.Status.Active() {
			a.skip = skipInactive
			continue
		}
		if _, off := s.disabled[a.ID]; off {
			a.skip = skipDisabled
			continue
		}
		if err := s.bind(a); err != nil {
			r.err = err
			continue
		}
		active++
	}

	// Phase B: compute
	if active < s.parallelThreshold || s.pool.numWorkers == 1 {
		s.computeRange(0, n)
	} else {
		s.pool.run(n)
	}

	// Phase C: apply (single-threaded)
	for i := range s.agents {
		s.apply(&s.agents[i], &s.results[i], &report)
	}

	report.Duration = time.Since(start)
	return report, nil
}

// bind attaches resolved slots to an agent, resolving new models and schemas
// on first sight.
func (s *Scheduler) bind(a *Agent) error {
	if a.Network == nil {
		return fmt.Errorf("%w: cell %d has no network", intracellular.ErrConfiguration, a.ID)
	}
	if a.Volume == nil || a.Molecular == nil {
		return fmt.Errorf("%w: cell %d has incomplete records", intracellular.ErrConfiguration, a.ID)
	}
	ns, err := s.resolveNet(a.Model, a.Network)
	if err != nil {
		return err
	}
	cs := s.resolveCustom(a.Schema)
	if cs.err != nil {
		return cs.err
	}
	a.net = ns
	a.custom = cs
	return nil
}

// resolveNet returns the slots of net's coupling variables. Slots are cached
// per model and reused only for networks reporting the same variable names;
// any other network is resolved on its own. Failures are never cached, so a
// misconfigured network fails alone.
func (s *Scheduler) resolveNet(model string, net intracellular.Network) (*netSlots, error) {
	names := net.Names()
	cached, ok := s.netCache[model]
	if ok && slices.Equal(cached.names, names) {
		return cached, nil
	}

	ns := &netSlots{
		names:   names,
		inputs:  make([]int, len(s.bindings)),
		outputs: make([]int, len(s.outputs)),
	}
	for i, b := range s.bindings {
		slot, err := net.Index(b.Variable)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", model, err)
		}
		ns.inputs[i] = slot
	}
	for i, o := range s.outputs {
		slot, err := net.Index(o.Variable)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", model, err)
		}
		ns.outputs[i] = slot
	}
	if !ok {
		s.netCache[model] = ns
	}
	return ns, nil
}

func (s *Scheduler) resolveCustom(schema *vars.Index) *customSlots {
	if cs, ok := s.customCache[schema]; ok {
		return cs
	}
	cs := &customSlots{
		bindings: make([]int, len(s.bindings)),
		outputs:  make([]int, len(s.outputs)),
	}
	resolve := func(name string) (int, error) {
		if name == "" {
			return -1, nil
		}
		if schema == nil {
			return -1, fmt.Errorf("custom data %q: %w", name, vars.ErrNotFound)
		}
		slot, err := schema.Resolve(name)
		if err != nil {
			return -1, fmt.Errorf("custom data: %w", err)
		}
		return slot, nil
	}
	for i, b := range s.bindings {
		if cs.bindings[i], cs.err = resolve(b.CustomData); cs.err != nil {
			break
		}
	}
	if cs.err == nil {
		for i, o := range s.outputs {
			if cs.outputs[i], cs.err = resolve(o.CustomData); cs.err != nil {
				break
			}
		}
	}
	s.customCache[schema] = cs
	return cs
}

// computeRange runs the per-cell update for agents [i0, i1).
func (s *Scheduler) computeRange(i0, i1 int) {
	for i := i0; i < i1; i++ {
		a := &s.agents[i]
		r := &s.results[i]
		if a.skip != skipNone || r.err != nil {
			continue
		}
		s.compute(a, r)
	}
}

// compute pulls, integrates and derives one cell's update into r. It reads
// only the cell's own records and writes only its network and r.
func (s *Scheduler) compute(a *Agent, r *result) {
	defer func() {
		if p := recover(); p != nil {
			r.err = fmt.Errorf("%w: cell %d: %v", errPanic, a.ID, p)
		}
	}()

	if len(r.conc) != len(s.bindings) {
		r.conc = make([]float64, len(s.bindings))
	}
	if len(r.extra) != len(s.outputs) {
		r.extra = make([]float64, len(s.outputs))
	}

	volume := a.Volume.Total
	for i := range s.bindings {
		c, err := s.accessor.Intracellular(s.density[i], volume, a.Molecular.Internalized)
		if err != nil {
			r.err = fmt.Errorf("%w: cell %d: %w", intracellular.ErrConfiguration, a.ID, err)
			return
		}
		a.Network.SetInputAt(a.net.inputs[i], c)
	}

	if err := a.Network.Advance(s.dt); err != nil {
		r.err = fmt.Errorf("cell %d: %w", a.ID, err)
		return
	}

	for i := range s.bindings {
		v := a.Network.OutputAt(a.net.inputs[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			r.err = fmt.Errorf("%w: cell %d: %s = %g", intracellular.ErrNumerical, a.ID, s.bindings[i].Variable, v)
			return
		}
		r.conc[i] = v
	}
	for i := range s.outputs {
		v := a.Network.OutputAt(a.net.outputs[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			r.err = fmt.Errorf("%w: cell %d: %s = %g", intracellular.ErrNumerical, a.ID, s.outputs[i].Variable, v)
			return
		}
		r.extra[i] = v
	}

	if a.Phenotype != nil {
		r.phenotype = *a.Phenotype
		if s.writer != nil {
			s.writer.Apply(&r.phenotype, resultView{names: s.valueNames, conc: r.conc, extra: r.extra})
		}
	}
}

// apply writes one cell's result to its records and updates the report.
func (s *Scheduler) apply(a *Agent, r *result, report *TickReport) {
	switch a.skip {
	case skipInactive:
		report.Skipped++
		return
	case skipDisabled:
		report.Disabled++
		return
	}

	if r.err != nil {
		s.fail(a, r.err, report)
		return
	}

	volume := a.Volume.Total
	for i, idx := range s.density {
		// Overwrite: the network output is the full intracellular amount
		a.Molecular.Internalized[idx] = r.conc[i] * volume
		if slot := a.custom.bindings[i]; slot >= 0 && a.Custom != nil {
			a.Custom.Values[slot] = r.conc[i]
		}
	}
	for i := range s.outputs {
		if slot := a.custom.outputs[i]; slot >= 0 && a.Custom != nil {
			a.Custom.Values[slot] = r.extra[i]
		}
	}
	if a.Phenotype != nil {
		*a.Phenotype = r.phenotype
	}
	report.Updated++
}

// fail records a per-cell failure. Schema problems disable the cell's network
// for later ticks; numerical failures are retried next tick.
func (s *Scheduler) fail(a *Agent, err error, report *TickReport) {
	report.Failures++
	switch {
	case errors.Is(err, intracellular.ErrNumerical):
		report.NumericalErrors++
	case errors.Is(err, intracellular.ErrConfiguration), errors.Is(err, vars.ErrNotFound), errors.Is(err, errPanic):
		report.ConfigErrors++
		s.disabled[a.ID] = err
		s.logger.Warn("disabling cell network", "tick", s.tick, "cell_id", a.ID, "error", err)
		return
	}
	s.logger.Warn("cell update failed", "tick", s.tick, "cell_id", a.ID, "error", err)
}

// resultView exposes a result's values to the phenotype writer by name.
type resultView struct {
	names []string
	conc  []float64
	extra []float64
}

func (v resultView) Get(name string) (float64, bool) {
	for i, n := range v.names {
		if n != name {
			continue
		}
		if i < len(v.conc) {
			return v.conc[i], true
		}
		return v.extra[i-len(v.conc)], true
	}
	return 0, false
}
