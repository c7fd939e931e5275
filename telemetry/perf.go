package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one stage of a world step.
type Phase uint8

// Step phases in execution order. Diffusion and exchange repeat once per
// diffusion sub-step.
const (
	PhaseDiffusion Phase = iota
	PhaseExchange
	PhaseCoupling
	PhaseDeath
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{"diffusion", "exchange", "coupling", "death", "telemetry"}

func (p Phase) String() string {
	if p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// tickTiming is the timing of one world step.
type tickTiming struct {
	total    time.Duration
	phases   [numPhases]time.Duration
	substeps int           // diffusion sub-steps run
	maxSub   time.Duration // slowest diffusion + exchange sub-step
	cells    int           // cells the coupling tick attempted
}

// PerfOption configures a PerfCollector.
type PerfOption func(*PerfCollector)

// WithClock replaces the wall clock used for all timings.
func WithClock(now func() time.Time) PerfOption {
	return func(p *PerfCollector) { p.now = now }
}

// PerfCollector times world steps over a rolling window of ticks.
type PerfCollector struct {
	now    func() time.Time
	window []tickTiming
	next   int
	filled int

	cur        tickTiming
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool
	subStart   time.Time // start of the current diffusion sub-step

	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int, opts ...PerfOption) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	p := &PerfCollector{
		now:    time.Now,
		window: make([]tickTiming, windowSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartTick begins timing a world step.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.cur = tickTiming{}
	p.inPhase = false
}

// StartPhase ends the running phase and starts another. Entering the
// diffusion phase starts a new diffusion sub-step, which lasts until the
// next diffusion phase or any phase after exchange.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := p.now()
	p.closePhase(now)
	if phase == PhaseDiffusion {
		p.cur.substeps++
		p.subStart = now
	}
	p.phase = phase
	p.phaseStart = now
	p.inPhase = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if !p.inPhase {
		return
	}
	p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	if p.phase == PhaseExchange || p.phase == PhaseDiffusion {
		if sub := now.Sub(p.subStart); sub > p.cur.maxSub {
			p.cur.maxSub = sub
		}
	}
}

// RecordCells sets how many cells the coupling tick attempted, for the
// per-cell coupling cost.
func (p *PerfCollector) RecordCells(n int) {
	p.cur.cells = n
}

// EndTick closes the running phase and stores the tick in the window.
func (p *PerfCollector) EndTick() {
	now := p.now()
	p.closePhase(now)
	p.inPhase = false
	p.cur.total = now.Sub(p.tickStart)

	p.window[p.next] = p.cur
	p.next = (p.next + 1) % len(p.window)
	if p.filled < len(p.window) {
		p.filled++
	}
}

// RecordFrame marks the end of a rendered frame.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PhaseStats is the window average of one phase.
type PhaseStats struct {
	Avg time.Duration
	Pct float64 // share of the average tick
}

// PerfStats summarizes the window.
type PerfStats struct {
	AvgTick time.Duration
	MinTick time.Duration
	MaxTick time.Duration

	Phases [numPhases]PhaseStats

	// Diffusion sub-steps: average per tick, mean and worst duration
	SubstepsPerTick float64
	AvgSubstep      time.Duration
	MaxSubstep      time.Duration

	// Coupling time per attempted cell
	CouplingPerCell time.Duration

	TicksPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Phase returns the stats of one phase.
func (s PerfStats) Phase(p Phase) PhaseStats { return s.Phases[p] }

// Stats computes the window summary.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	s.FrameDuration = p.frame
	if p.frame > 0 {
		s.FPS = float64(time.Second) / float64(p.frame)
	}
	if p.filled == 0 {
		return s
	}

	var (
		total, subTime, couplingTime time.Duration
		phaseSum                     [numPhases]time.Duration
		substeps, cells              int
	)
	for i, t := range p.window[:p.filled] {
		total += t.total
		if i == 0 || t.total < s.MinTick {
			s.MinTick = t.total
		}
		s.MaxTick = max(s.MaxTick, t.total)
		s.MaxSubstep = max(s.MaxSubstep, t.maxSub)
		for ph, d := range t.phases {
			phaseSum[ph] += d
		}
		substeps += t.substeps
		subTime += t.phases[PhaseDiffusion] + t.phases[PhaseExchange]
		if t.cells > 0 {
			cells += t.cells
			couplingTime += t.phases[PhaseCoupling]
		}
	}

	n := time.Duration(p.filled)
	s.AvgTick = total / n
	for ph := range phaseSum {
		s.Phases[ph].Avg = phaseSum[ph] / n
		if s.AvgTick > 0 {
			s.Phases[ph].Pct = float64(phaseSum[ph]) / float64(total) * 100
		}
	}
	s.SubstepsPerTick = float64(substeps) / float64(p.filled)
	if substeps > 0 {
		s.AvgSubstep = subTime / time.Duration(substeps)
	}
	if cells > 0 {
		s.CouplingPerCell = couplingTime / time.Duration(cells)
	}
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}
	return s
}

// LogStats logs the summary at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("min_tick_us", s.MinTick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
		slog.Float64("substeps_per_tick", s.SubstepsPerTick),
		slog.Int64("avg_substep_us", s.AvgSubstep.Microseconds()),
		slog.Int64("max_substep_us", s.MaxSubstep.Microseconds()),
		slog.Int64("coupling_per_cell_ns", s.CouplingPerCell.Nanoseconds()),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for ph, st := range s.Phases {
		if st.Pct > 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", st.Pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd         int64   `csv:"window_end"`
	AvgTickUS         int64   `csv:"avg_tick_us"`
	MinTickUS         int64   `csv:"min_tick_us"`
	MaxTickUS         int64   `csv:"max_tick_us"`
	TicksPerSec       float64 `csv:"ticks_per_sec"`
	FPS               float64 `csv:"fps"`
	SubstepsPerTick   float64 `csv:"substeps_per_tick"`
	AvgSubstepUS      int64   `csv:"avg_substep_us"`
	MaxSubstepUS      int64   `csv:"max_substep_us"`
	CouplingPerCellNS int64   `csv:"coupling_per_cell_ns"`
	DiffusionPct      float64 `csv:"diffusion_pct"`
	ExchangePct       float64 `csv:"exchange_pct"`
	CouplingPct       float64 `csv:"coupling_pct"`
	DeathPct          float64 `csv:"death_pct"`
	TelemetryPct      float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the summary for perf.csv.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:         windowEnd,
		AvgTickUS:         s.AvgTick.Microseconds(),
		MinTickUS:         s.MinTick.Microseconds(),
		MaxTickUS:         s.MaxTick.Microseconds(),
		TicksPerSec:       s.TicksPerSecond,
		FPS:               s.FPS,
		SubstepsPerTick:   s.SubstepsPerTick,
		AvgSubstepUS:      s.AvgSubstep.Microseconds(),
		MaxSubstepUS:      s.MaxSubstep.Microseconds(),
		CouplingPerCellNS: s.CouplingPerCell.Nanoseconds(),
		DiffusionPct:      s.Phases[PhaseDiffusion].Pct,
		ExchangePct:       s.Phases[PhaseExchange].Pct,
		CouplingPct:       s.Phases[PhaseCoupling].Pct,
		DeathPct:          s.Phases[PhaseDeath].Pct,
		TelemetryPct:      s.Phases[PhaseTelemetry].Pct,
	}
}
