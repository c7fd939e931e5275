package telemetry

import (
	"math"
	"testing"
	"time"
)

// stepClock is a manual clock for deterministic timings.
type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCollector(window int) (*PerfCollector, *stepClock) {
	clock := &stepClock{t: time.Unix(1000, 0)}
	return NewPerfCollector(window, WithClock(clock.now)), clock
}

// runTick times one tick with the given phase durations in order.
func runTick(pc *PerfCollector, clock *stepClock, cells int, phases []Phase, durs []time.Duration) {
	pc.StartTick()
	for i, ph := range phases {
		pc.StartPhase(ph)
		if ph == PhaseCoupling {
			pc.RecordCells(cells)
		}
		clock.advance(durs[i])
	}
	pc.EndTick()
}

func TestPerfCollector_PhaseTiming(t *testing.T) {
	pc, clock := newTestCollector(10)

	ms := time.Millisecond
	runTick(pc, clock, 10,
		[]Phase{PhaseDiffusion, PhaseExchange, PhaseDiffusion, PhaseExchange, PhaseCoupling, PhaseDeath},
		[]time.Duration{3 * ms, 1 * ms, 2 * ms, 1 * ms, 5 * ms, 1 * ms},
	)

	s := pc.Stats()
	if s.AvgTick != 13*ms || s.MinTick != 13*ms || s.MaxTick != 13*ms {
		t.Errorf("tick = avg %v min %v max %v, want 13ms", s.AvgTick, s.MinTick, s.MaxTick)
	}

	wantAvg := map[Phase]time.Duration{
		PhaseDiffusion: 5 * ms,
		PhaseExchange:  2 * ms,
		PhaseCoupling:  5 * ms,
		PhaseDeath:     1 * ms,
		PhaseTelemetry: 0,
	}
	for ph, want := range wantAvg {
		if got := s.Phase(ph).Avg; got != want {
			t.Errorf("%s avg = %v, want %v", ph, got, want)
		}
	}
	if pct := s.Phase(PhaseDiffusion).Pct; math.Abs(pct-500.0/13) > 1e-9 {
		t.Errorf("diffusion pct = %v, want %v", pct, 500.0/13)
	}

	if s.SubstepsPerTick != 2 {
		t.Errorf("substeps per tick = %v, want 2", s.SubstepsPerTick)
	}
	if s.AvgSubstep != 3500*time.Microsecond {
		t.Errorf("avg substep = %v, want 3.5ms", s.AvgSubstep)
	}
	if s.MaxSubstep != 4*ms {
		t.Errorf("max substep = %v, want 4ms", s.MaxSubstep)
	}
	if s.CouplingPerCell != 500*time.Microsecond {
		t.Errorf("coupling per cell = %v, want 500µs", s.CouplingPerCell)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc, clock := newTestCollector(2)

	for _, d := range []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond} {
		runTick(pc, clock, 0, []Phase{PhaseCoupling}, []time.Duration{d})
	}

	s := pc.Stats()
	if s.AvgTick != 3*time.Millisecond || s.MinTick != 2*time.Millisecond || s.MaxTick != 4*time.Millisecond {
		t.Errorf("window = avg %v min %v max %v, want 3ms/2ms/4ms", s.AvgTick, s.MinTick, s.MaxTick)
	}
	if math.Abs(s.TicksPerSecond-1000.0/3) > 1e-9 {
		t.Errorf("ticks per second = %v", s.TicksPerSecond)
	}
	// Ticks with no attempted cells carry no per-cell cost
	if s.CouplingPerCell != 0 {
		t.Errorf("coupling per cell = %v, want 0", s.CouplingPerCell)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc, _ := newTestCollector(10)

	s := pc.Stats()
	if s.AvgTick != 0 || s.TicksPerSecond != 0 || s.SubstepsPerTick != 0 {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc, clock := newTestCollector(10)

	pc.RecordFrame()
	if s := pc.Stats(); s.FPS != 0 {
		t.Errorf("FPS after one frame = %v, want 0", s.FPS)
	}

	clock.advance(20 * time.Millisecond)
	pc.RecordFrame()

	s := pc.Stats()
	if s.FrameDuration != 20*time.Millisecond {
		t.Errorf("frame duration = %v, want 20ms", s.FrameDuration)
	}
	if math.Abs(s.FPS-50) > 1e-9 {
		t.Errorf("FPS = %v, want 50", s.FPS)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseExchange.String() != "exchange" || Phase(99).String() != "unknown" {
		t.Errorf("names = %q, %q", PhaseExchange, Phase(99))
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	var s PerfStats
	s.AvgTick = 1500 * time.Microsecond
	s.AvgSubstep = 250 * time.Microsecond
	s.CouplingPerCell = 800 * time.Nanosecond
	s.Phases[PhaseDiffusion].Pct = 40
	s.Phases[PhaseCoupling].Pct = 55
	s.Phases[PhaseTelemetry].Pct = 5

	row := s.ToCSV(120)
	if row.WindowEnd != 120 || row.AvgTickUS != 1500 || row.AvgSubstepUS != 250 || row.CouplingPerCellNS != 800 {
		t.Errorf("row = %+v", row)
	}
	if row.DiffusionPct != 40 || row.CouplingPct != 55 || row.TelemetryPct != 5 || row.ExchangePct != 0 {
		t.Errorf("phase columns = %+v", row)
	}
}
