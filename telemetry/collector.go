package telemetry

import (
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/coupling"
)

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDuration      float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	deaths          int
	updated         int
	failures        int
	configErrors    int
	numericalErrors int
}

// NewCollector creates a new stats collector.
// windowDuration: how long each stats window lasts in simulated minutes
// dt: minutes per tick (used for tick-to-time conversion)
func NewCollector(windowDuration, dt float64) *Collector {
	ticksPerWindow := int64(windowDuration / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDuration:      windowDuration,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordDeath records a death event.
func (c *Collector) RecordDeath() {
	c.deaths++
}

// RecordTick folds one coupling tick's outcome into the window.
func (c *Collector) RecordTick(r coupling.TickReport) {
	c.updated += r.Updated
	c.failures += r.Failures
	c.configErrors += r.ConfigErrors
	c.numericalErrors += r.NumericalErrors
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Sample is the population state at window end.
type Sample struct {
	Live, Dead, OutOfDomain int
	Proliferative, Arrested int

	// Energy of every live cell
	Energies []float64

	Substrates []SubstrateSample
}

// SubstrateSample is one substrate's state at window end.
type SubstrateSample struct {
	Name       string
	FieldTotal float64
	FieldMean  float64
	// Intracellular concentration of every live cell, in the same order
	// as Sample.Energies
	Intracellular []float64
	Internalized  float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, s Sample) WindowStats {
	mean, std, p10, p50, p90 := ComputeEnergyStats(s.Energies)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTime:         float64(currentTick) * c.dt,

		Live:          s.Live,
		Dead:          s.Dead,
		OutOfDomain:   s.OutOfDomain,
		Proliferative: s.Proliferative,
		Arrested:      s.Arrested,

		Deaths: c.deaths,

		Updated:         c.updated,
		Failures:        c.failures,
		ConfigErrors:    c.configErrors,
		NumericalErrors: c.numericalErrors,

		EnergyMean: mean,
		EnergyStd:  std,
		EnergyP10:  p10,
		EnergyP50:  p50,
		EnergyP90:  p90,
	}

	if len(s.Substrates) > 0 {
		stats.EnergyUptakeCorr = Correlation(s.Energies, s.Substrates[0].Intracellular)
	}
	for _, sub := range s.Substrates {
		intraMean, _, _, intraP50, _ := ComputeEnergyStats(sub.Intracellular)
		stats.Substrates = append(stats.Substrates, SubstrateStats{
			WindowEndTick: currentTick,
			Substrate:     sub.Name,
			FieldMean:     sub.FieldMean,
			FieldTotal:    sub.FieldTotal,
			IntraMean:     intraMean,
			IntraP50:      intraP50,
			Internalized:  sub.Internalized,
		})
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.deaths = 0
	c.updated = 0
	c.failures = 0
	c.configErrors = 0
	c.numericalErrors = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
