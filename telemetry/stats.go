package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTime         float64 `csv:"sim_time"` // minutes

	// Population counts at window end
	Live          int `csv:"live"`
	Dead          int `csv:"dead"`
	OutOfDomain   int `csv:"out_of_domain"`
	Proliferative int `csv:"proliferative"`
	Arrested      int `csv:"arrested"`

	// Events during window
	Deaths int `csv:"deaths"`

	// Coupling outcomes during window
	Updated         int `csv:"updated"`
	Failures        int `csv:"failures"`
	ConfigErrors    int `csv:"config_errors"`
	NumericalErrors int `csv:"numerical_errors"`

	// Energy distribution over live cells (sampled at window end)
	EnergyMean float64 `csv:"energy_mean"`
	EnergyStd  float64 `csv:"energy_std"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	// Pearson correlation of energy with the first substrate's
	// intracellular concentration (0 when undefined)
	EnergyUptakeCorr float64 `csv:"energy_uptake_corr"`

	// Per-substrate summaries, written to substrates.csv
	Substrates []SubstrateStats `csv:"-"`
}

// SubstrateStats summarizes one substrate at window end.
type SubstrateStats struct {
	WindowEndTick int64   `csv:"window_end"`
	Substrate     string  `csv:"substrate"`
	FieldMean     float64 `csv:"field_mean"`
	FieldTotal    float64 `csv:"field_total"`
	IntraMean     float64 `csv:"intra_mean"`
	IntraP50      float64 `csv:"intra_p50"`
	Internalized  float64 `csv:"internalized"` // summed over live cells
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeEnergyStats calculates mean, population std, and percentiles.
func ComputeEnergyStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	// Sort for percentiles
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// Correlation returns the Pearson correlation of x and y, or 0 when it is
// undefined (fewer than two points or zero variance).
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("live", s.Live),
		slog.Int("dead", s.Dead),
		slog.Int("out_of_domain", s.OutOfDomain),
		slog.Int("proliferative", s.Proliferative),
		slog.Int("arrested", s.Arrested),
		slog.Int("deaths", s.Deaths),
		slog.Int("updated", s.Updated),
		slog.Int("failures", s.Failures),
		slog.Int("config_errors", s.ConfigErrors),
		slog.Int("numerical_errors", s.NumericalErrors),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_std", s.EnergyStd),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Float64("energy_uptake_corr", s.EnergyUptakeCorr),
	}
	for _, sub := range s.Substrates {
		attrs = append(attrs, slog.Float64(sub.Substrate+"_intra_mean", sub.IntraMean))
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
