package telemetry

import (
	"math"
	"testing"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/coupling"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeEnergyStats(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	mean, std, p10, p50, p90 := ComputeEnergyStats(values)

	if math.Abs(mean-5.5) > 1e-12 {
		t.Errorf("mean = %v, want 5.5", mean)
	}
	// Population std of 1..10 is sqrt(8.25)
	if math.Abs(std-math.Sqrt(8.25)) > 1e-12 {
		t.Errorf("std = %v, want %v", std, math.Sqrt(8.25))
	}
	if math.Abs(p10-1.9) > 1e-9 || math.Abs(p50-5.5) > 1e-9 || math.Abs(p90-9.1) > 1e-9 {
		t.Errorf("percentiles = %v %v %v, want 1.9 5.5 9.1", p10, p50, p90)
	}
}

func TestComputeEnergyStatsEmpty(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeEnergyStats([]float64{})

	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}

	if got := Correlation(x, []float64{2, 4, 6, 8}); math.Abs(got-1) > 1e-12 {
		t.Errorf("perfect correlation = %v, want 1", got)
	}
	if got := Correlation(x, []float64{8, 6, 4, 2}); math.Abs(got+1) > 1e-12 {
		t.Errorf("perfect anticorrelation = %v, want -1", got)
	}
	if got := Correlation(x, []float64{3, 3, 3, 3}); got != 0 {
		t.Errorf("zero-variance correlation = %v, want 0", got)
	}
	if got := Correlation([]float64{1}, []float64{1}); got != 0 {
		t.Errorf("single-point correlation = %v, want 0", got)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(60, 6)
	if c.WindowDurationTicks() != 10 {
		t.Fatalf("ticks per window = %d, want 10", c.WindowDurationTicks())
	}

	c.RecordDeath()
	c.RecordTick(coupling.TickReport{Updated: 20, Failures: 1, NumericalErrors: 1})
	c.RecordTick(coupling.TickReport{Updated: 21})

	if c.ShouldFlush(9) {
		t.Error("flush requested before the window elapsed")
	}
	if !c.ShouldFlush(10) {
		t.Error("flush not requested at window end")
	}

	stats := c.Flush(10, Sample{
		Live:          3,
		Proliferative: 2,
		Arrested:      1,
		Energies:      []float64{440, 450, 460},
		Substrates: []SubstrateSample{
			{Name: "oxygen", FieldMean: 38, Intracellular: []float64{1, 2, 3}, Internalized: 6},
		},
	})

	if stats.SimTime != 60 {
		t.Errorf("SimTime = %v, want 60", stats.SimTime)
	}
	if stats.Deaths != 1 || stats.Updated != 41 || stats.Failures != 1 || stats.NumericalErrors != 1 {
		t.Errorf("window counters = %+v", stats)
	}
	if stats.EnergyMean != 450 {
		t.Errorf("EnergyMean = %v, want 450", stats.EnergyMean)
	}
	if math.Abs(stats.EnergyUptakeCorr-1) > 1e-9 {
		t.Errorf("EnergyUptakeCorr = %v, want 1", stats.EnergyUptakeCorr)
	}
	if len(stats.Substrates) != 1 || stats.Substrates[0].IntraMean != 2 || stats.Substrates[0].WindowEndTick != 10 {
		t.Errorf("substrate stats = %+v", stats.Substrates)
	}

	// Counters reset for the next window
	next := c.Flush(20, Sample{})
	if next.Deaths != 0 || next.Updated != 0 || next.WindowStartTick != 10 {
		t.Errorf("counters not reset: %+v", next)
	}
}
