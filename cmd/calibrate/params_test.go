package main

import (
	"errors"
	"math"
	"testing"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/intracellular"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNormalizeRoundtrip(t *testing.T) {
	pv, err := NewParamVector(loadDefaults(t), "energy", []string{"k_aerobic", "k_usage"})
	if err != nil {
		t.Fatal(err)
	}

	// Defaults sit in the middle of their log range
	for i, v := range pv.Normalize(pv.DefaultVector()) {
		if math.Abs(v-0.5) > 1e-12 {
			t.Errorf("normalized default %d = %v, want 0.5", i, v)
		}
	}

	raw := []float64{3e-4, 1e-3}
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i])/raw[i] > 1e-12 {
			t.Errorf("roundtrip %d: %v -> %v", i, raw[i], back[i])
		}
	}
}

func TestClamp(t *testing.T) {
	pv := &ParamVector{Specs: []ParamSpec{{Name: "k", Min: 1, Max: 10}}}

	tests := []struct{ in, want float64 }{
		{0.5, 1},
		{5, 5},
		{50, 10},
	}
	for _, tt := range tests {
		if got := pv.Clamp([]float64{tt.in})[0]; got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyToConfig(t *testing.T) {
	base := loadDefaults(t)
	pv, err := NewParamVector(base, "energy", []string{"k_usage"})
	if err != nil {
		t.Fatal(err)
	}

	cfg := loadDefaults(t)
	shared := cfg.Intracellular.Models[0].Parameters
	if err := pv.ApplyToConfig(cfg, []float64{0.01}); err != nil {
		t.Fatal(err)
	}

	mc, _ := cfg.Model("energy")
	if mc.Parameters["k_usage"] != 0.01 {
		t.Errorf("k_usage = %v, want 0.01", mc.Parameters["k_usage"])
	}
	if mc.Parameters["k_aerobic"] != 0.0001 {
		t.Errorf("k_aerobic changed to %v", mc.Parameters["k_aerobic"])
	}
	if shared["k_usage"] != 0.002 {
		t.Errorf("original parameter map mutated: k_usage = %v", shared["k_usage"])
	}
}

func TestNewParamVectorRejectsUnknown(t *testing.T) {
	cfg := loadDefaults(t)

	if _, err := NewParamVector(cfg, "nope", []string{"k_usage"}); !errors.Is(err, intracellular.ErrConfiguration) {
		t.Errorf("unknown model: %v, want ErrConfiguration", err)
	}
	if _, err := NewParamVector(cfg, "energy", []string{"k_missing"}); !errors.Is(err, intracellular.ErrConfiguration) {
		t.Errorf("unknown parameter: %v, want ErrConfiguration", err)
	}
}

func TestFitness(t *testing.T) {
	if got := fitness(445, 445, 0); got != 0 {
		t.Errorf("fitness on target = %v, want 0", got)
	}
	if got := fitness(400, 500, 0.5); math.Abs(got-0.54) > 1e-12 {
		t.Errorf("fitness = %v, want 0.54", got)
	}
	if got := fitness(math.NaN(), 445, 0); got != failedRunPenalty {
		t.Errorf("fitness(NaN) = %v, want penalty", got)
	}
}
