package phenotype

import (
	"image/color"
	"math"
	"testing"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
)

func testWriter() *Writer {
	return &Writer{
		EnergyVariable:         "Energy",
		EnergyThreshold:        445,
		ProliferativeCycleRate: 0.001,
		ArrestedCycleRate:      0,
		StarvationThreshold:    10,
		StarvationDeathRate:    0.01,
		BaseDeathRate:          0.0001,
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		energy    float64
		wantState components.CycleState
		wantCycle float64
		wantDeath float64
	}{
		{"above threshold", 500, components.Proliferative, 0.001, 0.0001},
		{"at threshold", 445, components.Arrested, 0, 0.0001},
		{"below threshold", 100, components.Arrested, 0, 0.0001},
		{"starving", 5, components.Arrested, 0, 0.0101},
	}

	w := testWriter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ph components.Phenotype
			w.Apply(&ph, Values{"Energy": tt.energy})

			if ph.Energy != tt.energy {
				t.Errorf("Energy = %f, want %f", ph.Energy, tt.energy)
			}
			if ph.State != tt.wantState {
				t.Errorf("State = %v, want %v", ph.State, tt.wantState)
			}
			if ph.CycleRate != tt.wantCycle {
				t.Errorf("CycleRate = %f, want %f", ph.CycleRate, tt.wantCycle)
			}
			if math.Abs(ph.DeathRate-tt.wantDeath) > 1e-12 {
				t.Errorf("DeathRate = %f, want %f", ph.DeathRate, tt.wantDeath)
			}
		})
	}
}

func TestApplyMissingOrNonFinite(t *testing.T) {
	w := testWriter()
	before := components.Phenotype{Energy: 300, State: components.Arrested, DeathRate: 0.5}

	for _, out := range []Values{{}, {"Energy": math.NaN()}, {"Energy": math.Inf(1)}} {
		ph := before
		w.Apply(&ph, out)
		if ph != before {
			t.Errorf("phenotype changed for outputs %v: %+v", out, ph)
		}
	}
}

func TestColor(t *testing.T) {
	yellow := color.RGBA{R: 255, G: 255, B: 0, A: 255}
	red := color.RGBA{R: 255, G: 0, B: 0, A: 255}
	dark := color.RGBA{R: 20, G: 20, B: 20, A: 255}

	tests := []struct {
		name   string
		status components.Status
		typeID uint8
		energy float64
		want   color.RGBA
	}{
		{"proliferative", components.Status{}, 0, 446, yellow},
		{"arrested", components.Status{}, 0, 445, red},
		{"dead", components.Status{Dead: true}, 0, 900, dark},
		{"other type", components.Status{}, 1, 900, liveColors.Cytoplasm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Color(tt.status, tt.typeID, tt.energy, 445)
			if got.Cytoplasm != tt.want {
				t.Errorf("Cytoplasm = %v, want %v", got.Cytoplasm, tt.want)
			}
		})
	}
}

func TestHeat(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want color.RGBA
	}{
		{"zero", 0, color.RGBA{R: 10, G: 20, B: 60, A: 255}},
		{"one", 1, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"below range", -3, color.RGBA{R: 10, G: 20, B: 60, A: 255}},
		{"above range", 7, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"nan", math.NaN(), color.RGBA{R: 10, G: 20, B: 60, A: 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Heat(tt.v); got != tt.want {
				t.Errorf("Heat(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}
