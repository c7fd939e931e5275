// Package phenotype maps intracellular network outputs onto externally
// visible cell parameters and picks display colors from them.
package phenotype

import (
	"math"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
)

// Outputs is a read-only view over a network's post-integration values.
type Outputs interface {
	Get(name string) (float64, bool)
}

// Values is a map-backed Outputs.
type Values map[string]float64

// Get returns the named value.
func (v Values) Get(name string) (float64, bool) {
	x, ok := v[name]
	return x, ok
}

// Writer derives phenotype parameters from network outputs.
type Writer struct {
	EnergyVariable         string
	EnergyThreshold        float64
	ProliferativeCycleRate float64
	ArrestedCycleRate      float64
	StarvationThreshold    float64
	StarvationDeathRate    float64
	BaseDeathRate          float64
}

// NewWriter builds a writer from the phenotype config.
func NewWriter(cfg config.PhenotypeConfig) *Writer {
	return &Writer{
		EnergyVariable:         cfg.EnergyVariable,
		EnergyThreshold:        cfg.EnergyThreshold,
		ProliferativeCycleRate: cfg.ProliferativeCycleRate,
		ArrestedCycleRate:      cfg.ArrestedCycleRate,
		StarvationThreshold:    cfg.StarvationThreshold,
		StarvationDeathRate:    cfg.StarvationDeathRate,
		BaseDeathRate:          cfg.BaseDeathRate,
	}
}

// Apply updates ph from the outputs. If the energy variable is missing or
// not finite, ph is left unchanged.
func (w *Writer) Apply(ph *components.Phenotype, out Outputs) {
	energy, ok := out.Get(w.EnergyVariable)
	if !ok || math.IsNaN(energy) || math.IsInf(energy, 0) {
		return
	}
	ph.Energy = energy

	if energy > w.EnergyThreshold {
		ph.State = components.Proliferative
		ph.CycleRate = w.ProliferativeCycleRate
	} else {
		ph.State = components.Arrested
		ph.CycleRate = w.ArrestedCycleRate
	}

	ph.DeathRate = w.BaseDeathRate
	if energy <= w.StarvationThreshold {
		ph.DeathRate += w.StarvationDeathRate
	}
}
