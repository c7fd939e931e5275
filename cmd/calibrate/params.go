package main

import (
	"fmt"
	"math"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/intracellular"
)

// ParamSpec defines a single rate constant to fit.
type ParamSpec struct {
	Name    string  // Model parameter name
	Min     float64 // Lower bound (> 0)
	Max     float64 // Upper bound
	Default float64 // Starting value
}

// ParamVector holds the fitted rate constants of one model. The optimizer
// works in normalized log10 space since rate constants span decades.
type ParamVector struct {
	Model string
	Specs []ParamSpec
}

// NewParamVector builds the parameter set for a model, spanning two decades
// either side of each configured value.
func NewParamVector(cfg *config.Config, model string, names []string) (*ParamVector, error) {
	mc, ok := cfg.Model(model)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", intracellular.ErrConfiguration, model)
	}
	compiled, err := intracellular.Compile(*mc)
	if err != nil {
		return nil, err
	}

	pv := &ParamVector{Model: model}
	for _, name := range names {
		v, err := compiled.Parameter(name)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("%w: parameter %q must be positive to fit, got %g",
				intracellular.ErrConfiguration, name, v)
		}
		pv.Specs = append(pv.Specs, ParamSpec{Name: name, Min: v / 100, Max: v * 100, Default: v})
	}
	return pv, nil
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] in log space.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi := math.Log10(spec.Min), math.Log10(spec.Max)
		normalized[i] = (math.Log10(raw[i]) - lo) / (hi - lo)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi := math.Log10(spec.Min), math.Log10(spec.Max)
		raw[i] = math.Pow(10, lo+normalized[i]*(hi-lo))
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Overrides returns clamped values keyed by parameter name.
func (pv *ParamVector) Overrides(values []float64) map[string]float64 {
	clamped := pv.Clamp(values)
	out := make(map[string]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[spec.Name] = clamped[i]
	}
	return out
}

// ApplyToConfig writes parameter values into the model's config entry.
// The parameter map is replaced, never mutated, so configs sharing it are
// unaffected.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	mc, ok := cfg.Model(pv.Model)
	if !ok {
		return fmt.Errorf("%w: unknown model %q", intracellular.ErrConfiguration, pv.Model)
	}

	// Validate against the compiled model before touching the config
	compiled, err := intracellular.Compile(*mc)
	if err != nil {
		return err
	}
	overrides := pv.Overrides(values)
	if _, err := compiled.WithParameters(overrides); err != nil {
		return err
	}

	params := make(map[string]float64, len(mc.Parameters))
	for k, v := range mc.Parameters {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	mc.Parameters = params
	return nil
}
