package field

import (
	"errors"
	"fmt"
)

// ErrInvalidVolume is returned when converting mass to concentration for a
// cell with a non-positive volume.
var ErrInvalidVolume = errors.New("non-positive cell volume")

// Accessor reads substrate concentrations for a cell: extracellular values at
// its position and intracellular values from its internalized totals.
// Substrate names are resolved once through the field's memoized index.
type Accessor struct {
	env *Microenvironment
}

// NewAccessor returns an accessor over the given field. A nil field yields
// ErrUnavailable.
func NewAccessor(env *Microenvironment) (*Accessor, error) {
	if env == nil || env.NumDensities() == 0 {
		return nil, ErrUnavailable
	}
	return &Accessor{env: env}, nil
}

// Resolve returns the density index of a substrate.
func (a *Accessor) Resolve(name string) (int, error) {
	return a.env.DensityIndex(name)
}

// Intracellular returns internalized[density] / volume.
func (a *Accessor) Intracellular(density int, volume float64, internalized []float64) (float64, error) {
	if volume <= 0 {
		return 0, fmt.Errorf("%w: %g", ErrInvalidVolume, volume)
	}
	if density < 0 || density >= len(internalized) {
		return 0, fmt.Errorf("density index %d out of range [0,%d)", density, len(internalized))
	}
	return internalized[density] / volume, nil
}

// Concentration is the name-based form of Intracellular.
func (a *Accessor) Concentration(substrate string, volume float64, internalized []float64) (float64, error) {
	idx, err := a.Resolve(substrate)
	if err != nil {
		return 0, err
	}
	return a.Intracellular(idx, volume, internalized)
}

// Extracellular returns the field value of a density at a position.
// Callers must not pass out-of-domain positions.
func (a *Accessor) Extracellular(density int, x, y, z float64) float64 {
	return a.env.Sample(density, x, y, z)
}

// Local is the name-based form of Extracellular.
func (a *Accessor) Local(substrate string, x, y, z float64) (float64, error) {
	idx, err := a.Resolve(substrate)
	if err != nil {
		return 0, err
	}
	return a.Extracellular(idx, x, y, z), nil
}
