package intracellular

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// 5th order weights equal the last row of A; E = b5 - b4
	dpE = [7]float64{
		71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40,
	}
)

// Step-size controller constants.
const (
	safety    = 0.9
	minFactor = 0.2
	maxFactor = 5.0
)

// ODE is a reaction-network instance integrating a Model with adaptive
// Dormand-Prince steps. Each cell owns exactly one.
type ODE struct {
	model  *Model
	y      []float64
	params []float64

	// h carries the last accepted step size into the next Advance
	h float64

	// scratch
	k      [7][]float64
	ytmp   []float64
	ynew   []float64
	yerr   []float64
	backup []float64
}

// NewODE creates an instance at the model's initial state.
func NewODE(m *Model) *ODE {
	n := len(m.Species)
	o := &ODE{
		model:  m,
		y:      make([]float64, n),
		params: make([]float64, len(m.Params)),
		ytmp:   make([]float64, n),
		ynew:   make([]float64, n),
		yerr:   make([]float64, n),
		backup: make([]float64, n),
	}
	copy(o.y, m.Initial)
	copy(o.params, m.Params)
	for i := range o.k {
		o.k[i] = make([]float64, n)
	}
	return o
}

// Model returns the compiled model this instance integrates.
func (o *ODE) Model() *Model { return o.model }

func (o *ODE) Names() []string { return o.model.Species }

func (o *ODE) Index(name string) (int, error) { return o.model.Index(name) }

func (o *ODE) SetInput(name string, v float64) error {
	i, err := o.model.Index(name)
	if err != nil {
		return err
	}
	o.y[i] = v
	return nil
}

func (o *ODE) SetInputAt(i int, v float64) { o.y[i] = v }

func (o *ODE) Output(name string) (float64, error) {
	i, err := o.model.Index(name)
	if err != nil {
		return 0, err
	}
	return o.y[i], nil
}

func (o *ODE) OutputAt(i int) float64 { return o.y[i] }

// State returns a copy of the full state vector.
func (o *ODE) State() []float64 {
	s := make([]float64, len(o.y))
	copy(s, o.y)
	return s
}

func (o *ODE) Clone() Network {
	cp := NewODE(o.model)
	copy(cp.y, o.y)
	copy(cp.params, o.params)
	cp.h = o.h
	return cp
}

// Advance integrates the state forward by exactly dt. If the step budget is
// exhausted or the state becomes non-finite, the state is restored and an
// error wrapping ErrNumerical is returned.
func (o *ODE) Advance(dt float64) error {
	if dt <= 0 {
		return nil
	}
	if len(o.y) == 0 {
		return nil
	}
	copy(o.backup, o.y)

	h := o.h
	if h <= 0 || h > dt {
		h = o.initialStep(dt)
	}

	t := 0.0
	steps := 0
	for t < dt {
		if steps >= o.model.Tol.MaxSteps {
			copy(o.y, o.backup)
			return fmt.Errorf("%w: model %q: step budget of %d exhausted at t=%g of %g",
				ErrNumerical, o.model.Name, o.model.Tol.MaxSteps, t, dt)
		}
		steps++

		last := false
		if t+h >= dt {
			h = dt - t
			last = true
		}

		errNorm := o.tryStep(h)
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			copy(o.y, o.backup)
			return fmt.Errorf("%w: model %q: non-finite state at t=%g", ErrNumerical, o.model.Name, t)
		}

		if errNorm <= 1 {
			t += h
			copy(o.y, o.ynew)
			clampNonNegative(o.y)
			if last {
				break
			}
		}

		// Standard controller; grow after accepts, shrink after rejects
		factor := maxFactor
		if errNorm > 0 {
			factor = safety * math.Pow(errNorm, -0.2)
			factor = math.Max(minFactor, math.Min(maxFactor, factor))
		}
		next := h * factor
		if errNorm <= 1 && !last {
			o.h = next
		}
		h = next
		if h < 1e-14*dt {
			copy(o.y, o.backup)
			return fmt.Errorf("%w: model %q: step size underflow at t=%g", ErrNumerical, o.model.Name, t)
		}
	}

	if floats.HasNaN(o.y) {
		copy(o.y, o.backup)
		return fmt.Errorf("%w: model %q: NaN in state", ErrNumerical, o.model.Name)
	}
	return nil
}

// tryStep computes a Dormand-Prince step of size h from o.y into o.ynew and
// returns the scaled RMS error estimate.
func (o *ODE) tryStep(h float64) float64 {
	m := o.model
	m.Derivatives(o.y, o.params, o.k[0])
	for s := 1; s < 7; s++ {
		copy(o.ytmp, o.y)
		for j := 0; j < s; j++ {
			if a := dpA[s][j]; a != 0 {
				floats.AddScaled(o.ytmp, h*a, o.k[j])
			}
		}
		m.Derivatives(o.ytmp, o.params, o.k[s])
	}
	// Stage 7 is evaluated at the 5th order solution (FSAL)
	copy(o.ynew, o.ytmp)

	for i := range o.yerr {
		o.yerr[i] = 0
	}
	for s := 0; s < 7; s++ {
		if e := dpE[s]; e != 0 {
			floats.AddScaled(o.yerr, h*e, o.k[s])
		}
	}

	var sum float64
	for i, e := range o.yerr {
		if math.IsNaN(o.ynew[i]) || math.IsInf(o.ynew[i], 0) {
			return math.NaN()
		}
		scale := m.Tol.AbsTol + m.Tol.RelTol*math.Max(math.Abs(o.y[i]), math.Abs(o.ynew[i]))
		r := e / scale
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(o.yerr)))
}

// initialStep picks a first step from the derivative magnitude.
func (o *ODE) initialStep(dt float64) float64 {
	o.model.Derivatives(o.y, o.params, o.k[0])
	d0 := floats.Norm(o.y, 2)
	d1 := floats.Norm(o.k[0], 2)
	h := 0.01 * dt
	if d0 > 1e-5 && d1 > 1e-5 {
		h = math.Min(dt, 0.01*d0/d1)
	}
	if h <= 0 || math.IsNaN(h) {
		h = 0.01 * dt
	}
	return h
}

// clampNonNegative removes round-off negatives from concentrations.
func clampNonNegative(y []float64) {
	for i, v := range y {
		if v < 0 {
			y[i] = 0
		}
	}
}
