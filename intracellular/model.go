// Package intracellular implements per-cell reaction networks: a declarative
// mass-action model compiled from config and integrated with an adaptive
// Runge-Kutta scheme, one independent instance per cell.
package intracellular

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

var (
	// ErrConfiguration is returned when a name does not exist in a network's
	// schema or a model definition is inconsistent.
	ErrConfiguration = errors.New("network configuration error")

	// ErrNumerical is returned when integration fails to converge or produces
	// non-finite values.
	ErrNumerical = errors.New("numerical failure")
)

// Default integrator settings, used when the model config leaves them zero.
const (
	DefaultAbsTol   = 1e-8
	DefaultRelTol   = 1e-6
	DefaultMaxSteps = 10000
)

// term is one species participating in a reaction.
type term struct {
	species int
	coef    float64 // stoichiometric coefficient
	order   float64 // kinetic order (reactants only)
}

// reaction is a compiled mass-action reaction.
type reaction struct {
	name      string
	rate      int // parameter index
	reactants []term
	products  []term
}

// Tolerances controls adaptive step-size selection.
type Tolerances struct {
	AbsTol   float64
	RelTol   float64
	MaxSteps int // per Advance call
}

// Model is an immutable compiled reaction network shared by all instances
// created from it.
type Model struct {
	Name       string
	Species    []string
	Initial    []float64
	ParamNames []string
	Params     []float64
	Tol        Tolerances

	reactions []reaction
	index     *vars.Index
	params    *vars.Index
}

// Compile validates a model config and builds a Model.
func Compile(mc config.ModelConfig) (*Model, error) {
	if mc.Name == "" {
		return nil, fmt.Errorf("%w: model with empty name", ErrConfiguration)
	}

	m := &Model{
		Name:    mc.Name,
		Species: make([]string, len(mc.Species)),
		Initial: make([]float64, len(mc.Species)),
	}
	seen := make(map[string]bool, len(mc.Species))
	for i, sp := range mc.Species {
		if sp.Name == "" {
			return nil, fmt.Errorf("%w: model %q: species %d has no name", ErrConfiguration, mc.Name, i)
		}
		if seen[sp.Name] {
			return nil, fmt.Errorf("%w: model %q: duplicate species %q", ErrConfiguration, mc.Name, sp.Name)
		}
		seen[sp.Name] = true
		m.Species[i] = sp.Name
		m.Initial[i] = sp.Initial
	}
	m.index = vars.FromNames(m.Species)

	// Parameters in sorted order so slot positions are stable across runs
	m.ParamNames = make([]string, 0, len(mc.Parameters))
	for name := range mc.Parameters {
		m.ParamNames = append(m.ParamNames, name)
	}
	sort.Strings(m.ParamNames)
	m.Params = make([]float64, len(m.ParamNames))
	for i, name := range m.ParamNames {
		v := mc.Parameters[name]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: model %q: parameter %q = %g", ErrConfiguration, mc.Name, name, v)
		}
		m.Params[i] = v
	}
	m.params = vars.FromNames(m.ParamNames)

	for _, rc := range mc.Reactions {
		r, err := m.compileReaction(rc)
		if err != nil {
			return nil, err
		}
		m.reactions = append(m.reactions, r)
	}

	m.Tol = Tolerances{
		AbsTol:   mc.Integrator.AbsTol,
		RelTol:   mc.Integrator.RelTol,
		MaxSteps: mc.Integrator.MaxSteps,
	}
	if m.Tol.AbsTol <= 0 {
		m.Tol.AbsTol = DefaultAbsTol
	}
	if m.Tol.RelTol <= 0 {
		m.Tol.RelTol = DefaultRelTol
	}
	if m.Tol.MaxSteps <= 0 {
		m.Tol.MaxSteps = DefaultMaxSteps
	}

	return m, nil
}

func (m *Model) compileReaction(rc config.ReactionConfig) (reaction, error) {
	r := reaction{name: rc.Name}

	rate, err := m.params.Resolve(rc.Rate)
	if err != nil {
		return r, fmt.Errorf("%w: model %q: reaction %q rate: %w", ErrConfiguration, m.Name, rc.Name, err)
	}
	r.rate = rate

	compileTerms := func(side map[string]float64, withOrder bool) ([]term, error) {
		names := make([]string, 0, len(side))
		for name := range side {
			names = append(names, name)
		}
		sort.Strings(names)

		terms := make([]term, 0, len(names))
		for _, name := range names {
			sp, err := m.index.Resolve(name)
			if err != nil {
				return nil, fmt.Errorf("%w: model %q: reaction %q: %w", ErrConfiguration, m.Name, rc.Name, err)
			}
			coef := side[name]
			if coef <= 0 {
				return nil, fmt.Errorf("%w: model %q: reaction %q: coefficient of %q must be positive", ErrConfiguration, m.Name, rc.Name, name)
			}
			t := term{species: sp, coef: coef}
			if withOrder {
				t.order = 1
				if o, ok := rc.Orders[name]; ok {
					if o < 0 {
						return nil, fmt.Errorf("%w: model %q: reaction %q: negative order for %q", ErrConfiguration, m.Name, rc.Name, name)
					}
					t.order = o
				}
			}
			terms = append(terms, t)
		}
		return terms, nil
	}

	if r.reactants, err = compileTerms(rc.Reactants, true); err != nil {
		return r, err
	}
	if r.products, err = compileTerms(rc.Products, false); err != nil {
		return r, err
	}
	for name := range rc.Orders {
		if _, ok := rc.Reactants[name]; !ok {
			return r, fmt.Errorf("%w: model %q: reaction %q: order given for non-reactant %q", ErrConfiguration, m.Name, rc.Name, name)
		}
	}
	return r, nil
}

// Derivatives evaluates dy/dt for state y with the given parameters.
func (m *Model) Derivatives(y, params, dydt []float64) {
	for i := range dydt {
		dydt[i] = 0
	}
	for i := range m.reactions {
		r := &m.reactions[i]
		flux := params[r.rate]
		for _, t := range r.reactants {
			c := y[t.species]
			if c < 0 {
				c = 0
			}
			switch t.order {
			case 1:
				flux *= c
			case 0:
			default:
				flux *= math.Pow(c, t.order)
			}
		}
		if flux == 0 {
			continue
		}
		for _, t := range r.reactants {
			dydt[t.species] -= t.coef * flux
		}
		for _, t := range r.products {
			dydt[t.species] += t.coef * flux
		}
	}
}

// Index resolves a species name to its state slot.
func (m *Model) Index(name string) (int, error) {
	i, err := m.index.Resolve(name)
	if err != nil {
		return -1, fmt.Errorf("%w: model %q: %w", ErrConfiguration, m.Name, err)
	}
	return i, nil
}

// WithParameters returns a copy of the model with some parameters replaced.
// The compiled reactions and name indices are shared.
func (m *Model) WithParameters(overrides map[string]float64) (*Model, error) {
	cp := *m
	cp.Params = make([]float64, len(m.Params))
	copy(cp.Params, m.Params)
	for name, v := range overrides {
		i, err := m.params.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("%w: model %q: parameter: %w", ErrConfiguration, m.Name, err)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: model %q: parameter %q = %g", ErrConfiguration, m.Name, name, v)
		}
		cp.Params[i] = v
	}
	return &cp, nil
}

// Parameter returns the value of a named parameter.
func (m *Model) Parameter(name string) (float64, error) {
	i, err := m.params.Resolve(name)
	if err != nil {
		return 0, fmt.Errorf("%w: model %q: parameter: %w", ErrConfiguration, m.Name, err)
	}
	return m.Params[i], nil
}
