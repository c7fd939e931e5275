package intracellular

import (
	"fmt"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

// Network is one cell's reaction-network instance. Inputs and outputs share
// a single variable namespace: setting a variable overwrites the state the
// next Advance starts from, and reading it returns the post-Advance state.
//
// Advance reuses whatever was last set, so callers driving a network from
// the environment must set every input before each Advance.
type Network interface {
	// Names returns the variable names in slot order.
	Names() []string
	// Index resolves a variable name once; use the slot with SetInputAt/OutputAt.
	Index(name string) (int, error)

	SetInput(name string, v float64) error
	SetInputAt(i int, v float64)

	// Advance integrates forward by exactly dt. On error the state is left
	// as it was before the call.
	Advance(dt float64) error

	Output(name string) (float64, error)
	OutputAt(i int) float64

	// Clone returns an independent instance with the same schema and state.
	Clone() Network
}

// Identity is a network whose outputs equal its inputs. Advance is a no-op.
type Identity struct {
	names  []string
	index  *vars.Index
	values []float64
}

// NewIdentity returns an identity network over the given variable names.
func NewIdentity(names ...string) *Identity {
	n := make([]string, len(names))
	copy(n, names)
	return &Identity{
		names:  n,
		index:  vars.FromNames(n),
		values: make([]float64, len(n)),
	}
}

func (id *Identity) Names() []string { return id.names }

func (id *Identity) Index(name string) (int, error) {
	i, err := id.index.Resolve(name)
	if err != nil {
		return -1, fmt.Errorf("%w: identity: %w", ErrConfiguration, err)
	}
	return i, nil
}

func (id *Identity) SetInput(name string, v float64) error {
	i, err := id.Index(name)
	if err != nil {
		return err
	}
	id.values[i] = v
	return nil
}

func (id *Identity) SetInputAt(i int, v float64) { id.values[i] = v }

func (id *Identity) Advance(dt float64) error { return nil }

func (id *Identity) Output(name string) (float64, error) {
	i, err := id.Index(name)
	if err != nil {
		return 0, err
	}
	return id.values[i], nil
}

func (id *Identity) OutputAt(i int) float64 { return id.values[i] }

func (id *Identity) Clone() Network {
	values := make([]float64, len(id.values))
	copy(values, id.values)
	return &Identity{names: id.names, index: id.index, values: values}
}
