package intracellular

import (
	"fmt"
	"sort"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
)

// IdentityModel is the registry name of the built-in identity network.
const IdentityModel = "identity"

// Registry maps model names to prototype networks. New always returns a
// fresh clone, so no two cells ever share an instance.
type Registry struct {
	protos map[string]Network
	models map[string]*Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		protos: make(map[string]Network),
		models: make(map[string]*Model),
	}
}

// RegistryFromConfig compiles every configured model. An identity network
// over the coupling variables is registered under IdentityModel unless the
// config defines a model with that name.
func RegistryFromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	for _, mc := range cfg.Intracellular.Models {
		m, err := Compile(mc)
		if err != nil {
			return nil, err
		}
		r.RegisterModel(m)
	}
	if _, ok := r.protos[IdentityModel]; !ok {
		var names []string
		for _, b := range cfg.Coupling.Bindings {
			names = append(names, b.Variable)
		}
		for _, o := range cfg.Coupling.Outputs {
			names = append(names, o.Variable)
		}
		r.Register(IdentityModel, NewIdentity(names...))
	}
	return r, nil
}

// Register adds a prototype network under name, replacing any existing one.
func (r *Registry) Register(name string, proto Network) {
	r.protos[name] = proto
	delete(r.models, name)
}

// RegisterModel adds a compiled model under its own name.
func (r *Registry) RegisterModel(m *Model) {
	r.protos[m.Name] = NewODE(m)
	r.models[m.Name] = m
}

// Model returns the compiled model registered under name, if any.
func (r *Registry) Model(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// New returns a fresh network instance for the named model.
func (r *Registry) New(name string) (Network, error) {
	proto, ok := r.protos[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intracellular model %q", ErrConfiguration, name)
	}
	return proto.Clone(), nil
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.protos))
	for name := range r.protos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
