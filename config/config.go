// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	RandomSeed       int64                  `yaml:"random_seed"`
	Screen           ScreenConfig           `yaml:"screen"`
	Domain           DomainConfig           `yaml:"domain"`
	Microenvironment MicroenvironmentConfig `yaml:"microenvironment"`
	Diffusion        DiffusionConfig        `yaml:"diffusion"`
	Tissue           TissueConfig           `yaml:"tissue"`
	CellDefinitions  []CellDefinitionConfig `yaml:"cell_definitions"`
	Intracellular    IntracellularConfig    `yaml:"intracellular"`
	Coupling         CouplingConfig         `yaml:"coupling"`
	Phenotype        PhenotypeConfig        `yaml:"phenotype"`
	Telemetry        TelemetryConfig        `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds viewer settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// DomainConfig holds the bounding box of the tissue, in micrometres.
type DomainConfig struct {
	XMin       float64 `yaml:"x_min"`
	YMin       float64 `yaml:"y_min"`
	ZMin       float64 `yaml:"z_min"`
	XMax       float64 `yaml:"x_max"`
	YMax       float64 `yaml:"y_max"`
	ZMax       float64 `yaml:"z_max"`
	VoxelSize  float64 `yaml:"voxel_size"`
	Simulate2D bool    `yaml:"simulate_2d"`
}

// SubstrateConfig describes one diffusible substrate.
type SubstrateConfig struct {
	Name                 string  `yaml:"name"`
	DiffusionCoefficient float64 `yaml:"diffusion_coefficient"` // µm²/min
	DecayRate            float64 `yaml:"decay_rate"`            // 1/min
	InitialCondition     float64 `yaml:"initial_condition"`
	DirichletEnabled     bool    `yaml:"dirichlet_enabled"`
	DirichletValue       float64 `yaml:"dirichlet_value"`
	NoiseAmplitude       float64 `yaml:"noise_amplitude"` // 0 disables heterogeneous seeding
	NoiseScale           float64 `yaml:"noise_scale"`     // feature size in µm
}

// MicroenvironmentConfig holds the substrate list.
type MicroenvironmentConfig struct {
	Substrates []SubstrateConfig `yaml:"substrates"`
}

// DiffusionConfig holds the diffusion stepper's time stepping.
type DiffusionConfig struct {
	DT       float64 `yaml:"dt"`       // minutes per diffusion step
	Substeps int     `yaml:"substeps"` // diffusion steps per coupling tick (0 = derive from coupling.dt)
}

// TissueConfig holds initial tissue parameters.
type TissueConfig struct {
	NumberOfCells          int     `yaml:"number_of_cells"`
	InitialInternalOxygen  float64 `yaml:"initial_internal_oxygen"`
	InitialInternalGlucose float64 `yaml:"initial_internal_glucose"`
	InitialInternalLactate float64 `yaml:"initial_internal_lactate"`
	InitialEnergy          float64 `yaml:"initial_energy"`
}

// CustomDataConfig is one named custom data slot with its default.
type CustomDataConfig struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
}

// ExchangeConfig holds per-substrate uptake and secretion for a cell type.
type ExchangeConfig struct {
	Substrate         string  `yaml:"substrate"`
	UptakeRate        float64 `yaml:"uptake_rate"`        // 1/min
	SecretionRate     float64 `yaml:"secretion_rate"`     // 1/min
	SaturationDensity float64 `yaml:"saturation_density"` // secretion target
}

// CellDefinitionConfig describes a cell type.
type CellDefinitionConfig struct {
	Name          string             `yaml:"name"`
	Volume        float64            `yaml:"volume"` // µm³
	Intracellular string             `yaml:"intracellular"`
	CustomData    []CustomDataConfig `yaml:"custom_data"`
	Exchange      []ExchangeConfig   `yaml:"exchange"`
}

// SpeciesConfig is one state variable of a reaction network.
type SpeciesConfig struct {
	Name    string  `yaml:"name"`
	Initial float64 `yaml:"initial"`
}

// ReactionConfig is one mass-action reaction.
// Orders default to 1 for every reactant when omitted.
type ReactionConfig struct {
	Name      string             `yaml:"name"`
	Rate      string             `yaml:"rate"` // parameter name
	Reactants map[string]float64 `yaml:"reactants"`
	Products  map[string]float64 `yaml:"products"`
	Orders    map[string]float64 `yaml:"orders"`
}

// IntegratorConfig holds ODE integrator tolerances.
type IntegratorConfig struct {
	AbsTol   float64 `yaml:"abs_tol"`
	RelTol   float64 `yaml:"rel_tol"`
	MaxSteps int     `yaml:"max_steps"`
}

// ModelConfig describes a named intracellular reaction network.
type ModelConfig struct {
	Name       string             `yaml:"name"`
	Species    []SpeciesConfig    `yaml:"species"`
	Parameters map[string]float64 `yaml:"parameters"`
	Reactions  []ReactionConfig   `yaml:"reactions"`
	Integrator IntegratorConfig   `yaml:"integrator"`
}

// IntracellularConfig holds the available network models.
type IntracellularConfig struct {
	Models []ModelConfig `yaml:"models"`
}

// BindingConfig couples a substrate to a network variable and a custom data slot.
type BindingConfig struct {
	Substrate  string `yaml:"substrate"`
	Variable   string `yaml:"variable"`
	CustomData string `yaml:"custom_data"`
}

// OutputConfig mirrors a network variable that has no substrate into custom data.
type OutputConfig struct {
	Variable   string `yaml:"variable"`
	CustomData string `yaml:"custom_data"`
}

// CouplingConfig holds coupling loop parameters.
type CouplingConfig struct {
	DT                float64         `yaml:"dt"`                 // macroscopic step in minutes
	Workers           int             `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int             `yaml:"parallel_threshold"` // below this, single-threaded
	Bindings          []BindingConfig `yaml:"bindings"`
	Outputs           []OutputConfig  `yaml:"outputs"`
}

// PhenotypeConfig holds feedback thresholds.
type PhenotypeConfig struct {
	EnergyVariable         string  `yaml:"energy_variable"`
	EnergyThreshold        float64 `yaml:"energy_threshold"`
	ProliferativeCycleRate float64 `yaml:"proliferative_cycle_rate"`
	ArrestedCycleRate      float64 `yaml:"arrested_cycle_rate"`
	StarvationThreshold    float64 `yaml:"starvation_threshold"`
	StarvationDeathRate    float64 `yaml:"starvation_death_rate"`
	BaseDeathRate          float64 `yaml:"base_death_rate"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // simulated minutes per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // ticks
	SnapshotInterval    int     `yaml:"snapshot_interval"`     // ticks between cells.csv dumps (0 = off)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ZMin, ZMax      float64        // Domain z range after the 2D override
	SubstrateIndex  map[string]int // name -> density index
	DefinitionIndex map[string]int // cell definition name -> type index
	DiffusionSteps  int            // diffusion steps per coupling tick
	DiffusionStepDT float64        // dt actually used per diffusion step
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Parse builds a configuration from YAML bytes merged over the embedded defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Domain.XMax <= c.Domain.XMin || c.Domain.YMax <= c.Domain.YMin {
		return fmt.Errorf("domain: empty bounding box")
	}
	if c.Domain.VoxelSize <= 0 {
		return fmt.Errorf("domain: voxel_size must be positive, got %g", c.Domain.VoxelSize)
	}
	if c.Coupling.DT <= 0 {
		return fmt.Errorf("coupling: dt must be positive, got %g", c.Coupling.DT)
	}
	seen := make(map[string]bool, len(c.Microenvironment.Substrates))
	for _, s := range c.Microenvironment.Substrates {
		if s.Name == "" {
			return fmt.Errorf("microenvironment: substrate with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("microenvironment: duplicate substrate %q", s.Name)
		}
		seen[s.Name] = true
	}
	for _, def := range c.CellDefinitions {
		if def.Volume <= 0 {
			return fmt.Errorf("cell definition %q: volume must be positive", def.Name)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.ZMin = c.Domain.ZMin
	c.Derived.ZMax = c.Domain.ZMax
	if c.Domain.Simulate2D {
		c.Derived.ZMin = 0
		c.Derived.ZMax = 0
	}

	c.Derived.SubstrateIndex = make(map[string]int, len(c.Microenvironment.Substrates))
	for i, s := range c.Microenvironment.Substrates {
		c.Derived.SubstrateIndex[s.Name] = i
	}

	c.Derived.DefinitionIndex = make(map[string]int, len(c.CellDefinitions))
	for i, def := range c.CellDefinitions {
		c.Derived.DefinitionIndex[def.Name] = i
	}

	// Diffusion sub-steps must tile the coupling step exactly
	steps := c.Diffusion.Substeps
	if steps <= 0 {
		dt := c.Diffusion.DT
		if dt <= 0 {
			dt = c.Coupling.DT
		}
		steps = int(math.Ceil(c.Coupling.DT / dt))
	}
	c.Derived.DiffusionSteps = steps
	c.Derived.DiffusionStepDT = c.Coupling.DT / float64(steps)
}

// Model returns the intracellular model config with the given name.
func (c *Config) Model(name string) (*ModelConfig, bool) {
	for i := range c.Intracellular.Models {
		if c.Intracellular.Models[i].Name == name {
			return &c.Intracellular.Models[i], true
		}
	}
	return nil, false
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
