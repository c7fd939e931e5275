package sim

import (
	"fmt"
	"math"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/field"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/intracellular"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/phenotype"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

// Custom data slots seeded from the tissue parameters when a definition
// declares them.
const (
	customOxygen  = "intra_oxy"
	customGlucose = "intra_glu"
	customLactate = "intra_lac"
	customEnergy  = "intra_energy"
)

// SetupMicroenvironment builds the substrate field: initial values, noise
// and Dirichlet boundaries.
func (w *World) SetupMicroenvironment() error {
	if len(w.cfg.Microenvironment.Substrates) == 0 {
		return fmt.Errorf("microenvironment: %w", field.ErrUnavailable)
	}
	w.env = field.FromConfig(w.cfg)
	accessor, err := field.NewAccessor(w.env)
	if err != nil {
		return fmt.Errorf("microenvironment: %w", err)
	}
	w.accessor = accessor

	mesh := w.env.Mesh()
	w.logger.Info("microenvironment ready",
		"substrates", w.env.Names(),
		"voxels", mesh.Voxels(),
		"nx", mesh.NX, "ny", mesh.NY, "nz", mesh.NZ,
		"diffusion_steps", w.cfg.Derived.DiffusionSteps,
	)
	return nil
}

// CreateCellTypes registers the configured cell definitions and compiles
// their intracellular models.
func (w *World) CreateCellTypes() error {
	registry, err := intracellular.RegistryFromConfig(w.cfg)
	if err != nil {
		return fmt.Errorf("intracellular: %w", err)
	}
	w.registry = registry

	if len(w.cfg.CellDefinitions) > math.MaxUint8+1 {
		return fmt.Errorf("%w: %d cell definitions, at most %d supported",
			intracellular.ErrConfiguration, len(w.cfg.CellDefinitions), math.MaxUint8+1)
	}

	energyName := w.energyCustomData()

	w.definitions = w.definitions[:0]
	for i, dc := range w.cfg.CellDefinitions {
		names := make([]string, len(dc.CustomData))
		defaults := make([]float64, len(dc.CustomData))
		for j, cd := range dc.CustomData {
			names[j] = cd.Name
			defaults[j] = cd.Value
		}

		model := dc.Intracellular
		if model == "" {
			model = intracellular.IdentityModel
		}

		exchange := make([]field.Exchange, w.env.NumDensities())
		for _, ex := range dc.Exchange {
			idx, err := w.env.DensityIndex(ex.Substrate)
			if err != nil {
				return fmt.Errorf("%w: cell definition %q exchange: %w", intracellular.ErrConfiguration, dc.Name, err)
			}
			exchange[idx] = field.Exchange{
				UptakeRate:        ex.UptakeRate,
				SecretionRate:     ex.SecretionRate,
				SaturationDensity: ex.SaturationDensity,
			}
		}

		schema := vars.FromNames(names)
		energy, err := schema.Resolve(energyName)
		if err != nil {
			energy = -1
		}

		w.definitions = append(w.definitions, cellDefinition{
			name:     dc.Name,
			typeID:   uint8(i),
			volume:   dc.Volume,
			model:    model,
			schema:   schema,
			custom:   names,
			energy:   energy,
			defaults: defaults,
			exchange: exchange,
		})
		w.logger.Info("cell type registered", "name", dc.Name, "type_id", i, "intracellular", model)
	}
	return nil
}

// energyCustomData returns the custom data name the coupling loop mirrors
// the phenotype energy variable into, or intra_energy when none does.
func (w *World) energyCustomData() string {
	energy := w.cfg.Phenotype.EnergyVariable
	for _, o := range w.cfg.Coupling.Outputs {
		if o.Variable == energy && energy != "" && o.CustomData != "" {
			return o.CustomData
		}
	}
	for _, b := range w.cfg.Coupling.Bindings {
		if b.Variable == energy && energy != "" && b.CustomData != "" {
			return b.CustomData
		}
	}
	return customEnergy
}

// SetupTissue places an N_X × N_Y lattice of every cell type, spaced evenly
// inside the domain, with N_X = round(sqrt(N·r)) and N_Y = round(sqrt(N/r))
// for N = number_of_cells and r the x/y aspect ratio.
func (w *World) SetupTissue() error {
	mesh := w.env.Mesh()
	xRange := mesh.XMax - mesh.XMin
	yRange := mesh.YMax - mesh.YMin
	ratio := xRange / yRange

	n := float64(w.cfg.Tissue.NumberOfCells)
	nx := int(math.Round(math.Sqrt(n * ratio)))
	ny := int(math.Round(math.Sqrt(n / ratio)))

	for i := range w.definitions {
		def := &w.definitions[i]
		w.logger.Info("placing cells", "type", def.name, "nx", nx, "ny", ny)

		for a := 1; a <= nx; a++ {
			for b := 1; b <= ny; b++ {
				pos := components.Position{
					X: mesh.XMin + xRange*float64(a)/float64(nx+1),
					Y: mesh.YMin + yRange*float64(b)/float64(ny+1),
				}
				if _, err := w.spawnCell(def, pos); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// spawnCell creates a cell of the given type with a fresh network.
func (w *World) spawnCell(def *cellDefinition, pos components.Position) (uint32, error) {
	net, err := w.registry.New(def.model)
	if err != nil {
		return 0, fmt.Errorf("cell definition %q: %w", def.name, err)
	}

	id := w.nextID
	w.nextID++

	tissue := w.cfg.Tissue
	vol := components.Volume{Total: def.volume}

	custom := components.CustomData{Values: append([]float64(nil), def.defaults...)}
	for name, v := range map[string]float64{
		customOxygen:  tissue.InitialInternalOxygen,
		customGlucose: tissue.InitialInternalGlucose,
		customLactate: tissue.InitialInternalLactate,
		customEnergy:  tissue.InitialEnergy,
	} {
		if slot, err := def.schema.Resolve(name); err == nil {
			custom.Values[slot] = v
		}
	}

	// Internalized totals start at the initial internal concentrations
	mol := components.Molecular{Internalized: make([]float64, w.env.NumDensities())}
	for name, c := range map[string]float64{
		"oxygen":  tissue.InitialInternalOxygen,
		"glucose": tissue.InitialInternalGlucose,
		"lactate": tissue.InitialInternalLactate,
	} {
		if idx := w.env.FindDensityIndex(name); idx >= 0 {
			mol.Internalized[idx] = vol.Mass(c)
		}
	}

	var ph components.Phenotype
	if energy := w.cfg.Phenotype.EnergyVariable; energy != "" {
		if err := net.SetInput(energy, tissue.InitialEnergy); err != nil {
			w.logger.Debug("network has no energy variable", "cell_id", id, "variable", energy)
		}
		w.writer.Apply(&ph, phenotype.Values{energy: tissue.InitialEnergy})
	}

	var status components.Status
	if !w.env.Mesh().Contains(pos.X, pos.Y, pos.Z) {
		status.OutOfDomain = true
	}

	cell := components.Cell{ID: id, TypeID: def.typeID}
	entity := w.cellMapper.NewEntity(&cell, &pos, &vol, &status, &custom, &mol, &ph)
	w.networks[id] = net
	w.entities[id] = entity

	w.logger.Debug("cell created", "cell_id", id, "type", def.name, "x", pos.X, "y", pos.Y)
	return id, nil
}

// AddCell places one cell of the named type at a position.
func (w *World) AddCell(typeName string, x, y, z float64) (uint32, error) {
	for i := range w.definitions {
		if w.definitions[i].name == typeName {
			return w.spawnCell(&w.definitions[i], components.Position{X: x, Y: y, Z: z})
		}
	}
	return 0, fmt.Errorf("%w: unknown cell type %q", intracellular.ErrConfiguration, typeName)
}
