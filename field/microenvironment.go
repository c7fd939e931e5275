// Package field provides the extracellular substrate field: a voxel mesh
// holding one density per diffusible substrate, a diffusion-decay stepper and
// cell-substrate exchange.
package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

// ErrUnavailable is returned when a field is missing or has no substrates.
var ErrUnavailable = errors.New("substrate field unavailable")

// Mesh is a uniform Cartesian voxel mesh. NZ is 1 for 2D domains.
type Mesh struct {
	XMin, YMin, ZMin float64
	XMax, YMax, ZMax float64
	DX               float64
	NX, NY, NZ       int
}

// NewMesh builds a mesh covering the bounding box with cubic voxels of side dx.
// A degenerate z range yields a single layer.
func NewMesh(xmin, ymin, zmin, xmax, ymax, zmax, dx float64) Mesh {
	m := Mesh{
		XMin: xmin, YMin: ymin, ZMin: zmin,
		XMax: xmax, YMax: ymax, ZMax: zmax,
		DX: dx,
	}
	m.NX = max(1, int(math.Ceil((xmax-xmin)/dx)))
	m.NY = max(1, int(math.Ceil((ymax-ymin)/dx)))
	m.NZ = max(1, int(math.Ceil((zmax-zmin)/dx)))
	return m
}

// Voxels returns the voxel count.
func (m Mesh) Voxels() int { return m.NX * m.NY * m.NZ }

// VoxelVolume returns the volume of one voxel. 2D meshes use a unit-thick slab of DX.
func (m Mesh) VoxelVolume() float64 { return m.DX * m.DX * m.DX }

// Contains reports whether the point lies inside the bounding box.
func (m Mesh) Contains(x, y, z float64) bool {
	if x < m.XMin || x > m.XMax || y < m.YMin || y > m.YMax {
		return false
	}
	if m.NZ > 1 && (z < m.ZMin || z > m.ZMax) {
		return false
	}
	return true
}

// VoxelIndex returns the flat index of the voxel containing the point.
func (m Mesh) VoxelIndex(x, y, z float64) (int, bool) {
	if !m.Contains(x, y, z) {
		return -1, false
	}
	i := clampInt(int((x-m.XMin)/m.DX), 0, m.NX-1)
	j := clampInt(int((y-m.YMin)/m.DX), 0, m.NY-1)
	k := 0
	if m.NZ > 1 {
		k = clampInt(int((z-m.ZMin)/m.DX), 0, m.NZ-1)
	}
	return (k*m.NY+j)*m.NX + i, true
}

// VoxelCenter returns the centre of voxel (i, j, k).
func (m Mesh) VoxelCenter(i, j, k int) (x, y, z float64) {
	x = m.XMin + (float64(i)+0.5)*m.DX
	y = m.YMin + (float64(j)+0.5)*m.DX
	z = m.ZMin
	if m.NZ > 1 {
		z += (float64(k) + 0.5) * m.DX
	}
	return x, y, z
}

// substrate holds the physical parameters of one density.
type substrate struct {
	name         string
	diffusion    float64
	decay        float64
	dirichletOn  bool
	dirichletVal float64
}

// Microenvironment holds all substrate densities on a shared mesh.
// Densities are written by Step and Exchange only; the coupling loop reads
// them between those calls.
type Microenvironment struct {
	mesh       Mesh
	substrates []substrate
	density    [][]float64 // [substrate][voxel]
	index      *vars.Index

	// Thomas algorithm scratch, sized to the longest mesh axis
	line, cprime, dprime []float64
}

// NewMicroenvironment creates a field for the given substrates with all
// densities at zero.
func NewMicroenvironment(mesh Mesh, subs []config.SubstrateConfig) *Microenvironment {
	me := &Microenvironment{
		mesh:       mesh,
		substrates: make([]substrate, len(subs)),
		density:    make([][]float64, len(subs)),
	}
	names := make([]string, len(subs))
	for i, s := range subs {
		me.substrates[i] = substrate{
			name:         s.Name,
			diffusion:    s.DiffusionCoefficient,
			decay:        s.DecayRate,
			dirichletOn:  s.DirichletEnabled,
			dirichletVal: s.DirichletValue,
		}
		me.density[i] = make([]float64, mesh.Voxels())
		names[i] = s.Name
	}
	me.index = vars.FromNames(names)

	n := max(mesh.NX, mesh.NY, mesh.NZ)
	me.line = make([]float64, n)
	me.cprime = make([]float64, n)
	me.dprime = make([]float64, n)
	return me
}

// FromConfig builds and initializes the microenvironment described by cfg.
func FromConfig(cfg *config.Config) *Microenvironment {
	d := cfg.Domain
	mesh := NewMesh(d.XMin, d.YMin, cfg.Derived.ZMin, d.XMax, d.YMax, cfg.Derived.ZMax, d.VoxelSize)
	me := NewMicroenvironment(mesh, cfg.Microenvironment.Substrates)
	for i, s := range cfg.Microenvironment.Substrates {
		me.Fill(i, s.InitialCondition)
		if s.NoiseAmplitude != 0 {
			me.SeedNoise(i, s.NoiseAmplitude, s.NoiseScale, cfg.RandomSeed+int64(i))
		}
	}
	me.applyDirichlet()
	return me
}

// Mesh returns the voxel mesh.
func (me *Microenvironment) Mesh() Mesh { return me.mesh }

// NumDensities returns the number of substrates.
func (me *Microenvironment) NumDensities() int { return len(me.substrates) }

// Names returns the substrate names in density-index order.
func (me *Microenvironment) Names() []string {
	names := make([]string, len(me.substrates))
	for i, s := range me.substrates {
		names[i] = s.name
	}
	return names
}

// FindDensityIndex returns the density index of a substrate, or -1 if absent.
// The result is memoized.
func (me *Microenvironment) FindDensityIndex(name string) int {
	idx, err := me.index.Resolve(name)
	if err != nil {
		return -1
	}
	return idx
}

// DensityIndex is like FindDensityIndex but reports unknown names as vars.ErrNotFound.
func (me *Microenvironment) DensityIndex(name string) (int, error) {
	idx, err := me.index.Resolve(name)
	if err != nil {
		return -1, fmt.Errorf("substrate: %w", err)
	}
	return idx, nil
}

// Index exposes the memoized substrate name index.
func (me *Microenvironment) Index() *vars.Index { return me.index }

// Fill sets every voxel of a density to v.
func (me *Microenvironment) Fill(density int, v float64) {
	d := me.density[density]
	for i := range d {
		d[i] = v
	}
}

// Density returns the raw voxel slice of a density. Callers must not retain
// it across Step calls if they write to it.
func (me *Microenvironment) Density(density int) []float64 { return me.density[density] }

// Sample returns the density value in the voxel containing the point.
// Points outside the domain sample as 0.
func (me *Microenvironment) Sample(density int, x, y, z float64) float64 {
	v, ok := me.mesh.VoxelIndex(x, y, z)
	if !ok {
		return 0
	}
	return me.density[density][v]
}

// Total returns the integrated amount of a density over the domain.
func (me *Microenvironment) Total(density int) float64 {
	var sum float64
	for _, v := range me.density[density] {
		sum += v
	}
	return sum * me.mesh.VoxelVolume()
}

// Exchange applies one cell's uptake and secretion of a substrate over dt,
// using the implicit update ρ' = (ρ + c1) / (1 + c2). The mass leaving the
// voxel is added to internalized (and vice versa).
func (me *Microenvironment) Exchange(voxel, density int, ex Exchange, cellVolume float64, internalized *float64, dt float64) {
	if voxel < 0 || ex.UptakeRate == 0 && ex.SecretionRate == 0 {
		return
	}
	vv := me.mesh.VoxelVolume()
	ratio := cellVolume / vv
	c1 := dt * ratio * ex.SecretionRate * ex.SaturationDensity
	c2 := dt * ratio * (ex.SecretionRate + ex.UptakeRate)

	rho := &me.density[density][voxel]
	before := *rho
	*rho = (before + c1) / (1 + c2)

	if internalized != nil {
		*internalized -= (*rho - before) * vv
	}
}

// Exchange holds per-substrate uptake and secretion rates for a cell.
type Exchange struct {
	UptakeRate        float64
	SecretionRate     float64
	SaturationDensity float64
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
