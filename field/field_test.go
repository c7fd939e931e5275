package field

import (
	"errors"
	"math"
	"testing"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/vars"
)

func testSubstrates() []config.SubstrateConfig {
	return []config.SubstrateConfig{
		{Name: "oxygen", DiffusionCoefficient: 1000, DecayRate: 0},
		{Name: "glucose", DiffusionCoefficient: 100, DecayRate: 0.1},
	}
}

func newTestField() *Microenvironment {
	mesh := NewMesh(0, 0, 0, 200, 100, 0, 10)
	return NewMicroenvironment(mesh, testSubstrates())
}

func TestMeshDimensions(t *testing.T) {
	m := NewMesh(-500, -500, 0, 500, 500, 0, 20)
	if m.NX != 50 || m.NY != 50 || m.NZ != 1 {
		t.Errorf("expected 50x50x1, got %dx%dx%d", m.NX, m.NY, m.NZ)
	}
	if m.Voxels() != 2500 {
		t.Errorf("expected 2500 voxels, got %d", m.Voxels())
	}
}

func TestMeshVoxelIndex(t *testing.T) {
	m := NewMesh(0, 0, 0, 100, 100, 0, 10)

	tests := []struct {
		name   string
		x, y   float64
		want   int
		inside bool
	}{
		{"origin", 0, 0, 0, true},
		{"first row", 15, 5, 1, true},
		{"second row", 5, 15, 10, true},
		{"far corner", 100, 100, 99, true},
		{"outside", -1, 50, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.VoxelIndex(tt.x, tt.y, 0)
			if ok != tt.inside {
				t.Fatalf("inside = %v, want %v", ok, tt.inside)
			}
			if got != tt.want {
				t.Errorf("VoxelIndex(%v,%v) = %d, want %d", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestFindDensityIndex(t *testing.T) {
	me := newTestField()

	if got := me.FindDensityIndex("glucose"); got != 1 {
		t.Errorf("FindDensityIndex(glucose) = %d, want 1", got)
	}
	if got := me.FindDensityIndex("lactate"); got != -1 {
		t.Errorf("FindDensityIndex(lactate) = %d, want -1", got)
	}
	if _, err := me.DensityIndex("lactate"); !errors.Is(err, vars.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Repeated lookups hit the cache
	for i := 0; i < 10; i++ {
		me.FindDensityIndex("glucose")
	}
	if n := me.Index().Lookups(); n != 2 {
		t.Errorf("expected 2 underlying lookups, got %d", n)
	}
}

func TestStepConservesMassWithoutDecay(t *testing.T) {
	me := newTestField()
	me.Fill(0, 0)
	// Point source in the middle
	v, _ := me.mesh.VoxelIndex(100, 50, 0)
	me.density[0][v] = 1000

	before := me.Total(0)
	for i := 0; i < 50; i++ {
		me.Step(0.1)
	}
	after := me.Total(0)

	if math.Abs(after-before)/before > 1e-9 {
		t.Errorf("mass not conserved: before=%.6f after=%.6f", before, after)
	}
	if me.density[0][v] >= 1000 {
		t.Error("expected the point source to spread")
	}
}

func TestStepUniformFieldStaysUniform(t *testing.T) {
	me := newTestField()
	me.Fill(0, 5)

	me.Step(1)

	for i, d := range me.density[0] {
		if math.Abs(d-5) > 1e-12 {
			t.Fatalf("voxel %d drifted to %f", i, d)
		}
	}
}

func TestStepDecay(t *testing.T) {
	me := newTestField()
	me.Fill(1, 1)

	me.Step(1)

	// Two LOD sweeps each divide by (1 + λdt/2)
	want := 1 / ((1 + 0.05) * (1 + 0.05))
	for i, d := range me.density[1] {
		if math.Abs(d-want) > 1e-12 {
			t.Fatalf("voxel %d = %f, want %f", i, d, want)
		}
	}
}

func TestDirichletBoundary(t *testing.T) {
	subs := []config.SubstrateConfig{
		{Name: "oxygen", DiffusionCoefficient: 1000, DirichletEnabled: true, DirichletValue: 38},
	}
	me := NewMicroenvironment(NewMesh(0, 0, 0, 100, 100, 0, 10), subs)

	for i := 0; i < 20; i++ {
		me.Step(0.1)
	}

	edge, _ := me.mesh.VoxelIndex(0, 50, 0)
	center, _ := me.mesh.VoxelIndex(50, 50, 0)
	if me.density[0][edge] != 38 {
		t.Errorf("boundary voxel = %f, want 38", me.density[0][edge])
	}
	if me.density[0][center] <= 0 || me.density[0][center] >= 38 {
		t.Errorf("interior voxel = %f, want in (0, 38)", me.density[0][center])
	}
}

func TestExchangeUptakeConservesMass(t *testing.T) {
	me := newTestField()
	me.Fill(0, 10)
	v, _ := me.mesh.VoxelIndex(55, 55, 0)

	internalized := 0.0
	voxelBefore := me.density[0][v] * me.mesh.VoxelVolume()

	me.Exchange(v, 0, Exchange{UptakeRate: 10}, 500, &internalized, 0.01)

	voxelAfter := me.density[0][v] * me.mesh.VoxelVolume()
	if internalized <= 0 {
		t.Fatalf("expected positive uptake, got %f", internalized)
	}
	if math.Abs((voxelBefore-voxelAfter)-internalized) > 1e-9 {
		t.Errorf("mass mismatch: voxel lost %f, cell gained %f", voxelBefore-voxelAfter, internalized)
	}
}

func TestExchangeSecretionTowardsSaturation(t *testing.T) {
	me := newTestField()
	me.Fill(0, 0)
	v, _ := me.mesh.VoxelIndex(55, 55, 0)

	internalized := 100.0
	for i := 0; i < 10000; i++ {
		me.Exchange(v, 0, Exchange{SecretionRate: 1, SaturationDensity: 2}, 1000, &internalized, 0.1)
	}

	if d := me.density[0][v]; math.Abs(d-2) > 1e-6 {
		t.Errorf("expected density to approach saturation 2, got %f", d)
	}
}

func TestSeedNoiseNonNegative(t *testing.T) {
	me := newTestField()
	me.Fill(0, 1)
	me.SeedNoise(0, 5, 50, 42)

	varied := false
	for _, d := range me.density[0] {
		if d < 0 {
			t.Fatalf("negative density %f after noise seeding", d)
		}
		if d != 1 {
			varied = true
		}
	}
	if !varied {
		t.Error("expected noise to perturb the field")
	}
}

func TestAccessorIntracellular(t *testing.T) {
	acc, err := NewAccessor(newTestField())
	if err != nil {
		t.Fatalf("NewAccessor: %v", err)
	}

	internalized := []float64{0.75, 3.0}
	got, err := acc.Concentration("glucose", 1.5, internalized)
	if err != nil {
		t.Fatalf("Concentration: %v", err)
	}
	if got != 2.0 {
		t.Errorf("Concentration = %v, want exactly 2", got)
	}

	if _, err := acc.Intracellular(0, 0, internalized); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("expected ErrInvalidVolume, got %v", err)
	}
	if _, err := acc.Concentration("lactate", 1, internalized); !errors.Is(err, vars.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccessorUnavailable(t *testing.T) {
	if _, err := NewAccessor(nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestFromConfigDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	me := FromConfig(cfg)

	oxy := me.FindDensityIndex("oxygen")
	if oxy < 0 {
		t.Fatal("expected oxygen substrate in defaults")
	}
	if got := me.Sample(oxy, 0, 0, 0); math.Abs(got-38) > 1e-9 {
		t.Errorf("initial oxygen = %f, want 38", got)
	}
}
