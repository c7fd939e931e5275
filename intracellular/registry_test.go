package intracellular

import (
	"errors"
	"testing"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
)

func TestIdentityRoundTrip(t *testing.T) {
	id := NewIdentity("Oxygen", "Glucose")

	if err := id.SetInput("Oxygen", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := id.Advance(6); err != nil {
		t.Fatal(err)
	}
	got, err := id.Output("Oxygen")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.5 {
		t.Errorf("Output = %v, want 0.5", got)
	}

	if err := id.SetInput("Lactate", 1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestRegistryFromDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	reg, err := RegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("RegistryFromConfig: %v", err)
	}

	a, err := reg.New("energy")
	if err != nil {
		t.Fatalf("New(energy): %v", err)
	}
	b, _ := reg.New("energy")
	if a == b {
		t.Fatal("registry returned a shared instance")
	}

	for _, name := range []string{"Oxygen", "Glucose", "Lactate", "Energy"} {
		if _, err := a.Index(name); err != nil {
			t.Errorf("energy model missing %q: %v", name, err)
		}
	}

	id, err := reg.New(IdentityModel)
	if err != nil {
		t.Fatalf("New(identity): %v", err)
	}
	if _, err := id.Index("Energy"); err != nil {
		t.Errorf("identity network should cover coupling outputs: %v", err)
	}

	if _, err := reg.New("missing"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
