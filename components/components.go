// Package components defines ECS components for the tissue simulation.
package components

// CycleState is the proliferation state derived from intracellular energy.
type CycleState uint8

const (
	Proliferative CycleState = iota // Energy above the threshold
	Arrested                        // Energy at or below the threshold
)

func (s CycleState) String() string {
	switch s {
	case Proliferative:
		return "proliferative"
	case Arrested:
		return "arrested"
	default:
		return "unknown"
	}
}

// CustomData is a cell's fixed-schema vector of named scalars.
// Slot positions come from the owning cell definition's name index.
type CustomData struct {
	Values []float64
}

// Molecular holds internalized total substrate masses, indexed by density index.
type Molecular struct {
	Internalized []float64
}

// Phenotype holds the externally visible parameters derived from the
// intracellular network.
type Phenotype struct {
	Energy    float64
	State     CycleState
	CycleRate float64 // 1/min
	DeathRate float64 // 1/min
}

// Clone returns a deep copy of the custom data.
func (c CustomData) Clone() CustomData {
	v := make([]float64, len(c.Values))
	copy(v, c.Values)
	return CustomData{Values: v}
}

// Clone returns a deep copy of the molecular record.
func (m Molecular) Clone() Molecular {
	v := make([]float64, len(m.Internalized))
	copy(v, m.Internalized)
	return Molecular{Internalized: v}
}
