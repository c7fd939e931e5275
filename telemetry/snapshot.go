package telemetry

import (
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
)

// CellRecord is one cell's state in a cells.csv snapshot.
type CellRecord struct {
	Tick      int64   `csv:"tick"`
	ID        uint32  `csv:"id"`
	Type      uint8   `csv:"type"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Z         float64 `csv:"z"`
	Volume    float64 `csv:"volume"`
	Dead      bool    `csv:"dead"`
	OutOfDom  bool    `csv:"out_of_domain"`
	State     string  `csv:"state"`
	Energy    float64 `csv:"energy"`
	CycleRate float64 `csv:"cycle_rate"`
	DeathRate float64 `csv:"death_rate"`

	// Intracellular concentrations of the first three substrates; cells.csv
	// has fixed columns, use substrates.csv for arbitrary substrate sets
	Intra0 float64 `csv:"intra_0"`
	Intra1 float64 `csv:"intra_1"`
	Intra2 float64 `csv:"intra_2"`
}

// NewCellRecord builds a record from a cell's components.
func NewCellRecord(tick int64, cell components.Cell, pos components.Position, vol components.Volume,
	status components.Status, mol components.Molecular, ph components.Phenotype) CellRecord {
	r := CellRecord{
		Tick:      tick,
		ID:        cell.ID,
		Type:      cell.TypeID,
		X:         pos.X,
		Y:         pos.Y,
		Z:         pos.Z,
		Volume:    vol.Total,
		Dead:      status.Dead,
		OutOfDom:  status.OutOfDomain,
		State:     ph.State.String(),
		Energy:    ph.Energy,
		CycleRate: ph.CycleRate,
		DeathRate: ph.DeathRate,
	}

	intra := [3]*float64{&r.Intra0, &r.Intra1, &r.Intra2}
	for i := 0; i < len(intra) && i < len(mol.Internalized); i++ {
		*intra[i] = vol.Concentration(mol.Internalized[i])
	}
	return r
}
