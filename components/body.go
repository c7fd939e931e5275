package components

// Volume holds a cell's total volume in µm³.
type Volume struct {
	Total float64
}

// Concentration converts an internalized mass to a concentration.
// Returns 0 for a non-positive volume.
func (v Volume) Concentration(mass float64) float64 {
	if v.Total <= 0 {
		return 0
	}
	return mass / v.Total
}

// Mass converts a concentration to an internalized mass.
func (v Volume) Mass(concentration float64) float64 {
	return concentration * v.Total
}
