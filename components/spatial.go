package components

// Position represents a cell's position in the tissue, in micrometres.
type Position struct {
	X, Y, Z float64
}
