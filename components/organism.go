package components

// Cell bundles a cell's identity.
type Cell struct {
	ID     uint32
	TypeID uint8 // Index into the cell definitions
}

// Status tracks liveness. Dead and out-of-domain cells are skipped by the
// coupling loop; they stay in the world until removed by the owner.
type Status struct {
	Dead        bool
	OutOfDomain bool
}

// Active reports whether the cell takes part in the coupling loop.
func (s Status) Active() bool {
	return !s.Dead && !s.OutOfDomain
}
