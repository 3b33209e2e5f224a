package core

// Neighbor is the halo row seen from one side of a participant. It either
// carries the neighbour's row for the current generation or marks that the
// participant sits on the lattice boundary on that side.
type Neighbor struct {
	row     Row
	present bool
}

// HasNeighbor wraps a row received from a real neighbour.
func HasNeighbor(r Row) Neighbor {
	return Neighbor{row: r, present: true}
}

// NoNeighbor marks the missing side of an edge participant.
func NoNeighbor() Neighbor {
	return Neighbor{}
}

// Present reports whether a real neighbour exists on this side.
func (n Neighbor) Present() bool {
	return n.present
}

// Row returns the neighbour row, or nil for NoNeighbor.
func (n Neighbor) Row() Row {
	if !n.present {
		return nil
	}
	return n.row
}

func (n Neighbor) String() string {
	if !n.present {
		return "none"
	}
	return n.row.String()
}
