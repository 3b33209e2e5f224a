package core

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when a topology or run parameter is out of range.
var ErrInvalidParams = errors.New("invalid run parameters")

// Topology places a participant within a fixed, ordered group.
// Participant 0 and Size-1 are edges; all others are interior.
type Topology struct {
	ID   int
	Size int
}

// Validate checks 0 <= ID < Size.
func (t Topology) Validate() error {
	if t.Size < 1 {
		return fmt.Errorf("%w: participant count %d must be positive", ErrInvalidParams, t.Size)
	}
	if t.ID < 0 || t.ID >= t.Size {
		return fmt.Errorf("%w: participant id %d outside [0, %d)", ErrInvalidParams, t.ID, t.Size)
	}
	return nil
}

// Upper returns the identity of the participant owning the row above.
func (t Topology) Upper() (int, bool) {
	if t.ID == 0 {
		return -1, false
	}
	return t.ID - 1, true
}

// Lower returns the identity of the participant owning the row below.
func (t Topology) Lower() (int, bool) {
	if t.ID >= t.Size-1 {
		return -1, false
	}
	return t.ID + 1, true
}

// IsEdge reports whether the participant lacks at least one neighbour.
func (t Topology) IsEdge() bool {
	return t.ID == 0 || t.ID == t.Size-1
}

// Even reports the phase class used by the halo exchange.
// Adjacent participants always have opposite parity.
func (t Topology) Even() bool {
	return t.ID%2 == 0
}

// Neighbors returns the real neighbour identities, upper first.
func (t Topology) Neighbors() []int {
	out := make([]int, 0, 2)
	if up, ok := t.Upper(); ok {
		out = append(out, up)
	}
	if down, ok := t.Lower(); ok {
		out = append(out, down)
	}
	return out
}

func (t Topology) String() string {
	return fmt.Sprintf("%d/%d", t.ID, t.Size)
}

// Params is the immutable configuration of one participant for a run.
// The embedded Topology gives direct access to ID and Size.
type Params struct {
	Topology
	Columns    int
	Iterations int
}

// Validate rejects non-positive widths and iteration counts.
func (p Params) Validate() error {
	if err := p.Topology.Validate(); err != nil {
		return err
	}
	if p.Columns < 1 {
		return fmt.Errorf("%w: columns %d must be positive", ErrInvalidParams, p.Columns)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("%w: iterations %d must be positive", ErrInvalidParams, p.Iterations)
	}
	return nil
}
