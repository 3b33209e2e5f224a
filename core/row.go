// Package core provides the fundamental primitives of the rowlife automaton.
//
// The lattice is split into horizontal strips of exactly one row. Each
// participant owns a single Row together with a Snapshot of it and two halo
// rows received from its neighbours. This package defines those values, the
// immutable Topology and Params that describe a participant's place in the
// run, and the Neighbor variant that makes the edge case explicit.
//
// Key components:
//   - Row: fixed-length sequence of Dead/Alive cells
//   - Topology: participant identity within a fixed-size group
//   - Params: immutable per-participant run configuration
//   - Neighbor: halo row that is either present or absent
//   - Row codecs for the text lattice format and the wire payload
package core

import (
	"errors"
	"strings"
	"sync"
)

// Cell states. A Row stores one byte per cell.
const (
	Dead  byte = 0
	Alive byte = 1
)

// Text renderings of a cell used by the lattice file and by String.
const (
	DeadChar  = '0'
	AliveChar = '1'
)

// Row is one lattice row owned by a single participant.
type Row []byte

// NewRow allocates an all-dead row of the given width.
func NewRow(columns int) Row {
	return make(Row, columns)
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r)
}

// IsAlive reports whether the cell at x is alive. Out of range is dead.
func (r Row) IsAlive(x int) bool {
	return x >= 0 && x < len(r) && r[x] == Alive
}

// Reset sets every cell to Dead.
func (r Row) Reset() {
	clear(r)
}

// CopyFrom overwrites r with src. A short src leaves the tail dead and a
// long src is truncated.
func (r Row) CopyFrom(src []byte) {
	n := copy(r, src)
	clear(r[n:])
}

// Population returns the number of live cells.
func (r Row) Population() int {
	n := 0
	for _, c := range r {
		if c == Alive {
			n++
		}
	}
	return n
}

// Equal reports whether two rows hold the same cells.
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	copy(c, r)
	return c
}

// Validate checks that every cell holds a known state.
func (r Row) Validate() error {
	if len(r) == 0 {
		return errors.New("row is empty")
	}
	for _, c := range r {
		if c != Dead && c != Alive {
			return errors.New("row holds a cell that is neither dead nor alive")
		}
	}
	return nil
}

// String renders the row with '0' and '1', the lattice file convention.
func (r Row) String() string {
	var b strings.Builder
	b.Grow(len(r))
	for _, c := range r {
		if c == Alive {
			b.WriteByte(AliveChar)
		} else {
			b.WriteByte(DeadChar)
		}
	}
	return b.String()
}

// ParseRow reads a row from its text form. '1', 'O', 'o', '*' and '#' are
// alive; '0', '.', '-' and ' ' are dead.
func ParseRow(s string) (Row, error) {
	r := make(Row, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case AliveChar, 'O', 'o', '*', '#':
			r[i] = Alive
		case DeadChar, '.', '-', ' ':
			r[i] = Dead
		default:
			return nil, errors.New("invalid cell character " + string(s[i]))
		}
	}
	return r, nil
}

// MustParseRow is ParseRow for literals in tests and fixtures.
func MustParseRow(s string) Row {
	r, err := ParseRow(s)
	if err != nil {
		panic(err)
	}
	return r
}

// RowPool recycles row-sized buffers for payload copies.
type RowPool struct {
	columns int
	rows    sync.Pool
}

// NewRowPool creates a pool of rows with the given width.
func NewRowPool(columns int) *RowPool {
	p := &RowPool{columns: columns}
	p.rows.New = func() interface{} {
		r := make(Row, columns)
		return &r
	}
	return p
}

// Get retrieves a row from the pool. Its contents are unspecified.
func (p *RowPool) Get() Row {
	return *p.rows.Get().(*Row)
}

// Put returns a row to the pool. Rows of a different width are dropped.
func (p *RowPool) Put(r Row) {
	if r == nil || cap(r) < p.columns {
		return
	}
	r = r[:p.columns]
	p.rows.Put(&r)
}
