// Package model defines the data that flows into and out of a run.
//
// A run is seeded by a Supplier, which hands each participant its initial
// row, and drained by a Consumer, which receives each participant's final
// row. Lattice is the whole grid held in one place. It is the sequential
// reference the distributed runtime is checked against, and the in-memory
// form of a lattice file.
//
// Lattice file format: one line per row, '1' for a live cell and any other
// byte for a dead one, each line exactly columns bytes followed by '\n'.
// Row i therefore starts at byte offset i*(columns+1).
package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/kernels"
)

// Lattice is a rows x columns grid with a dead boundary on all sides.
type Lattice struct {
	Columns int
	Rows    []core.Row
}

// NewLattice allocates an all-dead lattice.
func NewLattice(rows, columns int) (*Lattice, error) {
	if rows < 1 || columns < 1 {
		return nil, fmt.Errorf("lattice %dx%d: dimensions must be positive", rows, columns)
	}
	l := &Lattice{Columns: columns, Rows: make([]core.Row, rows)}
	for i := range l.Rows {
		l.Rows[i] = core.NewRow(columns)
	}
	return l, nil
}

// ParseLattice builds a lattice from row strings in ParseRow notation.
// All rows must have the same width.
func ParseLattice(rows ...string) (*Lattice, error) {
	if len(rows) == 0 {
		return nil, errors.New("lattice: no rows")
	}
	l := &Lattice{Rows: make([]core.Row, len(rows))}
	for i, s := range rows {
		r, err := core.ParseRow(s)
		if err != nil {
			return nil, fmt.Errorf("lattice row %d: %w", i, err)
		}
		if i == 0 {
			l.Columns = len(r)
		} else if len(r) != l.Columns {
			return nil, fmt.Errorf("lattice row %d: width %d, want %d", i, len(r), l.Columns)
		}
		l.Rows[i] = r
	}
	if l.Columns == 0 {
		return nil, errors.New("lattice: empty rows")
	}
	return l, nil
}

// MustParseLattice is ParseLattice for fixtures.
func MustParseLattice(rows ...string) *Lattice {
	l, err := ParseLattice(rows...)
	if err != nil {
		panic(err)
	}
	return l
}

// ReadLattice reads rows lines of lattice text. Lines shorter than
// columns, and missing lines, are padded with dead cells.
func ReadLattice(r io.Reader, rows, columns int) (*Lattice, error) {
	l, err := NewLattice(rows, columns)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, columns+1), columns+64*1024)
	for i := 0; i < rows && sc.Scan(); i++ {
		core.DecodeText(l.Rows[i], sc.Bytes())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lattice: %w", err)
	}
	return l, nil
}

// WriteTo writes the lattice in file format.
func (l *Lattice) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 0, l.Columns+1)
	var total int64
	for _, r := range l.Rows {
		buf = core.AppendText(buf[:0], r)
		buf = append(buf, '\n')
		n, err := w.Write(buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Height returns the number of rows.
func (l *Lattice) Height() int {
	return len(l.Rows)
}

// Population counts live cells.
func (l *Lattice) Population() int {
	n := 0
	for _, r := range l.Rows {
		n += r.Population()
	}
	return n
}

// Clone returns a deep copy.
func (l *Lattice) Clone() *Lattice {
	c := &Lattice{Columns: l.Columns, Rows: make([]core.Row, len(l.Rows))}
	for i, r := range l.Rows {
		c.Rows[i] = r.Clone()
	}
	return c
}

// Equal reports whether both lattices hold the same cells.
func (l *Lattice) Equal(o *Lattice) bool {
	if l.Columns != o.Columns || len(l.Rows) != len(o.Rows) {
		return false
	}
	for i := range l.Rows {
		if !l.Rows[i].Equal(o.Rows[i]) {
			return false
		}
	}
	return true
}

// Step advances the whole lattice one generation in place.
func (l *Lattice) Step(rule kernels.Rule) {
	next := make([]core.Row, len(l.Rows))
	for i := range l.Rows {
		var upper, lower core.Row
		if i > 0 {
			upper = l.Rows[i-1]
		}
		if i+1 < len(l.Rows) {
			lower = l.Rows[i+1]
		}
		next[i] = core.NewRow(l.Columns)
		kernels.Step(next[i], upper, l.Rows[i], lower, rule)
	}
	l.Rows = next
}

// Run advances the lattice n generations.
func (l *Lattice) Run(n int, rule kernels.Rule) {
	for i := 0; i < n; i++ {
		l.Step(rule)
	}
}

// String renders the lattice as newline separated rows.
func (l *Lattice) String() string {
	var b strings.Builder
	for i, r := range l.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.String())
	}
	return b.String()
}
