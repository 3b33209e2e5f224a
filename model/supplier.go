package model

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/sbl8/rowlife/core"
)

// Supplier provides each participant's initial row. Implementations must
// be safe for concurrent use; the runtime calls Row from every participant
// at once.
type Supplier interface {
	Row(id, columns int) (core.Row, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func(id, columns int) (core.Row, error)

// Row calls f.
func (f SupplierFunc) Row(id, columns int) (core.Row, error) {
	return f(id, columns)
}

// DeadSupplier seeds every row dead.
var DeadSupplier = SupplierFunc(func(_, columns int) (core.Row, error) {
	return core.NewRow(columns), nil
})

// FileSupplier reads rows from a lattice file. Row id is read from
// offset id*(columns+1); a short or missing line yields dead cells.
type FileSupplier struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// OpenFileSupplier opens the lattice file at path.
func OpenFileSupplier(path string) (*FileSupplier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lattice: %w", err)
	}
	return &FileSupplier{path: path, f: f}, nil
}

// Row reads participant id's row.
func (s *FileSupplier) Row(id, columns int) (core.Row, error) {
	s.mu.Lock()
	f := s.f
	s.mu.Unlock()
	if f == nil {
		return nil, fmt.Errorf("lattice %s: %w", s.path, os.ErrClosed)
	}

	line := make([]byte, columns)
	n, err := f.ReadAt(line, int64(id)*int64(columns+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("lattice %s row %d: %w", s.path, id, err)
	}
	row := core.NewRow(columns)
	core.DecodeText(row, line[:n])
	return row, nil
}

// Close closes the underlying file.
func (s *FileSupplier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// LatticeSupplier seeds rows from an in-memory lattice. Participants
// beyond the lattice's height, and columns beyond its width, are dead.
type LatticeSupplier struct {
	Lattice *Lattice
}

// Row returns a copy of lattice row id.
func (s LatticeSupplier) Row(id, columns int) (core.Row, error) {
	row := core.NewRow(columns)
	if id >= 0 && id < len(s.Lattice.Rows) {
		row.CopyFrom(s.Lattice.Rows[id])
	}
	return row, nil
}

// RandomSupplier seeds each cell alive with probability Density. Rows are
// a pure function of (Seed, id), so reruns and multi-process runs agree.
type RandomSupplier struct {
	Seed    uint64
	Density float64
}

// Row generates participant id's row.
func (s RandomSupplier) Row(id, columns int) (core.Row, error) {
	if s.Density < 0 || s.Density > 1 {
		return nil, fmt.Errorf("random density %v outside [0, 1]", s.Density)
	}
	rng := rand.New(rand.NewPCG(s.Seed, uint64(id)))
	row := core.NewRow(columns)
	for x := range row {
		if rng.Float64() < s.Density {
			row[x] = core.Alive
		}
	}
	return row, nil
}
