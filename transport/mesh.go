package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/sbl8/rowlife/core"
)

type link struct {
	from, to int
}

// Mesh connects size in-process endpoints in a line. Only adjacent
// identities have a link, one unbuffered channel per direction.
type Mesh struct {
	size    int
	columns int
	links   map[link]chan core.Row
	pool    *core.RowPool
	ends    []*MeshEndpoint

	closed    chan struct{}
	closeOnce sync.Once
}

// NewMesh builds the links for size participants exchanging rows of the
// given width.
func NewMesh(size, columns int) (*Mesh, error) {
	if size < 1 {
		return nil, fmt.Errorf("transport: mesh size %d must be positive", size)
	}
	if columns < 1 {
		return nil, fmt.Errorf("transport: mesh columns %d must be positive", columns)
	}

	m := &Mesh{
		size:    size,
		columns: columns,
		links:   make(map[link]chan core.Row, 2*(size-1)),
		pool:    core.NewRowPool(columns),
		closed:  make(chan struct{}),
		ends:    make([]*MeshEndpoint, size),
	}
	for i := range m.ends {
		m.ends[i] = &MeshEndpoint{mesh: m, rank: i, closed: make(chan struct{})}
	}
	for i := 0; i+1 < size; i++ {
		m.links[link{i, i + 1}] = make(chan core.Row)
		m.links[link{i + 1, i}] = make(chan core.Row)
	}
	return m, nil
}

// Size returns the number of endpoints.
func (m *Mesh) Size() int {
	return m.size
}

// Endpoint returns the transport used by participant rank. Every call for
// the same rank returns the same endpoint.
func (m *Mesh) Endpoint(rank int) (*MeshEndpoint, error) {
	if rank < 0 || rank >= m.size {
		return nil, fmt.Errorf("transport: rank %d outside mesh of %d", rank, m.size)
	}
	return m.ends[rank], nil
}

// Close fails every pending and future Send/Recv on all endpoints.
func (m *Mesh) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *Mesh) channel(from, to int) (chan core.Row, error) {
	ch, ok := m.links[link{from, to}]
	if !ok {
		return nil, fmt.Errorf("%w: %d -> %d", ErrUnknownPeer, from, to)
	}
	return ch, nil
}

// MeshEndpoint is one participant's view of a Mesh.
type MeshEndpoint struct {
	mesh *Mesh
	rank int

	closed    chan struct{}
	closeOnce sync.Once
}

// Rank returns the participant identity of this endpoint.
func (e *MeshEndpoint) Rank() int {
	return e.rank
}

// Send blocks until participant to receives the row.
func (e *MeshEndpoint) Send(ctx context.Context, to int, row core.Row) error {
	ch, err := e.mesh.channel(e.rank, to)
	if err != nil {
		return err
	}
	if len(row) != e.mesh.columns {
		return fmt.Errorf("%w: sending %d cells on a %d column mesh", ErrPayloadLength, len(row), e.mesh.columns)
	}

	buf := e.mesh.pool.Get()
	copy(buf, row)
	select {
	case ch <- buf:
		return nil
	case <-ctx.Done():
		e.mesh.pool.Put(buf)
		return ctx.Err()
	case <-e.mesh.closed:
		e.mesh.pool.Put(buf)
		return ErrClosed
	case <-e.closed:
		e.mesh.pool.Put(buf)
		return ErrClosed
	}
}

// Recv blocks until participant from sends a row.
func (e *MeshEndpoint) Recv(ctx context.Context, from int, dst core.Row) error {
	ch, err := e.mesh.channel(from, e.rank)
	if err != nil {
		return err
	}

	select {
	case buf := <-ch:
		err := core.DecodeRow(dst, buf)
		e.mesh.pool.Put(buf)
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.mesh.closed:
		return ErrClosed
	case <-e.closed:
		return ErrClosed
	}
}

// Close fails pending and later calls on this endpoint. Its neighbours
// are only released by their own context or by Mesh.Close.
func (e *MeshEndpoint) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })
	return nil
}
