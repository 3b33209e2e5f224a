package core

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    Row
		wantErr bool
	}{
		{name: "binary", in: "0101", want: Row{Dead, Alive, Dead, Alive}},
		{name: "plaintext", in: ".O.*", want: Row{Dead, Alive, Dead, Alive}},
		{name: "empty", in: "", want: Row{}},
		{name: "bad char", in: "01x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRow(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowStringRoundTrip(t *testing.T) {
	t.Parallel()
	r := MustParseRow("0110010")
	assert.Equal(t, "0110010", r.String())
	assert.Equal(t, 3, r.Population())
}

func TestRowCopyFromZeroFills(t *testing.T) {
	t.Parallel()
	r := MustParseRow("1111")
	r.CopyFrom([]byte{Alive})
	assert.Equal(t, "1000", r.String())

	r.CopyFrom([]byte{Dead, Alive, Alive, Alive, Alive, Alive})
	assert.Equal(t, "0111", r.String(), "long source is truncated")
}

func TestRowResetAndClone(t *testing.T) {
	t.Parallel()
	r := MustParseRow("101")
	c := r.Clone()
	r.Reset()
	assert.Equal(t, "000", r.String())
	assert.Equal(t, "101", c.String())
	assert.Nil(t, Row(nil).Clone())
}

func TestRowIsAliveBounds(t *testing.T) {
	t.Parallel()
	r := MustParseRow("11")
	assert.False(t, r.IsAlive(-1))
	assert.True(t, r.IsAlive(0))
	assert.True(t, r.IsAlive(1))
	assert.False(t, r.IsAlive(2))
}

func TestRowValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, MustParseRow("01").Validate())
	assert.Error(t, Row{}.Validate())
	assert.Error(t, Row{Dead, 7}.Validate())
}

func TestRowPool(t *testing.T) {
	t.Parallel()
	p := NewRowPool(5)
	r := p.Get()
	assert.Len(t, r, 5)
	p.Put(r)
	p.Put(make(Row, 2)) // dropped, too narrow
	assert.Len(t, p.Get(), 5)
}

func TestTopologyNeighbors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		topo      Topology
		upper     int
		hasUpper  bool
		lower     int
		hasLower  bool
		edge      bool
		neighbors []int
	}{
		{Topology{ID: 0, Size: 1}, -1, false, -1, false, true, []int{}},
		{Topology{ID: 0, Size: 3}, -1, false, 1, true, true, []int{1}},
		{Topology{ID: 1, Size: 3}, 0, true, 2, true, false, []int{0, 2}},
		{Topology{ID: 2, Size: 3}, 1, true, -1, false, true, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.topo.String(), func(t *testing.T) {
			up, ok := tt.topo.Upper()
			assert.Equal(t, tt.upper, up)
			assert.Equal(t, tt.hasUpper, ok)
			down, ok := tt.topo.Lower()
			assert.Equal(t, tt.lower, down)
			assert.Equal(t, tt.hasLower, ok)
			assert.Equal(t, tt.edge, tt.topo.IsEdge())
			assert.Equal(t, tt.neighbors, tt.topo.Neighbors())
		})
	}
}

func TestAdjacentParityDiffers(t *testing.T) {
	t.Parallel()
	for id := 0; id < 9; id++ {
		a := Topology{ID: id, Size: 10}
		b := Topology{ID: id + 1, Size: 10}
		assert.NotEqual(t, a.Even(), b.Even(), "participants %d and %d", id, id+1)
	}
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()
	valid := Params{Topology: Topology{ID: 1, Size: 3}, Columns: 4, Iterations: 2}
	require.NoError(t, valid.Validate())
	assert.Equal(t, 1, valid.ID)
	assert.Equal(t, 3, valid.Size)
	assert.False(t, valid.Even())

	bad := []Params{
		{Topology: Topology{ID: 0, Size: 0}, Columns: 4, Iterations: 1},
		{Topology: Topology{ID: 3, Size: 3}, Columns: 4, Iterations: 1},
		{Topology: Topology{ID: -1, Size: 3}, Columns: 4, Iterations: 1},
		{Topology: Topology{ID: 0, Size: 3}, Columns: 0, Iterations: 1},
		{Topology: Topology{ID: 0, Size: 3}, Columns: 4, Iterations: 0},
	}
	for _, p := range bad {
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidParams))
	}
}

func TestNeighborVariant(t *testing.T) {
	t.Parallel()
	none := NoNeighbor()
	assert.False(t, none.Present())
	assert.Nil(t, none.Row())
	assert.Equal(t, "none", none.String())

	r := MustParseRow("010")
	has := HasNeighbor(r)
	assert.True(t, has.Present())
	assert.Equal(t, r, has.Row())
	assert.Equal(t, "010", has.String())
}

func TestDecodeRow(t *testing.T) {
	t.Parallel()
	dst := NewRow(3)
	require.NoError(t, DecodeRow(dst, EncodeRow(nil, MustParseRow("101"))))
	assert.Equal(t, "101", dst.String())

	err := DecodeRow(dst, []byte{1, 0})
	assert.ErrorIs(t, err, ErrRowLength)
	assert.Equal(t, "101", dst.String(), "dst untouched on error")

	err = DecodeRow(dst, []byte{1, 2, 0})
	assert.ErrorIs(t, err, ErrCellValue)
}

func TestDecodeText(t *testing.T) {
	t.Parallel()
	dst := MustParseRow("1111")
	DecodeText(dst, []byte("1x"))
	assert.Equal(t, "1000", dst.String())
	assert.Equal(t, "1000", string(AppendText(nil, dst)))
}

func TestAlignedBytes(t *testing.T) {
	t.Parallel()
	for _, size := range []int{1, 63, 64, 65, 4096} {
		buf := AlignedBytes(size)
		require.Len(t, buf, size)
		assert.True(t, IsAligned(uintptr(unsafe.Pointer(&buf[0]))))
	}
	assert.Nil(t, AlignedBytes(0))
	assert.Equal(t, uintptr(128), AlignedSize(65))
}
