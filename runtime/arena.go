package runtime

import (
	"fmt"

	"github.com/sbl8/rowlife/core"
)

// Region names inside a participant arena.
const (
	RegionRow      = "Row"
	RegionSnapshot = "Snapshot"
	RegionUpper    = "Upper"
	RegionLower    = "Lower"
)

// regionOrder is the layout order. Row and Snapshot are adjacent because
// the step kernel streams through both.
var regionOrder = [...]string{RegionRow, RegionSnapshot, RegionUpper, RegionLower}

// ArenaRegion represents a distinct memory region within the Arena.
type ArenaRegion struct {
	Offset uintptr
	Size   uintptr // cache-line aligned capacity
	Len    int     // cells in use
	Name   string
}

// Arena is the single pre-allocated buffer backing every row a
// participant touches. Nothing is allocated after NewArena returns.
//
// Layout, each region cache-line aligned:
//  1. Row: the participant's current row, overwritten by each step
//  2. Snapshot: copy of Row taken before the exchange
//  3. Upper: halo row received from the upper neighbour
//  4. Lower: halo row received from the lower neighbour
type Arena struct {
	buffer  []byte
	regions map[string]ArenaRegion
	columns int

	next uintptr // bump offset used during layout
}

// NewArena allocates an arena for rows of the given width.
func NewArena(columns int) (*Arena, error) {
	if columns < 1 {
		return nil, fmt.Errorf("cannot create arena for %d columns", columns)
	}

	arena, err := createArenaBuffer(calculateArenaSize(columns))
	if err != nil {
		return nil, err
	}
	arena.columns = columns
	return layoutArenaRegions(arena)
}

// calculateArenaSize computes the aligned total for all regions.
func calculateArenaSize(columns int) uintptr {
	return uintptr(len(regionOrder)) * core.AlignedSize(uintptr(columns))
}

// createArenaBuffer allocates the arena buffer
func createArenaBuffer(size uintptr) (*Arena, error) {
	arena := &Arena{
		buffer:  core.AlignedBytes(int(size)),
		regions: make(map[string]ArenaRegion, len(regionOrder)),
	}
	if arena.buffer == nil {
		return nil, fmt.Errorf("failed to allocate arena buffer of size %d", size)
	}
	return arena, nil
}

// layoutArenaRegions partitions the arena into regions
func layoutArenaRegions(arena *Arena) (*Arena, error) {
	for _, name := range regionOrder {
		if err := arena.allocate(name, arena.columns); err != nil {
			return nil, err
		}
	}
	return arena, nil
}

// allocate bumps a cache-aligned region of n cells off the buffer.
func (a *Arena) allocate(name string, n int) error {
	offset := core.AlignedSize(a.next)
	size := core.AlignedSize(uintptr(n))
	if offset+size > uintptr(len(a.buffer)) {
		return fmt.Errorf("arena exhausted: region %s needs %d bytes at offset %d of %d", name, size, offset, len(a.buffer))
	}
	a.regions[name] = ArenaRegion{Offset: offset, Size: size, Len: n, Name: name}
	a.next = offset + size
	return nil
}

// Region returns the specified ArenaRegion.
func (a *Arena) Region(name string) (ArenaRegion, bool) {
	region, ok := a.regions[name]
	return region, ok
}

// Row returns the cells of a region. The slice is capped so appends can
// never spill into the next region.
func (a *Arena) Row(name string) (core.Row, error) {
	region, ok := a.regions[name]
	if !ok {
		return nil, fmt.Errorf("region %s not found", name)
	}
	end := region.Offset + uintptr(region.Len)
	return core.Row(a.buffer[region.Offset:end:end]), nil
}

// ZeroRegion sets all bytes in a given region to zero.
func (a *Arena) ZeroRegion(name string) error {
	region, ok := a.regions[name]
	if !ok {
		return fmt.Errorf("region %s not found", name)
	}
	clear(a.buffer[region.Offset : region.Offset+region.Size])
	return nil
}

// Columns returns the row width the arena was sized for.
func (a *Arena) Columns() int {
	return a.columns
}

// TotalSize returns the total capacity of the arena's buffer.
func (a *Arena) TotalSize() uintptr {
	return uintptr(len(a.buffer))
}
