package runtime

import (
	"testing"
	"unsafe"

	"github.com/sbl8/rowlife/core"
)

func TestNewArena(t *testing.T) {
	t.Parallel()
	arena, err := NewArena(100)
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}

	if arena.TotalSize() != 4*core.AlignedSize(100) {
		t.Errorf("TotalSize = %d, want %d", arena.TotalSize(), 4*core.AlignedSize(100))
	}
	for _, name := range []string{RegionRow, RegionSnapshot, RegionUpper, RegionLower} {
		if _, ok := arena.Region(name); !ok {
			t.Errorf("%s region not found", name)
		}
	}
	if _, ok := arena.Region("Scratch"); ok {
		t.Error("unexpected Scratch region")
	}
}

func TestNewArenaRejectsZeroColumns(t *testing.T) {
	t.Parallel()
	if _, err := NewArena(0); err == nil {
		t.Error("expected error for zero columns")
	}
}

func TestArenaMemoryLayout(t *testing.T) {
	t.Parallel()
	arena, err := NewArena(65)
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}

	var prevEnd uintptr
	for i, name := range regionOrder {
		region, _ := arena.Region(name)
		if !core.IsAligned(region.Offset) {
			t.Errorf("region %s offset %d not aligned", name, region.Offset)
		}
		if i > 0 && region.Offset < prevEnd {
			t.Errorf("region %s overlaps its predecessor", name)
		}
		if region.Len != 65 {
			t.Errorf("region %s Len = %d, want 65", name, region.Len)
		}
		prevEnd = region.Offset + region.Size
	}
}

func TestArenaRowsAreDisjoint(t *testing.T) {
	t.Parallel()
	arena, err := NewArena(8)
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}

	rows := make([]core.Row, len(regionOrder))
	for i, name := range regionOrder {
		rows[i], err = arena.Row(name)
		if err != nil {
			t.Fatalf("Row(%s): %v", name, err)
		}
		if len(rows[i]) != 8 || cap(rows[i]) != 8 {
			t.Errorf("Row(%s) len=%d cap=%d, want 8/8", name, len(rows[i]), cap(rows[i]))
		}
		if !core.IsAligned(uintptr(unsafe.Pointer(&rows[i][0]))) {
			t.Errorf("Row(%s) is not cache aligned", name)
		}
	}

	rows[0][7] = core.Alive
	for _, r := range rows[1:] {
		if r.Population() != 0 {
			t.Error("write to Row leaked into another region")
		}
	}

	if _, err := arena.Row("Scratch"); err == nil {
		t.Error("expected error for unknown region")
	}
}

func TestZeroRegion(t *testing.T) {
	t.Parallel()
	arena, _ := NewArena(4)
	upper, _ := arena.Row(RegionUpper)
	row, _ := arena.Row(RegionRow)
	copy(upper, core.MustParseRow("1111"))
	copy(row, core.MustParseRow("1111"))

	if err := arena.ZeroRegion(RegionUpper); err != nil {
		t.Fatalf("ZeroRegion failed: %v", err)
	}
	if upper.Population() != 0 {
		t.Error("Upper not cleared")
	}
	if row.Population() != 4 {
		t.Error("ZeroRegion touched Row")
	}
	if err := arena.ZeroRegion("nope"); err == nil {
		t.Error("expected error for unknown region")
	}
}

func BenchmarkArenaAllocation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		arena, err := NewArena(4096)
		if err != nil {
			b.Fatalf("NewArena failed: %v", err)
		}
		_ = arena
	}
}
