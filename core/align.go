package core

import "unsafe"

const (
	// CacheLineSize is a common cache line size, typically 64 bytes.
	CacheLineSize = 64
)

// IsAligned checks if an address is aligned to a cache line boundary.
func IsAligned(addr uintptr) bool {
	return addr%CacheLineSize == 0
}

// AlignedSize rounds size up to the nearest cache line multiple.
func AlignedSize(size uintptr) uintptr {
	return (size + uintptr(CacheLineSize-1)) & ^uintptr(CacheLineSize-1)
}

// AlignedBytes allocates a byte slice whose backing array starts on a
// cache line boundary.
func AlignedBytes(size int) []byte {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size+CacheLineSize-1)

	ptr := uintptr(unsafe.Pointer(&buf[0]))
	offset := uintptr(0)
	if mod := ptr % CacheLineSize; mod != 0 {
		offset = CacheLineSize - mod
	}
	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}
