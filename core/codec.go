package core

import (
	"errors"
	"fmt"
)

// Payload errors reported when decoding a row received from a peer.
var (
	ErrRowLength = errors.New("row payload has the wrong length")
	ErrCellValue = errors.New("row payload holds an invalid cell value")
)

// EncodeRow appends the wire payload of r to dst: exactly one byte per
// column, 0 for dead and 1 for alive.
func EncodeRow(dst []byte, r Row) []byte {
	return append(dst, r...)
}

// DecodeRow copies a wire payload into dst. The payload must be exactly
// len(dst) bytes of 0 or 1; dst is left untouched otherwise.
func DecodeRow(dst Row, payload []byte) error {
	if len(payload) != len(dst) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrRowLength, len(payload), len(dst))
	}
	for i, c := range payload {
		if c != Dead && c != Alive {
			return fmt.Errorf("%w: byte %d is 0x%02x", ErrCellValue, i, c)
		}
	}
	copy(dst, payload)
	return nil
}

// AppendText appends the '0'/'1' text form of r to dst.
func AppendText(dst []byte, r Row) []byte {
	for _, c := range r {
		if c == Alive {
			dst = append(dst, AliveChar)
		} else {
			dst = append(dst, DeadChar)
		}
	}
	return dst
}

// DecodeText fills dst from a lattice file line. '1' is alive and any other
// byte is dead; a short line leaves the tail dead.
func DecodeText(dst Row, line []byte) {
	n := len(line)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		if line[i] == AliveChar {
			dst[i] = Alive
		} else {
			dst[i] = Dead
		}
	}
	clear(dst[n:])
}
