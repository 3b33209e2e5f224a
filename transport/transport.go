// Package transport moves halo rows between participants.
//
// A Transport offers blocking point-to-point Send and Recv addressed by
// participant identity. Two implementations exist:
//   - Mesh: in-process endpoints joined by unbuffered channels. A Send
//     completes only when the peer's Recv takes the payload, the same
//     rendezvous a synchronous MPI send gives.
//   - WebSocket: one process per participant; each adjacent pair shares a
//     single websocket connection carrying binary row frames.
//
// Transports are fixed-topology and reliable by assumption. Every failure
// is returned to the caller, which treats it as fatal for the run.
package transport

import (
	"context"
	"errors"

	"github.com/sbl8/rowlife/core"
)

// Transport errors.
var (
	ErrUnknownPeer   = errors.New("transport: peer is not a neighbour")
	ErrClosed        = errors.New("transport: closed")
	ErrNotConnected  = errors.New("transport: peer not connected")
	ErrMalformed     = errors.New("transport: malformed message")
	ErrPayloadLength = core.ErrRowLength
)

// Transport is a blocking point-to-point channel between participants.
type Transport interface {
	// Send delivers a copy of row to participant to. The caller may reuse
	// row as soon as Send returns.
	Send(ctx context.Context, to int, row core.Row) error

	// Recv blocks until participant from has sent a row and copies it into
	// dst. The payload must be exactly len(dst) cells.
	Recv(ctx context.Context, from int, dst core.Row) error

	// Close releases the transport. Pending and later calls fail.
	Close() error
}

func adjacent(a, b int) bool {
	return a-b == 1 || b-a == 1
}
