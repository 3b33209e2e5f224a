// Package halo implements the per-generation row exchange between
// vertically adjacent participants.
//
// Every participant sends its current row to each existing neighbour and
// receives each neighbour's row. Transports block on both sides, so the
// order of operations matters. Participants with an even identity send
// first (upper, then lower) and then receive (upper, then lower).
// Participants with an odd identity receive first and then send, in the
// same order. Adjacent identities always differ in parity, so every
// blocking Send meets a Recv on its peer and the protocol cannot deadlock
// for any participant count.
package halo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/transport"
)

// ErrBufferSize is returned when a halo buffer does not match the row.
var ErrBufferSize = errors.New("halo: buffer width differs from row width")

// Exchanger runs the exchange protocol for one participant.
type Exchanger struct {
	topo core.Topology
	tr   transport.Transport

	upper, lower       int
	hasUpper, hasLower bool
}

// New returns an Exchanger for the participant described by topo.
func New(topo core.Topology, tr transport.Transport) *Exchanger {
	up, hasUp := topo.Upper()
	down, hasDown := topo.Lower()
	return &Exchanger{
		topo:     topo,
		tr:       tr,
		upper:    up,
		lower:    down,
		hasUpper: hasUp,
		hasLower: hasDown,
	}
}

// Topology returns the participant's position.
func (e *Exchanger) Topology() core.Topology {
	return e.topo
}

// Exchange sends row to every neighbour and receives their rows into
// upperBuf and lowerBuf. A missing neighbour is reported as NoNeighbor
// and its buffer is left untouched. row is only read.
func (e *Exchanger) Exchange(ctx context.Context, row, upperBuf, lowerBuf core.Row) (upper, lower core.Neighbor, err error) {
	ctx, span := tracer().Start(ctx, "halo.Exchanger.Exchange",
		trace.WithAttributes(
			attribute.Int("participant.id", e.topo.ID),
			attribute.Bool("participant.even", e.topo.Even()),
		))
	defer span.End()

	if len(upperBuf) != len(row) || len(lowerBuf) != len(row) {
		err = fmt.Errorf("%w: row %d, upper %d, lower %d", ErrBufferSize, len(row), len(upperBuf), len(lowerBuf))
		return e.fail(span, err)
	}

	start := time.Now()
	if e.topo.Even() {
		err = e.send(ctx, row)
		if err == nil {
			err = e.recv(ctx, upperBuf, lowerBuf)
		}
	} else {
		err = e.recv(ctx, upperBuf, lowerBuf)
		if err == nil {
			err = e.send(ctx, row)
		}
	}
	if err != nil {
		return e.fail(span, err)
	}
	exchangeDuration.Observe(time.Since(start).Seconds())

	upper, lower = core.NoNeighbor(), core.NoNeighbor()
	if e.hasUpper {
		upper = core.HasNeighbor(upperBuf)
	}
	if e.hasLower {
		lower = core.HasNeighbor(lowerBuf)
	}
	return upper, lower, nil
}

func (e *Exchanger) send(ctx context.Context, row core.Row) error {
	if e.hasUpper {
		if err := e.tr.Send(ctx, e.upper, row); err != nil {
			return fmt.Errorf("halo: participant %d send to %d: %w", e.topo.ID, e.upper, err)
		}
		messagesTotal.WithLabelValues("sent").Inc()
	}
	if e.hasLower {
		if err := e.tr.Send(ctx, e.lower, row); err != nil {
			return fmt.Errorf("halo: participant %d send to %d: %w", e.topo.ID, e.lower, err)
		}
		messagesTotal.WithLabelValues("sent").Inc()
	}
	return nil
}

func (e *Exchanger) recv(ctx context.Context, upperBuf, lowerBuf core.Row) error {
	if e.hasUpper {
		if err := e.tr.Recv(ctx, e.upper, upperBuf); err != nil {
			return fmt.Errorf("halo: participant %d recv from %d: %w", e.topo.ID, e.upper, err)
		}
		messagesTotal.WithLabelValues("received").Inc()
	}
	if e.hasLower {
		if err := e.tr.Recv(ctx, e.lower, lowerBuf); err != nil {
			return fmt.Errorf("halo: participant %d recv from %d: %w", e.topo.ID, e.lower, err)
		}
		messagesTotal.WithLabelValues("received").Inc()
	}
	return nil
}

func (e *Exchanger) fail(span trace.Span, err error) (core.Neighbor, core.Neighbor, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	exchangeErrors.Inc()
	return core.NoNeighbor(), core.NoNeighbor(), err
}
