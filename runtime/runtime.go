// Package runtime executes the automaton, one participant per row.
//
// A Participant owns exactly one row of the lattice. Every generation it
// snapshots its row, exchanges halo rows with its neighbours and recomputes
// its row from the snapshot and the two halos. Participants share no
// memory; all coordination is the halo exchange.
//
// Key components:
//   - Participant: one row, its Arena and its halo Exchanger
//   - Arena: the pre-allocated, cache-aligned buffer holding Row,
//     Snapshot and the two halo rows
//   - Cluster: every participant of a run in one process, joined by an
//     in-process transport.Mesh
//
// Execution model, per participant:
//  1. Load the initial row from a model.Supplier
//  2. For each generation: snapshot, exchange, compute
//  3. Hand the final row to a model.Consumer
//
// The row, snapshot and halo buffers are allocated once and never
// reallocated across generations. Any failure aborts the participant;
// there is no retry or recovery.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/halo"
	"github.com/sbl8/rowlife/kernels"
	"github.com/sbl8/rowlife/model"
	"github.com/sbl8/rowlife/transport"
)

// State is a participant's position in the generation loop.
type State int32

const (
	StateIdle State = iota
	StateExchanging
	StateComputing
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "exchanging", "computing", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown participant state %q", text)
}

// Progress is a point-in-time view of one participant.
type Progress struct {
	ID         int   `json:"id"`
	Generation int   `json:"generation"`
	State      State `json:"state"`
}

// Options configures participant behavior.
type Options struct {
	Rule        kernels.Rule
	EnableStats bool
	Logger      *slog.Logger
}

// ExecutionStats tracks where a participant spent its time.
type ExecutionStats struct {
	Generations  int
	ExchangeTime time.Duration
	ComputeTime  time.Duration
	WallTime     time.Duration
}

// DefaultOptions returns Conway's rule with stats disabled.
func DefaultOptions() Options {
	return Options{
		Rule: kernels.Conway,
	}
}

// Participant computes one row of the lattice.
type Participant struct {
	params    core.Params
	opts      Options
	log       *slog.Logger
	arena     *Arena
	exchanger *halo.Exchanger

	row, snapshot, upper, lower core.Row

	state      atomic.Int32
	generation atomic.Int64

	mu    sync.RWMutex
	stats ExecutionStats
}

// NewParticipant validates params and allocates everything the
// participant will need. tr must connect it to its neighbours.
func NewParticipant(params core.Params, tr transport.Transport, opts *Options) (*Participant, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", core.ErrInvalidParams)
	}
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}

	arena, err := NewArena(params.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to create arena: %w", err)
	}
	p := &Participant{
		params:    params,
		opts:      o,
		log:       log.With("participant", params.ID),
		arena:     arena,
		exchanger: halo.New(params.Topology, tr),
	}
	for name, dst := range map[string]*core.Row{
		RegionRow:      &p.row,
		RegionSnapshot: &p.snapshot,
		RegionUpper:    &p.upper,
		RegionLower:    &p.lower,
	} {
		if *dst, err = arena.Row(name); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ID returns the participant's identity.
func (p *Participant) ID() int {
	return p.params.ID
}

// Params returns the run parameters.
func (p *Participant) Params() core.Params {
	return p.params
}

// State returns the current state.
func (p *Participant) State() State {
	return State(p.state.Load())
}

func (p *Participant) setState(s State) {
	p.state.Store(int32(s))
}

// Progress returns a snapshot of the participant's position.
func (p *Participant) Progress() Progress {
	return Progress{
		ID:         p.params.ID,
		Generation: int(p.generation.Load()),
		State:      p.State(),
	}
}

// Stats returns the timing statistics. They are only populated when
// Options.EnableStats is set.
func (p *Participant) Stats() ExecutionStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Row returns a copy of the current row.
func (p *Participant) Row() core.Row {
	return p.row.Clone()
}

// Load sets the initial row from supplier. Any non-dead byte it returns
// is taken as alive.
func (p *Participant) Load(supplier model.Supplier) error {
	data, err := supplier.Row(p.params.ID, p.params.Columns)
	if err != nil {
		return fmt.Errorf("participant %d: load initial row: %w", p.params.ID, err)
	}
	p.row.CopyFrom(data)
	for x, c := range p.row {
		if c != core.Dead {
			p.row[x] = core.Alive
		}
	}
	return nil
}

// Iterate runs every generation on the loaded row.
func (p *Participant) Iterate(ctx context.Context) error {
	attrs := metric.WithAttributes(attribute.Int("participant.id", p.params.ID))
	m := instruments()

	for gen := 0; gen < p.params.Iterations; gen++ {
		if err := ctx.Err(); err != nil {
			return p.fail(gen, err)
		}

		if err := p.resetHalos(); err != nil {
			return p.fail(gen, err)
		}
		copy(p.snapshot, p.row)

		p.setState(StateExchanging)
		exStart := time.Now()
		up, down, err := p.exchanger.Exchange(ctx, p.row, p.upper, p.lower)
		if err != nil {
			return p.fail(gen, err)
		}

		p.setState(StateComputing)
		cStart := time.Now()
		kernels.StepHalo(p.row, up, p.snapshot, down, p.opts.Rule)
		done := time.Now()

		p.generation.Store(int64(gen + 1))
		m.generations.Add(ctx, 1, attrs)
		m.computeDuration.Record(ctx, done.Sub(cStart).Seconds(), attrs)
		if p.opts.EnableStats {
			p.mu.Lock()
			p.stats.Generations++
			p.stats.ExchangeTime += cStart.Sub(exStart)
			p.stats.ComputeTime += done.Sub(cStart)
			p.mu.Unlock()
		}
	}
	p.setState(StateDone)
	return nil
}

// resetHalos clears both halo regions so an absent neighbour reads as dead
// even if the kernel were handed the buffer.
func (p *Participant) resetHalos() error {
	for _, name := range [...]string{RegionUpper, RegionLower} {
		if err := p.arena.ZeroRegion(name); err != nil {
			return fmt.Errorf("reset halo: %w", err)
		}
	}
	return nil
}

func (p *Participant) fail(gen int, err error) error {
	p.setState(StateFailed)
	return fmt.Errorf("participant %d generation %d: %w", p.params.ID, gen, err)
}

// Run loads the initial row, iterates and reports the final row.
func (p *Participant) Run(ctx context.Context, supplier model.Supplier, consumer model.Consumer) error {
	ctx, span := tracer().Start(ctx, "runtime.Participant.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("participant.id", p.params.ID),
		attribute.Int("participant.count", p.params.Size),
		attribute.Int("columns", p.params.Columns),
		attribute.Int("iterations", p.params.Iterations),
	)

	start := time.Now()
	err := p.run(ctx, supplier, consumer)
	wall := time.Since(start)
	if p.opts.EnableStats {
		p.mu.Lock()
		p.stats.WallTime = wall
		p.mu.Unlock()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.log.Error("participant failed", "error", err)
		return err
	}
	p.log.Debug("participant finished", "generations", p.params.Iterations, "wall_time", wall)
	return nil
}

func (p *Participant) run(ctx context.Context, supplier model.Supplier, consumer model.Consumer) error {
	if err := p.Load(supplier); err != nil {
		p.setState(StateFailed)
		return err
	}
	if err := p.Iterate(ctx); err != nil {
		return err
	}
	if err := consumer.Consume(p.params.ID, p.row); err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("participant %d: report final row: %w", p.params.ID, err)
	}
	return nil
}
