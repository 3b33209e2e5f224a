package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/model"
	"github.com/sbl8/rowlife/transport"
)

// ClusterParams describes a whole in-process run.
type ClusterParams struct {
	Participants int
	Columns      int
	Iterations   int
}

// Cluster runs every participant of a lattice as a goroutine, joined by a
// transport.Mesh.
type Cluster struct {
	params       ClusterParams
	runID        string
	log          *slog.Logger
	mesh         *transport.Mesh
	participants []*Participant
}

// NewCluster creates the mesh and one participant per row.
func NewCluster(params ClusterParams, opts *Options) (*Cluster, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	// Validate once up front so every participant error below is an
	// internal fault rather than bad input.
	probe := core.Params{
		Topology:   core.Topology{ID: 0, Size: params.Participants},
		Columns:    params.Columns,
		Iterations: params.Iterations,
	}
	if err := probe.Validate(); err != nil {
		return nil, err
	}

	mesh, err := transport.NewMesh(params.Participants, params.Columns)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	o.Logger = o.Logger.With("run_id", runID)
	c := &Cluster{
		params:       params,
		runID:        runID,
		log:          o.Logger,
		mesh:         mesh,
		participants: make([]*Participant, params.Participants),
	}
	for id := range c.participants {
		ep, err := mesh.Endpoint(id)
		if err != nil {
			return nil, err
		}
		pp := probe
		pp.ID = id
		if c.participants[id], err = NewParticipant(pp, ep, &o); err != nil {
			return nil, fmt.Errorf("participant %d: %w", id, err)
		}
	}
	return c, nil
}

// RunID identifies this run in logs.
func (c *Cluster) RunID() string {
	return c.runID
}

// Participants returns the participants in identity order.
func (c *Cluster) Participants() []*Participant {
	return c.participants
}

// Progress returns every participant's progress.
func (c *Cluster) Progress() []Progress {
	out := make([]Progress, len(c.participants))
	for i, p := range c.participants {
		out[i] = p.Progress()
	}
	return out
}

// Run executes all participants and waits for them. The first failure
// cancels the rest and is returned. A Cluster runs once.
func (c *Cluster) Run(ctx context.Context, supplier model.Supplier, consumer model.Consumer) error {
	c.log.Info("run starting",
		"participants", c.params.Participants,
		"columns", c.params.Columns,
		"iterations", c.params.Iterations)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range c.participants {
		g.Go(func() error {
			return p.Run(gctx, supplier, consumer)
		})
	}
	err := g.Wait()
	c.mesh.Close()
	if err != nil {
		c.log.Error("run failed", "error", err)
		return err
	}

	c.log.Info("run finished", "wall_time", time.Since(start))
	return nil
}
