package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sbl8/rowlife/config"
	"github.com/sbl8/rowlife/logging"
	"github.com/sbl8/rowlife/model"
	"github.com/sbl8/rowlife/runtime"
	"github.com/sbl8/rowlife/status"
	"github.com/sbl8/rowlife/telemetry"
	"github.com/sbl8/rowlife/transport"
)

type runOptions struct {
	stdout io.Writer
	stderr io.Writer
	debug  bool
}

// run executes one configured run. cfg must already be validated.
func run(ctx context.Context, cfg config.Config, ro runOptions) error {
	lc, err := cfg.Logging("rowrun")
	if err != nil {
		return err
	}
	lc.Output = ro.stderr
	logger := logging.New(lc)
	defer logger.Close()
	log := logger.Slog()

	if err := simulate(ctx, cfg, ro, log); err != nil {
		log.Error("run failed", "error", err)
		return &loggedError{err}
	}
	return nil
}

// simulate sets up telemetry, input and output, then runs the configured
// transport to completion.
func simulate(ctx context.Context, cfg config.Config, ro runOptions, log *slog.Logger) error {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := shutdown(sctx); serr != nil {
			log.Warn("telemetry shutdown failed", "error", serr)
		}
	}()

	rule, err := cfg.RuleValue()
	if err != nil {
		return err
	}
	supplier, closer, err := cfg.Supplier()
	if err != nil {
		return err
	}
	defer closer.Close()
	consumer := cfg.Consumer(ro.stdout)

	opts := runtime.Options{Rule: rule, EnableStats: ro.debug, Logger: log}

	var participants []*runtime.Participant
	switch cfg.Transport.Kind {
	case config.TransportWebSocket:
		participants, err = runNode(ctx, cfg, opts, supplier, consumer, log)
	default:
		participants, err = runCluster(ctx, cfg, opts, supplier, consumer, log)
	}
	if err != nil {
		return err
	}

	if f, ok := consumer.(model.Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
	}
	if ro.debug {
		for _, p := range participants {
			st := p.Stats()
			log.Info("participant timing",
				"participant", p.ID(),
				"wall_time", st.WallTime,
				"exchange_time", st.ExchangeTime,
				"compute_time", st.ComputeTime)
		}
	}
	return nil
}

func startStatus(cfg config.Config, runID string, source status.ProgressSource, log *slog.Logger) (stop func(), err error) {
	if cfg.Status.Addr == "" {
		return func() {}, nil
	}
	srv := status.NewServer(runID, source, log)
	if _, err := srv.ListenAndServe(cfg.Status.Addr); err != nil {
		return nil, fmt.Errorf("status server: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runCluster(ctx context.Context, cfg config.Config, opts runtime.Options, supplier model.Supplier, consumer model.Consumer, log *slog.Logger) ([]*runtime.Participant, error) {
	cluster, err := runtime.NewCluster(runtime.ClusterParams{
		Participants: cfg.Participants,
		Columns:      cfg.Columns,
		Iterations:   cfg.Iterations,
	}, &opts)
	if err != nil {
		return nil, err
	}

	stop, err := startStatus(cfg, cluster.RunID(), cluster, log)
	if err != nil {
		return nil, err
	}
	defer stop()

	return cluster.Participants(), cluster.Run(ctx, supplier, consumer)
}

func runNode(ctx context.Context, cfg config.Config, opts runtime.Options, supplier model.Supplier, consumer model.Consumer, log *slog.Logger) ([]*runtime.Participant, error) {
	rank := cfg.Transport.Rank
	ws, err := transport.NewWebSocket(rank, cfg.Transport.Peers, &transport.WebSocketOptions{
		DialInterval:     cfg.Transport.DialInterval,
		HandshakeTimeout: cfg.Transport.DialTimeout,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	p, err := runtime.NewParticipant(cfg.Params(rank), ws, &opts)
	if err != nil {
		return nil, err
	}
	stop, err := startStatus(cfg, "", status.ProgressFunc(func() []runtime.Progress {
		return []runtime.Progress{p.Progress()}
	}), log)
	if err != nil {
		return nil, err
	}
	defer stop()

	if err := ws.Start(); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, cfg.Transport.DialTimeout)
	err = ws.Connect(cctx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("neighbours of participant %d did not connect within %v: %w", rank, cfg.Transport.DialTimeout, err)
		}
		return nil, err
	}
	log.Info("neighbours connected", "participant", rank)

	return []*runtime.Participant{p}, p.Run(ctx, supplier, consumer)
}
