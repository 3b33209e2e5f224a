package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbl8/rowlife/config"
	"github.com/sbl8/rowlife/kernels"
	"github.com/sbl8/rowlife/logging"
)

// loggedError marks an error already reported through the logger.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

// flagValues holds command-line overrides. Only flags the user actually
// set are applied on top of the file and environment configuration.
type flagValues struct {
	configPath     string
	columns        int
	iterations     int
	participants   int
	rule           string
	lattice        string
	transport      string
	rank           int
	peers          string
	dialTimeout    time.Duration
	logLevel       string
	logJSON        bool
	statusAddr     string
	format         string
	color          string
	traceExporter  string
	metricExporter string
	debug          bool
}

func newRootCmd() *cobra.Command {
	var fv flagValues
	cmd := &cobra.Command{
		Use:   "rowrun",
		Short: "Run Conway's Game of Life with one participant per row",
		Long: `rowrun evolves a lattice for a fixed number of generations. Each row is
owned by one participant, which exchanges its row with the participants
directly above and below every generation and prints its final row as
"<id>:<row>".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &fv)
			if err != nil {
				log := logging.New(logging.Config{Service: "rowrun", Output: cmd.ErrOrStderr()})
				log.Error("invalid configuration", "error", err)
				return &loggedError{err}
			}
			return run(cmd.Context(), cfg, runOptions{
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				debug:  fv.debug,
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fv.configPath, "config", "c", "", "YAML configuration file")
	f.IntVar(&fv.columns, "columns", 0, "cells per row")
	f.IntVarP(&fv.iterations, "iterations", "n", 0, "generations to compute")
	f.IntVarP(&fv.participants, "participants", "p", 0, "participants, one per row")
	f.StringVar(&fv.rule, "rule", "", fmt.Sprintf("rule in B/S notation or one of %v", kernels.Names()))
	f.StringVarP(&fv.lattice, "lattice", "l", "", "lattice file with the initial state")
	f.StringVar(&fv.transport, "transport", "", "mesh (one process) or websocket (one process per participant)")
	f.IntVar(&fv.rank, "rank", 0, "participant hosted by this process (websocket)")
	f.StringVar(&fv.peers, "peers", "", "comma separated host:port of every participant (websocket)")
	f.DurationVar(&fv.dialTimeout, "dial-timeout", 0, "how long to wait for neighbours to connect")
	f.StringVar(&fv.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&fv.logJSON, "log-json", false, "log as JSON")
	f.StringVar(&fv.statusAddr, "status-addr", "", "serve /healthz, /v1/progress and /metrics on this address")
	f.StringVar(&fv.format, "format", "", "output format: text or grid")
	f.StringVar(&fv.color, "color", "", "grid colour: auto, always or never")
	f.StringVar(&fv.traceExporter, "trace-exporter", "", "none, stdout or otlp")
	f.StringVar(&fv.metricExporter, "metric-exporter", "", "none, prometheus or stdout")
	f.BoolVar(&fv.debug, "debug", false, "report per-participant timing")
	return cmd
}

// loadConfig layers defaults, file, environment and changed flags, then
// validates the result.
func loadConfig(cmd *cobra.Command, fv *flagValues) (config.Config, error) {
	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("columns") {
		cfg.Columns = fv.columns
	}
	if changed("iterations") {
		cfg.Iterations = fv.iterations
	}
	if changed("participants") {
		cfg.Participants = fv.participants
	}
	if changed("rule") {
		cfg.Rule = fv.rule
	}
	if changed("lattice") {
		cfg.Lattice = fv.lattice
	}
	if changed("peers") {
		cfg.Transport.Peers = config.SplitPeers(fv.peers)
		cfg.Transport.Kind = config.TransportWebSocket
	}
	if changed("transport") {
		cfg.Transport.Kind = fv.transport
	}
	if changed("rank") {
		cfg.Transport.Rank = fv.rank
	}
	if changed("dial-timeout") {
		cfg.Transport.DialTimeout = fv.dialTimeout
	}
	if changed("log-level") {
		cfg.Log.Level = fv.logLevel
	}
	if changed("log-json") {
		cfg.Log.JSON = fv.logJSON
	}
	if changed("status-addr") {
		cfg.Status.Addr = fv.statusAddr
	}
	if changed("format") {
		cfg.Output.Format = fv.format
	}
	if changed("color") {
		cfg.Output.Color = fv.color
	}
	if changed("trace-exporter") {
		cfg.Telemetry.TraceExporter = fv.traceExporter
	}
	if changed("metric-exporter") {
		cfg.Telemetry.MetricExporter = fv.metricExporter
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
