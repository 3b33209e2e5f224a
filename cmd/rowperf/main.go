// Command rowperf measures kernel and end-to-end throughput.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/kernels"
	"github.com/sbl8/rowlife/model"
	"github.com/sbl8/rowlife/runtime"
)

type perfOptions struct {
	test         string
	columns      int
	participants int
	iterations   int
	runs         int
	rule         string
	density      float64
	seed         uint64
	verify       bool
	verbose      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var po perfOptions
	cmd := &cobra.Command{
		Use:          "rowperf",
		Short:        "Measure step kernel and cluster throughput",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return perf(cmd.Context(), cmd.OutOrStdout(), po)
		},
	}
	f := cmd.Flags()
	f.StringVar(&po.test, "test", "all", "test type: all, kernel or cluster")
	f.IntVar(&po.columns, "columns", 1024, "cells per row")
	f.IntVarP(&po.participants, "participants", "p", 64, "participants in the cluster test")
	f.IntVarP(&po.iterations, "iterations", "n", 100, "generations per run")
	f.IntVar(&po.runs, "runs", 3, "cluster runs to average")
	f.StringVar(&po.rule, "rule", "life", "rule name or B/S notation")
	f.Float64Var(&po.density, "density", 0.35, "initial live-cell density")
	f.Uint64Var(&po.seed, "seed", 1, "seed for the initial lattice")
	f.BoolVar(&po.verify, "verify", false, "check cluster output against the sequential lattice")
	f.BoolVar(&po.verbose, "verbose", false, "verbose output")
	return cmd
}

func (po perfOptions) validate() error {
	switch {
	case po.columns < 1:
		return fmt.Errorf("columns %d must be positive", po.columns)
	case po.iterations < 1:
		return fmt.Errorf("iterations %d must be positive", po.iterations)
	case po.participants < 1:
		return fmt.Errorf("participants %d must be positive", po.participants)
	case po.density < 0 || po.density > 1:
		return fmt.Errorf("density %v outside [0, 1]", po.density)
	}
	return nil
}

func perf(ctx context.Context, out io.Writer, po perfOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rule, err := kernels.Lookup(po.rule)
	if err != nil {
		return err
	}
	if err := po.validate(); err != nil {
		return err
	}

	fmt.Fprintf(out, "rowlife Performance Analysis Tool\n")
	fmt.Fprintf(out, "=================================\n")
	fmt.Fprintf(out, "Go Version: %s\n", goruntime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintf(out, "CPUs: %d\n", goruntime.NumCPU())
	fmt.Fprintf(out, "Rule: %s\n", rule)
	fmt.Fprintf(out, "Columns: %d\n", po.columns)
	fmt.Fprintf(out, "Iterations: %d\n\n", po.iterations)

	switch po.test {
	case "all":
		if err := kernelPerf(out, po, rule); err != nil {
			return err
		}
		return clusterPerf(ctx, out, po, rule)
	case "kernel":
		return kernelPerf(out, po, rule)
	case "cluster":
		return clusterPerf(ctx, out, po, rule)
	default:
		return fmt.Errorf("unknown test type: %s", po.test)
	}
}

func kernelPerf(out io.Writer, po perfOptions, rule kernels.Rule) error {
	fmt.Fprintf(out, "Step Kernel Performance\n")
	fmt.Fprintf(out, "-----------------------\n")

	src := model.RandomSupplier{Seed: po.seed, Density: po.density}
	var rows [3]core.Row
	for id := range rows {
		r, err := src.Row(id, po.columns)
		if err != nil {
			return err
		}
		rows[id] = r
	}
	up, own, down := rows[0], rows[1], rows[2]
	dst := core.NewRow(po.columns)

	cells := float64(po.columns * po.iterations)
	tests := []struct {
		name  string
		upper core.Neighbor
		lower core.Neighbor
	}{
		{"Interior row", core.HasNeighbor(up), core.HasNeighbor(down)},
		{"Edge row", core.NoNeighbor(), core.HasNeighbor(down)},
	}
	for _, tt := range tests {
		start := time.Now()
		for i := 0; i < po.iterations; i++ {
			kernels.StepHalo(dst, tt.upper, own, tt.lower, rule)
		}
		d := time.Since(start)
		fmt.Fprintf(out, "%-15s:             %v (%.2f Mcells/s)\n", tt.name, d, cells/d.Seconds()/1e6)
	}
	fmt.Fprintf(out, "\n")
	return nil
}

func clusterPerf(ctx context.Context, out io.Writer, po perfOptions, rule kernels.Rule) error {
	fmt.Fprintf(out, "Cluster Performance (%d participants)\n", po.participants)
	fmt.Fprintf(out, "-----------------------------------\n")

	src := model.RandomSupplier{Seed: po.seed, Density: po.density}
	opts := runtime.DefaultOptions()
	opts.Rule = rule
	opts.EnableStats = true

	var total time.Duration
	var last *model.Collector
	var stats []runtime.ExecutionStats
	for run := 0; run < po.runs; run++ {
		cluster, err := runtime.NewCluster(runtime.ClusterParams{
			Participants: po.participants,
			Columns:      po.columns,
			Iterations:   po.iterations,
		}, &opts)
		if err != nil {
			return err
		}
		collector := model.NewCollector()

		start := time.Now()
		if err := cluster.Run(ctx, src, collector); err != nil {
			return err
		}
		d := time.Since(start)
		total += d
		last = collector

		stats = stats[:0]
		for _, p := range cluster.Participants() {
			stats = append(stats, p.Stats())
		}
		if po.verbose {
			fmt.Fprintf(out, "  run %d: %v\n", run+1, d)
		}
	}
	if po.runs < 1 {
		return nil
	}

	avg := total / time.Duration(po.runs)
	cells := float64(po.participants * po.columns * po.iterations)
	fmt.Fprintf(out, "Average wall time:           %v (%.2f Mcells/s)\n", avg, cells/avg.Seconds()/1e6)

	var exchange, compute time.Duration
	for _, s := range stats {
		exchange += s.ExchangeTime
		compute += s.ComputeTime
	}
	if n := time.Duration(len(stats)); n > 0 {
		fmt.Fprintf(out, "Mean exchange per participant: %v\n", exchange/n)
		fmt.Fprintf(out, "Mean compute per participant:  %v\n", compute/n)
	}

	if po.verify {
		if err := verify(last, src, po, rule); err != nil {
			return err
		}
		fmt.Fprintf(out, "Verification: cluster output matches the sequential lattice\n")
	}
	fmt.Fprintf(out, "\n")
	return nil
}

// verify recomputes the run sequentially from the same initial lattice.
func verify(got *model.Collector, src model.Supplier, po perfOptions, rule kernels.Rule) error {
	want, err := model.NewLattice(po.participants, po.columns)
	if err != nil {
		return err
	}
	for id := range want.Rows {
		if want.Rows[id], err = src.Row(id, po.columns); err != nil {
			return err
		}
	}
	want.Run(po.iterations, rule)

	have, err := got.Lattice(po.participants)
	if err != nil {
		return err
	}
	if !have.Equal(want) {
		return fmt.Errorf("cluster output differs from the sequential lattice")
	}
	return nil
}
