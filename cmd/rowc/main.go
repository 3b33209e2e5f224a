// Command rowc compiles a pattern file into a lattice file.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbl8/rowlife/compiler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts compiler.CompileOptions
	var list bool

	cmd := &cobra.Command{
		Use:   "rowc [flags] <src.rowp> <out.txt>",
		Short: "Compile a pattern file into a lattice file",
		Long: `rowc reads a pattern file (size, row, place, fill and iterate
directives) and writes the lattice file rowrun reads with --lattice.`,
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				fmt.Fprintln(out, strings.Join(compiler.PatternNames(), "\n"))
				return nil
			}
			opts.Log = cmd.ErrOrStderr()
			if err := compiler.CompileWithOptions(args[0], args[1], opts); err != nil {
				return fmt.Errorf("compilation failed: %w", err)
			}
			fmt.Fprintf(out, "Successfully compiled %s -> %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Clip, "clip", false, "drop cells placed outside the lattice instead of failing")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "report progress on stderr")
	cmd.Flags().BoolVar(&list, "list", false, "list the built-in pattern names")
	return cmd
}
