// Package compiler turns pattern descriptions into lattice files.
//
// This package implements rowc, which converts a human-readable .rowp
// pattern description into a lattice file that the runtime seeds
// participants from (see model for the file format).
//
// Compilation pipeline:
//  1. Parse the DSL, expanding iterate blocks
//  2. Apply directives in order onto an all-dead lattice
//  3. Write the lattice file
//
// DSL directives, one per line, '#' starts a comment:
//
//	size <rows> <cols>          must come first
//	row <r> <cells>             cells in 0/1 or ./O/* notation
//	place <pattern> <r> <c>     stamp a named pattern, top-left at (r, c)
//	fill <seed> <percent>       set random cells alive
//	iterate <var> <start> <end> { ... }
//
// Directives only ever set cells alive, so later directives add to what
// earlier ones drew. A pattern or row that does not fit is an error unless
// clipping is enabled.
package compiler

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/model"
)

// Patterns are the named shapes accepted by place.
var Patterns = map[string][]string{
	"block":   {"11", "11"},
	"blinker": {"111"},
	"beacon":  {"1100", "1100", "0011", "0011"},
	"toad":    {"0111", "1110"},
	"glider":  {"010", "001", "111"},
}

// PatternNames returns the pattern names in sorted order.
func PatternNames() []string {
	names := make([]string, 0, len(Patterns))
	for n := range Patterns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CompileOptions configures the compilation process
type CompileOptions struct {
	Clip    bool      // Drop cells outside the lattice instead of failing
	Verbose bool      // Report progress to Log
	Log     io.Writer // Destination for verbose output, os.Stderr if nil
}

// DefaultOptions provides sensible compilation defaults
func DefaultOptions() CompileOptions {
	return CompileOptions{}
}

// Compile turns a pattern file into a lattice file.
func Compile(src, out string) error {
	return CompileWithOptions(src, out, DefaultOptions())
}

// CompileWithOptions is Compile with explicit options.
func CompileWithOptions(src, out string, opts CompileOptions) error {
	logf := func(format string, args ...any) {
		if !opts.Verbose {
			return
		}
		w := opts.Log
		if w == nil {
			w = os.Stderr
		}
		fmt.Fprintf(w, format+"\n", args...)
	}
	logf("Compiling %s -> %s", src, out)

	spec, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	l, err := Parse(spec, opts)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	logf("Parsed %dx%d lattice with %d live cells", l.Height(), l.Columns, l.Population())

	if err := writeLattice(l, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logf("Successfully compiled to %s", out)
	return nil
}

// writeLattice writes the lattice file
func writeLattice(l *model.Lattice, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := l.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Parse runs the DSL and returns the resulting lattice.
func Parse(src []byte, opts CompileOptions) (*model.Lattice, error) {
	lines := strings.Split(string(src), "\n")
	p := &dslParser{clip: opts.Clip}

	for i := 0; i < len(lines); i++ {
		line := stripComment(lines[i])
		if line == "" {
			continue
		}

		var err error
		i, err = p.parseLine(lines, i)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	if p.lattice == nil {
		return nil, fmt.Errorf("missing size directive")
	}
	return p.lattice, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// dslParser handles DSL parsing state
type dslParser struct {
	lattice *model.Lattice
	clip    bool
}

// parseLine processes a single line and returns the next line index
func (p *dslParser) parseLine(lines []string, idx int) (int, error) {
	fields := strings.Fields(stripComment(lines[idx]))

	switch fields[0] {
	case "iterate":
		return p.parseIterateBlock(lines, idx, fields)
	default:
		return idx, p.processSimpleLine(fields)
	}
}

// parseIterateBlock handles iterate constructs
func (p *dslParser) parseIterateBlock(lines []string, idx int, fields []string) (int, error) {
	if fields[len(fields)-1] == "{" {
		fields = fields[:len(fields)-1]
	} else {
		idx++
		for idx < len(lines) && stripComment(lines[idx]) == "" {
			idx++
		}
		if idx >= len(lines) || stripComment(lines[idx]) != "{" {
			return idx, fmt.Errorf("missing '{' after iterate")
		}
	}
	if len(fields) != 4 {
		return idx, fmt.Errorf("invalid iterate spec: %s", strings.Join(fields, " "))
	}

	varName, start, end, err := parseIterateParams(fields)
	if err != nil {
		return idx, err
	}

	block, blockEnd, err := collectBlockLines(lines, idx)
	if err != nil {
		return idx, err
	}

	if err := p.expandIterateBlock(block, varName, start, end); err != nil {
		return idx, err
	}
	return blockEnd, nil
}

// parseIterateParams extracts iterate parameters
func parseIterateParams(fields []string) (varName string, start, end int, err error) {
	varName = fields[1]
	start, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid iterate start %q: %v", fields[2], err)
	}
	end, err = strconv.Atoi(fields[3])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid iterate end %q: %v", fields[3], err)
	}
	return varName, start, end, nil
}

// collectBlockLines gathers lines within braces
func collectBlockLines(lines []string, startIdx int) ([]string, int, error) {
	var block []string
	for i := startIdx + 1; i < len(lines); i++ {
		line := stripComment(lines[i])
		if line == "}" {
			return block, i, nil
		}
		if line != "" {
			block = append(block, line)
		}
	}
	return nil, len(lines), fmt.Errorf("unterminated iterate block")
}

// expandIterateBlock processes iterate expansion
func (p *dslParser) expandIterateBlock(block []string, varName string, start, end int) error {
	for v := start; v <= end; v++ {
		for _, line := range block {
			fields := expandVariable(line, varName, v)
			if fields[0] == "iterate" {
				return fmt.Errorf("nested iterate blocks are not supported")
			}
			if err := p.processSimpleLine(fields); err != nil {
				return fmt.Errorf("iterate %s=%d: %w", varName, v, err)
			}
		}
	}
	return nil
}

// expandVariable replaces the variable with its value and evaluates
// "<var>+<n>" and "<var>-<n>" offsets.
func expandVariable(line, varName string, value int) []string {
	fields := strings.Fields(line)
	for i, field := range fields {
		switch {
		case field == varName:
			fields[i] = strconv.Itoa(value)
		case strings.HasPrefix(field, varName+"+"), strings.HasPrefix(field, varName+"-"):
			off, err := strconv.Atoi(field[len(varName):])
			if err == nil {
				fields[i] = strconv.Itoa(value + off)
			}
		}
	}
	return fields
}

// processSimpleLine handles the drawing directives
func (p *dslParser) processSimpleLine(fields []string) error {
	if fields[0] == "size" {
		return p.parseSize(fields)
	}
	if p.lattice == nil {
		return fmt.Errorf("%s before size directive", fields[0])
	}

	switch fields[0] {
	case "row":
		return p.parseRow(fields)
	case "place":
		return p.parsePlace(fields)
	case "fill":
		return p.parseFill(fields)
	default:
		return fmt.Errorf("unknown directive: %s", fields[0])
	}
}

func (p *dslParser) parseSize(fields []string) error {
	if p.lattice != nil {
		return fmt.Errorf("size declared twice")
	}
	if len(fields) != 3 {
		return fmt.Errorf("invalid size spec: want size <rows> <cols>")
	}
	rows, err := atoi("rows", fields[1])
	if err != nil {
		return err
	}
	cols, err := atoi("cols", fields[2])
	if err != nil {
		return err
	}
	p.lattice, err = model.NewLattice(rows, cols)
	return err
}

func (p *dslParser) parseRow(fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("invalid row spec: want row <r> <cells>")
	}
	r, err := atoi("row", fields[1])
	if err != nil {
		return err
	}
	cells, err := core.ParseRow(fields[2])
	if err != nil {
		return err
	}
	return p.stamp(r, 0, []core.Row{cells})
}

func (p *dslParser) parsePlace(fields []string) error {
	if len(fields) != 4 {
		return fmt.Errorf("invalid place spec: want place <pattern> <r> <c>")
	}
	shape, ok := Patterns[fields[1]]
	if !ok {
		return fmt.Errorf("unknown pattern %q (have %s)", fields[1], strings.Join(PatternNames(), ", "))
	}
	r, err := atoi("row", fields[2])
	if err != nil {
		return err
	}
	c, err := atoi("column", fields[3])
	if err != nil {
		return err
	}

	rows := make([]core.Row, len(shape))
	for i, s := range shape {
		rows[i] = core.MustParseRow(s)
	}
	return p.stamp(r, c, rows)
}

func (p *dslParser) parseFill(fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("invalid fill spec: want fill <seed> <percent>")
	}
	seed, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid fill seed %q: %v", fields[1], err)
	}
	percent, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || percent < 0 || percent > 100 {
		return fmt.Errorf("invalid fill percent %q: want 0..100", fields[2])
	}

	supplier := model.RandomSupplier{Seed: seed, Density: percent / 100}
	for r := range p.lattice.Rows {
		cells, err := supplier.Row(r, p.lattice.Columns)
		if err != nil {
			return err
		}
		if err := p.stamp(r, 0, []core.Row{cells}); err != nil {
			return err
		}
	}
	return nil
}

// stamp sets the live cells of shape alive with its top-left at (r, c).
func (p *dslParser) stamp(r, c int, shape []core.Row) error {
	l := p.lattice
	for dy, line := range shape {
		for dx, cell := range line {
			if cell != core.Alive {
				continue
			}
			y, x := r+dy, c+dx
			if y < 0 || y >= l.Height() || x < 0 || x >= l.Columns {
				if p.clip {
					continue
				}
				return fmt.Errorf("cell (%d, %d) outside %dx%d lattice", y, x, l.Height(), l.Columns)
			}
			l.Rows[y][x] = core.Alive
		}
	}
	return nil
}

func atoi(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", name, s, err)
	}
	return n, nil
}
