// Package kernels implements the local transition rule of the automaton.
//
// A participant computes its next row from three rows only: the halo row
// received from the upper neighbour, a snapshot of its own row, and the halo
// row received from the lower neighbour. The functions here are pure, never
// allocate, and read nothing but their arguments.
//
// Available operations:
//   - CountAlive: live neighbours of one column across the three rows
//   - Life: Conway's B3/S23 rule in its branch-free form
//   - Rule: generic birth/survival rule in B/S notation
//   - Step/StepHalo: apply a rule to every column of a row
//
// The lattice is bounded horizontally. Columns outside [0, columns) and
// absent halo rows never contribute to a count.
package kernels

import (
	"fmt"
	"sort"
	"strings"
)

// Rule is an outer-totalistic rule over the Moore neighbourhood. Bit n of
// Birth (Survive) is set when a dead (live) cell with n live neighbours is
// alive in the next generation.
type Rule struct {
	Birth   uint16
	Survive uint16
}

// Conway is the standard B3/S23 rule.
var Conway = Rule{Birth: 1 << 3, Survive: 1<<2 | 1<<3}

// Catalog maps rule names to their definitions.
var Catalog = map[string]Rule{
	"life":       Conway,
	"highlife":   mustParse("B36/S23"),
	"seeds":      mustParse("B2/S"),
	"daynight":   mustParse("B3678/S34678"),
	"replicator": mustParse("B1357/S1357"),
}

// Next returns the next state of a cell with count live neighbours.
func (r Rule) Next(count int, alive bool) bool {
	if count < 0 || count > 8 {
		return false
	}
	if alive {
		return r.Survive&(1<<count) != 0
	}
	return r.Birth&(1<<count) != 0
}

// IsConway reports whether r is B3/S23.
func (r Rule) IsConway() bool {
	return r == Conway
}

// String renders the rule in B/S notation.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteByte('B')
	for n := 0; n <= 8; n++ {
		if r.Birth&(1<<n) != 0 {
			b.WriteByte(byte('0' + n))
		}
	}
	b.WriteString("/S")
	for n := 0; n <= 8; n++ {
		if r.Survive&(1<<n) != 0 {
			b.WriteByte(byte('0' + n))
		}
	}
	return b.String()
}

// ParseRule reads a rule in B/S notation ("B3/S23", case-insensitive) or
// the legacy S/B digits form ("23/3").
func ParseRule(s string) (Rule, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("rule %q: want two parts separated by '/'", s)
	}

	var r Rule
	legacy := !strings.HasPrefix(parts[0], "B") && !strings.HasPrefix(parts[0], "S")
	for i, part := range parts {
		var mask *uint16
		switch {
		case strings.HasPrefix(part, "B"):
			mask, part = &r.Birth, part[1:]
		case strings.HasPrefix(part, "S"):
			mask, part = &r.Survive, part[1:]
		case legacy && i == 0:
			mask = &r.Survive
		case legacy && i == 1:
			mask = &r.Birth
		default:
			return Rule{}, fmt.Errorf("rule %q: part %q lacks a B or S prefix", s, part)
		}
		for _, c := range part {
			if c < '0' || c > '8' {
				return Rule{}, fmt.Errorf("rule %q: invalid neighbour count %q", s, c)
			}
			*mask |= 1 << (c - '0')
		}
	}
	return r, nil
}

// Lookup resolves a catalog name or B/S notation.
func Lookup(name string) (Rule, error) {
	if r, ok := Catalog[strings.ToLower(strings.TrimSpace(name))]; ok {
		return r, nil
	}
	return ParseRule(name)
}

// Names returns the catalog names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for n := range Catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func mustParse(s string) Rule {
	r, err := ParseRule(s)
	if err != nil {
		panic(err)
	}
	return r
}
