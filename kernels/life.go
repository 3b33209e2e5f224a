package kernels

import "github.com/sbl8/rowlife/core"

// CountAlive returns the number of live cells among the neighbours of
// column x: x-1, x and x+1 of upper and lower, x-1 and x+1 of own. Columns
// outside the row and nil rows contribute nothing.
func CountAlive(x int, upper, own, lower core.Row) int {
	live := 0
	live += countSpan(upper, x, true)
	live += countSpan(own, x, false)
	live += countSpan(lower, x, true)
	return live
}

// countSpan counts x-1 and x+1 of r, and x itself when center is set.
func countSpan(r core.Row, x int, center bool) int {
	n := len(r)
	if n == 0 {
		return 0
	}
	live := 0
	if x > 0 && x-1 < n && r[x-1] == core.Alive {
		live++
	}
	if center && x >= 0 && x < n && r[x] == core.Alive {
		live++
	}
	if x+1 < n && r[x+1] == core.Alive {
		live++
	}
	return live
}

// Life is B3/S23: a cell is alive next generation iff it has exactly three
// live neighbours, or exactly two and is alive now.
func Life(count int, alive bool) bool {
	return count == 3 || (count == 2 && alive)
}

// Step writes the next generation of own into dst. dst must not share
// memory with upper, own or lower. Nil halo rows are treated as absent.
func Step(dst, upper, own, lower core.Row, rule Rule) {
	conway := rule.IsConway()
	for x := range dst {
		count := CountAlive(x, upper, own, lower)
		alive := own[x] == core.Alive
		var next bool
		if conway {
			next = Life(count, alive)
		} else {
			next = rule.Next(count, alive)
		}
		if next {
			dst[x] = core.Alive
		} else {
			dst[x] = core.Dead
		}
	}
}

// StepHalo is Step with the halo rows given as Neighbor values, so a
// missing neighbour is handled structurally rather than by a zeroed buffer.
func StepHalo(dst core.Row, upper core.Neighbor, own core.Row, lower core.Neighbor, rule Rule) {
	Step(dst, upper.Row(), own, lower.Row(), rule)
}
