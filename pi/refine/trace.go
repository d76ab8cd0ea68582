/*
DESCRIPTION
  trace.go provides the Trace type recording the per-iteration progress of
  a refinement.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses.
*/

package refine

// Trace holds the cost after, and the parameter step norm of, each
// iteration of a refinement.
type Trace struct {
	Cost []float64
	Step []float64
}

// NewTrace returns a Trace with capacity for n iterations.
func NewTrace(n int) *Trace {
	return &Trace{
		Cost: make([]float64, 0, n),
		Step: make([]float64, 0, n),
	}
}

// Update records an iteration.
func (t *Trace) Update(cost, step float64) {
	t.Cost = append(t.Cost, cost)
	t.Step = append(t.Step, step)
}

// Len returns the number of recorded iterations.
func (t *Trace) Len() int { return len(t.Cost) }

// Iterations returns the iteration numbers, starting at 1, as floats for
// plotting.
func (t *Trace) Iterations() []float64 {
	x := make([]float64, len(t.Cost))
	for i := range x {
		x[i] = float64(i + 1)
	}
	return x
}
