/*
DESCRIPTION
  plot.go provides plotting of refinement convergence.

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

package locate

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ausocean/fieldpose/pi/refine"
)

// Plot file names written by PlotConvergence.
const (
	CostPlot        = "cost"
	ConvergencePlot = "convergence"
)

// PlotConvergence writes PNG plots of the refinement trace in res to dir:
// the cost per iteration, and cost and step size normalised to [0,1].
func PlotConvergence(dir string, res *refine.Result) error {
	if res == nil || res.Trace == nil || res.Trace.Len() == 0 {
		return errors.New("no refinement iterations to plot")
	}
	x := res.Trace.Iterations()

	err := plotToFile(dir, CostPlot, "Iteration", "Mean squared residual",
		func(p *plot.Plot) error {
			return plotutil.AddLinePoints(p, "Cost", plotterXY(x, res.Trace.Cost))
		},
	)
	if err != nil {
		return fmt.Errorf("could not plot cost: %w", err)
	}

	err = plotToFile(dir, ConvergencePlot, "Iteration", "Normalised value",
		func(p *plot.Plot) error {
			return plotutil.AddLinePoints(p,
				"Cost", plotterXY(x, normalize(res.Trace.Cost)),
				"Step", plotterXY(x, normalize(res.Trace.Step)),
			)
		},
	)
	if err != nil {
		return fmt.Errorf("could not plot convergence: %w", err)
	}
	return nil
}

// normalize scales the values in s to the range [0,1]. Constant input maps
// to zeros.
func normalize(s []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range s {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(s))
	if hi == lo {
		return out
	}
	for i, v := range s {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// plotToFile creates a plot with the given name and axis titles using the
// provided draw function, and saves it to dir as name.png.
func plotToFile(dir, name, xTitle, yTitle string, draw func(*plot.Plot) error) error {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = xTitle
	p.Y.Label.Text = yTitle
	err := draw(p)
	if err != nil {
		return fmt.Errorf("could not draw plot contents: %w", err)
	}
	err = p.Save(15*vg.Centimeter, 15*vg.Centimeter, filepath.Join(dir, name+".png"))
	if err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

// plotterXY provides a plotter.XYs value from the given x and y data.
func plotterXY(x, y []float64) plotter.XYs {
	xy := make(plotter.XYs, len(x))
	for i := range x {
		xy[i].X = x[i]
		xy[i].Y = y[i]
	}
	return xy
}
