//go:build withcv
// +build withcv

/*
DESCRIPTION
  ecc_cv.go provides an Aligner backed by OpenCV's enhanced correlation
  coefficient maximisation.

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

import (
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/fieldpose/pi/homography"
	"github.com/ausocean/fieldpose/pi/render"
)

// eccGaussSize is the Gaussian filter size OpenCV applies before ECC.
const eccGaussSize = 5

// ECC is an Aligner using OpenCV's findTransformECC. Costs are reported
// with the same objective as Refiner, and the identity is returned when
// ECC does not improve on it.
type ECC struct {
	cfg Config
}

// NewECC returns an ECC aligner. Stride, DivergenceTolerance and Patience
// are not used by OpenCV but Stride still governs cost evaluation.
func NewECC(cfg Config) (*ECC, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &ECC{cfg: cfg}, nil
}

// Align implements Aligner.
func (a *ECC) Align(reference, target *render.DistanceMap) (*Result, error) {
	p, err := newProblem(reference, target, a.cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Trace: NewTrace(0), Transform: homography.Identity()}
	res.InitialCost = p.residuals(p.pixel(eye()), make([]float64, len(p.xs)))
	res.Cost = res.InitialCost

	ref := toMat(p.ref)
	defer ref.Close()
	tgt := toMat(p.tgt)
	defer tgt.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	motion, n := gocv.MotionHomography, 3
	if a.cfg.Motion == Affine {
		motion, n = gocv.MotionAffine, 2
	}
	warp := gocv.Eye(n, 3, gocv.MatTypeCV32F)
	defer warp.Close()

	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, a.cfg.MaxIterations, a.cfg.Tolerance)
	rho := gocv.FindTransformECC(ref, tgt, &warp, motion, criteria, mask, eccGaussSize)
	if rho <= 0 {
		res.Warning = fmt.Errorf("correlation %v: %w", rho, ErrNotConverged)
		return res, nil
	}

	m := mat.NewDense(3, 3, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1})
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, float64(warp.GetFloatAt(i, j)))
		}
	}
	t, err := homography.FromMatrix(m)
	if err != nil {
		res.Warning = fmt.Errorf("degenerate warp: %v: %w", err, ErrNotConverged)
		return res, nil
	}

	cost := p.residuals(t.Matrix(), make([]float64, len(p.xs)))
	res.Trace.Update(cost, 0)
	res.Iterations = 1
	res.Converged = true
	if cost <= res.InitialCost {
		res.Transform, res.Cost = t, cost
	}
	return res, nil
}

// toMat returns d as a single channel 32 bit float Mat.
func toMat(d *render.DistanceMap) gocv.Mat {
	m := gocv.NewMatWithSize(d.Rows, d.Cols, gocv.MatTypeCV32F)
	for r := 0; r < d.Rows; r++ {
		for c := 0; c < d.Cols; c++ {
			m.SetFloatAt(r, c, float32(d.At(r, c)))
		}
	}
	return m
}
