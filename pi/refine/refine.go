/*
DESCRIPTION
  refine.go provides direct alignment of distance transform maps by
  inverse compositional Gauss-Newton optimisation of a planar warp.

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

// Package refine computes the planar transform that best aligns one
// distance transform map with another.
package refine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/fieldpose/pi/homography"
	"github.com/ausocean/fieldpose/pi/render"
)

var (
	// ErrNotConverged reports a refinement that stopped before its step
	// fell below tolerance. It is carried in Result.Warning; the best
	// transform found is still returned.
	ErrNotConverged = errors.New("refinement did not converge")

	// ErrInvalidConfig is returned for out of range configuration.
	ErrInvalidConfig = errors.New("invalid refinement config")

	// ErrEmptyMap is returned when aligning maps with no pixels.
	ErrEmptyMap = errors.New("empty distance map")
)

// maxCond is the Hessian condition number above which it is treated as
// singular.
const maxCond = 1e12

// snap is the distance outside a map within which samples are moved onto
// its border.
const snap = 1e-9

// Motion is the family of planar transforms searched.
type Motion int

// Motion models.
const (
	Homography Motion = iota // 8 degrees of freedom.
	Affine                   // 6 degrees of freedom.
)

var motionNames = [...]string{Homography: "homography", Affine: "affine"}

func (m Motion) String() string {
	if m < 0 || int(m) >= len(motionNames) {
		return fmt.Sprintf("Motion(%d)", int(m))
	}
	return motionNames[m]
}

// ParseMotion returns the Motion named s.
func ParseMotion(s string) (Motion, error) {
	for i, n := range motionNames {
		if strings.EqualFold(s, n) {
			return Motion(i), nil
		}
	}
	return 0, fmt.Errorf("unknown motion %q: %w", s, ErrInvalidConfig)
}

// dof returns the number of warp parameters.
func (m Motion) dof() int {
	if m == Affine {
		return 6
	}
	return 8
}

// Config holds refinement parameters.
type Config struct {
	Motion              Motion
	MaxIterations       int
	Tolerance           float64 // Parameter step norm below which refinement has converged.
	DivergenceTolerance float64 // Relative cost increase over the best seen counted as divergence.
	Patience            int     // Consecutive diverging iterations before stopping.
	Stride              int     // Reference pixel sampling stride.
	Ceiling             float64 // Distance clamp applied to both maps.
}

// DefaultConfig returns the default refinement parameters.
func DefaultConfig() Config {
	return Config{
		Motion:              Homography,
		MaxIterations:       100,
		Tolerance:           1e-6,
		DivergenceTolerance: 1e-3,
		Patience:            5,
		Stride:              2,
		Ceiling:             50,
	}
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	switch {
	case c.Motion != Homography && c.Motion != Affine:
		return fmt.Errorf("motion %d: %w", c.Motion, ErrInvalidConfig)
	case c.MaxIterations < 1:
		return fmt.Errorf("max iterations %d: %w", c.MaxIterations, ErrInvalidConfig)
	case !(c.Tolerance >= 0):
		return fmt.Errorf("tolerance %v: %w", c.Tolerance, ErrInvalidConfig)
	case !(c.DivergenceTolerance >= 0):
		return fmt.Errorf("divergence tolerance %v: %w", c.DivergenceTolerance, ErrInvalidConfig)
	case c.Patience < 1:
		return fmt.Errorf("patience %d: %w", c.Patience, ErrInvalidConfig)
	case c.Stride < 1:
		return fmt.Errorf("stride %d: %w", c.Stride, ErrInvalidConfig)
	case !(c.Ceiling > 0) || math.IsInf(c.Ceiling, 1):
		return fmt.Errorf("ceiling %v: %w", c.Ceiling, ErrInvalidConfig)
	}
	return nil
}

// Result is the outcome of an alignment. Transform maps reference pixel
// coordinates to target pixel coordinates. Cost is the mean squared
// residual under Transform and never exceeds InitialCost, the cost under
// the identity.
type Result struct {
	Transform   homography.Homography
	Cost        float64
	InitialCost float64
	Iterations  int
	Converged   bool
	Warning     error
	Trace       *Trace
}

// Aligner computes the transform aligning a reference map with a target map.
type Aligner interface {
	Align(reference, target *render.DistanceMap) (*Result, error)
}

// Refiner is the Gauss-Newton Aligner.
type Refiner struct {
	cfg Config
}

// New returns a Refiner using cfg.
func New(cfg Config) (*Refiner, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Refiner{cfg: cfg}, nil
}

// Config returns the refiner's configuration.
func (r *Refiner) Config() Config { return r.cfg }

// Align starts from the identity and returns the best transform found.
// Both maps are clamped to the configured ceiling first.
func (r *Refiner) Align(reference, target *render.DistanceMap) (*Result, error) {
	p, err := newProblem(reference, target, r.cfg)
	if err != nil {
		return nil, err
	}
	n, dof := len(p.xs), r.cfg.Motion.dof()
	sd := p.steepestDescent(r.cfg.Motion)

	var hess mat.SymDense
	hess.SymOuterK(1, sd.T())
	var chol mat.Cholesky
	singular := !chol.Factorize(&hess) || chol.Cond() > maxCond

	res := &Result{Trace: NewTrace(r.cfg.MaxIterations)}
	e := make([]float64, n)
	wn := eye()
	res.InitialCost = p.residuals(p.pixel(wn), e)
	tr := newTracker(res.InitialCost, wn, r.cfg)

	var (
		b, dp     mat.VecDense
		converged bool
		warning   error
	)
	for !converged {
		if singular {
			warning = fmt.Errorf("singular hessian: %w", ErrNotConverged)
			break
		}
		if res.Iterations == r.cfg.MaxIterations {
			warning = fmt.Errorf("stopped after %d iterations: %w", res.Iterations, ErrNotConverged)
			break
		}

		b.MulVec(sd.T(), mat.NewVecDense(n, e))
		err := chol.SolveVecTo(&dp, &b)
		if err != nil {
			warning = fmt.Errorf("could not solve for step: %v: %w", err, ErrNotConverged)
			break
		}
		step := floats.Norm(dp.RawVector().Data[:dof], 2)

		next, ok := update(wn, dp.RawVector().Data, r.cfg.Motion)
		if !ok {
			warning = fmt.Errorf("degenerate warp update: %w", ErrNotConverged)
			break
		}
		wn = next
		res.Iterations++

		cost := p.residuals(p.pixel(wn), e)
		res.Trace.Update(cost, step)
		warning = tr.observe(cost, wn)
		if warning != nil {
			break
		}
		converged = step < r.cfg.Tolerance
	}

	t, err := homography.FromMatrix(p.pixel(tr.bestW))
	if err != nil {
		return nil, fmt.Errorf("could not form transform: %w", err)
	}
	res.Transform = t
	res.Cost = tr.best
	res.Converged = converged
	res.Warning = warning
	return res, nil
}

// tracker keeps the lowest cost warp seen and counts consecutive
// iterations whose cost exceeds it by more than the divergence tolerance.
type tracker struct {
	tol      float64
	patience int
	best     float64
	bestW    *mat.Dense
	worse    int
}

func newTracker(cost float64, w *mat.Dense, cfg Config) *tracker {
	return &tracker{tol: cfg.DivergenceTolerance, patience: cfg.Patience, best: cost, bestW: w}
}

// observe records the cost of warp w and returns an ErrNotConverged wrap
// once patience diverging iterations have been seen in a row.
func (t *tracker) observe(cost float64, w *mat.Dense) error {
	switch {
	case cost < t.best:
		t.best, t.bestW, t.worse = cost, w, 0
	case cost > (1+t.tol)*t.best:
		t.worse++
	default:
		t.worse = 0
	}
	if t.worse >= t.patience {
		return fmt.Errorf("cost %v above best %v for %d iterations: %w", cost, t.best, t.worse, ErrNotConverged)
	}
	return nil
}

// problem holds the clamped maps and reference samples of an alignment.
type problem struct {
	ref, tgt *render.DistanceMap
	ceiling  float64

	// norm maps pixels to centred coordinates scaled by half the longer
	// side; denorm is its inverse.
	norm, denorm *mat.Dense
	scale        float64

	xs, ys []float64 // Sampled reference pixel coordinates.
	vals   []float64 // Reference values at the samples.
}

func newProblem(reference, target *render.DistanceMap, cfg Config) (*problem, error) {
	err := render.CheckShape(reference, target)
	if err != nil {
		return nil, fmt.Errorf("could not align: %w", err)
	}
	if reference.Rows == 0 || reference.Cols == 0 {
		return nil, ErrEmptyMap
	}

	p := &problem{
		ref:     reference.Clamp(cfg.Ceiling),
		tgt:     target.Clamp(cfg.Ceiling),
		ceiling: cfg.Ceiling,
		scale:   math.Max(float64(reference.Cols), float64(reference.Rows)) / 2,
	}
	cx, cy := float64(reference.Cols-1)/2, float64(reference.Rows-1)/2
	s := p.scale
	p.norm = mat.NewDense(3, 3, []float64{
		1 / s, 0, -cx / s,
		0, 1 / s, -cy / s,
		0, 0, 1,
	})
	p.denorm = mat.NewDense(3, 3, []float64{
		s, 0, cx,
		0, s, cy,
		0, 0, 1,
	})

	for y := 0; y < reference.Rows; y += cfg.Stride {
		for x := 0; x < reference.Cols; x += cfg.Stride {
			p.xs = append(p.xs, float64(x))
			p.ys = append(p.ys, float64(y))
			p.vals = append(p.vals, p.ref.At(y, x))
		}
	}
	return p, nil
}

// steepestDescent returns the n by dof steepest descent images: the
// reference gradient, in normalised coordinates, times the warp Jacobian
// at the identity.
func (p *problem) steepestDescent(m Motion) *mat.Dense {
	gx, gy := p.ref.Gradient()
	dof := m.dof()
	sd := mat.NewDense(len(p.xs), dof, nil)
	row := make([]float64, 8)
	for i := range p.xs {
		c, r := int(p.xs[i]), int(p.ys[i])
		dx, dy := p.scale*gx.At(r, c), p.scale*gy.At(r, c)
		x := p.norm.At(0, 0)*p.xs[i] + p.norm.At(0, 2)
		y := p.norm.At(1, 1)*p.ys[i] + p.norm.At(1, 2)
		proj := dx*x + dy*y
		row[0], row[1], row[2] = dx*x, dx*y, dx
		row[3], row[4], row[5] = dy*x, dy*y, dy
		row[6], row[7] = -x*proj, -y*proj
		sd.SetRow(i, row[:dof])
	}
	return sd
}

// pixel returns the pixel space form of the normalised warp wn.
func (p *problem) pixel(wn *mat.Dense) *mat.Dense {
	var tmp, t mat.Dense
	tmp.Mul(p.denorm, wn)
	t.Mul(&tmp, p.norm)
	return &t
}

// residuals fills e with target samples under the pixel warp t less the
// reference samples, and returns their mean square. Target samples off
// the map take the ceiling value.
func (p *problem) residuals(t *mat.Dense, e []float64) float64 {
	h := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[3*i+j] = t.At(i, j)
		}
	}

	var sum float64
	for i := range p.xs {
		x, y := p.xs[i], p.ys[i]
		v := p.ceiling
		if w := h[6]*x + h[7]*y + h[8]; w > 0 {
			u := (h[0]*x + h[1]*y + h[2]) / w
			vv := (h[3]*x + h[4]*y + h[5]) / w
			if s, ok := p.tgt.Sample(onto(u, p.tgt.Cols), onto(vv, p.tgt.Rows)); ok {
				v = s
			}
		}
		e[i] = v - p.vals[i]
		sum += e[i] * e[i]
	}
	return sum / float64(len(e))
}

// Cost returns the mean squared residual of the pixel transform t under
// the same sampling and clamping as Align.
func Cost(reference, target *render.DistanceMap, t homography.Homography, cfg Config) (float64, error) {
	p, err := newProblem(reference, target, cfg)
	if err != nil {
		return 0, err
	}
	return p.residuals(t.Matrix(), make([]float64, len(p.xs))), nil
}

// onto moves v onto [0, n-1] when it lies within snap of that range.
func onto(v float64, n int) float64 {
	hi := float64(n - 1)
	switch {
	case v < 0 && v > -snap:
		return 0
	case v > hi && v < hi+snap:
		return hi
	}
	return v
}

func eye() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// update returns wn composed with the inverse of the incremental warp of
// parameters dp.
func update(wn *mat.Dense, dp []float64, m Motion) (*mat.Dense, bool) {
	var p [8]float64
	copy(p[:], dp[:m.dof()])
	inc := mat.NewDense(3, 3, []float64{
		1 + p[0], p[1], p[2],
		p[3], 1 + p[4], p[5],
		p[6], p[7], 1,
	})

	var inv mat.Dense
	err := inv.Inverse(inc)
	if err != nil {
		return nil, false
	}
	var next mat.Dense
	next.Mul(wn, &inv)
	for _, v := range next.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return &next, true
}
