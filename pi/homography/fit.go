/*
DESCRIPTION
  fit.go provides estimation of a homography from point correspondences
  using a normalised direct linear transform solved by QR least squares.

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

package homography

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// FromPoints estimates the homography mapping src[i] to dst[i]. At least four
// correspondences are needed; with more, the algebraic error is minimised in
// the least squares sense.
func FromPoints(src, dst []r2.Vec) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, fmt.Errorf("correspondence count mismatch: %d != %d: %w", len(src), len(dst), ErrDegenerate)
	}
	if len(src) < 4 {
		return Homography{}, fmt.Errorf("need at least 4 correspondences, got %d: %w", len(src), ErrDegenerate)
	}

	// Hartley normalisation keeps the system well conditioned for pixel sized
	// coordinates.
	ts, ns := conditioner(src)
	td, nd := conditioner(dst)

	a := mat.NewDense(2*len(src), 8, nil)
	b := mat.NewVecDense(2*len(src), nil)
	for i := range ns {
		X, Y := ns[i].X, ns[i].Y
		x, y := nd[i].X, nd[i].Y
		r := 2 * i
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	c := mat.NewVecDense(8, nil)
	qr := new(mat.QR)
	qr.Factorize(a)
	err := qr.SolveVecTo(c, false, b)
	if err != nil {
		return Homography{}, fmt.Errorf("could not solve QR: %v: %w", err, ErrDegenerate)
	}

	hn, err := New([]float64{
		c.AtVec(0), c.AtVec(1), c.AtVec(2),
		c.AtVec(3), c.AtVec(4), c.AtVec(5),
		c.AtVec(6), c.AtVec(7), 1,
	})
	if err != nil {
		return Homography{}, err
	}

	// Undo the conditioning: H = Td⁻¹ · Hn · Ts.
	tdInv, err := td.Inverse()
	if err != nil {
		return Homography{}, err
	}
	h, err := tdInv.Mul(hn)
	if err != nil {
		return Homography{}, err
	}
	return h.Mul(ts)
}

// conditioner returns the similarity moving the centroid of pts to the origin
// with mean distance sqrt(2), along with the transformed points.
func conditioner(pts []r2.Vec) (Homography, []r2.Vec) {
	var c r2.Vec
	for _, p := range pts {
		c = r2.Add(c, p)
	}
	c = r2.Scale(1/float64(len(pts)), c)

	var mean float64
	for _, p := range pts {
		mean += r2.Norm(r2.Sub(p, c))
	}
	mean /= float64(len(pts))

	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}

	t := Homography{m: mat.NewDense(3, 3, []float64{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	})}

	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		out[i] = r2.Scale(s, r2.Sub(p, c))
	}
	return t, out
}
