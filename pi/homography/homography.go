/*
DESCRIPTION
  homography.go provides a 3x3 planar homography type with the algebra
  needed to compose, invert and apply plane to image mappings.

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

// Package homography provides a 3x3 planar homography type. A Homography maps
// homogeneous points of one plane to another and is defined up to scale; all
// constructors return normalised matrices so that values are finite and
// comparable.
package homography

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Numerical limits.
const (
	// singularEpsilon bounds |det(H)| / ||H||^3 below which H is considered singular.
	singularEpsilon = 1e-12

	// scaleEpsilon is the smallest |H[2][2]| that will be used for normalisation.
	scaleEpsilon = 1e-12

	// infinityEpsilon is the smallest homogeneous w coordinate that Apply accepts.
	infinityEpsilon = 1e-12
)

var (
	// ErrDegenerate is returned when a matrix is singular or not finite and
	// therefore cannot represent a plane mapping.
	ErrDegenerate = errors.New("degenerate homography")

	// ErrAtInfinity is returned by Apply when a point maps to the line at infinity.
	ErrAtInfinity = errors.New("point maps to infinity")
)

// Homography is a normalised, invertible 3x3 matrix. The zero value is not a
// valid homography; use Identity or one of the constructors.
type Homography struct {
	m *mat.Dense
}

// Identity returns the identity homography.
func Identity() Homography {
	return Homography{m: mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})}
}

// New returns a homography from 9 row-major values. The result is normalised
// and ErrDegenerate is returned if it is singular or not finite.
func New(data []float64) (Homography, error) {
	if len(data) != 9 {
		return Homography{}, fmt.Errorf("need 9 values, got %d: %w", len(data), ErrDegenerate)
	}
	d := make([]float64, 9)
	copy(d, data)
	return normalize(mat.NewDense(3, 3, d))
}

// FromMatrix returns a homography from a 3x3 matrix.
func FromMatrix(m mat.Matrix) (Homography, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return Homography{}, fmt.Errorf("need 3x3 matrix, got %dx%d: %w", r, c, ErrDegenerate)
	}
	return normalize(mat.DenseCopyOf(m))
}

// Scale returns the homography scaling x by sx and y by sy.
func Scale(sx, sy float64) (Homography, error) {
	return New([]float64{sx, 0, 0, 0, sy, 0, 0, 0, 1})
}

// Translation returns the homography translating by (tx, ty).
func Translation(tx, ty float64) Homography {
	return Homography{m: mat.NewDense(3, 3, []float64{1, 0, tx, 0, 1, ty, 0, 0, 1})}
}

// normalize scales m so that m[2][2] is 1, or to unit Frobenius norm when
// m[2][2] is too close to zero, and checks that the result is invertible.
func normalize(m *mat.Dense) (Homography, error) {
	for _, v := range m.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, fmt.Errorf("non-finite element: %w", ErrDegenerate)
		}
	}

	norm := mat.Norm(m, 2)
	if norm == 0 {
		return Homography{}, fmt.Errorf("zero matrix: %w", ErrDegenerate)
	}

	s := m.At(2, 2)
	if math.Abs(s) < scaleEpsilon*norm {
		s = norm
	}
	m.Scale(1/s, m)

	if math.Abs(mat.Det(m)) < singularEpsilon*math.Pow(mat.Norm(m, 2), 3) {
		return Homography{}, fmt.Errorf("singular matrix: %w", ErrDegenerate)
	}
	return Homography{m: m}, nil
}

// Valid reports whether h holds a matrix.
func (h Homography) Valid() bool { return h.m != nil }

// At returns element (i, j).
func (h Homography) At(i, j int) float64 { return h.m.At(i, j) }

// Matrix returns a copy of the underlying matrix.
func (h Homography) Matrix() *mat.Dense { return mat.DenseCopyOf(h.m) }

// Raw returns the row-major elements of h.
func (h Homography) Raw() [9]float64 {
	var r [9]float64
	copy(r[:], h.m.RawMatrix().Data)
	return r
}

// Apply maps p through h.
func (h Homography) Apply(p r2.Vec) (r2.Vec, error) {
	d := h.m.RawMatrix().Data
	w := d[6]*p.X + d[7]*p.Y + d[8]
	if math.Abs(w) < infinityEpsilon {
		return r2.Vec{}, ErrAtInfinity
	}
	return r2.Vec{
		X: (d[0]*p.X + d[1]*p.Y + d[2]) / w,
		Y: (d[3]*p.X + d[4]*p.Y + d[5]) / w,
	}, nil
}

// Mul returns the product h·g, that is the mapping applying g first and then h.
func (h Homography) Mul(g Homography) (Homography, error) {
	var m mat.Dense
	m.Mul(h.m, g.m)
	return normalize(&m)
}

// Compose returns the mapping that applies first and then then.
func Compose(first, then Homography) (Homography, error) {
	return then.Mul(first)
}

// Inverse returns the inverse mapping of h.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	err := inv.Inverse(h.m)
	if err != nil {
		return Homography{}, fmt.Errorf("could not invert: %v: %w", err, ErrDegenerate)
	}
	return normalize(&inv)
}

// EqualApprox reports whether h and g are element-wise equal within tol
// after normalisation.
func (h Homography) EqualApprox(g Homography, tol float64) bool {
	return mat.EqualApprox(h.m, g.m, tol)
}

// String implements fmt.Stringer.
func (h Homography) String() string {
	if h.m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", mat.Formatted(h.m, mat.Prefix(""), mat.Squeeze()))
}

// MarshalJSON encodes h as a row-major 3x3 array.
func (h Homography) MarshalJSON() ([]byte, error) {
	if h.m == nil {
		return []byte("null"), nil
	}
	var rows [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rows[i][j] = h.m.At(i, j)
		}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes a row-major 3x3 array.
func (h *Homography) UnmarshalJSON(b []byte) error {
	var rows [3][3]float64
	err := json.Unmarshal(b, &rows)
	if err != nil {
		return err
	}
	g, err := New([]float64{
		rows[0][0], rows[0][1], rows[0][2],
		rows[1][0], rows[1][1], rows[1][2],
		rows[2][0], rows[2][1], rows[2][2],
	})
	if err != nil {
		return err
	}
	*h = g
	return nil
}
