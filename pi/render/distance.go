/*
DESCRIPTION
  distance.go provides the exact Euclidean distance transform of edge maps
  and the DistanceMap field used for direct alignment.

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

package render

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrShapeMismatch is returned when two maps that must share dimensions do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// far is the squared distance assigned to non-edge pixels before the
// transform. Anything at least far/2 afterwards has no edge at all.
const far = 1e20

// DistanceMap is a row-major field of per-pixel values, typically distances
// to the nearest edge pixel.
type DistanceMap struct {
	Rows, Cols int
	Data       []float64
}

// NewDistanceMap returns a zeroed map.
func NewDistanceMap(rows, cols int) *DistanceMap {
	return &DistanceMap{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at row r and column c.
func (d *DistanceMap) At(r, c int) float64 { return d.Data[r*d.Cols+c] }

// Set sets the value at row r and column c.
func (d *DistanceMap) Set(r, c int, v float64) { d.Data[r*d.Cols+c] = v }

// SameShape reports whether d and o have identical dimensions.
func (d *DistanceMap) SameShape(o *DistanceMap) bool {
	return d.Rows == o.Rows && d.Cols == o.Cols
}

// CheckShape returns ErrShapeMismatch if a and b differ in dimensions.
func CheckShape(a, b *DistanceMap) error {
	if !a.SameShape(b) {
		return fmt.Errorf("%dx%d and %dx%d: %w", a.Rows, a.Cols, b.Rows, b.Cols, ErrShapeMismatch)
	}
	return nil
}

// Clamp returns a copy of d with every value limited to ceiling.
func (d *DistanceMap) Clamp(ceiling float64) *DistanceMap {
	out := NewDistanceMap(d.Rows, d.Cols)
	for i, v := range d.Data {
		out.Data[i] = math.Min(v, ceiling)
	}
	return out
}

// Sample returns the bilinear interpolation of d at column x and row y.
// ok is false if the point lies outside the map.
func (d *DistanceMap) Sample(x, y float64) (v float64, ok bool) {
	if !(x >= 0 && y >= 0 && x <= float64(d.Cols-1) && y <= float64(d.Rows-1)) {
		return 0, false
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, d.Cols-1), min(y0+1, d.Rows-1)
	fx, fy := x-float64(x0), y-float64(y0)

	top := d.At(y0, x0)*(1-fx) + d.At(y0, x1)*fx
	bot := d.At(y1, x0)*(1-fx) + d.At(y1, x1)*fx
	return top*(1-fy) + bot*fy, true
}

// Gradient returns the horizontal and vertical derivatives of d by central
// differences, one-sided at the borders.
func (d *DistanceMap) Gradient() (gx, gy *DistanceMap) {
	gx = NewDistanceMap(d.Rows, d.Cols)
	gy = NewDistanceMap(d.Rows, d.Cols)
	for r := 0; r < d.Rows; r++ {
		for c := 0; c < d.Cols; c++ {
			gx.Set(r, c, centralDiff(d.Cols, c, func(i int) float64 { return d.At(r, i) }))
			gy.Set(r, c, centralDiff(d.Rows, r, func(i int) float64 { return d.At(i, c) }))
		}
	}
	return gx, gy
}

func centralDiff(n, i int, f func(int) float64) float64 {
	switch {
	case n < 2:
		return 0
	case i == 0:
		return f(1) - f(0)
	case i == n-1:
		return f(n-1) - f(n-2)
	default:
		return (f(i+1) - f(i-1)) / 2
	}
}

// Gray returns d scaled so that 0 is black and ceiling or more is white.
func (d *DistanceMap) Gray(ceiling float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.Cols, d.Rows))
	for i, v := range d.Data {
		img.Pix[i] = uint8(math.Round(255 * math.Min(v, ceiling) / ceiling))
	}
	return img
}

// DistanceTransform returns the exact Euclidean distance from every pixel
// of edge to the nearest nonzero pixel. Without any edge pixels every value
// is +Inf.
func DistanceTransform(edge *image.Gray) *DistanceMap {
	return DistanceTransformThreshold(edge, 0)
}

// DistanceTransformThreshold is DistanceTransform with edges being the
// pixels brighter than t.
func DistanceTransformThreshold(edge *image.Gray, t uint8) *DistanceMap {
	b := edge.Bounds()
	d := NewDistanceMap(b.Dy(), b.Dx())
	for r := 0; r < d.Rows; r++ {
		for c := 0; c < d.Cols; c++ {
			if edge.GrayAt(b.Min.X+c, b.Min.Y+r).Y > t {
				continue
			}
			d.Set(r, c, far)
		}
	}

	n := max(d.Rows, d.Cols)
	f := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for c := 0; c < d.Cols; c++ {
		for r := 0; r < d.Rows; r++ {
			f[r] = d.At(r, c)
		}
		lowerEnvelope(f[:d.Rows], out, v, z)
		for r := 0; r < d.Rows; r++ {
			d.Set(r, c, out[r])
		}
	}
	for r := 0; r < d.Rows; r++ {
		row := d.Data[r*d.Cols : (r+1)*d.Cols]
		copy(f, row)
		lowerEnvelope(f[:d.Cols], out, v, z)
		copy(row, out[:d.Cols])
	}

	for i, sq := range d.Data {
		if sq >= far/2 {
			d.Data[i] = math.Inf(1)
			continue
		}
		d.Data[i] = math.Sqrt(sq)
	}
	return d
}

// lowerEnvelope computes the one dimensional squared distance transform of
// f into d, min over q of (p-q)^2 + f[q], by the lower envelope of
// parabolas (Felzenszwalb and Huttenlocher). v and z are scratch space of
// at least len(f) and len(f)+1.
func lowerEnvelope(f, d []float64, v []int, z []float64) {
	n := len(f)
	if n == 0 {
		return
	}
	intersect := func(q, p int) float64 {
		return ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
	}

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := intersect(q, v[k])
		for s <= z[k] {
			k--
			s = intersect(q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}
