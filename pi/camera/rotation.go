/*
DESCRIPTION
  rotation.go provides conversion from rotation matrices to Rodrigues
  vectors and construction of cameras from a look-at description.

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

package camera

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// nearPi is the distance from pi below which the axis of a rotation is
// recovered from the symmetric part of the matrix.
const nearPi = 1e-6

// Rodrigues returns the Rodrigues vector of the rotation matrix r.
func Rodrigues(r mat.Matrix) r3.Vec {
	cos := (r.At(0, 0) + r.At(1, 1) + r.At(2, 2) - 1) / 2
	cos = math.Max(-1, math.Min(1, cos))
	theta := math.Acos(cos)

	switch {
	case theta < 1e-12:
		return r3.Vec{}
	case math.Pi-theta > nearPi:
		axis := r3.Vec{
			X: r.At(2, 1) - r.At(1, 2),
			Y: r.At(0, 2) - r.At(2, 0),
			Z: r.At(1, 0) - r.At(0, 1),
		}
		return r3.Scale(theta/(2*math.Sin(theta)), axis)
	}

	// R = 2aaᵀ - I at theta = pi; take the largest diagonal for stability.
	var a [3]float64
	i := 0
	for k := 1; k < 3; k++ {
		if r.At(k, k) > r.At(i, i) {
			i = k
		}
	}
	a[i] = math.Sqrt(math.Max(0, (r.At(i, i)+1)/2))
	for j := 0; j < 3; j++ {
		if j != i {
			a[j] = (r.At(i, j) + r.At(j, i)) / (4 * a[i])
		}
	}
	return r3.Scale(theta, r3.Unit(r3.Vec{X: a[0], Y: a[1], Z: a[2]}))
}

// LookAt returns a camera at center looking towards target, with up giving
// the approximate upward direction of the image.
func LookAt(center, target, up r3.Vec, focal float64, principal r2.Vec) (Camera, error) {
	fwd := r3.Sub(target, center)
	if r3.Norm(fwd) == 0 {
		return Camera{}, fmt.Errorf("target equals centre: %w", ErrInvalidParams)
	}
	z := r3.Unit(fwd)
	x := r3.Cross(z, up)
	if r3.Norm(x) < 1e-12 {
		return Camera{}, fmt.Errorf("up parallel to view direction: %w", ErrInvalidParams)
	}
	x = r3.Unit(x)
	y := r3.Cross(z, x)

	r := mat.NewDense(3, 3, []float64{
		x.X, x.Y, x.Z,
		y.X, y.Y, y.Z,
		z.X, z.Y, z.Z,
	})
	c := Camera{
		FocalLength: focal,
		Principal:   principal,
		Rotation:    Rodrigues(r),
		Center:      center,
	}
	return c, c.Validate()
}
