/*
DESCRIPTION
  camera.go provides a pinhole camera model parameterised by focal length,
  principal point, Rodrigues rotation vector and world position, together
  with point projection and the closed form homography of the z=0 plane.

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

// Package camera provides a pinhole camera model used to project a planar
// template into an image and to derive the template to image homography.
package camera

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ausocean/fieldpose/pi/homography"
)

// NParams is the number of values in a serialised camera.
const NParams = 9

// DepthEpsilon is the smallest homogeneous depth at which a point is
// considered to be in front of the camera.
const DepthEpsilon = 1e-9

// planeEpsilon is the smallest camera height above the template plane.
const planeEpsilon = 1e-9

var (
	// ErrBehindCamera is returned when projecting a point that lies behind
	// or on the principal plane of the camera.
	ErrBehindCamera = errors.New("point behind camera")

	// ErrInvalidFocalLength is returned for cameras with non-positive focal length.
	ErrInvalidFocalLength = errors.New("invalid focal length")

	// ErrInvalidParams is returned for malformed serialised cameras.
	ErrInvalidParams = errors.New("invalid camera parameters")
)

// Camera is a pinhole camera. Rotation is a Rodrigues vector whose direction
// is the rotation axis and whose norm is the angle in radians; it rotates
// world coordinates into camera coordinates. Center is the camera position
// in world coordinates.
type Camera struct {
	FocalLength float64
	Principal   r2.Vec
	Rotation    r3.Vec
	Center      r3.Vec
}

// FromParams returns a Camera from the database ordering
// u, v, focal length, rx, ry, rz, cx, cy, cz.
func FromParams(p []float64) (Camera, error) {
	if len(p) != NParams {
		return Camera{}, fmt.Errorf("need %d values, got %d: %w", NParams, len(p), ErrInvalidParams)
	}
	c := Camera{
		Principal:   r2.Vec{X: p[0], Y: p[1]},
		FocalLength: p[2],
		Rotation:    r3.Vec{X: p[3], Y: p[4], Z: p[5]},
		Center:      r3.Vec{X: p[6], Y: p[7], Z: p[8]},
	}
	return c, c.Validate()
}

// Params returns c in the ordering used by FromParams.
func (c Camera) Params() []float64 {
	return []float64{
		c.Principal.X, c.Principal.Y, c.FocalLength,
		c.Rotation.X, c.Rotation.Y, c.Rotation.Z,
		c.Center.X, c.Center.Y, c.Center.Z,
	}
}

// Validate checks that c has a positive focal length and finite parameters.
func (c Camera) Validate() error {
	for _, v := range c.Params() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite parameter: %w", ErrInvalidParams)
		}
	}
	if c.FocalLength <= 0 {
		return fmt.Errorf("focal length %v: %w", c.FocalLength, ErrInvalidFocalLength)
	}
	return nil
}

// RotationMatrix returns the 3x3 rotation matrix of the Rodrigues vector.
// A zero vector gives the identity.
func (c Camera) RotationMatrix() *mat.Dense {
	angle := r3.Norm(c.Rotation)
	if angle == 0 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}

	// Columns of R are the rotated basis vectors.
	rot := r3.NewRotation(angle, r3.Unit(c.Rotation))
	r := mat.NewDense(3, 3, nil)
	for j, e := range []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
		v := rot.Rotate(e)
		r.SetCol(j, []float64{v.X, v.Y, v.Z})
	}
	return r
}

// Intrinsics returns the calibration matrix K.
func (c Camera) Intrinsics() *mat.Dense {
	f := c.FocalLength
	return mat.NewDense(3, 3, []float64{
		f, 0, c.Principal.X,
		0, f, c.Principal.Y,
		0, 0, 1,
	})
}

// Projection returns the 3x4 projection matrix P = K·[R | -R·C].
func (c Camera) Projection() *mat.Dense {
	r := c.RotationMatrix()

	var t mat.VecDense
	t.MulVec(r, mat.NewVecDense(3, []float64{c.Center.X, c.Center.Y, c.Center.Z}))
	t.ScaleVec(-1, &t)

	ext := mat.NewDense(3, 4, nil)
	ext.Slice(0, 3, 0, 3).(*mat.Dense).Copy(r)
	ext.SetCol(3, t.RawVector().Data)

	var p mat.Dense
	p.Mul(c.Intrinsics(), ext)
	return &p
}

// Projector applies a fixed projection matrix to many points without
// rebuilding it.
type Projector struct {
	p [12]float64
}

// Projector returns a Projector for c.
func (c Camera) Projector() Projector {
	var pr Projector
	copy(pr.p[:], c.Projection().RawMatrix().Data)
	return pr
}

// Homogeneous returns the homogeneous image coordinates of p.
func (pr Projector) Homogeneous(p r3.Vec) (x, y, w float64) {
	m := pr.p
	x = m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3]
	y = m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7]
	w = m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11]
	return x, y, w
}

// Depth returns the homogeneous depth of p; it is positive in front of the camera.
func (pr Projector) Depth(p r3.Vec) float64 {
	_, _, w := pr.Homogeneous(p)
	return w
}

// Project returns the pixel coordinates of p, or ErrBehindCamera if p is not
// in front of the camera.
func (pr Projector) Project(p r3.Vec) (r2.Vec, error) {
	x, y, w := pr.Homogeneous(p)
	if w <= DepthEpsilon {
		return r2.Vec{}, fmt.Errorf("depth %v at %v: %w", w, p, ErrBehindCamera)
	}
	return r2.Vec{X: x / w, Y: y / w}, nil
}

// Project returns the pixel coordinates of the world point p.
func (c Camera) Project(p r3.Vec) (r2.Vec, error) {
	return c.Projector().Project(p)
}

// PlaneHomography returns the homography mapping normalised template
// coordinates (s, t), with (0, 0) and (1, 1) at opposite template corners,
// to image pixels. It is derived in closed form by restricting P to the z=0
// plane and absorbing the template width and height.
func (c Camera) PlaneHomography(width, height float64) (homography.Homography, error) {
	err := c.Validate()
	if err != nil {
		return homography.Homography{}, fmt.Errorf("invalid camera: %w", err)
	}
	if width <= 0 || height <= 0 {
		return homography.Homography{}, fmt.Errorf("template size %vx%v: %w", width, height, homography.ErrDegenerate)
	}
	if math.Abs(c.Center.Z) <= planeEpsilon {
		return homography.Homography{}, fmt.Errorf("camera centre on template plane: %w", homography.ErrDegenerate)
	}

	p := c.Projection()
	h := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		h.Set(i, 0, p.At(i, 0)*width)
		h.Set(i, 1, p.At(i, 1)*height)
		h.Set(i, 2, p.At(i, 3))
	}
	return homography.FromMatrix(h)
}

// CornerHomography derives the same mapping as PlaneHomography by projecting
// the four template corners and solving for the homography. All corners must
// be in front of the camera.
func (c Camera) CornerHomography(width, height float64) (homography.Homography, error) {
	err := c.Validate()
	if err != nil {
		return homography.Homography{}, fmt.Errorf("invalid camera: %w", err)
	}

	pr := c.Projector()
	norm := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	img := make([]r2.Vec, len(norm))
	for i, n := range norm {
		img[i], err = pr.Project(r3.Vec{X: n.X * width, Y: n.Y * height})
		if err != nil {
			return homography.Homography{}, fmt.Errorf("could not project corner %d: %w", i, err)
		}
	}
	return homography.FromPoints(norm, img)
}
