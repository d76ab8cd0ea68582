/*
DESCRIPTION
  camera_test.go provides testing of projection and plane homography
  derivation in camera.go.

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
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ausocean/fieldpose/pi/homography"
)

// Template dimensions of the standard soccer field in yards.
const (
	fieldW = 115
	fieldH = 74
)

var up = r3.Vec{Z: 1}

// testCameras are cameras that see every corner of their template.
var testCameras = []struct {
	name          string
	center        r3.Vec
	target        r3.Vec
	up            r3.Vec
	focal         float64
	principal     r2.Vec
	width, height float64
}{
	{
		name:      "top down unit square",
		center:    r3.Vec{X: 0.5, Y: 0.5, Z: 2},
		target:    r3.Vec{X: 0.5, Y: 0.5},
		up:        r3.Vec{Y: 1},
		focal:     100,
		principal: r2.Vec{X: 80, Y: 60},
		width:     1,
		height:    1,
	},
	{
		name:      "broadcast",
		center:    r3.Vec{X: 57.5, Y: -30, Z: 20},
		target:    r3.Vec{X: 57.5, Y: 37},
		up:        up,
		focal:     1500,
		principal: r2.Vec{X: 640, Y: 360},
		width:     fieldW,
		height:    fieldH,
	},
	{
		name:      "corner flag",
		center:    r3.Vec{X: -20, Y: -15, Z: 12},
		target:    r3.Vec{X: 40, Y: 30},
		up:        up,
		focal:     900,
		principal: r2.Vec{X: 640, Y: 360},
		width:     fieldW,
		height:    fieldH,
	},
}

func near(a, b r2.Vec, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps
}

func TestProjectTopDown(t *testing.T) {
	c := Camera{
		FocalLength: 100,
		Principal:   r2.Vec{X: 80, Y: 60},
		Rotation:    r3.Vec{X: math.Pi},
		Center:      r3.Vec{X: 0.5, Y: 0.5, Z: 2},
	}

	tests := []struct {
		in   r3.Vec
		want r2.Vec
	}{
		{in: r3.Vec{X: 0.5, Y: 0.5}, want: r2.Vec{X: 80, Y: 60}},
		{in: r3.Vec{X: 0, Y: 0}, want: r2.Vec{X: 55, Y: 85}},
		{in: r3.Vec{X: 1, Y: 0}, want: r2.Vec{X: 105, Y: 85}},
		{in: r3.Vec{X: 1, Y: 1}, want: r2.Vec{X: 105, Y: 35}},
		{in: r3.Vec{X: 0, Y: 1}, want: r2.Vec{X: 55, Y: 35}},
	}
	for i, test := range tests {
		got, err := c.Project(test.in)
		if err != nil {
			t.Fatalf("could not project point for test: %d: %v", i, err)
		}
		if !near(got, test.want, 1e-9) {
			t.Errorf("did not get expected projection for test: %d. Got: %v, Want: %v", i, got, test.want)
		}
	}

	_, err := c.Project(r3.Vec{X: 0.5, Y: 0.5, Z: 3})
	if !errors.Is(err, ErrBehindCamera) {
		t.Errorf("did not get expected error for point behind camera. Got: %v, Want: %v", err, ErrBehindCamera)
	}
	_, err = c.Project(r3.Vec{X: 7, Y: -3, Z: 2})
	if !errors.Is(err, ErrBehindCamera) {
		t.Errorf("did not get expected error for point on principal plane. Got: %v, Want: %v", err, ErrBehindCamera)
	}
}

func TestRotationRoundTrip(t *testing.T) {
	for _, v := range []r3.Vec{
		{},
		{X: 0.1, Y: -0.2, Z: 0.3},
		{X: math.Pi},
		{X: 0, Y: 2.5, Z: -1},
		{X: -1.9, Y: 0.4, Z: 0.7},
	} {
		c := Camera{FocalLength: 1, Rotation: v}
		r := c.RotationMatrix()

		var rtr mat.Dense
		rtr.Mul(r.T(), r)
		if !mat.EqualApprox(&rtr, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12) {
			t.Errorf("rotation matrix for %v is not orthonormal", v)
		}

		back := Camera{FocalLength: 1, Rotation: Rodrigues(r)}.RotationMatrix()
		if !mat.EqualApprox(r, back, 1e-9) {
			t.Errorf("did not get same rotation back for %v. Got: %v", v, Rodrigues(r))
		}
	}
}

// TestPlaneHomography checks that the closed form homography agrees with
// direct projection of the template corners and with the corner solve.
func TestPlaneHomography(t *testing.T) {
	for _, test := range testCameras {
		c, err := LookAt(test.center, test.target, test.up, test.focal, test.principal)
		if err != nil {
			t.Fatalf("could not create camera %s: %v", test.name, err)
		}

		h, err := c.PlaneHomography(test.width, test.height)
		if err != nil {
			t.Fatalf("could not get plane homography for %s: %v", test.name, err)
		}
		hc, err := c.CornerHomography(test.width, test.height)
		if err != nil {
			t.Fatalf("could not get corner homography for %s: %v", test.name, err)
		}

		for _, n := range []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0.25, Y: 0.6}} {
			want, err := c.Project(r3.Vec{X: n.X * test.width, Y: n.Y * test.height})
			if err != nil {
				t.Fatalf("could not project %v for %s: %v", n, test.name, err)
			}
			got, err := h.Apply(n)
			if err != nil {
				t.Fatalf("could not apply homography for %s: %v", test.name, err)
			}
			if !near(got, want, 1e-6) {
				t.Errorf("plane homography disagrees with projection for %s at %v. Got: %v, Want: %v", test.name, n, got, want)
			}
			got, err = hc.Apply(n)
			if err != nil {
				t.Fatalf("could not apply corner homography for %s: %v", test.name, err)
			}
			if !near(got, want, 1e-6) {
				t.Errorf("corner homography disagrees with projection for %s at %v. Got: %v, Want: %v", test.name, n, got, want)
			}
		}
	}
}

func TestPlaneHomographyErrors(t *testing.T) {
	onPlane := Camera{FocalLength: 100, Rotation: r3.Vec{X: math.Pi / 2}, Center: r3.Vec{X: 1, Y: -5}}
	_, err := onPlane.PlaneHomography(fieldW, fieldH)
	if !errors.Is(err, homography.ErrDegenerate) {
		t.Errorf("did not get expected error for camera on plane. Got: %v, Want: %v", err, homography.ErrDegenerate)
	}

	noFocal := Camera{FocalLength: 0, Rotation: r3.Vec{X: math.Pi}, Center: r3.Vec{Z: 10}}
	_, err = noFocal.PlaneHomography(fieldW, fieldH)
	if !errors.Is(err, ErrInvalidFocalLength) {
		t.Errorf("did not get expected error for zero focal length. Got: %v, Want: %v", err, ErrInvalidFocalLength)
	}
}

func TestFromParams(t *testing.T) {
	p := []float64{640, 360, 3000, 1.5, -0.1, 0.2, 52, -45, 17}
	c, err := FromParams(p)
	if err != nil {
		t.Fatalf("could not create camera: %v", err)
	}
	if c.FocalLength != 3000 || c.Principal.X != 640 || c.Center.Z != 17 || c.Rotation.Y != -0.1 {
		t.Errorf("did not get expected camera: %+v", c)
	}
	for i, v := range c.Params() {
		if v != p[i] {
			t.Errorf("did not get expected param %d. Got: %v, Want: %v", i, v, p[i])
		}
	}

	_, err = FromParams(p[:8])
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("did not get expected error for short params. Got: %v", err)
	}
}
