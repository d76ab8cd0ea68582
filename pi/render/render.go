/*
DESCRIPTION
  render.go provides synthetic edge map rendering of a template seen by a
  camera, and conversion of arbitrary images to canonical edge maps.

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

// Package render draws template line markings as seen by a camera and
// computes distance transforms of edge maps.
package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ausocean/fieldpose/pi/camera"
	"github.com/ausocean/fieldpose/pi/template"
)

// Edge pixel values of rendered maps.
const (
	Edge       = 255
	Background = 0
)

// nearDepth is the camera-space depth at which segments are clipped before
// projection, in template units.
const nearDepth = 1e-3

// coverage is the minimum rasterised coverage of a pixel drawn as an edge.
const coverage = 0.5

// ErrInvalidCanvas is returned for non-positive canvas sizes or line widths.
var ErrInvalidCanvas = errors.New("invalid canvas")

// RenderEdgeMap draws every segment of tmpl as seen by cam onto a width by
// height canvas as a line lineWidth pixels thick. Segments, or parts of
// segments, behind the camera or off the canvas are dropped. The result is
// binary with edges set to Edge.
func RenderEdgeMap(cam camera.Camera, tmpl *template.Template, width, height int, lineWidth float64) (*image.Gray, error) {
	if width <= 0 || height <= 0 || !(lineWidth > 0) {
		return nil, fmt.Errorf("%dx%d with line width %v: %w", width, height, lineWidth, ErrInvalidCanvas)
	}
	err := cam.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid camera: %w", err)
	}

	pr := cam.Projector()
	bounds := rect{
		min: r2.Vec{X: -lineWidth, Y: -lineWidth},
		max: r2.Vec{X: float64(width) + lineWidth, Y: float64(height) + lineWidth},
	}

	z := vector.NewRasterizer(width, height)
	for _, s := range tmpl.Segments() {
		a, b, ok := clipNear(pr, s.A, s.B)
		if !ok {
			continue
		}
		pa, err := pr.Project(a)
		if err != nil {
			continue
		}
		pb, err := pr.Project(b)
		if err != nil {
			continue
		}
		pa, pb, ok = bounds.clip(pa, pb)
		if !ok {
			continue
		}
		addLine(z, pa, pb, lineWidth)
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	out := image.NewGray(mask.Bounds())
	for i, v := range mask.Pix {
		if float64(v) >= coverage*0xff {
			out.Pix[i] = Edge
		}
	}
	return out, nil
}

// clipNear clips the segment ab to the part with camera depth at least
// nearDepth. ok is false when no part is in front of the camera.
func clipNear(pr camera.Projector, a, b r3.Vec) (r3.Vec, r3.Vec, bool) {
	da, db := pr.Depth(a), pr.Depth(b)
	switch {
	case da < nearDepth && db < nearDepth:
		return a, b, false
	case da < nearDepth:
		a = r3.Add(a, r3.Scale((nearDepth-da)/(db-da), r3.Sub(b, a)))
	case db < nearDepth:
		b = r3.Add(b, r3.Scale((nearDepth-db)/(da-db), r3.Sub(a, b)))
	}
	return a, b, true
}

type rect struct {
	min, max r2.Vec
}

// clip clips the segment ab to r using the Liang-Barsky method.
func (r rect) clip(a, b r2.Vec) (r2.Vec, r2.Vec, bool) {
	d := r2.Sub(b, a)
	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-d.X, a.X - r.min.X},
		{d.X, r.max.X - a.X},
		{-d.Y, a.Y - r.min.Y},
		{d.Y, r.max.Y - a.Y},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
		if t0 > t1 {
			return a, b, false
		}
	}
	return r2.Add(a, r2.Scale(t0, d)), r2.Add(a, r2.Scale(t1, d)), true
}

// addLine adds the rectangle covering a line of width w from a to b, with
// square caps, to z. All rectangles are wound the same way so overlapping
// lines do not cancel.
func addLine(z *vector.Rasterizer, a, b r2.Vec, w float64) {
	d := r2.Sub(b, a)
	u := r2.Vec{X: 1}
	if n := r2.Norm(d); n > 1e-9 {
		u = r2.Scale(1/n, d)
	}
	half := r2.Scale(w/2, u)
	n := r2.Vec{X: -half.Y, Y: half.X}
	a = r2.Sub(a, half)
	b = r2.Add(b, half)

	corners := [4]r2.Vec{r2.Add(a, n), r2.Add(b, n), r2.Sub(b, n), r2.Sub(a, n)}
	z.MoveTo(float32(corners[0].X), float32(corners[0].Y))
	for _, c := range corners[1:] {
		z.LineTo(float32(c.X), float32(c.Y))
	}
	z.ClosePath()
}

// Canonical returns img as a grey edge map of the given size, resampling
// bilinearly when the sizes differ.
func Canonical(img image.Image, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	if img.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
