/*
DESCRIPTION
  warp.go provides perspective warping of images by a homography, and the
  pixel homographies between a template raster and a camera image.

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

// Package warp resamples imagery between the template plane and the camera
// image through a homography.
package warp

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ausocean/fieldpose/pi/homography"
)

// Perspective returns src warped by h, which maps src pixel coordinates to
// output pixel coordinates, onto an output of the given size. Output pixels
// are sampled bilinearly; those mapping outside src are transparent.
func Perspective(src image.Image, h homography.Homography, size image.Point) (*image.RGBA, error) {
	inv, err := h.Inverse()
	if err != nil {
		return nil, fmt.Errorf("could not invert homography: %w", err)
	}

	// Work on a zero-origin RGBA copy of src.
	sb := src.Bounds()
	s := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	draw.Draw(s, s.Bounds(), src, sb.Min, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			p, err := inv.Apply(r2.Vec{X: float64(x), Y: float64(y)})
			if err != nil {
				continue
			}
			c, ok := bilinear(s, p.X, p.Y)
			if ok {
				dst.SetRGBA(x, y, c)
			}
		}
	}
	return dst, nil
}

// bilinear samples img at (x, y). ok is false outside the image.
func bilinear(img *image.RGBA, x, y float64) (color.RGBA, bool) {
	const eps = 1e-9
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if !(x > -eps && y > -eps && x < float64(w-1)+eps && y < float64(h-1)+eps) {
		return color.RGBA{}, false
	}
	x = math.Min(math.Max(x, 0), float64(w-1))
	y = math.Min(math.Max(y, 0), float64(h-1))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	var out [4]uint8
	for ch := 0; ch < 4; ch++ {
		at := func(px, py int) float64 { return float64(img.Pix[img.PixOffset(px, py)+ch]) }
		top := at(x0, y0)*(1-fx) + at(x1, y0)*fx
		bot := at(x0, y1)*(1-fx) + at(x1, y1)*fx
		out[ch] = uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: out[3]}, true
}

// TemplateToImage returns the pixel homography from a raster of the
// template of the given size to the camera image, given h mapping
// normalised template coordinates to image pixels.
func TemplateToImage(h homography.Homography, size image.Point) (homography.Homography, error) {
	s, err := homography.Scale(1/float64(size.X), 1/float64(size.Y))
	if err != nil {
		return homography.Homography{}, fmt.Errorf("invalid template raster size %v: %w", size, err)
	}
	return h.Mul(s)
}

// ImageToTemplate is the inverse of TemplateToImage.
func ImageToTemplate(h homography.Homography, size image.Point) (homography.Homography, error) {
	t, err := TemplateToImage(h, size)
	if err != nil {
		return homography.Homography{}, err
	}
	return t.Inverse()
}
