/*
DESCRIPTION
  warp_test.go provides testing of perspective warping.

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

package warp

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ausocean/fieldpose/pi/homography"
)

// pattern returns an opaque image whose colour encodes position.
func pattern(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(10 * x), G: uint8(10 * y), B: uint8(x * y), A: 255})
		}
	}
	return img
}

func TestPerspectiveIdentity(t *testing.T) {
	src := pattern(12, 9)
	got, err := Perspective(src, homography.Identity(), image.Pt(12, 9))
	if err != nil {
		t.Fatalf("could not warp: %v", err)
	}
	for i := range src.Pix {
		if got.Pix[i] != src.Pix[i] {
			t.Fatalf("identity warp changed byte %d. Got: %d, Want: %d", i, got.Pix[i], src.Pix[i])
		}
	}
}

func TestPerspectiveTranslation(t *testing.T) {
	src := pattern(12, 9)
	got, err := Perspective(src, homography.Translation(2, 1), image.Pt(12, 9))
	if err != nil {
		t.Fatalf("could not warp: %v", err)
	}
	for y := 0; y < 9; y++ {
		for x := 0; x < 12; x++ {
			want := color.RGBA{}
			if x >= 2 && y >= 1 {
				want = src.RGBAAt(x-2, y-1)
			}
			if c := got.RGBAAt(x, y); c != want {
				t.Errorf("did not get expected pixel at (%d,%d). Got: %v, Want: %v", x, y, c, want)
			}
		}
	}
}

func TestPerspectiveSubImage(t *testing.T) {
	src := pattern(12, 9)
	sub := src.SubImage(image.Rect(4, 3, 8, 6))
	got, err := Perspective(sub, homography.Identity(), image.Pt(4, 3))
	if err != nil {
		t.Fatalf("could not warp: %v", err)
	}
	if c, want := got.RGBAAt(0, 0), src.RGBAAt(4, 3); c != want {
		t.Errorf("did not honour source bounds. Got: %v, Want: %v", c, want)
	}
}

func TestTemplateImageRoundTrip(t *testing.T) {
	h, err := homography.New([]float64{400, 80, 100, -20, 250, 60, 0.1, 0.3, 1})
	if err != nil {
		t.Fatalf("could not create homography: %v", err)
	}
	size := image.Pt(115, 74)

	t2i, err := TemplateToImage(h, size)
	if err != nil {
		t.Fatalf("could not get template to image homography: %v", err)
	}
	i2t, err := ImageToTemplate(h, size)
	if err != nil {
		t.Fatalf("could not get image to template homography: %v", err)
	}

	for _, p := range []r2.Vec{{X: 0, Y: 0}, {X: 115, Y: 74}, {X: 57.5, Y: 10}} {
		want, err := h.Apply(r2.Vec{X: p.X / 115, Y: p.Y / 74})
		if err != nil {
			t.Fatalf("could not apply: %v", err)
		}
		img, err := t2i.Apply(p)
		if err != nil {
			t.Fatalf("could not apply: %v", err)
		}
		if math.Abs(img.X-want.X) > 1e-9 || math.Abs(img.Y-want.Y) > 1e-9 {
			t.Errorf("did not get expected image point for %v. Got: %v, Want: %v", p, img, want)
		}
		back, err := i2t.Apply(img)
		if err != nil {
			t.Fatalf("could not apply: %v", err)
		}
		if math.Abs(back.X-p.X) > 1e-6 || math.Abs(back.Y-p.Y) > 1e-6 {
			t.Errorf("did not get template point back. Got: %v, Want: %v", back, p)
		}
	}

	_, err = TemplateToImage(h, image.Pt(0, 74))
	if err == nil {
		t.Errorf("expected error for empty raster")
	}
}
