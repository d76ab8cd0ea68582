//go:build withcv
// +build withcv

/*
DESCRIPTION
  warp_cv_test.go checks the OpenCV perspective warp against Perspective.

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
	"testing"

	"github.com/ausocean/fieldpose/pi/homography"
)

func TestPerspectiveCV(t *testing.T) {
	src := pattern(12, 9)
	want, err := Perspective(src, homography.Translation(2, 1), image.Pt(12, 9))
	if err != nil {
		t.Fatalf("could not warp: %v", err)
	}
	got, err := PerspectiveCV(src, homography.Translation(2, 1), image.Pt(12, 9))
	if err != nil {
		t.Fatalf("could not warp with OpenCV: %v", err)
	}
	for y := 1; y < 9; y++ {
		for x := 2; x < 12; x++ {
			if got.RGBAAt(x, y) != want.RGBAAt(x, y) {
				t.Errorf("did not get expected pixel at (%d,%d). Got: %v, Want: %v", x, y, got.RGBAAt(x, y), want.RGBAAt(x, y))
			}
		}
	}
}
