//go:build withcv
// +build withcv

/*
DESCRIPTION
  warp_cv.go provides an OpenCV backed perspective warp.

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
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"

	"github.com/ausocean/fieldpose/pi/homography"
)

// PerspectiveCV is Perspective using OpenCV's warpPerspective.
func PerspectiveCV(src image.Image, h homography.Homography, size image.Point) (*image.RGBA, error) {
	in, err := gocv.ImageToMatRGBA(src)
	if err != nil {
		return nil, fmt.Errorf("could not convert image: %w", err)
	}
	defer in.Close()
	if in.Empty() {
		return nil, errors.New("image is empty, cannot warp")
	}

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.SetDoubleAt(i, j, h.At(i, j))
		}
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.WarpPerspective(in, &out, m, size)

	img, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("could not convert warped image: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst, nil
}
