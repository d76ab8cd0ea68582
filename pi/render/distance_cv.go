//go:build withcv
// +build withcv

/*
DESCRIPTION
  distance_cv.go provides an OpenCV backed distance transform.

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
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// DistanceTransformCV computes the same field as DistanceTransformThreshold
// using OpenCV's precise L2 distance transform.
func DistanceTransformCV(edge *image.Gray, t uint8) (*DistanceMap, error) {
	src, err := gocv.ImageGrayToMatGray(edge)
	if err != nil {
		return nil, fmt.Errorf("could not convert edge map: %w", err)
	}
	defer src.Close()

	// OpenCV measures distance to the nearest zero pixel so edges become zero.
	inv := gocv.NewMat()
	defer inv.Close()
	gocv.Threshold(src, &inv, float32(t), 255, gocv.ThresholdBinaryInv)

	d := NewDistanceMap(src.Rows(), src.Cols())
	if gocv.CountNonZero(inv) == d.Rows*d.Cols {
		for i := range d.Data {
			d.Data[i] = math.Inf(1)
		}
		return d, nil
	}

	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	gocv.DistanceTransform(inv, &dist, &labels, gocv.DistL2, gocv.DistanceMaskPrecise, gocv.DistanceLabelCComp)

	for r := 0; r < d.Rows; r++ {
		for c := 0; c < d.Cols; c++ {
			d.Set(r, c, float64(dist.GetFloatAt(r, c)))
		}
	}
	return d, nil
}
