/*
DESCRIPTION
  soccer.go provides the built-in association football field template,
  115 by 74 yards, with its line markings as control points and segments.

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

package template

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Soccer field dimensions in yards.
const (
	SoccerWidth  = 115
	SoccerHeight = 74

	penaltyDepth = 18
	penaltyWidth = 44
	goalDepth    = 6
	goalWidth    = 20
	spotDistance = 12
	circleRadius = 10

	// circleSegments is the number of chords approximating the centre circle.
	circleSegments = 32
)

// builder accumulates points and lines.
type builder struct {
	points []r3.Vec
	lines  [][2]int
}

func (b *builder) point(x, y float64) int {
	b.points = append(b.points, r3.Vec{X: x, Y: y})
	return len(b.points) - 1
}

// polyline adds the points and joins consecutive ones; closed joins the
// last back to the first.
func (b *builder) polyline(closed bool, xy ...[2]float64) {
	first := len(b.points)
	for i, p := range xy {
		idx := b.point(p[0], p[1])
		if i > 0 {
			b.lines = append(b.lines, [2]int{idx - 1, idx})
		}
	}
	if closed && len(xy) > 2 {
		b.lines = append(b.lines, [2]int{len(b.points) - 1, first})
	}
}

// arc adds chords approximating the arc of radius r about (cx, cy) from
// angle a0 to a1 in radians.
func (b *builder) arc(cx, cy, r, a0, a1 float64, n int) {
	pts := make([][2]float64, n+1)
	for i := range pts {
		a := a0 + (a1-a0)*float64(i)/float64(n)
		pts[i] = [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	b.polyline(false, pts...)
}

// Soccer returns the standard soccer field template. The origin is at one
// corner with x along the touch line and y along the goal line.
func Soccer() *Template {
	const (
		w, h = SoccerWidth, SoccerHeight
		mid  = h / 2.0
	)
	var b builder

	b.polyline(true, [2]float64{0, 0}, [2]float64{w, 0}, [2]float64{w, h}, [2]float64{0, h})
	b.polyline(false, [2]float64{w / 2.0, 0}, [2]float64{w / 2.0, h})

	for _, end := range []struct{ x, dir float64 }{{0, 1}, {w, -1}} {
		pd, gd := end.x+end.dir*penaltyDepth, end.x+end.dir*goalDepth
		b.polyline(false,
			[2]float64{end.x, mid - penaltyWidth/2.0},
			[2]float64{pd, mid - penaltyWidth/2.0},
			[2]float64{pd, mid + penaltyWidth/2.0},
			[2]float64{end.x, mid + penaltyWidth/2.0},
		)
		b.polyline(false,
			[2]float64{end.x, mid - goalWidth/2.0},
			[2]float64{gd, mid - goalWidth/2.0},
			[2]float64{gd, mid + goalWidth/2.0},
			[2]float64{end.x, mid + goalWidth/2.0},
		)

		// Penalty arc: the part of the circle about the spot outside the box.
		spot := end.x + end.dir*spotDistance
		half := math.Acos(float64(penaltyDepth-spotDistance) / circleRadius)
		a := 0.0
		if end.dir < 0 {
			a = math.Pi
		}
		b.arc(spot, mid, circleRadius, a-half, a+half, 8)
	}

	b.arc(w/2.0, mid, circleRadius, 0, 2*math.Pi, circleSegments)

	t, err := New(b.points, b.lines, w, h)
	if err != nil {
		panic("invalid built-in soccer template: " + err.Error())
	}
	return t
}
