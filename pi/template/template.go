/*
DESCRIPTION
  template.go provides the planar template model: control points on the
  z=0 plane, the line segments joining them and the physical template size.

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

// Package template provides the geometry of a planar line-marking layout,
// such as a sports field, against which camera poses are recovered.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrIndexOutOfRange is returned when a line references a control point
	// that does not exist.
	ErrIndexOutOfRange = errors.New("line index out of range")

	// ErrInvalidSize is returned for templates with non-positive dimensions.
	ErrInvalidSize = errors.New("invalid template size")

	// ErrNotPlanar is returned for control points off the z=0 plane.
	ErrNotPlanar = errors.New("control point not on template plane")
)

// Segment is a resolved line segment between two control points.
type Segment struct {
	A, B r3.Vec
}

// Template is an immutable planar layout. Units are those of the template
// source, typically yards.
type Template struct {
	points   []r3.Vec
	lines    [][2]int
	segments []Segment
	width    float64
	height   float64
}

// New returns a Template after checking that every control point lies on
// the z=0 plane and every line references valid control points.
func New(points []r3.Vec, lines [][2]int, width, height float64) (*Template, error) {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return nil, fmt.Errorf("%vx%v: %w", width, height, ErrInvalidSize)
	}
	for i, p := range points {
		if p.Z != 0 || math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("point %d at %v: %w", i, p, ErrNotPlanar)
		}
	}

	t := &Template{
		points: append([]r3.Vec(nil), points...),
		lines:  append([][2]int(nil), lines...),
		width:  width,
		height: height,
	}

	t.segments = make([]Segment, len(lines))
	for i, l := range lines {
		for _, idx := range l {
			if idx < 0 || idx >= len(points) {
				return nil, fmt.Errorf("line %d references point %d of %d: %w", i, idx, len(points), ErrIndexOutOfRange)
			}
		}
		t.segments[i] = Segment{A: points[l[0]], B: points[l[1]]}
	}
	return t, nil
}

// Segments returns the renderable segments of t, resolved from line indices.
func (t *Template) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Points returns the control points of t.
func (t *Template) Points() []r3.Vec { return append([]r3.Vec(nil), t.points...) }

// Lines returns the control point index pairs of t.
func (t *Template) Lines() [][2]int { return append([][2]int(nil), t.lines...) }

// Width returns the template width.
func (t *Template) Width() float64 { return t.width }

// Height returns the template height.
func (t *Template) Height() float64 { return t.height }

// jsonTemplate is the serialised form read by Load.
type jsonTemplate struct {
	Points [][3]float64 `json:"points"`
	Lines  [][2]int     `json:"lines"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
}

// Load reads a JSON template from r.
func Load(r io.Reader) (*Template, error) {
	var jt jsonTemplate
	err := json.NewDecoder(r).Decode(&jt)
	if err != nil {
		return nil, fmt.Errorf("could not decode template: %w", err)
	}
	pts := make([]r3.Vec, len(jt.Points))
	for i, p := range jt.Points {
		pts[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return New(pts, jt.Lines, jt.Width, jt.Height)
}

// Save writes t to w in the format read by Load.
func (t *Template) Save(w io.Writer) error {
	jt := jsonTemplate{
		Points: make([][3]float64, len(t.points)),
		Lines:  t.lines,
		Width:  t.width,
		Height: t.height,
	}
	for i, p := range t.points {
		jt.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jt)
}
