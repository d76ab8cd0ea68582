/*
DESCRIPTION
  kdtree.go provides exact nearest neighbour indices: a k-d tree and a
  linear scan.

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

package retrieval

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTree is an exact index over a single balanced k-d tree. It ignores
// the checks bound.
type KDTree struct {
	tree *kdtree.Tree
}

// NewKDTree builds a KDTree over the rows of data.
func NewKDTree(data *mat.Dense) *KDTree {
	rows, _ := data.Dims()
	pts := make(points, rows)
	for i := range pts {
		pts[i] = point{row: i, v: data.RawRowView(i)}
	}
	return &KDTree{tree: kdtree.New(pts, false)}
}

// Nearest returns the exact nearest row to q.
func (t *KDTree) Nearest(q []float64, _ int) (int, float64) {
	p, sq := t.tree.Nearest(point{row: -1, v: q})
	return p.(point).row, math.Sqrt(sq)
}

// point is a database row in a KDTree.
type point struct {
	row int
	v   []float64
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.v[d] - c.(point).v[d]
}

func (p point) Dims() int { return len(p.v) }

// Distance returns the squared Euclidean distance.
func (p point) Distance(c kdtree.Comparable) float64 {
	d := floats.Distance(p.v, c.(point).v, 2)
	return d * d
}

type points []point

func (p points) Index(i int) kdtree.Comparable { return p[i] }
func (p points) Len() int                      { return len(p) }
func (p points) Pivot(d kdtree.Dim) int        { return plane{points: p, Dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// plane orders points along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool { return p.points[i].v[p.Dim] < p.points[j].v[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }

// Linear is an exact index comparing the query with every row.
type Linear struct {
	data *mat.Dense
}

// NewLinear returns a Linear index over the rows of data.
func NewLinear(data *mat.Dense) *Linear { return &Linear{data: data} }

// Nearest returns the first row at the minimum distance from q. It
// ignores the checks bound.
func (l *Linear) Nearest(q []float64, _ int) (int, float64) {
	rows, _ := l.data.Dims()
	best, bestDist := -1, math.Inf(1)
	for i := 0; i < rows; i++ {
		d := floats.Distance(l.data.RawRowView(i), q, 2)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
