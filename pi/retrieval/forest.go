/*
DESCRIPTION
  forest.go provides a randomised k-d forest for approximate nearest
  neighbour search with a bounded number of comparisons.

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
	"container/heap"
	"errors"
	"math"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Forest construction constants.
const (
	splitSamples = 100 // Rows sampled to choose a split.
	splitDims    = 5   // Highest variance dimensions a split is drawn from.
)

// Forest is a set of randomised k-d trees searched together best bin first.
type Forest struct {
	data  *mat.Dense
	trees []*node
}

// node is a tree node; leaves have rows and no children.
type node struct {
	dim         int
	split       float64
	left, right *node
	rows        []int
}

// NewForest builds n randomised trees over the rows of data concurrently.
func NewForest(data *mat.Dense, n int, seed uint64) (*Forest, error) {
	if n < 1 {
		return nil, errors.New("forest needs at least one tree")
	}
	rows, _ := data.Dims()
	f := &Forest{data: data, trees: make([]*node, n)}

	var g errgroup.Group
	for i := range f.trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			idx := rng.Perm(rows)
			f.trees[i] = f.build(idx, rng)
			return nil
		})
	}
	return f, g.Wait()
}

func (f *Forest) build(idx []int, rng *rand.Rand) *node {
	if len(idx) <= 1 {
		return &node{rows: idx}
	}

	dims, means := f.splitCandidates(idx)
	for _, d := range []int{dims[rng.IntN(len(dims))], dims[0]} {
		lo := f.partition(idx, d, means[d])
		if lo == 0 || lo == len(idx) {
			continue
		}
		return &node{
			dim:   d,
			split: means[d],
			left:  f.build(idx[:lo], rng),
			right: f.build(idx[lo:], rng),
		}
	}

	// Every sampled dimension is constant.
	return &node{rows: idx}
}

// splitCandidates returns up to splitDims dimensions of highest variance
// over a sample of idx, highest first, and the per-dimension sample means.
func (f *Forest) splitCandidates(idx []int) ([]int, []float64) {
	_, dim := f.data.Dims()
	sample := idx[:min(len(idx), splitSamples)]

	col := make([]float64, len(sample))
	means := make([]float64, dim)
	vars := make([]float64, dim)
	for d := 0; d < dim; d++ {
		for i, r := range sample {
			col[i] = f.data.At(r, d)
		}
		means[d], vars[d] = stat.MeanVariance(col, nil)
		if len(col) < 2 {
			vars[d] = 0
		}
	}

	var top []int
	for d := 0; d < dim; d++ {
		i := len(top)
		for i > 0 && vars[top[i-1]] < vars[d] {
			i--
		}
		if i < splitDims {
			top = slices.Insert(top, i, d)
			if len(top) > splitDims {
				top = top[:splitDims]
			}
		}
	}
	return top, means
}

// partition reorders idx so rows with values below split along dim come
// first and returns their count.
func (f *Forest) partition(idx []int, dim int, split float64) int {
	lo := 0
	for i, r := range idx {
		if f.data.At(r, dim) < split {
			idx[lo], idx[i] = idx[i], idx[lo]
			lo++
		}
	}
	return lo
}

// branch is an unexplored subtree. bound is the squared distance from the
// query to the subtree's cell and off holds the per-dimension offsets
// making up bound.
type branch struct {
	node  *node
	bound float64
	off   []float64
}

type branchHeap []branch

func (h branchHeap) Len() int           { return len(h) }
func (h branchHeap) Less(i, j int) bool { return h[i].bound < h[j].bound }
func (h branchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *branchHeap) Push(x any)        { *h = append(*h, x.(branch)) }
func (h *branchHeap) Pop() any {
	old := *h
	b := old[len(old)-1]
	*h = old[:len(old)-1]
	return b
}

// search is the state of one query.
type search struct {
	q       []float64
	checks  int
	checked int
	visited []bool
	best    int
	bestSq  float64
}

func (s *search) exhausted() bool {
	return s.checks > 0 && s.checked >= s.checks
}

// Nearest returns the nearest row found comparing at most checks rows, or
// the exact nearest row when checks <= 0.
func (f *Forest) Nearest(q []float64, checks int) (int, float64) {
	rows, dim := f.data.Dims()
	s := &search{
		q:       q,
		checks:  checks,
		visited: make([]bool, rows),
		best:    -1,
		bestSq:  math.Inf(1),
	}

	h := make(branchHeap, 0, len(f.trees))
	for _, t := range f.trees {
		h = append(h, branch{node: t, off: make([]float64, dim)})
	}
	heap.Init(&h)

	for h.Len() > 0 && !s.exhausted() {
		b := heap.Pop(&h).(branch)
		if b.bound >= s.bestSq {
			break
		}
		f.descend(b, s, &h)
	}
	return s.best, math.Sqrt(s.bestSq)
}

// descend follows b to the leaf on the query's side of every split,
// queueing the other sides, and compares the leaf rows.
func (f *Forest) descend(b branch, s *search, h *branchHeap) {
	n := b.node
	for n.rows == nil {
		diff := s.q[n.dim] - n.split
		near, far := n.left, n.right
		if diff >= 0 {
			near, far = n.right, n.left
		}

		old := b.off[n.dim]
		bound := b.bound - old*old + diff*diff
		if bound < s.bestSq {
			off := slices.Clone(b.off)
			off[n.dim] = math.Abs(diff)
			heap.Push(h, branch{node: far, bound: bound, off: off})
		}
		n = near
	}

	for _, r := range n.rows {
		if s.visited[r] {
			continue
		}
		s.visited[r] = true
		s.checked++
		d := floats.Distance(f.data.RawRowView(r), s.q, 2)
		if d*d < s.bestSq {
			s.best, s.bestSq = r, d*d
		}
	}
}
