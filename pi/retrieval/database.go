/*
DESCRIPTION
  database.go provides the feature database: feature vectors aligned with
  the cameras that produced them, and nearest neighbour lookup over a
  pluggable index.

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

// Package retrieval provides a database of feature vectors paired with
// camera poses and approximate nearest neighbour lookup of the pose whose
// feature is closest to a query.
package retrieval

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/fieldpose/pi/camera"
)

var (
	// ErrEmptyDatabase is returned when querying a database with no rows.
	ErrEmptyDatabase = errors.New("empty database")

	// ErrDimension is returned for features whose length differs from the
	// database feature length.
	ErrDimension = errors.New("feature dimension mismatch")

	// ErrInvalidFeature is returned for features with non-finite values.
	ErrInvalidFeature = errors.New("invalid feature")
)

// Defaults.
const (
	DefaultTrees  = 8
	DefaultChecks = 64
)

// Row is one database entry.
type Row struct {
	Feature []float64
	Camera  camera.Camera
}

// Index finds the row nearest to a query. checks bounds the number of
// rows compared; checks <= 0 means no bound. Implementations must be safe
// for concurrent use once built.
type Index interface {
	Nearest(q []float64, checks int) (row int, dist float64)
}

// IndexKind selects the Index built by Build.
type IndexKind int

// Index kinds.
const (
	ForestIndex IndexKind = iota
	KDTreeIndex
	LinearIndex
)

var kindNames = [...]string{ForestIndex: "forest", KDTreeIndex: "kdtree", LinearIndex: "linear"}

func (k IndexKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("IndexKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseIndexKind returns the IndexKind named s.
func ParseIndexKind(s string) (IndexKind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(s, n) {
			return IndexKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown index kind %q", s)
}

// Match is the result of a lookup.
type Match struct {
	Row      int
	Camera   camera.Camera
	Distance float64
}

// Database holds features and cameras aligned by row. It is read only
// after Build and safe for concurrent lookups.
type Database struct {
	features *mat.Dense
	cameras  []camera.Camera
	dim      int
	index    Index

	kind  IndexKind
	trees int
	seed  uint64
	log   logging.Logger
}

// Option is a functional option for Build.
type Option func(*Database) error

// WithIndex selects the index kind. The default is ForestIndex.
func WithIndex(k IndexKind) Option {
	return func(db *Database) error {
		if k < ForestIndex || k > LinearIndex {
			return fmt.Errorf("invalid index kind %d", k)
		}
		db.kind = k
		return nil
	}
}

// WithTrees sets the number of randomised trees of a ForestIndex.
func WithTrees(n int) Option {
	return func(db *Database) error {
		if n < 1 {
			return fmt.Errorf("need at least one tree, got %d", n)
		}
		db.trees = n
		return nil
	}
}

// WithSeed seeds the random split selection of a ForestIndex.
func WithSeed(seed uint64) Option {
	return func(db *Database) error {
		db.seed = seed
		return nil
	}
}

// WithLogger sets the logger used to report index construction.
func WithLogger(log logging.Logger) Option {
	return func(db *Database) error {
		db.log = log
		return nil
	}
}

// Build returns a Database of rows and builds its index. Every feature must
// have the same non-zero length and finite values. Building from no rows
// succeeds; lookups then fail with ErrEmptyDatabase.
func Build(rows []Row, opts ...Option) (*Database, error) {
	db := &Database{kind: ForestIndex, trees: DefaultTrees}
	for i, opt := range opts {
		err := opt(db)
		if err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	if len(rows) == 0 {
		return db, nil
	}

	db.dim = len(rows[0].Feature)
	if db.dim == 0 {
		return nil, fmt.Errorf("row 0 has no feature: %w", ErrDimension)
	}
	db.features = mat.NewDense(len(rows), db.dim, nil)
	db.cameras = make([]camera.Camera, len(rows))
	for i, r := range rows {
		err := db.check(r.Feature)
		if err != nil {
			return nil, fmt.Errorf("invalid row %d: %w", i, err)
		}
		db.features.SetRow(i, r.Feature)
		db.cameras[i] = r.Camera
	}

	start := time.Now()
	var err error
	switch db.kind {
	case ForestIndex:
		db.index, err = NewForest(db.features, db.trees, db.seed)
	case KDTreeIndex:
		db.index = NewKDTree(db.features)
	case LinearIndex:
		db.index = NewLinear(db.features)
	}
	if err != nil {
		return nil, fmt.Errorf("could not build %v index: %w", db.kind, err)
	}
	if db.log != nil {
		db.log.Debug("built feature index", "kind", db.kind.String(), "rows", len(rows), "dim", db.dim, "duration (sec)", time.Since(start).Seconds())
	}
	return db, nil
}

func (db *Database) check(f []float64) error {
	if len(f) != db.dim {
		return fmt.Errorf("length %d, want %d: %w", len(f), db.dim, ErrDimension)
	}
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidFeature
		}
	}
	return nil
}

// Len returns the number of rows.
func (db *Database) Len() int { return len(db.cameras) }

// Dim returns the feature length, or 0 for an empty database.
func (db *Database) Dim() int { return db.dim }

// Kind returns the kind of index in use.
func (db *Database) Kind() IndexKind { return db.kind }

// Row returns a copy of row i.
func (db *Database) Row(i int) Row {
	return Row{
		Feature: mat.Row(nil, i, db.features),
		Camera:  db.cameras[i],
	}
}

// Nearest returns the row whose feature is closest to q in Euclidean
// distance, bounded by checks row comparisons as described for Index.
func (db *Database) Nearest(q []float64, checks int) (Match, error) {
	if db.Len() == 0 {
		return Match{}, ErrEmptyDatabase
	}
	err := db.check(q)
	if err != nil {
		return Match{}, fmt.Errorf("invalid query: %w", err)
	}
	row, dist := db.index.Nearest(q, checks)
	return Match{Row: row, Camera: db.cameras[row], Distance: dist}, nil
}
