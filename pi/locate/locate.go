/*
DESCRIPTION
  locate.go provides the Locator, which recovers the homography between a
  planar template and an observed edge map by retrieving the nearest
  database camera and refining its rendering against the observation.

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

// Package locate recovers the pose of a camera relative to a planar
// template from a single edge map and its feature vector.
package locate

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/fieldpose/pi/camera"
	"github.com/ausocean/fieldpose/pi/homography"
	"github.com/ausocean/fieldpose/pi/refine"
	"github.com/ausocean/fieldpose/pi/render"
	"github.com/ausocean/fieldpose/pi/retrieval"
	"github.com/ausocean/fieldpose/pi/template"
)

// Defaults.
const (
	DefaultWidth         = 1280
	DefaultHeight        = 720
	DefaultLineWidth     = 2
	DefaultEdgeThreshold = 10
)

// ErrInvalidConfig is returned for out of range configuration.
var ErrInvalidConfig = errors.New("invalid locator config")

// Config holds Locator parameters. Database cameras are expressed at the
// Width by Height canonical resolution.
type Config struct {
	Width, Height int
	LineWidth     float64
	EdgeThreshold uint8 // Observed pixels brighter than this are edges.
	Checks        int   // Retrieval comparison budget; <= 0 is exhaustive.
	Refine        refine.Config
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		LineWidth:     DefaultLineWidth,
		EdgeThreshold: DefaultEdgeThreshold,
		Checks:        retrieval.DefaultChecks,
		Refine:        refine.DefaultConfig(),
	}
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution %dx%d: %w", c.Width, c.Height, ErrInvalidConfig)
	}
	if !(c.LineWidth > 0) {
		return fmt.Errorf("line width %v: %w", c.LineWidth, ErrInvalidConfig)
	}
	err := c.Refine.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Result holds the outcome of a Locate call.
type Result struct {
	Camera          camera.Camera // Retrieved camera.
	Row             int           // Database row of the retrieved camera.
	FeatureDistance float64

	// Retrieved maps normalised template coordinates to pixels of the
	// retrieved camera. Correction maps those pixels to observed pixels
	// and Final is their composition.
	Retrieved  homography.Homography
	Correction homography.Homography
	Final      homography.Homography

	Refinement *refine.Result
	Rendered   *image.Gray // Edge map of the retrieved camera.
	Observed   *image.Gray // Observed edge map at the canonical resolution.
}

// Inverse returns the mapping from observed image pixels to normalised
// template coordinates.
func (r *Result) Inverse() (homography.Homography, error) {
	return r.Final.Inverse()
}

// Locator runs the pose pipeline against a fixed database and template.
// It holds no per-query state and is safe for concurrent use when its
// Aligner is.
type Locator struct {
	db      *retrieval.Database
	tmpl    *template.Template
	cfg     Config
	log     logging.Logger
	aligner refine.Aligner
}

// Option is a functional option for New.
type Option func(*Locator) error

// WithAligner replaces the default Gauss-Newton refiner.
func WithAligner(a refine.Aligner) Option {
	return func(l *Locator) error {
		if a == nil {
			return errors.New("nil aligner")
		}
		l.aligner = a
		return nil
	}
}

// New returns a Locator.
func New(db *retrieval.Database, tmpl *template.Template, cfg Config, log logging.Logger, opts ...Option) (*Locator, error) {
	if db == nil || tmpl == nil || log == nil {
		return nil, errors.New("locator needs a database, a template and a logger")
	}
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	l := &Locator{db: db, tmpl: tmpl, cfg: cfg, log: log}
	for i, opt := range opts {
		err := opt(l)
		if err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	if l.aligner == nil {
		l.aligner, err = refine.New(cfg.Refine)
		if err != nil {
			return nil, fmt.Errorf("could not create refiner: %w", err)
		}
	}
	return l, nil
}

// Locate returns the homography from the template to the observed edge
// map, given the feature vector extracted from it. Retrieval, homography
// and rendering failures are returned as errors; refinement that does not
// converge is logged and reported in Result.Refinement.Warning.
func (l *Locator) Locate(edge image.Image, feature []float64) (*Result, error) {
	timer := time.Now()
	m, err := l.db.Nearest(feature, l.cfg.Checks)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve camera: %w", err)
	}
	l.log.Debug("retrieved camera", "row", m.Row, "distance", m.Distance, "duration (sec)", time.Since(timer).Seconds())

	res := &Result{Camera: m.Camera, Row: m.Row, FeatureDistance: m.Distance}
	res.Retrieved, err = m.Camera.PlaneHomography(l.tmpl.Width(), l.tmpl.Height())
	if err != nil {
		return nil, fmt.Errorf("could not derive homography of row %d: %w", m.Row, err)
	}

	timer = time.Now()
	res.Rendered, err = render.RenderEdgeMap(m.Camera, l.tmpl, l.cfg.Width, l.cfg.Height, l.cfg.LineWidth)
	if err != nil {
		return nil, fmt.Errorf("could not render row %d: %w", m.Row, err)
	}
	res.Observed = render.Canonical(edge, l.cfg.Width, l.cfg.Height)
	ref := render.DistanceTransform(res.Rendered)
	tgt := render.DistanceTransformThreshold(res.Observed, l.cfg.EdgeThreshold)
	l.log.Debug("computed distance maps", "duration (sec)", time.Since(timer).Seconds())

	timer = time.Now()
	res.Refinement, err = l.aligner.Align(ref, tgt)
	if err != nil {
		return nil, fmt.Errorf("could not refine: %w", err)
	}
	l.log.Debug("refined homography",
		"iterations", res.Refinement.Iterations,
		"initial cost", res.Refinement.InitialCost,
		"cost", res.Refinement.Cost,
		"duration (sec)", time.Since(timer).Seconds(),
	)
	if res.Refinement.Warning != nil {
		l.log.Warning("refinement incomplete, using best transform found", "warning", res.Refinement.Warning.Error())
	}

	res.Correction = res.Refinement.Transform
	res.Final, err = homography.Compose(res.Retrieved, res.Correction)
	if err != nil {
		return nil, fmt.Errorf("could not compose homographies: %w", err)
	}
	return res, nil
}
