/*
DESCRIPTION
  locate_test.go provides testing of the pose pipeline.

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

package locate

import (
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ausocean/fieldpose/pi/camera"
	"github.com/ausocean/fieldpose/pi/homography"
	"github.com/ausocean/fieldpose/pi/refine"
	"github.com/ausocean/fieldpose/pi/render"
	"github.com/ausocean/fieldpose/pi/retrieval"
	"github.com/ausocean/fieldpose/pi/template"
)

const (
	width, height = 120, 90
	lineWidth     = 2
)

var feature = []float64{1, 2, 3}

// square returns the outline of the unit square.
func square(t *testing.T) *template.Template {
	tmpl, err := template.New(
		[]r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		[][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		1, 1,
	)
	if err != nil {
		t.Fatalf("could not create template: %v", err)
	}
	return tmpl
}

// above returns a camera 2 units above the centre of the unit square. With
// focal length 100 the square is 50 pixels wide, centred on pp.
func above(pp r2.Vec) camera.Camera {
	return camera.Camera{
		FocalLength: 100,
		Principal:   pp,
		Rotation:    r3.Vec{X: math.Pi},
		Center:      r3.Vec{X: 0.5, Y: 0.5, Z: 2},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = width, height
	cfg.LineWidth = lineWidth
	cfg.Checks = 0
	cfg.Refine.Stride = 1
	cfg.Refine.Ceiling = 20
	return cfg
}

func newLocator(t *testing.T, cams []camera.Camera, opts ...Option) *Locator {
	rows := make([]retrieval.Row, len(cams))
	for i, c := range cams {
		rows[i] = retrieval.Row{Feature: []float64{float64(i) + 1, 2, 3}, Camera: c}
	}
	db, err := retrieval.Build(rows, retrieval.WithLogger((*logging.TestLogger)(t)))
	if err != nil {
		t.Fatalf("could not build database: %v", err)
	}
	l, err := New(db, square(t), testConfig(), (*logging.TestLogger)(t), opts...)
	if err != nil {
		t.Fatalf("could not create locator: %v", err)
	}
	return l
}

func observe(t *testing.T, c camera.Camera) *image.Gray {
	img, err := render.RenderEdgeMap(c, square(t), width, height, lineWidth)
	if err != nil {
		t.Fatalf("could not render observation: %v", err)
	}
	return img
}

func near(a, b r2.Vec, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps
}

// corners are the normalised template corners and centre.
var corners = []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0.5, Y: 0.5}}

func TestLocateExact(t *testing.T) {
	cam := above(r2.Vec{X: 60, Y: 45})
	l := newLocator(t, []camera.Camera{cam})

	res, err := l.Locate(observe(t, cam), feature)
	if err != nil {
		t.Fatalf("could not locate: %v", err)
	}
	if res.Row != 0 || res.FeatureDistance != 0 || res.Camera != cam {
		t.Errorf("did not retrieve expected row. Got: %d at %v", res.Row, res.FeatureDistance)
	}
	if !res.Correction.EqualApprox(homography.Identity(), 1e-6) {
		t.Errorf("did not get identity correction. Got:\n%v", res.Correction)
	}
	if !res.Final.EqualApprox(res.Retrieved, 1e-6) {
		t.Errorf("final homography differs from retrieved. Got:\n%v\nWant:\n%v", res.Final, res.Retrieved)
	}
	if res.Rendered.Bounds().Dx() != width || res.Observed.Bounds().Dy() != height {
		t.Errorf("did not get canonical edge maps. Got: %v, %v", res.Rendered.Bounds(), res.Observed.Bounds())
	}

	want := []r2.Vec{{X: 35, Y: 70}, {X: 85, Y: 70}, {X: 85, Y: 20}, {X: 35, Y: 20}, {X: 60, Y: 45}}
	for i, p := range corners {
		got, err := res.Final.Apply(p)
		if err != nil {
			t.Fatalf("could not apply final homography: %v", err)
		}
		if !near(got, want[i], 1e-6) {
			t.Errorf("did not get expected image of %v. Got: %v, Want: %v", p, got, want[i])
		}
	}
}

// TestLocateShifted observes the square from a camera whose principal point
// differs from the database camera and checks the refined homography maps
// the template onto the observation.
func TestLocateShifted(t *testing.T) {
	db := above(r2.Vec{X: 60, Y: 45})
	truth := above(r2.Vec{X: 62, Y: 46})
	l := newLocator(t, []camera.Camera{db})

	res, err := l.Locate(observe(t, truth), feature)
	if err != nil {
		t.Fatalf("could not locate: %v", err)
	}
	if !(res.Refinement.Cost < res.Refinement.InitialCost) {
		t.Errorf("refinement did not improve. Got: %v, initial: %v", res.Refinement.Cost, res.Refinement.InitialCost)
	}

	want, err := truth.PlaneHomography(1, 1)
	if err != nil {
		t.Fatalf("could not derive true homography: %v", err)
	}
	for _, p := range corners {
		got, err := res.Final.Apply(p)
		if err != nil {
			t.Fatalf("could not apply final homography: %v", err)
		}
		w, _ := want.Apply(p)
		if !near(got, w, 0.5) {
			t.Errorf("did not locate %v. Got: %v, Want: %v", p, got, w)
		}

		// Final is the correction applied after the retrieved mapping.
		r, _ := res.Retrieved.Apply(p)
		c, _ := res.Correction.Apply(r)
		if !near(got, c, 1e-6) {
			t.Errorf("final homography is not the composition at %v. Got: %v, Want: %v", p, got, c)
		}
	}

	inv, err := res.Inverse()
	if err != nil {
		t.Fatalf("could not invert: %v", err)
	}
	for _, p := range corners {
		q, _ := res.Final.Apply(p)
		back, err := inv.Apply(q)
		if err != nil {
			t.Fatalf("could not apply inverse: %v", err)
		}
		if !near(back, p, 1e-9) {
			t.Errorf("inverse did not round trip %v. Got: %v", p, back)
		}
	}

	dir := t.TempDir()
	err = PlotConvergence(dir, res.Refinement)
	if err != nil {
		t.Fatalf("could not plot convergence: %v", err)
	}
	for _, name := range []string{CostPlot, ConvergencePlot} {
		_, err := os.Stat(filepath.Join(dir, name+".png"))
		if err != nil {
			t.Errorf("did not write %s plot: %v", name, err)
		}
	}
}

// TestLocateNearest checks the nearest feature row is the one refined.
func TestLocateNearest(t *testing.T) {
	cams := []camera.Camera{above(r2.Vec{X: 40, Y: 40}), above(r2.Vec{X: 60, Y: 45}), above(r2.Vec{X: 80, Y: 50})}
	l := newLocator(t, cams)

	res, err := l.Locate(observe(t, cams[1]), []float64{2.1, 2, 3})
	if err != nil {
		t.Fatalf("could not locate: %v", err)
	}
	if res.Row != 1 || math.Abs(res.FeatureDistance-0.1) > 1e-9 {
		t.Errorf("did not retrieve expected row. Got: %d at %v", res.Row, res.FeatureDistance)
	}
}

type fixedAligner struct {
	calls int
	res   refine.Result
}

func (a *fixedAligner) Align(ref, tgt *render.DistanceMap) (*refine.Result, error) {
	a.calls++
	res := a.res
	return &res, nil
}

func TestLocateWarning(t *testing.T) {
	a := &fixedAligner{res: refine.Result{
		Transform: homography.Translation(3, -1),
		Warning:   refine.ErrNotConverged,
	}}
	cam := above(r2.Vec{X: 60, Y: 45})
	l := newLocator(t, []camera.Camera{cam}, WithAligner(a))

	res, err := l.Locate(observe(t, cam), feature)
	if err != nil {
		t.Fatalf("unexpected error for unconverged refinement: %v", err)
	}
	if a.calls != 1 {
		t.Errorf("did not call aligner once. Got: %d", a.calls)
	}
	if !errors.Is(res.Refinement.Warning, refine.ErrNotConverged) {
		t.Errorf("did not get expected warning. Got: %v", res.Refinement.Warning)
	}
	got, _ := res.Final.Apply(r2.Vec{X: 0.5, Y: 0.5})
	if !near(got, r2.Vec{X: 63, Y: 44}, 1e-9) {
		t.Errorf("did not apply correction. Got: %v", got)
	}
}

func TestLocateErrors(t *testing.T) {
	cam := above(r2.Vec{X: 60, Y: 45})
	obs := observe(t, cam)

	empty, err := retrieval.Build(nil)
	if err != nil {
		t.Fatalf("could not build empty database: %v", err)
	}
	l, err := New(empty, square(t), testConfig(), (*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create locator: %v", err)
	}
	_, err = l.Locate(obs, feature)
	if !errors.Is(err, retrieval.ErrEmptyDatabase) {
		t.Errorf("did not get expected error for empty database. Got: %v", err)
	}

	_, err = newLocator(t, []camera.Camera{cam}).Locate(obs, []float64{1, 2})
	if !errors.Is(err, retrieval.ErrDimension) {
		t.Errorf("did not get expected error for feature dimension. Got: %v", err)
	}

	flat := cam
	flat.Center.Z = 0
	_, err = newLocator(t, []camera.Camera{flat}).Locate(obs, feature)
	if !errors.Is(err, homography.ErrDegenerate) {
		t.Errorf("did not get expected error for camera on plane. Got: %v", err)
	}

	db, _ := retrieval.Build([]retrieval.Row{{Feature: feature, Camera: cam}})
	bad := testConfig()
	bad.Width = 0
	_, err = New(db, square(t), bad, (*logging.TestLogger)(t))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("did not get expected error for bad config. Got: %v", err)
	}
	bad = testConfig()
	bad.Refine.Stride = 0
	_, err = New(db, square(t), bad, (*logging.TestLogger)(t))
	if !errors.Is(err, refine.ErrInvalidConfig) || !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("did not get expected error for bad refine config. Got: %v", err)
	}
	_, err = New(nil, square(t), testConfig(), (*logging.TestLogger)(t))
	if err == nil {
		t.Errorf("expected error for nil database")
	}
	_, err = New(db, square(t), testConfig(), nil)
	if err == nil {
		t.Errorf("expected error for nil logger")
	}
}

func TestPlotConvergenceEmpty(t *testing.T) {
	err := PlotConvergence(t.TempDir(), &refine.Result{Trace: refine.NewTrace(0)})
	if err == nil {
		t.Errorf("expected error for empty trace")
	}
}

func TestNormalize(t *testing.T) {
	got := normalize([]float64{2, 4, 3})
	want := []float64{0, 1, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("did not get expected normalised values. Got: %v, Want: %v", got, want)
			break
		}
	}
	for _, v := range normalize([]float64{5, 5}) {
		if v != 0 {
			t.Errorf("did not get zeros for constant input. Got: %v", v)
		}
	}
}

// TestLocateTwoSegments locates the unit square drawn with only its bottom
// and top edges against its own rendering.
func TestLocateTwoSegments(t *testing.T) {
	tmpl, err := template.New(
		[]r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		[][2]int{{0, 1}, {2, 3}},
		1, 1,
	)
	if err != nil {
		t.Fatalf("could not create template: %v", err)
	}
	cam := above(r2.Vec{X: 60, Y: 45})
	db, err := retrieval.Build([]retrieval.Row{{Feature: feature, Camera: cam}})
	if err != nil {
		t.Fatalf("could not build database: %v", err)
	}
	l, err := New(db, tmpl, testConfig(), (*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create locator: %v", err)
	}

	obs, err := render.RenderEdgeMap(cam, tmpl, width, height, lineWidth)
	if err != nil {
		t.Fatalf("could not render observation: %v", err)
	}
	res, err := l.Locate(obs, feature)
	if err != nil {
		t.Fatalf("could not locate: %v", err)
	}

	quad := make([]r2.Vec, 4)
	for i := range quad {
		quad[i], err = res.Retrieved.Apply(corners[i])
		if err != nil {
			t.Fatalf("could not apply retrieved homography: %v", err)
		}
	}
	if !convex(quad) {
		t.Errorf("retrieved corners do not form a simple quadrilateral. Got: %v", quad)
	}
	if !res.Correction.EqualApprox(homography.Identity(), 1e-6) {
		t.Errorf("did not get identity correction. Got:\n%v", res.Correction)
	}
}

// convex reports whether q is a strictly convex polygon, which for four
// points implies it does not self-intersect.
func convex(q []r2.Vec) bool {
	var sign float64
	for i := range q {
		a, b, c := q[i], q[(i+1)%len(q)], q[(i+2)%len(q)]
		z := r2.Cross(r2.Sub(b, a), r2.Sub(c, b))
		if z == 0 || sign*z < 0 {
			return false
		}
		sign = z
	}
	return true
}
