/*
DESCRIPTION
  fieldpose estimates the homography between a planar field template and a
  camera image. Given the image's edge map and its feature vector, the
  nearest camera in a feature database is retrieved, its view of the
  template rendered, and the rendering aligned to the edge map.

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

// fieldpose estimates the homography between a planar field template and a
// camera image from the image's edge map and feature vector.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/fieldpose/pi/dataset"
	"github.com/ausocean/fieldpose/pi/homography"
	"github.com/ausocean/fieldpose/pi/locate"
	"github.com/ausocean/fieldpose/pi/retrieval"
	"github.com/ausocean/fieldpose/pi/template"
	"github.com/ausocean/fieldpose/pi/warp"
)

// Logging configuration.
const (
	logMaxSize   = 500 // MB.
	logMaxBackup = 10
	logMaxAge    = 28 // Days.
	logSuppress  = false
)

const defaultRasterScale = 10

// output is the JSON written for a located image.
type output struct {
	Camera      []float64             `json:"camera"`
	Row         int                   `json:"row"`
	Distance    float64               `json:"distance"`
	Retrieved   homography.Homography `json:"retrieved"`
	Correction  homography.Homography `json:"correction"`
	Final       homography.Homography `json:"final"`
	Inverse     homography.Homography `json:"inverse"`
	Cost        float64               `json:"cost"`
	InitialCost float64               `json:"initialCost"`
	Iterations  int                   `json:"iterations"`
	Converged   bool                  `json:"converged"`
	Warning     string                `json:"warning,omitempty"`
}

func main() {
	var (
		logLevel    int
		logPath     string
		configPath  string
		tmplPath    string
		dbPath      string
		edgePath    string
		featurePath string
		outPath     string
		warpSrc     string
		warpOut     string
		plotDir     string
		listVars    bool
	)
	flag.IntVar(&logLevel, "LogLevel", int(logging.Info), "Specifies log level")
	flag.StringVar(&logPath, "log", "fieldpose.log", "Log file path")
	flag.StringVar(&configPath, "config", "", "Config file of name value lines")
	flag.StringVar(&tmplPath, "template", "", "Template JSON file; the soccer field if empty")
	flag.StringVar(&dbPath, "database", "", "Feature database CSV file")
	flag.StringVar(&edgePath, "edge", "", "Observed edge map image")
	flag.StringVar(&featurePath, "feature", "", "Feature vector of the observed image")
	flag.StringVar(&outPath, "out", "", "Output JSON file; standard output if empty")
	flag.StringVar(&warpSrc, "warp-src", "", "Camera image to warp onto the template")
	flag.StringVar(&warpOut, "warp-out", "warped.png", "Warped template view output")
	flag.StringVar(&plotDir, "plots", "", "Directory for convergence plots and edge maps")
	flag.BoolVar(&listVars, "vars", false, "List config variables and exit")
	flag.Parse()

	if listVars {
		m := createVarMap()
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("%s %s\n", n, m[n])
		}
		return
	}

	validLogLevel := true
	if logLevel < int(logging.Debug) || logLevel > int(logging.Fatal) {
		logLevel = int(logging.Info)
		validLogLevel = false
	}
	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(int8(logLevel), io.MultiWriter(fileLog, os.Stderr), logSuppress)
	if !validLogLevel {
		log.Error("invalid log level was defaulted to Info")
	}

	if dbPath == "" || edgePath == "" || featurePath == "" {
		log.Fatal("database, edge and feature paths are required")
	}

	err := run(log, configPath, tmplPath, dbPath, edgePath, featurePath, outPath, warpSrc, warpOut, plotDir)
	if err != nil {
		log.Fatal("could not locate", "error", err.Error())
	}
}

func run(log logging.Logger, configPath, tmplPath, dbPath, edgePath, featurePath, outPath, warpSrc, warpOut, plotDir string) error {
	s, err := readSettings(configPath, log)
	if err != nil {
		return err
	}

	tmpl := template.Soccer()
	if tmplPath != "" {
		tmpl, err = readTemplate(tmplPath)
		if err != nil {
			return err
		}
	}

	f, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	rows, err := dataset.ReadDatabase(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("could not read database: %w", err)
	}
	log.Info("read database", "rows", len(rows))

	f, err = os.Open(featurePath)
	if err != nil {
		return fmt.Errorf("could not open feature: %w", err)
	}
	feature, err := dataset.ReadFeature(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("could not read feature: %w", err)
	}

	edge, err := dataset.ReadImage(edgePath)
	if err != nil {
		return err
	}

	l, err := newLocator(rows, tmpl, s, log)
	if err != nil {
		return err
	}
	res, err := l.Locate(edge, feature)
	if err != nil {
		return err
	}
	log.Info("located image", "row", res.Row, "cost", res.Refinement.Cost, "converged", res.Refinement.Converged)

	err = writeResult(outPath, res)
	if err != nil {
		return err
	}

	if warpSrc != "" {
		err = warpToTemplate(warpSrc, warpOut, res, tmpl, s)
		if err != nil {
			return err
		}
		log.Info("wrote warped image", "path", warpOut)
	}

	if plotDir != "" {
		err = writePlots(plotDir, res)
		if err != nil {
			return err
		}
		log.Info("wrote plots", "dir", plotDir)
	}
	return nil
}

// Uses variables []struct to create a map of name->type format.
func createVarMap() map[string]string {
	m := make(map[string]string, len(variables))
	for _, v := range variables {
		m[v.name] = v.typ
	}
	return m
}

func readTemplate(path string) (*template.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open template: %w", err)
	}
	defer f.Close()
	tmpl, err := template.Load(f)
	if err != nil {
		return nil, fmt.Errorf("could not load template: %w", err)
	}
	return tmpl, nil
}

func writeResult(path string, res *locate.Result) error {
	inv, err := res.Inverse()
	if err != nil {
		return fmt.Errorf("could not invert final homography: %w", err)
	}
	out := output{
		Camera:      res.Camera.Params(),
		Row:         res.Row,
		Distance:    res.FeatureDistance,
		Retrieved:   res.Retrieved,
		Correction:  res.Correction,
		Final:       res.Final,
		Inverse:     inv,
		Cost:        res.Refinement.Cost,
		InitialCost: res.Refinement.InitialCost,
		Iterations:  res.Refinement.Iterations,
		Converged:   res.Refinement.Converged,
	}
	if res.Refinement.Warning != nil {
		out.Warning = res.Refinement.Warning.Error()
	}

	w := io.Writer(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err = enc.Encode(out)
	if err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	return nil
}

// warpToTemplate warps the camera image at src to a raster of the template
// with s.scale pixels per template unit and writes it to dst as PNG.
func warpToTemplate(src, dst string, res *locate.Result, tmpl *template.Template, s settings) error {
	img, err := dataset.ReadImage(src)
	if err != nil {
		return err
	}
	raster := image.Pt(int(tmpl.Width()*s.scale+0.5), int(tmpl.Height()*s.scale+0.5))

	// Camera pixels to canonical pixels, then to template raster pixels.
	b := img.Bounds()
	toCanonical, err := homography.Scale(float64(s.locate.Width)/float64(b.Dx()), float64(s.locate.Height)/float64(b.Dy()))
	if err != nil {
		return fmt.Errorf("could not scale camera image: %w", err)
	}
	toRaster, err := warp.ImageToTemplate(res.Final, raster)
	if err != nil {
		return fmt.Errorf("could not map image to template: %w", err)
	}
	h, err := homography.Compose(toCanonical, toRaster)
	if err != nil {
		return fmt.Errorf("could not compose warp: %w", err)
	}

	out, err := warp.Perspective(img, h, raster)
	if err != nil {
		return fmt.Errorf("could not warp: %w", err)
	}
	return dataset.WritePNG(dst, out)
}

func writePlots(dir string, res *locate.Result) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("could not create plot directory: %w", err)
	}
	if res.Refinement.Trace != nil && res.Refinement.Trace.Len() > 0 {
		err = locate.PlotConvergence(dir, res.Refinement)
		if err != nil {
			return err
		}
	}
	err = dataset.WritePNG(filepath.Join(dir, "rendered.png"), res.Rendered)
	if err != nil {
		return err
	}
	return dataset.WritePNG(filepath.Join(dir, "observed.png"), res.Observed)
}

func newLocator(rows []retrieval.Row, tmpl *template.Template, s settings, log logging.Logger) (*locate.Locator, error) {
	db, err := retrieval.Build(rows, s.dbOptions(log)...)
	if err != nil {
		return nil, fmt.Errorf("could not build database: %w", err)
	}
	return locate.New(db, tmpl, s.locate, log)
}
