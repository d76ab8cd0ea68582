/*
DESCRIPTION
  dataset.go provides reading and writing of feature databases, query
  feature vectors and edge map images.

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

// Package dataset reads and writes the data consumed by the pose pipeline.
//
// A database is CSV with one row per camera: the nine camera parameters
// u, v, f, rx, ry, rz, cx, cy, cz followed by the feature vector. Lines
// starting with # are comments.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/ausocean/fieldpose/pi/camera"
	"github.com/ausocean/fieldpose/pi/retrieval"
)

// ErrFormat is returned for malformed input.
var ErrFormat = errors.New("malformed data")

// ReadDatabase reads database rows from r.
func ReadDatabase(r io.Reader) ([]retrieval.Row, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var rows []retrieval.Row
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("could not read record %d: %w", line, err)
		}
		if len(rec) <= camera.NParams {
			return nil, fmt.Errorf("record %d has %d fields, need more than %d: %w", line, len(rec), camera.NParams, ErrFormat)
		}

		vals, err := parseFloats(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		cam, err := camera.FromParams(vals[:camera.NParams])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		rows = append(rows, retrieval.Row{Feature: vals[camera.NParams:], Camera: cam})
	}
}

// WriteDatabase writes rows to w in the format read by ReadDatabase.
func WriteDatabase(w io.Writer, rows []retrieval.Row) error {
	cw := csv.NewWriter(w)
	for i, r := range rows {
		vals := append(r.Camera.Params(), r.Feature...)
		rec := make([]string, len(vals))
		for j, v := range vals {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		err := cw.Write(rec)
		if err != nil {
			return fmt.Errorf("could not write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFeature reads a single feature vector of comma or white space
// separated values.
func ReadFeature(r io.Reader) ([]float64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read feature: %w", err)
	}
	fields := strings.FieldsFunc(string(b), func(c rune) bool {
		return c == ',' || unicode.IsSpace(c)
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty feature: %w", ErrFormat)
	}
	return parseFloats(fields)
}

func parseFloats(fields []string) ([]float64, error) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %v: %w", i, err, ErrFormat)
		}
		vals[i] = v
	}
	return vals, nil
}

// ReadImage decodes the PNG, JPEG, GIF, BMP or TIFF image at path.
func ReadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode image %s: %w", path, err)
	}
	return img, nil
}

// WritePNG encodes img as PNG to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create image file: %w", err)
	}
	err = png.Encode(f, img)
	if err != nil {
		f.Close()
		return fmt.Errorf("could not encode %s: %w", path, err)
	}
	return f.Close()
}
