/*
DESCRIPTION
  config.go provides the tunable parameters of fieldpose and their update
  from a key/value config file.

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

package main

import (
	"fmt"
	"strconv"

	"github.com/ausocean/utils/filemap"
	"github.com/ausocean/utils/logging"

	"github.com/ausocean/fieldpose/pi/locate"
	"github.com/ausocean/fieldpose/pi/refine"
	"github.com/ausocean/fieldpose/pi/retrieval"
)

// settings holds everything configurable from the config file.
type settings struct {
	locate locate.Config
	index  retrieval.IndexKind
	trees  int
	seed   uint64
	scale  float64 // Template raster pixels per template unit.
}

func defaultSettings() settings {
	return settings{
		locate: locate.DefaultConfig(),
		index:  retrieval.ForestIndex,
		trees:  retrieval.DefaultTrees,
		scale:  defaultRasterScale,
	}
}

// dbOptions returns the database build options for s.
func (s *settings) dbOptions(log logging.Logger) []retrieval.Option {
	return []retrieval.Option{
		retrieval.WithIndex(s.index),
		retrieval.WithTrees(s.trees),
		retrieval.WithSeed(s.seed),
		retrieval.WithLogger(log),
	}
}

func parseInt(name, v string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("could not convert %s variable value to int: %w", name, err)
	}
	return i, nil
}

func parseFloat(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("could not convert %s variable value to float: %w", name, err)
	}
	return f, nil
}

// Information for variables that may be set in the config file.
var variables = []struct {
	name   string
	typ    string
	update func(s *settings, value string) error
}{
	{
		name: "Width",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.locate.Width, err = parseInt("Width", v)
			return err
		},
	},
	{
		name: "Height",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.locate.Height, err = parseInt("Height", v)
			return err
		},
	},
	{
		name: "LineWidth",
		typ:  "float",
		update: func(s *settings, v string) (err error) {
			s.locate.LineWidth, err = parseFloat("LineWidth", v)
			return err
		},
	},
	{
		name: "EdgeThreshold",
		typ:  "uint",
		update: func(s *settings, v string) error {
			t, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return fmt.Errorf("could not convert EdgeThreshold variable value to uint8: %w", err)
			}
			s.locate.EdgeThreshold = uint8(t)
			return nil
		},
	},
	{
		name: "Checks",
		typ:  "int",
		update: func(s *settings, v string) (err error) {
			s.locate.Checks, err = parseInt("Checks", v)
			return err
		},
	},
	{
		name: "Index",
		typ:  "enum:forest,kdtree,linear",
		update: func(s *settings, v string) (err error) {
			s.index, err = retrieval.ParseIndexKind(v)
			return err
		},
	},
	{
		name: "Trees",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.trees, err = parseInt("Trees", v)
			return err
		},
	},
	{
		name: "Seed",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.seed, err = strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("could not convert Seed variable value to uint: %w", err)
			}
			return nil
		},
	},
	{
		name: "Motion",
		typ:  "enum:homography,affine",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.Motion, err = refine.ParseMotion(v)
			return err
		},
	},
	{
		name: "MaxIterations",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.MaxIterations, err = parseInt("MaxIterations", v)
			return err
		},
	},
	{
		name: "Tolerance",
		typ:  "float",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.Tolerance, err = parseFloat("Tolerance", v)
			return err
		},
	},
	{
		name: "DivergenceTolerance",
		typ:  "float",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.DivergenceTolerance, err = parseFloat("DivergenceTolerance", v)
			return err
		},
	},
	{
		name: "Patience",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.Patience, err = parseInt("Patience", v)
			return err
		},
	},
	{
		name: "Stride",
		typ:  "uint",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.Stride, err = parseInt("Stride", v)
			return err
		},
	},
	{
		name: "Ceiling",
		typ:  "float",
		update: func(s *settings, v string) (err error) {
			s.locate.Refine.Ceiling, err = parseFloat("Ceiling", v)
			return err
		},
	},
	{
		name: "RasterScale",
		typ:  "float",
		update: func(s *settings, v string) (err error) {
			s.scale, err = parseFloat("RasterScale", v)
			return err
		},
	},
}

// readSettings returns the default settings updated with the variables in
// the config file at path. Each line of the file holds a name and a value
// separated by a space. Unknown names are logged and ignored.
func readSettings(path string, log logging.Logger) (settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}

	vars, err := filemap.ReadFrom(path, "\n", " ")
	if err != nil {
		return s, fmt.Errorf("could not read config file: %w", err)
	}
	log.Debug("read config", "vars", vars)

	known := make(map[string]bool, len(variables))
	for _, value := range variables {
		known[value.name] = true
		if v, ok := vars[value.name]; ok {
			err := value.update(&s, v)
			if err != nil {
				return s, fmt.Errorf("could not update variable %s: %w", value.name, err)
			}
		}
	}
	for name := range vars {
		if !known[name] {
			log.Warning("unknown config variable", "name", name)
		}
	}

	err = s.locate.Validate()
	if err != nil {
		return s, err
	}
	if s.trees < 1 || !(s.scale > 0) {
		return s, fmt.Errorf("trees %d, raster scale %v: %w", s.trees, s.scale, locate.ErrInvalidConfig)
	}
	return s, nil
}
