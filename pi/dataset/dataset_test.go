/*
DESCRIPTION
  dataset_test.go provides testing of database, feature and image reading.

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

package dataset

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/diff"
	"golang.org/x/image/bmp"

	"github.com/ausocean/fieldpose/pi/camera"
)

const database = `# u, v, f, rx, ry, rz, cx, cy, cz, feature...
640, 360, 3000, 1.5, -0.1, 0.2, 52, -45, 17, 0.25, -1, 3
640, 360, 2500, 1.4, 0, 0.1, 60, -40, 15, 0.5, 0.75, 1e-3
`

func TestDatabaseRoundTrip(t *testing.T) {
	rows, err := ReadDatabase(strings.NewReader(database))
	if err != nil {
		t.Fatalf("could not read database: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("did not get expected number of rows. Got: %d, Want: 2", len(rows))
	}
	if rows[1].Camera.FocalLength != 2500 || rows[1].Feature[2] != 1e-3 || len(rows[0].Feature) != 3 {
		t.Errorf("did not get expected rows: %+v", rows)
	}

	var buf bytes.Buffer
	err = WriteDatabase(&buf, rows)
	if err != nil {
		t.Fatalf("could not write database: %v", err)
	}
	const want = `640,360,3000,1.5,-0.1,0.2,52,-45,17,0.25,-1,3
640,360,2500,1.4,0,0.1,60,-40,15,0.5,0.75,0.001
`
	if got := buf.String(); got != want {
		t.Errorf("did not get expected database:\n%v", diff.LineDiff(want, got))
	}

	again, err := ReadDatabase(&buf)
	if err != nil {
		t.Fatalf("could not read written database: %v", err)
	}
	for i := range rows {
		if again[i].Camera != rows[i].Camera {
			t.Errorf("camera %d changed. Got: %+v, Want: %+v", i, again[i].Camera, rows[i].Camera)
		}
	}
}

func TestReadDatabaseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "short", in: "1,2,3,4,5,6,7,8,9\n", want: ErrFormat},
		{name: "number", in: "640,360,3000,0,0,0,0,0,10,x\n", want: ErrFormat},
		{name: "focal", in: "640,360,0,0,0,0,0,0,10,1\n", want: camera.ErrInvalidFocalLength},
	}
	for _, test := range tests {
		_, err := ReadDatabase(strings.NewReader(test.in))
		if !errors.Is(err, test.want) {
			t.Errorf("did not get expected error for %s. Got: %v, Want: %v", test.name, err, test.want)
		}
	}

	_, err := ReadDatabase(strings.NewReader("640,360,3000,0,0,0,0,0,10,1\n640,360,3000,0,0,0,0,0,10,1,2\n"))
	if err == nil {
		t.Errorf("expected error for ragged rows")
	}

	rows, err := ReadDatabase(strings.NewReader("# nothing\n"))
	if err != nil || len(rows) != 0 {
		t.Errorf("did not get empty database. Got: %v, %v", rows, err)
	}
}

func TestReadFeature(t *testing.T) {
	tests := []struct {
		in   string
		want []float64
	}{
		{in: "1,2,3", want: []float64{1, 2, 3}},
		{in: "1 2\t3\n", want: []float64{1, 2, 3}},
		{in: " 0.5,\n-2 ,1e2 ", want: []float64{0.5, -2, 100}},
	}
	for i, test := range tests {
		got, err := ReadFeature(strings.NewReader(test.in))
		if err != nil {
			t.Fatalf("could not read feature for test: %d: %v", i, err)
		}
		if len(got) != len(test.want) {
			t.Fatalf("did not get expected length for test: %d. Got: %v, Want: %v", i, got, test.want)
		}
		for j := range got {
			if got[j] != test.want[j] {
				t.Errorf("did not get expected value for test: %d. Got: %v, Want: %v", i, got, test.want)
				break
			}
		}
	}

	for _, in := range []string{"", " \n", "1,x"} {
		_, err := ReadFeature(strings.NewReader(in))
		if !errors.Is(err, ErrFormat) {
			t.Errorf("did not get expected error for %q. Got: %v", in, err)
		}
	}
}

func TestImages(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	img.Pix[5] = 255

	pngPath := filepath.Join(dir, "edge.png")
	err := WritePNG(pngPath, img)
	if err != nil {
		t.Fatalf("could not write png: %v", err)
	}

	bmpPath := filepath.Join(dir, "edge.bmp")
	f, err := os.Create(bmpPath)
	if err != nil {
		t.Fatalf("could not create bmp: %v", err)
	}
	err = bmp.Encode(f, img)
	f.Close()
	if err != nil {
		t.Fatalf("could not encode bmp: %v", err)
	}

	for _, path := range []string{pngPath, bmpPath} {
		got, err := ReadImage(path)
		if err != nil {
			t.Fatalf("could not read %s: %v", path, err)
		}
		if got.Bounds() != img.Bounds() {
			t.Errorf("did not get expected bounds for %s. Got: %v", path, got.Bounds())
		}
		r, _, _, _ := got.At(5, 0).RGBA()
		if r>>8 != 255 {
			t.Errorf("did not get edge pixel back from %s. Got: %d", path, r>>8)
		}
	}

	_, err = ReadImage(filepath.Join(dir, "missing.png"))
	if err == nil {
		t.Errorf("expected error for missing image")
	}
}
