/*
Copyright © 2024 the arclim authors.
This file is part of arclim.

arclim is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

arclim is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with arclim.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package rastertest writes small synthetic archives and rasters for tests.
package rastertest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"
)

// LatLonWKT is the WGS 84 geographic coordinate system.
const LatLonWKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

// ZipEntry is a file or, if Name ends in "/", a directory in a zip archive.
type ZipEntry struct {
	Name string
	Data []byte
}

// ZipBytes returns a zip archive holding entries in order.
func ZipBytes(entries []ZipEntry) ([]byte, error) {
	b := new(bytes.Buffer)
	w := zip.NewWriter(b)
	for _, e := range entries {
		f, err := w.Create(e.Name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(e.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteZip writes a zip archive holding entries to path.
func WriteZip(path string, entries []ZipEntry) error {
	b, err := ZipBytes(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Raster describes a band × y × x grid to be written as NetCDF.
type Raster struct {
	X, Y []float64

	// Data holds len(Bands)*len(Y)*len(X) values, band-major then row-major.
	Data []float32

	// Bands holds the band labels. It defaults to a single band labeled 1.
	Bands []int32

	FillValue float32
	HasFill   bool

	// CRS is written as the global "crs_wkt" attribute when not empty.
	CRS string
}

// NetCDF returns the raster encoded as a classic NetCDF file with
// dimensions (band, y, x) and a "band_data" variable.
func (r Raster) NetCDF() ([]byte, error) {
	bands := r.Bands
	if len(bands) == 0 {
		bands = []int32{1}
	}
	if len(r.Data) != len(bands)*len(r.Y)*len(r.X) {
		return nil, fmt.Errorf("rastertest: %d values for shape [%d %d %d]", len(r.Data), len(bands), len(r.Y), len(r.X))
	}

	h := cdf.NewHeader([]string{"band", "y", "x"}, []int{len(bands), len(r.Y), len(r.X)})
	h.AddVariable("band", []string{"band"}, []int32{0})
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddVariable("band_data", []string{"band", "y", "x"}, []float32{0})
	if r.HasFill {
		h.AddAttribute("band_data", "_FillValue", []float32{r.FillValue})
	}
	h.AddAttribute("band_data", "long_name", "synthetic index")
	if r.CRS != "" {
		h.AddAttribute("", "crs_wkt", r.CRS)
	}
	h.Define()

	buf := new(writerAt)
	f, err := cdf.Create(buf, h)
	if err != nil {
		return nil, err
	}
	for name, vals := range map[string]interface{}{
		"band":      bands,
		"y":         r.Y,
		"x":         r.X,
		"band_data": r.Data,
	} {
		// The strider reports io.EOF once the last element is written.
		if _, err := f.Writer(name, nil, nil).Write(vals); err != nil && err != io.EOF {
			return nil, fmt.Errorf("rastertest: writing %s: %v", name, err)
		}
	}
	return buf.b, nil
}

// WriteNetCDF writes the raster to path as classic NetCDF.
func (r Raster) WriteNetCDF(path string) error {
	b, err := r.NetCDF()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// writerAt is an in-memory cdf.ReaderWriterAt.
type writerAt struct {
	b []byte
}

func (w *writerAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(w.b) {
		w.b = append(w.b, make([]byte, end-len(w.b))...)
	}
	return copy(w.b[off:], p), nil
}

func (w *writerAt) ReadAt(p []byte, off int64) (int, error) {
	if int(off) >= len(w.b) {
		return 0, fmt.Errorf("rastertest: read past end")
	}
	n := copy(p, w.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("rastertest: short read")
	}
	return n, nil
}
