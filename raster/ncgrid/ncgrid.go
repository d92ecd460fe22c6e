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

// Package ncgrid reads gridded NetCDF files, in either the classic or the
// NetCDF-4 (HDF5) encoding, into raster grids. Importing it registers the
// reader for the "nc" and "nc4" file extensions.
package ncgrid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/arclim/raster"
)

func init() {
	raster.Register("nc", Reader{})
	raster.Register("nc4", Reader{})
}

var (
	yNames = map[string]bool{"y": true, "lat": true, "latitude": true}
	xNames = map[string]bool{"x": true, "lon": true, "longitude": true}
)

// Reader reads NetCDF grids.
type Reader struct {
	// Variable is the name of the data variable to read. If empty, the
	// first variable whose last two dimensions are y and x is used.
	Variable string
}

// Read reads the data variable of the file at path.
func (r Reader) Read(path string) (*raster.Grid, error) {
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v := r.Variable
	if v == "" {
		if v, err = findDataVariable(src); err != nil {
			return nil, fmt.Errorf("%w in %s", err, path)
		}
	}
	dims := src.dims(v)
	lengths := src.lengths(v)
	if len(dims) < 2 || len(dims) != len(lengths) {
		return nil, fmt.Errorf("ncgrid: variable %s in %s is not gridded (dimensions %v)", v, path, dims)
	}
	ny, nx := lengths[len(lengths)-2], lengths[len(lengths)-1]
	nBands := 1
	for _, l := range lengths[:len(lengths)-2] {
		nBands *= l
	}

	x, err := coordinate(src, dims[len(dims)-1], nx)
	if err != nil {
		return nil, err
	}
	y, err := coordinate(src, dims[len(dims)-2], ny)
	if err != nil {
		return nil, err
	}

	g := raster.NewGrid(nBands, nx, ny, raster.TransformFromCenters(x, y))
	g.Name = filepath.Base(path)
	g.X, g.Y = x, y
	if len(dims) == 3 {
		if bands, err := src.values(dims[0]); err == nil && len(bands) == nBands {
			for i, b := range bands {
				g.Band[i] = int(b)
			}
		}
	}

	data, err := src.values(v)
	if err != nil {
		return nil, err
	}
	if len(data) != len(g.Data.Elements) {
		return nil, fmt.Errorf("ncgrid: variable %s in %s has %d values; expected %d", v, path, len(data), len(g.Data.Elements))
	}
	copy(g.Data.Elements, data)

	for _, name := range []string{"_FillValue", "missing_value"} {
		if f, ok := floatAttr(src, v, name); ok {
			g.NoData, g.HasNoData = f, true
			break
		}
	}
	g.CRS = crs(src, v)
	for _, a := range src.attrNames(v) {
		if s, ok := stringAttr(src, v, a); ok {
			g.Attrs[a] = s
		}
	}
	g.Attrs["variable"] = v
	return g, nil
}

// findDataVariable returns the first variable whose last two dimensions
// are a y and an x dimension.
func findDataVariable(src source) (string, error) {
	for _, v := range src.variables() {
		d := src.dims(v)
		if len(d) < 2 {
			continue
		}
		if yNames[strings.ToLower(d[len(d)-2])] && xNames[strings.ToLower(d[len(d)-1])] {
			return v, nil
		}
	}
	return "", fmt.Errorf("ncgrid: no variable with (y, x) dimensions")
}

// coordinate returns the values of the coordinate variable for dimension
// dim, or the cell indices if there is no such variable.
func coordinate(src source, dim string, n int) ([]float64, error) {
	for _, v := range src.variables() {
		if v != dim {
			continue
		}
		c, err := src.values(v)
		if err != nil {
			return nil, err
		}
		if len(c) != n {
			return nil, fmt.Errorf("ncgrid: coordinate %s has %d values; expected %d", dim, len(c), n)
		}
		return c, nil
	}
	c := make([]float64, n)
	for i := range c {
		c[i] = float64(i)
	}
	return c, nil
}

// crs returns the spatial reference of variable v, from the global
// "crs_wkt" attribute or from the grid mapping variable.
func crs(src source, v string) string {
	if s, ok := stringAttr(src, "", "crs_wkt"); ok {
		return s
	}
	mappings := []string{"spatial_ref", "crs"}
	if gm, ok := stringAttr(src, v, "grid_mapping"); ok {
		mappings = append([]string{gm}, mappings...)
	}
	vars := make(map[string]bool)
	for _, name := range src.variables() {
		vars[name] = true
	}
	for _, m := range mappings {
		if !vars[m] {
			continue
		}
		for _, a := range []string{"crs_wkt", "spatial_ref"} {
			if s, ok := stringAttr(src, m, a); ok {
				return s
			}
		}
	}
	return ""
}

func stringAttr(src source, v, a string) (string, bool) {
	val, ok := src.attr(v, a)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return strings.TrimRight(s, "\x00"), ok
}

func floatAttr(src source, v, a string) (float64, bool) {
	val, ok := src.attr(v, a)
	if !ok {
		return 0, false
	}
	if _, isString := val.(string); isString {
		return 0, false
	}
	f, err := toFloats(val)
	if err != nil || len(f) == 0 {
		return 0, false
	}
	return f[0], true
}
