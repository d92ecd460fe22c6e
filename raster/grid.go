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

// Package raster holds the labeled grid type returned for climate index
// layers and dispatches file parsing to format-specific readers.
//
// Readers register themselves for file extensions, in the same way image
// decoders do, so a program imports the formats it needs:
//
//	import _ "github.com/spatialmodel/arclim/raster/gtiff"
package raster

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Dimension names of a Grid, outermost first.
const (
	DimBand = "band"
	DimY    = "y"
	DimX    = "x"
)

// Grid is a band × y × x array of values with coordinate labels on each
// axis and the spatial reference of the x and y coordinates.
type Grid struct {
	// Name is the name of the layer, typically the source file name.
	Name string

	// Dims names the axes of Data, outermost first.
	Dims [3]string

	// Band, Y and X are the coordinate labels. Y and X hold pixel centres.
	Band []int
	Y, X []float64

	// Data holds the values, with Shape [len(Band), len(Y), len(X)].
	Data *sparse.DenseArray

	// NoData is the value marking missing cells, if HasNoData is true.
	NoData    float64
	HasNoData bool

	// Transform is the affine transform from pixel to spatial coordinates,
	// in GDAL order: x0, dx/dcol, dx/drow, y0, dy/dcol, dy/drow.
	Transform [6]float64

	// CRS is the spatial reference in WKT or PROJ.4 form, or empty if
	// the file does not declare one.
	CRS string

	// Attrs holds file metadata.
	Attrs map[string]string
}

// NewGrid returns a zero-filled grid with the given number of bands and
// columns and rows, with coordinate labels derived from transform.
func NewGrid(nBands, nx, ny int, transform [6]float64) *Grid {
	g := &Grid{
		Dims:      [3]string{DimBand, DimY, DimX},
		Band:      make([]int, nBands),
		X:         make([]float64, nx),
		Y:         make([]float64, ny),
		Data:      sparse.ZerosDense(nBands, ny, nx),
		Transform: transform,
		Attrs:     make(map[string]string),
	}
	for i := range g.Band {
		g.Band[i] = i + 1
	}
	for i := range g.X {
		g.X[i] = transform[0] + (float64(i)+0.5)*transform[1]
	}
	for j := range g.Y {
		g.Y[j] = transform[3] + (float64(j)+0.5)*transform[5]
	}
	return g
}

// TransformFromCenters returns the affine transform of a regular grid
// whose pixel centres are x and y. Axes of length one are given a unit
// cell size.
func TransformFromCenters(x, y []float64) [6]float64 {
	dx, dy := 1.0, 1.0
	if len(x) > 1 {
		dx = (x[len(x)-1] - x[0]) / float64(len(x)-1)
	}
	if len(y) > 1 {
		dy = (y[len(y)-1] - y[0]) / float64(len(y)-1)
	}
	var x0, y0 float64
	if len(x) > 0 {
		x0 = x[0]
	}
	if len(y) > 0 {
		y0 = y[0]
	}
	return [6]float64{x0 - dx/2, dx, 0, y0 - dy/2, 0, dy}
}

// Shape returns the lengths of the band, y and x axes.
func (g *Grid) Shape() []int {
	return []int{len(g.Band), len(g.Y), len(g.X)}
}

// At returns the value at the given band, row and column indices.
func (g *Grid) At(band, y, x int) float64 {
	return g.Data.Get(band, y, x)
}

// Valid returns whether v is a data value rather than missing.
func (g *Grid) Valid(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return !g.HasNoData || v != g.NoData
}

// Bounds returns the spatial extent of the grid cells.
func (g *Grid) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	nx, ny := float64(len(g.X)), float64(len(g.Y))
	t := g.Transform
	for _, c := range [][2]float64{{0, 0}, {nx, 0}, {0, ny}, {nx, ny}} {
		p := geom.Point{
			X: t[0] + c[0]*t[1] + c[1]*t[2],
			Y: t[3] + c[0]*t[4] + c[1]*t[5],
		}
		b.Extend(geom.NewBoundsPoint(p))
	}
	return b
}

// SpatialReference parses CRS. AXIS sections, which GDAL writes for
// geographic coordinate systems, are ignored.
func (g *Grid) SpatialReference() (*proj.SR, error) {
	if g.CRS == "" {
		return nil, fmt.Errorf("raster: %s has no spatial reference", g.Name)
	}
	sr, err := proj.Parse(dropWKTSection(strings.TrimSpace(g.CRS), "AXIS"))
	if err != nil {
		return nil, fmt.Errorf("raster: parsing spatial reference of %s: %w", g.Name, err)
	}
	return sr, nil
}

// dropWKTSection removes every section called name, along with its
// leading comma, from the WKT string s.
func dropWKTSection(s, name string) string {
	open := "," + name + "["
	for {
		i := strings.Index(s, open)
		if i < 0 {
			return s
		}
		depth := 0
		end := len(s)
		for j := i + len(open) - 1; j < len(s); j++ {
			if s[j] == '[' {
				depth++
			} else if s[j] == ']' {
				depth--
				if depth == 0 {
					end = j + 1
					break
				}
			}
		}
		s = s[:i] + s[end:]
	}
}

// Stats summarizes the valid values of one band.
type Stats struct {
	Count          int
	Min, Max, Mean float64
}

// Stats returns summary statistics for the band at index band,
// ignoring missing values.
func (g *Grid) Stats(band int) Stats {
	n := len(g.Y) * len(g.X)
	vals := make([]float64, 0, n)
	for _, v := range g.Data.Elements[band*n : (band+1)*n] {
		if g.Valid(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	}
	return Stats{
		Count: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  floats.Sum(vals) / float64(len(vals)),
	}
}
