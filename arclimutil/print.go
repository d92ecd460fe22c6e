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

package arclimutil

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spatialmodel/arclim/catalog"
	"github.com/spatialmodel/arclim/raster"
)

// printGrid writes a summary of g to w.
func printGrid(w io.Writer, g *raster.Grid) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	shape := g.Shape()
	fmt.Fprintf(tw, "name:\t%s\n", g.Name)
	fmt.Fprintf(tw, "dims:\t%s: %d, %s: %d, %s: %d\n",
		g.Dims[0], shape[0], g.Dims[1], shape[1], g.Dims[2], shape[2])
	b := g.Bounds()
	fmt.Fprintf(tw, "bounds:\tx %g to %g, y %g to %g\n", b.Min.X, b.Max.X, b.Min.Y, b.Max.Y)
	if g.CRS != "" {
		crs := g.CRS
		if sr, err := g.SpatialReference(); err == nil {
			crs = sr.Name
			if sr.DatumCode != "" {
				crs += " (" + sr.DatumCode + ")"
			}
		}
		fmt.Fprintf(tw, "crs:\t%s\n", crs)
	}
	if g.HasNoData {
		fmt.Fprintf(tw, "nodata:\t%g\n", g.NoData)
	}
	for i, band := range g.Band {
		s := g.Stats(i)
		fmt.Fprintf(tw, "band %d:\tcount=%d min=%g max=%g mean=%g\n", band, s.Count, s.Min, s.Max, s.Mean)
	}
	return tw.Flush()
}

// printCatalog writes the entries of c to w, one per line.
func printCatalog(w io.Writer, c *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	cols := c.Columns()
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, e := range c.Entries() {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = e.Fields[col]
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
