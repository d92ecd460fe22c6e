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

// Package gtiff reads GeoTIFF files into raster grids using GDAL.
// Importing it registers the reader for the "tif" and "tiff" file
// extensions.
package gtiff

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/spatialmodel/arclim/raster"
)

func init() {
	raster.Register("tif", Reader{})
	raster.Register("tiff", Reader{})
}

var registerDrivers sync.Once

// Reader reads every band of a GeoTIFF file.
type Reader struct{}

// Read reads the raster at path.
func (Reader) Read(path string) (*raster.Grid, error) {
	registerDrivers.Do(godal.RegisterAll)

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("gtiff: opening %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		// GDAL reports a missing transform as an error; fall back to
		// pixel coordinates.
		gt = [6]float64{0, 1, 0, 0, 0, 1}
	}

	g := raster.NewGrid(st.NBands, st.SizeX, st.SizeY, gt)
	g.Name = filepath.Base(path)
	g.CRS = ds.Projection()

	n := st.SizeX * st.SizeY
	for i, band := range ds.Bands() {
		buf := g.Data.Elements[i*n : (i+1)*n]
		if err := band.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
			return nil, fmt.Errorf("gtiff: reading band %d of %s: %w", i+1, path, err)
		}
		if nd, ok := band.NoData(); ok && !g.HasNoData {
			g.NoData, g.HasNoData = nd, true
		}
	}
	return g, nil
}
