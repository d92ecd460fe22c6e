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

// Command arclim is a command-line interface to the ARCLIM climate
// index archive.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/arclim/arclimutil"
	_ "github.com/spatialmodel/arclim/raster/gtiff"
	_ "github.com/spatialmodel/arclim/raster/ncgrid"
)

func main() {
	if err := arclimutil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
