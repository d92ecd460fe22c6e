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

package ncgrid

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
)

// source is the subset of a NetCDF file needed to build a grid.
// An empty variable name refers to the global attributes.
type source interface {
	variables() []string
	dims(v string) []string
	lengths(v string) []int
	values(v string) ([]float64, error)
	attr(v, a string) (interface{}, bool)
	attrNames(v string) []string
	Close() error
}

var (
	classicMagic = []byte("CDF")
	hdf5Magic    = []byte{0x89, 'H', 'D', 'F'}
)

// openSource opens path as classic NetCDF or, for NetCDF-4 files,
// as HDF5.
func openSource(path string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		f.Close()
		return nil, fmt.Errorf("ncgrid: reading %s: %w", path, err)
	}
	switch {
	case bytes.HasPrefix(magic, classicMagic):
		cf, err := cdf.Open(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("ncgrid: opening %s: %w", path, err)
		}
		return &classic{f: f, cf: cf}, nil
	case bytes.Equal(magic, hdf5Magic):
		f.Close()
		g, err := netcdf.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ncgrid: opening %s: %w", path, err)
		}
		return &hdf5{g: g}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("ncgrid: %s is not a NetCDF file", path)
	}
}

type classic struct {
	f  *os.File
	cf *cdf.File
}

func (c *classic) variables() []string { return c.cf.Header.Variables() }
func (c *classic) dims(v string) []string { return c.cf.Header.Dimensions(v) }
func (c *classic) lengths(v string) []int { return c.cf.Header.Lengths(v) }
func (c *classic) attrNames(v string) []string { return c.cf.Header.Attributes(v) }
func (c *classic) Close() error { return c.f.Close() }

func (c *classic) values(v string) ([]float64, error) {
	r := c.cf.Reader(v, nil, nil)
	if r == nil {
		return nil, fmt.Errorf("ncgrid: no variable %q", v)
	}
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncgrid: reading variable %s: %w", v, err)
	}
	return toFloats(buf)
}

func (c *classic) attr(v, a string) (interface{}, bool) {
	val := c.cf.Header.GetAttribute(v, a)
	return val, val != nil
}

type hdf5 struct {
	g api.Group
}

func (h *hdf5) variables() []string { return h.g.ListVariables() }

func (h *hdf5) dims(v string) []string {
	vg, err := h.g.GetVarGetter(v)
	if err != nil {
		return nil
	}
	return vg.Dimensions()
}

func (h *hdf5) lengths(v string) []int {
	vg, err := h.g.GetVarGetter(v)
	if err != nil {
		return nil
	}
	shape := vg.Shape()
	o := make([]int, len(shape))
	for i, s := range shape {
		o[i] = int(s)
	}
	return o
}

func (h *hdf5) values(v string) ([]float64, error) {
	vg, err := h.g.GetVarGetter(v)
	if err != nil {
		return nil, fmt.Errorf("ncgrid: %w", err)
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("ncgrid: reading variable %s: %w", v, err)
	}
	return toFloats(vals)
}

func (h *hdf5) attributes(v string) api.AttributeMap {
	if v == "" {
		return h.g.Attributes()
	}
	vg, err := h.g.GetVarGetter(v)
	if err != nil {
		return nil
	}
	return vg.Attributes()
}

func (h *hdf5) attr(v, a string) (interface{}, bool) {
	m := h.attributes(v)
	if m == nil {
		return nil, false
	}
	return m.Get(a)
}

func (h *hdf5) attrNames(v string) []string {
	m := h.attributes(v)
	if m == nil {
		return nil
	}
	return m.Keys()
}

func (h *hdf5) Close() error {
	h.g.Close()
	return nil
}

// toFloats flattens a numeric scalar or a (possibly nested) slice of
// numbers into a []float64 in row-major order.
func toFloats(v interface{}) ([]float64, error) {
	var o []float64
	var walk func(rv reflect.Value) error
	walk = func(rv reflect.Value) error {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if err := walk(rv.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			o = append(o, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			o = append(o, float64(rv.Uint()))
		case reflect.Float32, reflect.Float64:
			o = append(o, rv.Float())
		default:
			return fmt.Errorf("ncgrid: non-numeric value of type %s", rv.Type())
		}
		return nil
	}
	if err := walk(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return o, nil
}
