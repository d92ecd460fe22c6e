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

package raster

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownFormat is returned when no Reader is registered for a
// file extension.
var ErrUnknownFormat = errors.New("raster: no reader registered for file extension")

// Reader parses a raster file into a Grid.
type Reader interface {
	Read(path string) (*Grid, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(path string) (*Grid, error)

// Read calls f(path).
func (f ReaderFunc) Read(path string) (*Grid, error) { return f(path) }

var (
	readersMu sync.RWMutex
	readers   = make(map[string]Reader)
)

// Register makes r the reader for files with extension ext, which may be
// given with or without the leading dot. It replaces any earlier reader
// for ext.
func Register(ext string, r Reader) {
	readersMu.Lock()
	defer readersMu.Unlock()
	readers[normExt(ext)] = r
}

// Lookup returns the reader registered for ext.
func Lookup(ext string) (Reader, bool) {
	readersMu.RLock()
	defer readersMu.RUnlock()
	r, ok := readers[normExt(ext)]
	return r, ok
}

// Extensions returns the registered extensions in sorted order.
func Extensions() []string {
	readersMu.RLock()
	defer readersMu.RUnlock()
	o := make([]string, 0, len(readers))
	for ext := range readers {
		o = append(o, ext)
	}
	sort.Strings(o)
	return o
}

// Open reads path with the reader registered for its extension.
func Open(path string) (*Grid, error) {
	ext := filepath.Ext(path)
	r, ok := Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownFormat, ext, Extensions())
	}
	return r.Read(path)
}

func normExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
