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

// Package catalog reads the table of available ARCLIM climate indices.
//
// The table is normally the comma-separated file distributed alongside the
// archive, but Microsoft Excel workbooks with the same columns are also
// accepted. Only the code column is interpreted; every other column is kept
// as descriptive metadata.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tealeg/xlsx"
)

// CodeColumn is the name of the column holding the climate index code.
const CodeColumn = "Código"

// Entry is one climate index in the catalog.
type Entry struct {
	// Code uniquely identifies the index, e.g. "TX90p".
	Code string

	// Fields holds every column of the row, including the code column,
	// keyed by column name.
	Fields map[string]string
}

// Catalog is an immutable table of climate indices keyed by code.
type Catalog struct {
	columns []string
	entries []Entry
	index   map[string]int
}

// Load reads the catalog in fileName. Files ending in ".xlsx" are read as
// Excel workbooks (first sheet); anything else is read as CSV.
func Load(fileName string) (*Catalog, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return loadExcel(fileName)
	}
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", fileName, err)
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", fileName, err)
	}
	return c, nil
}

// Read parses a comma-separated catalog from r.
func Read(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRows(lines)
}

func loadExcel(fileName string) (*Catalog, error) {
	f, err := xlsx.OpenFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening xlsx file %s: %w", fileName, err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("catalog: %s has no sheets", fileName)
	}
	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		line := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			if cell != nil {
				line[i] = cell.Value
			}
		}
		rows = append(rows, line)
	}
	c, err := fromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", fileName, err)
	}
	return c, nil
}

// fromRows builds a catalog from a header row followed by data rows.
func fromRows(rows [][]string) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	header := make([]string, len(rows[0]))
	codeCol := -1
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if h == CodeColumn {
			codeCol = i
		}
	}
	if codeCol < 0 {
		return nil, fmt.Errorf("catalog has no %q column; columns are %q", CodeColumn, header)
	}

	c := &Catalog{
		columns: header,
		index:   make(map[string]int),
	}
	for j, row := range rows[1:] {
		if blank(row) {
			continue
		}
		if codeCol >= len(row) {
			return nil, fmt.Errorf("row %d has no %q value", j+2, CodeColumn)
		}
		code := strings.TrimSpace(row[codeCol])
		if code == "" {
			return nil, fmt.Errorf("row %d has an empty %q value", j+2, CodeColumn)
		}
		if _, ok := c.index[code]; ok {
			return nil, fmt.Errorf("row %d: duplicate code %q", j+2, code)
		}
		e := Entry{Code: code, Fields: make(map[string]string, len(header))}
		for i, h := range header {
			if i < len(row) {
				e.Fields[h] = strings.TrimSpace(row[i])
			}
		}
		c.index[code] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Contains returns whether code is in the catalog.
func (c *Catalog) Contains(code string) bool {
	_, ok := c.index[code]
	return ok
}

// Lookup returns the entry for code.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	i, ok := c.index[code]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Codes returns the catalog codes in sorted order.
func (c *Catalog) Codes() []string {
	o := make([]string, len(c.entries))
	for i, e := range c.entries {
		o[i] = e.Code
	}
	sort.Strings(o)
	return o
}

// Entries returns the catalog entries in file order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Columns returns the column names in file order.
func (c *Catalog) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }
