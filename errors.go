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

package arclim

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var (
	// ErrUnknownCode is wrapped by validation errors for codes that are
	// not in the catalog.
	ErrUnknownCode = errors.New("unknown climate index code")

	// ErrInvalidPeriod is wrapped by validation errors for periods other
	// than present, future and delta.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidMonthOrSeason is wrapped by validation errors for month or
	// season labels outside of the published set.
	ErrInvalidMonthOrSeason = errors.New("invalid month or season")

	// ErrUnsupportedFormat is wrapped by validation errors for unsupported
	// output formats.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrChecksumMismatch is returned by Fetch when the downloaded archive
	// does not have the configured SHA-256 digest.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")
)

// maxAllowedShown limits how many allowed values are listed in a
// ValidationError message.
const maxAllowedShown = 20

// ValidationError reports an argument that is not in its allowed set.
// It is returned before any file system access takes place.
type ValidationError struct {
	Param   string
	Value   string
	Allowed []string
	Err     error
}

func (e *ValidationError) Error() string {
	allowed := e.Allowed
	more := ""
	if len(allowed) > maxAllowedShown {
		more = fmt.Sprintf(", ... (%d more)", len(allowed)-maxAllowedShown)
		allowed = allowed[:maxAllowedShown]
	}
	return fmt.Sprintf("arclim: %v: %s %q; should be one of '%s'%s",
		e.Err, e.Param, e.Value, strings.Join(allowed, "', '"), more)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MissingRasterError is returned by Load when the file for a valid
// selection is not present in the extracted archive, either because
// Fetch has not been run or because the archive does not publish that
// combination.
type MissingRasterError struct {
	Code          string
	Period        Period
	MonthOrSeason MonthOrSeason
	Path          string
}

func (e *MissingRasterError) Error() string {
	return fmt.Sprintf("arclim: no raster for %s/%s/%s at %s (has the archive been fetched?)",
		e.Code, e.Period, e.MonthOrSeason, e.Path)
}

// Unwrap makes errors.Is(err, fs.ErrNotExist) hold for missing rasters.
func (e *MissingRasterError) Unwrap() error { return fs.ErrNotExist }
