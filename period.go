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

import "strings"

// Period selects the time horizon of a climate index layer.
type Period string

// These are the periods published in the ARCLIM archive.
const (
	// Present is the historical baseline, 1971-2010.
	Present Period = "present"
	// Future is the projection, 2035-2065.
	Future Period = "future"
	// Delta is the difference between Future and Present.
	Delta Period = "delta"
)

var periods = []Period{Present, Future, Delta}

// Periods returns all valid periods.
func Periods() []Period {
	return append([]Period(nil), periods...)
}

// Valid returns whether p is one of the published periods.
func (p Period) Valid() bool {
	for _, v := range periods {
		if p == v {
			return true
		}
	}
	return false
}

func (p Period) String() string { return string(p) }

// ParsePeriod converts s to a Period, returning a *ValidationError
// if s is not a published period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.TrimSpace(s))
	if !p.Valid() {
		return "", invalidPeriod(s)
	}
	return p, nil
}

func invalidPeriod(s string) error {
	return &ValidationError{
		Param:   "period",
		Value:   s,
		Allowed: periodStrings(),
		Err:     ErrInvalidPeriod,
	}
}

func periodStrings() []string {
	o := make([]string, len(periods))
	for i, p := range periods {
		o[i] = string(p)
	}
	return o
}

// MonthOrSeason selects the calendar month, season or annual aggregate
// of a climate index layer. The labels follow the archive's file names,
// which are in Spanish for August ("ago").
type MonthOrSeason string

// Calendar months.
const (
	January   MonthOrSeason = "jan"
	February  MonthOrSeason = "feb"
	March     MonthOrSeason = "mar"
	April     MonthOrSeason = "apr"
	May       MonthOrSeason = "may"
	June      MonthOrSeason = "jun"
	July      MonthOrSeason = "jul"
	August    MonthOrSeason = "ago"
	September MonthOrSeason = "sep"
	October   MonthOrSeason = "oct"
	November  MonthOrSeason = "nov"
	December  MonthOrSeason = "dec"
)

// Seasonal and annual aggregates.
const (
	DJF    MonthOrSeason = "djf"
	MAM    MonthOrSeason = "mam"
	JJA    MonthOrSeason = "jja"
	SON    MonthOrSeason = "son"
	Summer MonthOrSeason = "summer"
	Winter MonthOrSeason = "winter"
	Annual MonthOrSeason = "annual"
)

var monthsAndSeasons = []MonthOrSeason{
	January, February, March, April, May, June,
	July, August, September, October, November, December,
	DJF, MAM, JJA, SON, Summer, Winter, Annual,
}

// MonthsAndSeasons returns all 19 valid month and season labels.
func MonthsAndSeasons() []MonthOrSeason {
	return append([]MonthOrSeason(nil), monthsAndSeasons...)
}

// Valid returns whether m is one of the published labels.
func (m MonthOrSeason) Valid() bool {
	for _, v := range monthsAndSeasons {
		if m == v {
			return true
		}
	}
	return false
}

func (m MonthOrSeason) String() string { return string(m) }

// ParseMonthOrSeason converts s to a MonthOrSeason, returning a
// *ValidationError if s is not a published label.
func ParseMonthOrSeason(s string) (MonthOrSeason, error) {
	m := MonthOrSeason(strings.TrimSpace(s))
	if !m.Valid() {
		return "", invalidMonth(s)
	}
	return m, nil
}

func invalidMonth(s string) error {
	return &ValidationError{
		Param:   "monthOrSeason",
		Value:   s,
		Allowed: monthStrings(),
		Err:     ErrInvalidMonthOrSeason,
	}
}

func monthStrings() []string {
	o := make([]string, len(monthsAndSeasons))
	for i, m := range monthsAndSeasons {
		o[i] = string(m)
	}
	return o
}

// Format is the representation Load returns.
type Format string

// FormatGrid is the only supported format: a labeled *raster.Grid.
const FormatGrid Format = "grid"

// legacyGridFormat is the name callers of earlier tooling used for the
// labeled grid representation.
const legacyGridFormat = "xarray"

// Valid returns whether f is a supported format.
func (f Format) Valid() bool { return f == FormatGrid || f == legacyGridFormat }

func (f Format) String() string { return string(f) }

// ParseFormat converts s to a Format. "xarray" is accepted as a synonym
// for FormatGrid. Anything else is an ErrUnsupportedFormat validation error.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimSpace(s) {
	case string(FormatGrid), legacyGridFormat:
		return FormatGrid, nil
	}
	return "", unsupportedFormat(s)
}

func unsupportedFormat(s string) error {
	return &ValidationError{
		Param:   "format",
		Value:   s,
		Allowed: []string{string(FormatGrid), legacyGridFormat},
		Err:     ErrUnsupportedFormat,
	}
}
