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

// Package arclim provides access to the ARCLIM (Atlas de Riesgos
// Climáticos) archive of climate indices for Chile.
//
// A Store is rooted at a working directory holding the catalog of climate
// index codes. Fetch downloads and extracts the published archive, and
// Load reads one index layer, for a period and a month or season, into a
// labeled grid:
//
//	s, err := arclim.New("data")
//	...
//	if err := s.Fetch(ctx); err != nil {
//		...
//	}
//	g, err := s.Load("TX90p", arclim.Future, arclim.JJA, arclim.FormatGrid)
//
// Raster formats are read by the readers registered with package raster,
// so programs import the ones they need, e.g. raster/gtiff for the
// GeoTIFF archive.
package arclim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/arclim/catalog"
	"github.com/spatialmodel/arclim/download"
	"github.com/spatialmodel/arclim/raster"
	"github.com/spatialmodel/arclim/unzip"
)

// Version is the version of this module.
const Version = "0.1.0"

// Store gives access to the ARCLIM archive in a working directory.
type Store struct {
	cfg     Config
	catalog *catalog.Catalog
}

// New returns a Store rooted at workingDir, loading the catalog of
// climate index codes from it. The catalog must already exist.
func New(workingDir string, opts ...Option) (*Store, error) {
	cfg := DefaultConfig(workingDir)
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.WorkingDir == "" {
		return nil, fmt.Errorf("arclim: working directory not specified")
	}
	setDefaults(&cfg)

	cat, err := catalog.Load(cfg.catalogPath())
	if err != nil {
		return nil, fmt.Errorf("arclim: loading catalog: %w", err)
	}
	cfg.Log.WithFields(logrus.Fields{
		"catalog": cfg.catalogPath(),
		"codes":   cat.Len(),
	}).Debug("loaded catalog")
	return &Store{cfg: cfg, catalog: cat}, nil
}

// setDefaults fills in settings left empty, as by WithConfig with a
// partial Config.
func setDefaults(cfg *Config) {
	def := DefaultConfig(cfg.WorkingDir)
	for _, f := range []struct{ v, d *string }{
		{&cfg.URL, &def.URL},
		{&cfg.ArchiveName, &def.ArchiveName},
		{&cfg.CatalogFile, &def.CatalogFile},
		{&cfg.PathTemplate, &def.PathTemplate},
		{&cfg.RasterExt, &def.RasterExt},
	} {
		if *f.v == "" {
			*f.v = *f.d
		}
	}
	if cfg.FetchStrategy.ChunkSize <= 0 {
		cfg.FetchStrategy.ChunkSize = def.FetchStrategy.ChunkSize
	}
	if cfg.Log == nil {
		cfg.Log = def.Log
	}
	cfg.SHA256 = strings.ToLower(strings.TrimSpace(cfg.SHA256))
}

// Config returns the configuration of s.
func (s *Store) Config() Config { return s.cfg }

// Catalog returns the catalog of climate index codes.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// ArchivePath returns where Fetch saves the downloaded archive.
func (s *Store) ArchivePath() string {
	return filepath.Join(s.cfg.WorkingDir, s.cfg.ArchiveName+unzip.Suffix)
}

// ExtractDir returns the directory the archive is extracted into.
func (s *Store) ExtractDir() string {
	return filepath.Join(s.cfg.WorkingDir, s.cfg.ArchiveName)
}

// Fetch downloads the archive into the working directory, extracts it
// into ExtractDir, and then extracts every archive found directly inside
// ExtractDir into ExtractDir. Archives inside those are left as they are.
//
// Each call downloads and extracts again, overwriting existing files,
// unless the Store was created with WithSkipIfComplete and a previous
// fetch of the same archive completed. Errors are returned as they occur
// and any partial download or extraction is left in place.
func (s *Store) Fetch(ctx context.Context) error {
	log := s.cfg.Log.WithFields(logrus.Fields{
		"url":  s.cfg.URL,
		"path": s.ArchivePath(),
	})
	if s.cfg.SkipIfComplete && s.complete() {
		log.Info("archive already fetched; skipping")
		return nil
	}

	// The marker is rewritten only once this fetch completes.
	if err := os.Remove(s.MarkerPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("arclim: %w", err)
	}

	log.Info("downloading archive")
	d := &download.Downloader{
		Strategy: s.cfg.FetchStrategy,
		Progress: s.cfg.Progress,
		Log:      s.cfg.Log,
	}
	res, err := d.Fetch(ctx, s.cfg.URL, s.ArchivePath())
	if err != nil {
		return fmt.Errorf("arclim: fetching archive: %w", err)
	}
	if s.cfg.SHA256 != "" && !strings.EqualFold(res.SHA256, s.cfg.SHA256) {
		return fmt.Errorf("arclim: %w: %s has SHA-256 %s; expected %s",
			ErrChecksumMismatch, res.Path, res.SHA256, s.cfg.SHA256)
	}

	if err := os.MkdirAll(s.ExtractDir(), os.ModePerm); err != nil {
		return fmt.Errorf("arclim: %w", err)
	}
	files, err := unzip.Decompress(s.ArchivePath(), s.ExtractDir(), s.cfg.Log)
	if err != nil {
		return err
	}
	nested, err := unzip.ExtractNested(s.ExtractDir(), files, s.cfg.Log)
	if err != nil {
		return err
	}

	c := &completion{
		Source:      s.cfg.URL,
		Archive:     s.ArchivePath(),
		SHA256:      res.SHA256,
		Bytes:       res.Bytes,
		Files:       len(files) + len(nested),
		Completed:   time.Now().UTC(),
		Fingerprint: s.fingerprint(),
	}
	if err := writeCompletion(s.MarkerPath(), c); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"bytes": res.Bytes,
		"files": c.Files,
	}).Info("archive fetched and extracted")
	return nil
}

// checkCode returns a *ValidationError if code is not in the catalog.
func (s *Store) checkCode(code string) error {
	if s.catalog.Contains(code) {
		return nil
	}
	return &ValidationError{
		Param:   "code",
		Value:   code,
		Allowed: s.catalog.Codes(),
		Err:     ErrUnknownCode,
	}
}

// Path returns the location in the extracted archive of the raster for
// code, period and month or season. It does not check whether the file
// exists.
func (s *Store) Path(code string, period Period, month MonthOrSeason) (string, error) {
	if err := s.checkCode(code); err != nil {
		return "", err
	}
	if !period.Valid() {
		return "", invalidPeriod(string(period))
	}
	if !month.Valid() {
		return "", invalidMonth(string(month))
	}
	rel := strings.NewReplacer(
		"{code}", code,
		"{period}", string(period),
		"{month}", string(month),
		"{ext}", s.cfg.RasterExt,
	).Replace(s.cfg.PathTemplate)
	return filepath.Join(s.ExtractDir(), filepath.FromSlash(rel)), nil
}

// Load reads the layer of climate index code for period and month or
// season. All arguments are validated before the file system is
// accessed; invalid arguments produce a *ValidationError. A valid
// selection whose file is not present produces a *MissingRasterError.
func (s *Store) Load(code string, period Period, month MonthOrSeason, format Format) (*raster.Grid, error) {
	path, err := s.Path(code, period, month)
	if err != nil {
		return nil, err
	}
	if !format.Valid() {
		return nil, unsupportedFormat(string(format))
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingRasterError{Code: code, Period: period, MonthOrSeason: month, Path: path}
		}
		return nil, fmt.Errorf("arclim: %w", err)
	}
	r, err := s.reader(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	g, err := r.Read(path)
	if err != nil {
		return nil, fmt.Errorf("arclim: reading %s: %w", path, err)
	}
	s.cfg.Log.WithFields(logrus.Fields{
		"path":  path,
		"shape": g.Shape(),
	}).Debug("loaded raster")
	return g, nil
}

// LoadString is like Load, but takes the period, month or season and
// format as strings, as given on a command line.
func (s *Store) LoadString(code, period, month, format string) (*raster.Grid, error) {
	if err := s.checkCode(code); err != nil {
		return nil, err
	}
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	m, err := ParseMonthOrSeason(month)
	if err != nil {
		return nil, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return s.Load(code, p, m, f)
}

func (s *Store) reader(ext string) (raster.Reader, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if r, ok := s.cfg.readers[ext]; ok {
		return r, nil
	}
	if r, ok := raster.Lookup(ext); ok {
		return r, nil
	}
	return nil, fmt.Errorf("arclim: %w %q; import a reader package such as raster/gtiff", raster.ErrUnknownFormat, ext)
}
