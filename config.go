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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/arclim/download"
	"github.com/spatialmodel/arclim/raster"
)

// Default configuration values.
const (
	DefaultURL          = "https://arclim.mma.gob.cl/media/ClimateIndex/geotiff/IndicesClimaticosARCLIM.zip"
	DefaultArchiveName  = "IndicesClimaticosARCLIM"
	DefaultCatalogFile  = "arclim_climate_indices.csv"
	DefaultPathTemplate = "{code}/{code}_{period}_{month}_latlon.{ext}"
	DefaultRasterExt    = "tif"
)

// Config holds the settings of a Store.
type Config struct {
	// WorkingDir holds the catalog, the downloaded archive and the
	// extracted archive.
	WorkingDir string

	// URL is the location of the archive: an http(s) URL or a
	// gs://, s3:// or file:// blob location.
	URL string

	// ArchiveName names the downloaded file, {ArchiveName}.zip, and the
	// directory it is extracted into.
	ArchiveName string

	// CatalogFile is the .csv or .xlsx catalog of climate index codes,
	// relative to WorkingDir unless absolute.
	CatalogFile string

	// PathTemplate locates a raster within the extracted archive. The
	// placeholders {code}, {period}, {month} and {ext} are replaced.
	PathTemplate string

	// RasterExt is the file extension of the rasters in the archive.
	RasterExt string

	FetchStrategy download.Strategy

	// SkipIfComplete makes Fetch return early when a previous fetch of
	// the same URL completed. If SHA256 is set, the archive must also
	// have that digest.
	SkipIfComplete bool
	SHA256         string

	// Progress receives download progress. Nil disables it.
	Progress io.Writer

	Log logrus.FieldLogger

	// readers override the registered raster readers by extension.
	readers map[string]raster.Reader
}

// DefaultConfig returns the configuration for the published ARCLIM
// archive in workingDir.
func DefaultConfig(workingDir string) Config {
	return Config{
		WorkingDir:    workingDir,
		URL:           DefaultURL,
		ArchiveName:   DefaultArchiveName,
		CatalogFile:   DefaultCatalogFile,
		PathTemplate:  DefaultPathTemplate,
		RasterExt:     DefaultRasterExt,
		FetchStrategy: download.DefaultStrategy(),
		Progress:      os.Stderr,
		Log:           logrus.StandardLogger(),
	}
}

func (c *Config) catalogPath() string {
	if filepath.IsAbs(c.CatalogFile) {
		return c.CatalogFile
	}
	return filepath.Join(c.WorkingDir, c.CatalogFile)
}

// Option configures a Store.
type Option func(*Config) error

// WithConfig replaces the whole configuration, except for WorkingDir
// when cfg does not set one. Options after it still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) error {
		wd := c.WorkingDir
		*c = cfg
		if c.WorkingDir == "" {
			c.WorkingDir = wd
		}
		return nil
	}
}

// WithURL sets the location the archive is fetched from.
func WithURL(url string) Option {
	return func(c *Config) error {
		c.URL = url
		return nil
	}
}

// WithArchiveName sets the name of the downloaded archive and its
// extraction directory.
func WithArchiveName(name string) Option {
	return func(c *Config) error {
		c.ArchiveName = name
		return nil
	}
}

// WithCatalogFile sets the catalog file.
func WithCatalogFile(fileName string) Option {
	return func(c *Config) error {
		c.CatalogFile = fileName
		return nil
	}
}

// WithPathTemplate sets the template that locates rasters within the
// extracted archive.
func WithPathTemplate(template string) Option {
	return func(c *Config) error {
		c.PathTemplate = template
		return nil
	}
}

// WithRasterExt sets the file extension of the rasters.
func WithRasterExt(ext string) Option {
	return func(c *Config) error {
		c.RasterExt = strings.TrimPrefix(ext, ".")
		return nil
	}
}

// WithFetchStrategy sets the transfer settings.
func WithFetchStrategy(s download.Strategy) Option {
	return func(c *Config) error {
		c.FetchStrategy = s
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Config) error {
		c.Log = log
		return nil
	}
}

// WithProgress sets where download progress is written.
func WithProgress(w io.Writer) Option {
	return func(c *Config) error {
		c.Progress = w
		return nil
	}
}

// WithSkipIfComplete makes Fetch return early when the archive has
// already been fetched and extracted. If sha256 is not empty, it is also
// the digest the downloaded archive must have.
func WithSkipIfComplete(sha256 string) Option {
	return func(c *Config) error {
		c.SkipIfComplete = true
		c.SHA256 = strings.ToLower(sha256)
		return nil
	}
}

// WithReader makes the Store read files with extension ext using r,
// instead of the reader registered with package raster.
func WithReader(ext string, r raster.Reader) Option {
	return func(c *Config) error {
		if c.readers == nil {
			c.readers = make(map[string]raster.Reader)
		}
		c.readers[strings.ToLower(strings.TrimPrefix(ext, "."))] = r
		return nil
	}
}
