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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/arclim/internal/hash"
)

// completion records a fetch that downloaded and extracted the archive.
type completion struct {
	Source      string
	Archive     string
	SHA256      string
	Bytes       int64
	Files       int
	Completed   time.Time
	Fingerprint string
}

// MarkerPath returns the location of the file recording the last
// completed fetch.
func (s *Store) MarkerPath() string {
	return filepath.Join(s.cfg.WorkingDir, s.cfg.ArchiveName+".complete.toml")
}

// fingerprint identifies the settings a fetch depends on.
func (s *Store) fingerprint() string {
	return hash.Fingerprint(struct {
		URL, ArchiveName, SHA256 string
	}{s.cfg.URL, s.cfg.ArchiveName, s.cfg.SHA256})
}

func readCompletion(path string) (*completion, error) {
	c := new(completion)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

func writeCompletion(path string, c *completion) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("arclim: writing completion marker: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("arclim: writing completion marker: %w", err)
	}
	return f.Close()
}

// complete returns whether a previous fetch with the current settings
// completed and its extraction directory is still present.
func (s *Store) complete() bool {
	c, err := readCompletion(s.MarkerPath())
	if err != nil {
		return false
	}
	if c.Source != s.cfg.URL || c.Fingerprint != s.fingerprint() {
		return false
	}
	if s.cfg.SHA256 != "" {
		if c.SHA256 != s.cfg.SHA256 {
			return false
		}
		// The archive on disk must still be the one that was extracted.
		if sum, err := hash.File(s.ArchivePath()); err != nil || sum != s.cfg.SHA256 {
			return false
		}
	}
	fi, err := os.Stat(s.ExtractDir())
	return err == nil && fi.IsDir()
}
