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

// Package unzip extracts zip archives, including archives that are
// themselves distributed inside another archive.
package unzip

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Suffix is the file name suffix of archives processed by ExtractNested.
const Suffix = ".zip"

// UnsafePathError is returned when an archive entry would be written
// outside of the destination directory.
type UnsafePathError struct {
	Archive, Entry, Dest string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unzip: entry %q in %s resolves outside of %s", e.Entry, e.Archive, e.Dest)
}

// Decompress extracts every entry of the zip archive at archivePath into
// dest, creating subdirectories as named in the archive, and returns
// the paths of the extracted files. Entries that would resolve outside
// of dest cause an *UnsafePathError before they are written.
// log, if not nil, receives a message once the archive is extracted.
func Decompress(archivePath, dest string, log logrus.FieldLogger) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		return nil, fmt.Errorf("unzip: opening %s: %w", archivePath, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("unzip: %w", err)
	}

	var files []string
	for _, zf := range r.File {
		saveLoc, err := entryPath(root, zf.Name)
		if err != nil {
			return files, &UnsafePathError{Archive: archivePath, Entry: zf.Name, Dest: dest}
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(saveLoc, os.ModePerm); err != nil {
				return files, fmt.Errorf("unzip: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(saveLoc), os.ModePerm); err != nil {
			return files, fmt.Errorf("unzip: %w", err)
		}
		if err := extractFile(zf, saveLoc); err != nil {
			return files, fmt.Errorf("unzip: extracting %s from %s: %w", zf.Name, archivePath, err)
		}
		files = append(files, saveLoc)
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"archive": archivePath,
			"dest":    dest,
			"files":   len(files),
		}).Info("extracted archive")
	}
	return files, nil
}

// entryPath returns the location name will be extracted to under root,
// or an error if that location is not inside root.
func entryPath(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("unsafe")
	}
	p := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe")
	}
	return p, nil
}

func extractFile(zf *zip.File, saveLoc string) error {
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(saveLoc)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// ExtractNested decompresses, into dir itself, each of the files in
// extracted that is directly inside dir and whose name ends in Suffix.
// extracted is the list returned by the Decompress call that populated
// dir, so archives left in dir by an earlier run, or produced by this
// pass, are not expanded. It returns the paths of all extracted files.
func ExtractNested(dir string, extracted []string, log logrus.FieldLogger) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unzip: %w", err)
	}
	var files []string
	for _, name := range extracted {
		p, err := filepath.Abs(name)
		if err != nil {
			return files, fmt.Errorf("unzip: %w", err)
		}
		if filepath.Dir(p) != root || !strings.HasSuffix(p, Suffix) {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			return files, fmt.Errorf("unzip: %w", err)
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		f, err := Decompress(p, dir, log)
		files = append(files, f...)
		if err != nil {
			return files, err
		}
	}
	return files, nil
}
