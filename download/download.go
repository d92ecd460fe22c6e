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

// Package download fetches a single remote file into the local filesystem,
// from an HTTP server or from blob storage.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Strategy controls how a file is transferred.
type Strategy struct {
	// Timeout bounds each transfer attempt. Zero means no limit.
	Timeout time.Duration

	// MaxRetries is the number of times a failed attempt is retried,
	// waiting RetrySleep in between.
	MaxRetries uint64
	RetrySleep time.Duration

	// ChunkSize is the number of bytes read from the source per write.
	ChunkSize int
}

// DefaultStrategy returns a strategy with a one hour timeout, no
// retries and 8 KiB chunks.
func DefaultStrategy() Strategy {
	return Strategy{
		Timeout:    time.Hour,
		MaxRetries: 0,
		RetrySleep: 30 * time.Second,
		ChunkSize:  8192,
	}
}

// StatusError is returned when an HTTP server responds with a
// non-success status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download: %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Result describes a completed download.
type Result struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// Downloader copies remote files to local paths.
type Downloader struct {
	Strategy Strategy

	// Progress receives a progress bar for each transfer. If nil,
	// no progress is shown.
	Progress io.Writer

	// Log receives status messages. It defaults to
	// logrus.StandardLogger().
	Log logrus.FieldLogger

	// Client is used for HTTP transfers. If nil, a client with
	// Strategy.Timeout is used.
	Client *http.Client
}

// Fetch copies src, which is an http(s) URL or a blob location
// (see IsBlob), to dst, replacing any existing file. Failed attempts are
// retried according to the Strategy.
func (d *Downloader) Fetch(ctx context.Context, src, dst string) (*Result, error) {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	strategy := d.Strategy
	if strategy.ChunkSize <= 0 {
		strategy.ChunkSize = DefaultStrategy().ChunkSize
	}

	var res *Result
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(strategy.RetrySleep), strategy.MaxRetries), ctx)
	err := backoff.RetryNotify(
		func() error {
			var err error
			res, err = d.fetchOnce(ctx, strategy, src, dst)
			return err
		},
		b,
		func(err error, wait time.Duration) {
			log.WithFields(logrus.Fields{
				"url":   src,
				"retry": wait,
			}).Warnf("download failed: %v", err)
		},
	)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"url":   src,
		"path":  res.Path,
		"bytes": res.Bytes,
	}).Info("downloaded file")
	return res, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, strategy Strategy, src, dst string) (*Result, error) {
	if strategy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, strategy.Timeout)
		defer cancel()
	}
	body, size, err := d.open(ctx, strategy, src)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	w, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	progress := d.Progress
	if progress == nil {
		progress = io.Discard
	}
	if size <= 0 {
		size = -1
	}
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetDescription(filepath.Base(dst)),
	)

	h := sha256.New()
	out := io.MultiWriter(w, h)
	buf := make([]byte, strategy.ChunkSize)
	var n int64
	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			if _, err := out.Write(buf[:nr]); err != nil {
				w.Close()
				return nil, fmt.Errorf("download: writing %s: %w", dst, err)
			}
			n += int64(nr)
			bar.Add(nr)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			w.Close()
			return nil, fmt.Errorf("download: reading %s: %w", src, rerr)
		}
	}
	bar.Finish()
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return &Result{Path: dst, Bytes: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// open returns a reader for src and its size in bytes, or -1 if the
// size is not known.
func (d *Downloader) open(ctx context.Context, strategy Strategy, src string) (io.ReadCloser, int64, error) {
	if IsBlob(src) {
		bucketName, key, err := splitBlob(src)
		if err != nil {
			return nil, 0, err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return nil, 0, fmt.Errorf("download: opening %s: %w", bucketName, err)
		}
		r, err := bucket.NewReader(ctx, key)
		if err != nil {
			return nil, 0, fmt.Errorf("download: %s: %w", src, err)
		}
		return r, r.Size(), nil
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil, 0, fmt.Errorf("download: unsupported location %q", src)
	}

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: strategy.Timeout}
	}
	req, err := http.NewRequest(http.MethodGet, src, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("download: %w", err)
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, 0, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &StatusError{URL: src, StatusCode: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}
