/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package syslog

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/usbtrace/usbtrace/pkg/logger"
	"github.com/usbtrace/usbtrace/pkg/models"
)

// ErrSourceUnavailable is returned when neither the kernel ring buffer
// nor any persistent log file could be opened.
var ErrSourceUnavailable = errors.New("no kernel log source available")

const maxLineBytes = 1024 * 1024

// Source scans the kernel log stream for USB mass-storage events.
type Source struct {
	kmsgPath string
	globs    []string
	log      logger.Logger

	// Seams for tests.
	readKmsgFunc func(ctx context.Context, path string) ([]Entry, error)
	nowFunc      func() time.Time
}

// NewSource builds a Source. kmsgPath may be empty to skip the ring
// buffer; globs are tried in order, with unreadable matches skipped.
func NewSource(kmsgPath string, globs []string, log logger.Logger) *Source {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Source{
		kmsgPath:     kmsgPath,
		globs:        globs,
		log:          log,
		readKmsgFunc: readKmsg,
		nowFunc:      time.Now,
	}
}

// Observations reads every reachable log source and returns the parsed
// USB observations. It fails only when no source at all could be
// opened, so callers can tell "no USB history" from "could not read
// history".
func (s *Source) Observations(ctx context.Context) ([]models.Observation, error) {
	var (
		observations []models.Observation
		opened       bool
		skipped      int
	)

	if s.kmsgPath != "" {
		entries, err := s.readKmsgFunc(ctx, s.kmsgPath)
		if err != nil {
			s.log.Debug().Err(err).Str("path", s.kmsgPath).Msg("kernel ring buffer unavailable")
		} else {
			opened = true

			obs, n := collectEntries(entries)
			observations = append(observations, obs...)
			skipped += n
		}
	}

	for _, path := range s.logFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := s.readLogFile(path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("skipping unreadable log file")
			continue
		}

		opened = true

		obs, n := collectEntries(entries)
		observations = append(observations, obs...)
		skipped += n
	}

	if !opened {
		return nil, ErrSourceUnavailable
	}

	if skipped > 0 {
		s.log.Debug().Int("entries", skipped).Msg("skipped malformed log entries")
	}

	s.log.Info().
		Int("observations", len(observations)).
		Msg("kernel log scan complete")

	return observations, nil
}

// logFiles expands the configured globs. Within a glob the matches are
// ordered oldest rotation first (syslog.2.gz, syslog.1, syslog) so
// observations arrive roughly in chronological order.
func (s *Source) logFiles() []string {
	var files []string

	for _, pattern := range s.globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			s.log.Debug().Err(err).Str("glob", pattern).Msg("bad log glob")
			continue
		}

		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		files = append(files, matches...)
	}

	return files
}

// readLogFile parses one persistent log file, decompressing rotated
// .gz generations transparently.
func (s *Source) readLogFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()

		reader = gz
	}

	yearHint := 0
	if info, err := f.Stat(); err == nil {
		yearHint = info.ModTime().Year()
	}

	now := s.nowFunc()

	var entries []Entry

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if entry, ok := ParseLine(scanner.Text(), now, yearHint); ok {
			entries = append(entries, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		// Keep what was parsed before the read error; a truncated
		// rotation must not lose the rest of the file's history.
		s.log.Debug().Err(err).Str("path", path).Msg("log read ended early")
	}

	return entries, nil
}

// collectEntries folds one source's entries into observations. Each
// source gets a fresh collector so pending sections never correlate
// across file boundaries.
func collectEntries(entries []Entry) ([]models.Observation, int) {
	c := newCollector()

	for _, e := range entries {
		c.add(e)
	}

	return c.finish(), c.skipped
}
