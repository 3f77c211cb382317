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
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbtrace/usbtrace/pkg/logger"
	"github.com/usbtrace/usbtrace/pkg/models"
)

const currentLog = `Mar  3 10:15:01 host kernel: usb 1-1.2: New USB device found, idVendor=0781, idProduct=5567, bcdDevice= 1.26
Mar  3 10:15:01 host kernel: usb 1-1.2: SerialNumber: SANDISK01
Mar  3 10:15:01 host kernel: usb 1-1.2: Manufacturer: SanDisk
`

const rotatedLog = `Jan 10 09:00:00 host kernel: usb 1-1.2: New USB device found, idVendor=0781, idProduct=5567
Jan 10 09:00:00 host kernel: usb 1-1.2: SerialNumber: SANDISK01
`

func writeLog(t *testing.T, path, content string, compress bool) {
	t.Helper()

	if !compress {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return
	}

	f, err := os.Create(path)
	require.NoError(t, err)

	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func newTestSource(t *testing.T, kmsgPath string, globs []string) *Source {
	t.Helper()

	s := NewSource(kmsgPath, globs, logger.NewTestLogger())
	s.nowFunc = func() time.Time { return testNow }

	return s
}

func TestObservationsFromLogFiles(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "syslog"), currentLog, false)
	writeLog(t, filepath.Join(dir, "syslog.1.gz"), rotatedLog, true)

	s := newTestSource(t, "", []string{filepath.Join(dir, "syslog*")})

	obs, err := s.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	// Rotated generation is read first, so its observation leads.
	assert.Nil(t, obs[0].DeviceSize)
	require.NotNil(t, obs[0].Timestamp)
	assert.Equal(t, time.Month(1), obs[0].Timestamp.Month())
	assert.Equal(t, "SANDISK01", obs[0].SerialNumber)

	require.NotNil(t, obs[1].Timestamp)
	assert.Equal(t, time.Month(3), obs[1].Timestamp.Month())
	assert.Equal(t, "SanDisk", obs[1].Manufacturer)
}

func TestObservationsSkipsMissingPaths(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "messages"), currentLog, false)

	s := newTestSource(t, "", []string{
		filepath.Join(dir, "no-such-log*"),
		filepath.Join(dir, "messages*"),
	})

	obs, err := s.Observations(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 1)
}

func TestObservationsSourceUnavailable(t *testing.T) {
	dir := t.TempDir()

	s := newTestSource(t, "", []string{filepath.Join(dir, "syslog*")})

	_, err := s.Observations(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestObservationsKmsgSeam(t *testing.T) {
	boot := time.Date(2023, 6, 15, 8, 0, 0, 0, time.UTC)

	s := newTestSource(t, "/dev/kmsg", []string{filepath.Join(t.TempDir(), "syslog*")})
	s.readKmsgFunc = func(_ context.Context, _ string) ([]Entry, error) {
		records := []string{
			"6,1,1000000,-;usb 1-1: New USB device found, idVendor=0951, idProduct=1666",
			"6,2,1000100,-;usb 1-1: SerialNumber: KINGSTON02",
		}

		var entries []Entry
		for _, r := range records {
			if e, ok := ParseKmsgRecord(r, boot); ok {
				entries = append(entries, e)
			}
		}

		return entries, nil
	}

	obs, err := s.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "KINGSTON02", obs[0].SerialNumber)
	assert.Equal(t, "0951", obs[0].VendorID)
	assert.Equal(t, models.EventConnect, obs[0].Event)
}

func TestObservationsEmptyLogIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "syslog"), strings.Repeat("Mar  3 10:15:01 host sshd[1]: noise\n", 10), false)

	s := newTestSource(t, "", []string{filepath.Join(dir, "syslog*")})

	obs, err := s.Observations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, obs)
}
