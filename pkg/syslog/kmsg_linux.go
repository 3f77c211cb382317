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

//go:build linux

package syslog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/sys/unix"
)

var bootTimeWithContext = host.BootTimeWithContext

// readKmsg drains the kernel ring buffer without blocking. Each read
// returns one record; EAGAIN marks the end of the buffer, EPIPE an
// overwritten record that is simply skipped.
func readKmsg(ctx context.Context, path string) ([]Entry, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var bootTime time.Time

	if secs, err := bootTimeWithContext(ctx); err == nil {
		bootTime = time.Unix(int64(secs), 0)
	}

	var entries []Entry

	buf := make([]byte, 8192)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				break
			}

			if errors.Is(err, unix.EPIPE) {
				continue
			}

			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		if n <= 0 {
			break
		}

		if entry, ok := ParseKmsgRecord(string(buf[:n]), bootTime); ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
