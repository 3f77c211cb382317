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
	"strconv"
	"strings"
	"time"
)

// ParseKmsgRecord parses one /dev/kmsg record
// ("prio,seq,usec_since_boot,flags;message") into an Entry, converting
// the monotonic microsecond offset to wall-clock time via the boot
// time. Continuation lines (leading space) and malformed records are
// rejected.
func ParseKmsgRecord(raw string, bootTime time.Time) (Entry, bool) {
	raw = strings.TrimRight(raw, "\n")

	if raw == "" || raw[0] == ' ' {
		return Entry{}, false
	}

	semi := strings.IndexByte(raw, ';')
	if semi < 0 {
		return Entry{}, false
	}

	meta := strings.Split(raw[:semi], ",")
	if len(meta) < 3 {
		return Entry{}, false
	}

	message := strings.TrimSpace(raw[semi+1:])
	if message == "" {
		return Entry{}, false
	}

	entry := Entry{Message: message}

	if usec, err := strconv.ParseUint(meta[2], 10, 64); err == nil && !bootTime.IsZero() {
		ts := bootTime.Add(time.Duration(usec) * time.Microsecond).UTC()
		entry.Timestamp = &ts
	}

	return entry, true
}
