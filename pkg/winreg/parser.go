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

// Package winreg reads USB mass-storage history out of the Windows
// registry and the setupapi device-install logs. The registry access
// itself is Windows-only; the parsing helpers in this file are pure so
// they stay testable everywhere.
package winreg

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrSourceUnavailable is returned when the registry hives backing the
// scan could not be opened at all.
var ErrSourceUnavailable = errors.New("windows registry source unavailable")

// StorKeyName is the decomposition of a USBSTOR device key name such
// as "Disk&Ven_SanDisk&Prod_Cruzer_Blade&Rev_1.26".
type StorKeyName struct {
	Vendor  string
	Product string
	Version string
}

// ParseStorKeyName splits a USBSTOR subkey name into its vendor,
// product and revision parts. Only Disk-class entries are accepted.
func ParseStorKeyName(name string) (StorKeyName, bool) {
	parts := strings.Split(name, "&")
	if len(parts) != 4 || parts[0] != "Disk" {
		return StorKeyName{}, false
	}

	return StorKeyName{
		Vendor:  strings.TrimPrefix(parts[1], "Ven_"),
		Product: strings.TrimPrefix(parts[2], "Prod_"),
		Version: strings.TrimPrefix(parts[3], "Rev_"),
	}, true
}

// ParseUSBKeyName extracts the vendor and product IDs from an Enum\USB
// subkey name such as "VID_0781&PID_5567" (possibly with trailing
// interface parts).
func ParseUSBKeyName(name string) (vendorID, productID string, ok bool) {
	for _, part := range strings.Split(name, "&") {
		switch {
		case strings.HasPrefix(part, "VID_"):
			vendorID = strings.ToLower(strings.TrimPrefix(part, "VID_"))
		case strings.HasPrefix(part, "PID_"):
			productID = strings.ToLower(strings.TrimPrefix(part, "PID_"))
		}
	}

	return vendorID, productID, vendorID != "" && productID != ""
}

// SerialFromInstanceKey recovers the serial number from a device
// instance key name: everything before the first '&'.
func SerialFromInstanceKey(name string) string {
	if idx := strings.IndexByte(name, '&'); idx >= 0 {
		return name[:idx]
	}

	return name
}

const (
	filetimeTicksPerSecond = 10_000_000
	filetimeToUnixSeconds  = 11_644_473_600
)

// FiletimeToTime converts a Windows FILETIME (100 ns intervals since
// 1601-01-01) into wall-clock time.
func FiletimeToTime(ft uint64) time.Time {
	secs := int64(ft/filetimeTicksPerSecond) - filetimeToUnixSeconds
	nanos := int64(ft%filetimeTicksPerSecond) * 100

	return time.Unix(secs, nanos).UTC()
}

// BinaryToASCII filters a registry binary value (typically UTF-16
// text) down to its printable ASCII bytes, matching how mounted-device
// values are compared against device instance IDs.
func BinaryToASCII(data []byte) string {
	var b strings.Builder

	for _, c := range data {
		if c > 0 && c < 128 {
			b.WriteByte(c)
		}
	}

	return b.String()
}

// VolumeGUID extracts the "{...}" GUID from a MountedDevices value
// name like `\??\Volume{1234-...}`.
func VolumeGUID(valueName string) (string, bool) {
	if !strings.Contains(valueName, `\Volume`) {
		return "", false
	}

	idx := strings.IndexByte(valueName, '{')
	if idx < 0 {
		return "", false
	}

	return valueName[idx:], true
}

// InstallEvent is one successful device-install section from a
// setupapi.dev.log file.
type InstallEvent struct {
	Header    string
	Timestamp time.Time
}

// MatchesSerial reports whether the install section belongs to the
// device with the given serial number.
func (e InstallEvent) MatchesSerial(serial string) bool {
	return serial != "" && strings.Contains(e.Header, serial)
}

const setupAPITimeLayout = "2006/01/02 15:04:05"

// ParseInstallLog scans a setupapi.dev.log stream for successful
// "Device Install" sections and their start timestamps. Sections are
// delimited by paired ">>>" header lines and paired "<<<" footer
// lines. Malformed sections are skipped.
func ParseInstallLog(r io.Reader) []InstallEvent {
	var (
		events  []InstallEvent
		section []string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, ">>>"):
			if len(section) == 0 || len(section) == 1 {
				section = append(section, line)
				continue
			}

			// A header inside an unterminated section starts over.
			section = []string{line}
		case strings.HasPrefix(line, "<<<"):
			if len(section) < 2 {
				section = nil
				continue
			}

			section = append(section, line)

			if strings.Contains(line, "Exit status") || strings.Contains(line, "Section end") {
				if ev, ok := installEventFromSection(section); ok {
					events = append(events, ev)
					section = nil
				}
			}
		default:
			if len(section) > 0 {
				section = append(section, line)
			}
		}
	}

	return events
}

// installEventFromSection validates a completed section: the header
// must be a device install, the footer must report SUCCESS, and the
// section-start line must carry a parsable timestamp.
func installEventFromSection(section []string) (InstallEvent, bool) {
	if len(section) < 3 {
		return InstallEvent{}, false
	}

	header := section[0]
	if !strings.Contains(header, "Device Install") {
		return InstallEvent{}, false
	}

	if !strings.Contains(section[len(section)-1], "SUCCESS") {
		return InstallEvent{}, false
	}

	for _, line := range section[1:] {
		if !strings.Contains(line, "Section start") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		stamp := fields[len(fields)-2] + " " + fields[len(fields)-1]

		// Drop fractional seconds.
		if dot := strings.LastIndexByte(stamp, '.'); dot >= 0 {
			stamp = stamp[:dot]
		}

		t, err := time.Parse(setupAPITimeLayout, stamp)
		if err != nil {
			continue
		}

		return InstallEvent{Header: header, Timestamp: t.UTC()}, true
	}

	return InstallEvent{}, false
}
