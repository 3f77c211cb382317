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

// Package syslog reads USB mass-storage history out of the Linux
// kernel log stream: the live ring buffer when readable, otherwise the
// persistent syslog files including rotated and gzipped generations.
package syslog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/usbtrace/usbtrace/pkg/models"
)

// Entry is one kernel log line normalized across sources: the message
// with transport prefixes stripped, plus the extracted timestamp when
// one could be recovered.
type Entry struct {
	Message   string
	Timestamp *time.Time
}

const classicStampLayout = "Jan _2 15:04:05"

var (
	usbAddrRe       = regexp.MustCompile(`usb (\d+-[\d.]+):`)
	newDeviceRe     = regexp.MustCompile(`new .*usb device number (\d+)`)
	idPairRe        = regexp.MustCompile(`idVendor=([0-9a-fA-F]+), idProduct=([0-9a-fA-F]+)`)
	bcdDeviceRe     = regexp.MustCompile(`bcdDevice=\s*([0-9a-zA-Z.]+)`)
	logicalBlocksRe = regexp.MustCompile(`(\d+) (\d+)-byte logical blocks`)
	bracketStampRe  = regexp.MustCompile(`^\[\s*\d+\.\d+\]\s*`)
)

// ParseLine normalizes a persistent-log line into an Entry. Lines that
// are not kernel messages are rejected. yearHint supplies the year for
// the classic no-year syslog stamp, usually the log file's mtime year.
func ParseLine(line string, now time.Time, yearHint int) (Entry, bool) {
	marker := " kernel:"

	idx := strings.Index(line, marker)
	if idx < 0 {
		return Entry{}, false
	}

	message := strings.TrimSpace(line[idx+len(marker):])
	message = bracketStampRe.ReplaceAllString(message, "")

	if message == "" {
		return Entry{}, false
	}

	ts := parseStamp(line[:idx], now, yearHint)

	return Entry{Message: message, Timestamp: ts}, true
}

// parseStamp extracts the timestamp from the prefix ahead of the
// "kernel:" marker. It understands the RFC3339 form written by modern
// rsyslog and the classic month/day/time form, which carries no year.
func parseStamp(prefix string, now time.Time, yearHint int) *time.Time {
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return nil
	}

	if t, err := time.Parse(time.RFC3339Nano, fields[0]); err == nil {
		t = t.UTC()
		return &t
	}

	if len(fields) < 3 {
		return nil
	}

	stamp := strings.Join(fields[:3], " ")

	t, err := time.Parse(classicStampLayout, stamp)
	if err != nil {
		return nil
	}

	resolved := resolveYear(t, now, yearHint)

	return &resolved
}

// resolveYear pins a year-less timestamp to the most recent plausible
// year that does not place it in the future. The hint (file mtime
// year) bounds the first candidate so entries in old rotated logs are
// not pulled forward.
func resolveYear(t, now time.Time, yearHint int) time.Time {
	year := now.Year()
	if yearHint > 0 && yearHint < year {
		year = yearHint
	}

	for {
		candidate := time.Date(year, t.Month(), t.Day(),
			t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		if !candidate.After(now.UTC()) {
			return candidate
		}

		year--
	}
}

// collector groups correlated kernel log entries into observations.
// Enumeration lines open a pending device keyed by the USB bus
// address; descriptor string lines attach to it; SCSI lines, which
// carry no bus address, attach to the most recently enumerated device,
// matching how the kernel interleaves them in practice.
type collector struct {
	pending map[string]*models.Observation
	devnums map[string]string
	order   []string
	last    string

	observations []models.Observation
	skipped      int
}

func newCollector() *collector {
	return &collector{
		pending: make(map[string]*models.Observation),
		devnums: make(map[string]string),
	}
}

func (c *collector) add(e Entry) {
	msg := e.Message

	addr := ""
	if m := usbAddrRe.FindStringSubmatch(msg); m != nil {
		addr = m[1]
	}

	lower := strings.ToLower(msg)

	// The enumeration announcement ("new high-speed USB device number
	// 5 using xhci_hcd") precedes the descriptor line; remember the
	// device number for the address until the descriptor arrives.
	if addr != "" {
		if m := newDeviceRe.FindStringSubmatch(lower); m != nil {
			c.devnums[addr] = m[1]
		}
	}

	switch {
	case strings.Contains(msg, "New USB device found"):
		if addr == "" {
			c.skipped++
			return
		}

		c.open(addr, e)
	case strings.Contains(msg, "USB disconnect"):
		c.disconnect(addr, e)
	case addr != "":
		c.attach(addr, msg)
	case strings.Contains(lower, "direct-access"):
		c.attachSCSI(func(obs *models.Observation) {
			obs.FriendlyName = parseDirectAccess(msg)
		})
	case logicalBlocksRe.MatchString(msg):
		c.attachSCSI(func(obs *models.Observation) {
			if obs.DeviceSize == nil {
				obs.DeviceSize = parseDeviceSize(msg)
			}
		})
	}
}

// open starts a new pending observation for the bus address, flushing
// any previous device that was still open on it.
func (c *collector) open(addr string, e Entry) {
	if prev, ok := c.pending[addr]; ok {
		c.emit(prev)
		c.dropFromOrder(addr)
	}

	obs := &models.Observation{Event: models.EventConnect}

	if e.Timestamp != nil {
		ts := *e.Timestamp
		obs.Timestamp = &ts
	}

	if m := idPairRe.FindStringSubmatch(e.Message); m != nil {
		obs.VendorID = models.NormalizeHexID(m[1])
		obs.ProductID = models.NormalizeHexID(m[2])
	}

	if m := bcdDeviceRe.FindStringSubmatch(e.Message); m != nil {
		obs.Version = m[1]
	}

	if dash := strings.Index(addr, "-"); dash > 0 {
		obs.SetExtra(models.ExtraBusNumber, addr[:dash])
	}

	if devnum, ok := c.devnums[addr]; ok {
		obs.SetExtra(models.ExtraDeviceNumber, devnum)
		delete(c.devnums, addr)
	}

	c.pending[addr] = obs
	c.order = append(c.order, addr)
	c.last = addr
}

func (c *collector) attach(addr, msg string) {
	obs, ok := c.pending[addr]
	if !ok {
		return
	}

	switch {
	case strings.Contains(msg, "SerialNumber:"):
		obs.SerialNumber = valueAfter(msg, "SerialNumber:")
	case strings.Contains(msg, "Product:"):
		obs.Product = valueAfter(msg, "Product:")
		obs.SetExtra(models.ExtraSyslogProduct, obs.Product)
	case strings.Contains(msg, "Manufacturer:"):
		obs.Manufacturer = valueAfter(msg, "Manufacturer:")
		obs.SetExtra(models.ExtraSyslogManufacturer, obs.Manufacturer)
	}
}

func (c *collector) attachSCSI(apply func(*models.Observation)) {
	if c.last == "" {
		return
	}

	obs, ok := c.pending[c.last]
	if !ok {
		return
	}

	apply(obs)
}

// disconnect emits a disconnect observation when the serial for the
// address is known from the same stream. An unattributable disconnect
// is dropped rather than synthesized into a phantom device.
func (c *collector) disconnect(addr string, e Entry) {
	if addr == "" {
		return
	}

	obs, ok := c.pending[addr]
	if !ok || obs.SerialNumber == "" {
		return
	}

	if e.Timestamp != nil {
		disc := models.Observation{
			SerialNumber: obs.SerialNumber,
			Event:        models.EventDisconnect,
		}
		ts := *e.Timestamp
		disc.Timestamp = &ts

		c.emit(obs)
		c.dropFromOrder(addr)
		delete(c.pending, addr)
		c.observations = append(c.observations, disc)

		return
	}

	c.emit(obs)
	c.dropFromOrder(addr)
	delete(c.pending, addr)
}

func (c *collector) emit(obs *models.Observation) {
	c.observations = append(c.observations, *obs)
}

func (c *collector) dropFromOrder(addr string) {
	for i, a := range c.order {
		if a == addr {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// finish flushes devices still open at end of stream, in enumeration
// order, and returns everything collected.
func (c *collector) finish() []models.Observation {
	for _, addr := range c.order {
		if obs, ok := c.pending[addr]; ok {
			c.emit(obs)
			delete(c.pending, addr)
		}
	}

	c.order = nil

	return c.observations
}

func valueAfter(msg, label string) string {
	idx := strings.Index(msg, label)
	if idx < 0 {
		return ""
	}

	return strings.TrimSpace(msg[idx+len(label):])
}

// parseDirectAccess extracts a readable vendor/model string from a
// SCSI inquiry line, e.g.
// "scsi 6:0:0:0: Direct-Access SanDisk Cruzer Blade 1.26 PQ: 0 ANSI: 6".
func parseDirectAccess(msg string) string {
	idx := strings.Index(msg, "Direct-Access")
	if idx < 0 {
		return ""
	}

	rest := msg[idx+len("Direct-Access"):]
	if pq := strings.Index(rest, " PQ:"); pq >= 0 {
		rest = rest[:pq]
	}

	return strings.Join(strings.Fields(rest), " ")
}

// parseDeviceSize converts a "N M-byte logical blocks" report into a
// byte count.
func parseDeviceSize(msg string) *uint64 {
	m := logicalBlocksRe.FindStringSubmatch(msg)
	if m == nil {
		return nil
	}

	blocks, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return nil
	}

	blockSize, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil || blockSize == 0 {
		return nil
	}

	size := blocks * blockSize

	return &size
}
