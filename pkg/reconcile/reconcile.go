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

// Package reconcile folds partial USB observations into canonical
// device records keyed by serial number.
package reconcile

import (
	"strings"

	"github.com/google/uuid"

	"github.com/usbtrace/usbtrace/pkg/models"
)

// Record is one reconciled device along with the platform-only extras
// accumulated across its observations.
type Record struct {
	// Key is the reconciliation key: the serial number, or a
	// synthesized unique key when no serial was ever observed.
	Key string

	Device *models.USBDevice

	// Extras holds merged platform-only fields, filled in by the same
	// never-overwrite rule as the canonical fields.
	Extras map[string]string

	// Observations counts how many observations were folded in.
	Observations int
}

// Reconciler accumulates observations and exposes the canonical
// records in order of first appearance. It is not safe for concurrent
// use; a scan is a single-threaded fold.
type Reconciler struct {
	records map[string]*Record
	order   []string

	// newKey synthesizes a key for serial-less observations. Settable
	// in tests for reproducible output.
	newKey func() string
}

// New returns an empty Reconciler.
func New() *Reconciler {
	return &Reconciler{
		records: make(map[string]*Record),
		newKey:  func() string { return "anon:" + uuid.NewString() },
	}
}

// Reconcile folds a full observation sequence and returns the records
// in first-appearance order.
func Reconcile(observations []models.Observation) []*Record {
	r := New()
	for i := range observations {
		r.Add(observations[i])
	}

	return r.Records()
}

// Add folds one observation into the mapping. An observation without a
// serial number gets a synthesized unique key and can never merge with
// another record; this is a known limitation of serial-keyed history.
func (r *Reconciler) Add(obs models.Observation) {
	key := strings.TrimSpace(obs.SerialNumber)
	if key == "" {
		key = r.newKey()
	}

	rec, ok := r.records[key]
	if !ok {
		rec = &Record{Key: key, Device: &models.USBDevice{}}
		r.records[key] = rec
		r.order = append(r.order, key)
	}

	rec.Observations++
	mergeDevice(rec.Device, &obs)

	for k, v := range obs.Extras {
		if v == "" {
			continue
		}

		if rec.Extras == nil {
			rec.Extras = make(map[string]string)
		}

		if _, exists := rec.Extras[k]; !exists {
			rec.Extras[k] = v
		}
	}
}

// Records returns the reconciled records in insertion order of first
// appearance, so repeated runs over the same input produce identical
// output.
func (r *Reconciler) Records() []*Record {
	out := make([]*Record, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.records[key])
	}

	return out
}

// Devices returns just the canonical devices in first-appearance order.
func (r *Reconciler) Devices() []*models.USBDevice {
	records := r.Records()

	out := make([]*models.USBDevice, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Device)
	}

	return out
}

// mergeDevice applies the fill-in rule: an existing non-empty value is
// never replaced. Conflicting vendor/product IDs therefore resolve to
// the first non-empty value seen; the conflict is not flagged.
func mergeDevice(dst *models.USBDevice, obs *models.Observation) {
	fillIn(&dst.SerialNumber, obs.SerialNumber)
	fillIn(&dst.VendorID, obs.VendorID)
	fillIn(&dst.ProductID, obs.ProductID)
	fillIn(&dst.Version, obs.Version)
	fillIn(&dst.FriendlyName, obs.FriendlyName)
	fillIn(&dst.Manufacturer, obs.Manufacturer)
	fillIn(&dst.Product, obs.Product)

	if dst.DeviceSize == nil && obs.DeviceSize != nil {
		size := *obs.DeviceSize
		dst.DeviceSize = &size
	}

	mergeTimestamps(dst, obs)
}

// mergeTimestamps folds the observation time into the first/last
// connect window: min for first (unset treated as +inf), max for last
// (unset treated as -inf). A record's dates stay unset only when no
// observation ever carried a timestamp.
func mergeTimestamps(dst *models.USBDevice, obs *models.Observation) {
	if obs.Timestamp == nil {
		return
	}

	ts := obs.Timestamp.UTC()

	if dst.FirstConnectDate == nil || ts.Before(*dst.FirstConnectDate) {
		first := ts
		dst.FirstConnectDate = &first
	}

	if dst.LastConnectDate == nil || ts.After(*dst.LastConnectDate) {
		last := ts
		dst.LastConnectDate = &last
	}
}

func fillIn(dst *string, value string) {
	if *dst != "" {
		return
	}

	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
