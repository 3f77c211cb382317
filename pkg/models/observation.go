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

package models

import "time"

// Observation is one parsed, possibly partial event extracted from a
// platform log or registry entry. Observations are ephemeral: parsers
// produce them, the reconciler folds them into canonical records, and
// they are never retained.
type Observation struct {
	SerialNumber string
	VendorID     string
	ProductID    string
	Version      string
	FriendlyName string
	Manufacturer string
	Product      string
	DeviceSize   *uint64

	Timestamp *time.Time
	Event     EventType

	// Extras carries platform-only fields (registry parent prefix ID,
	// syslog product strings, bus/device numbers) that the reconciler
	// merges by the same fill-in rule but does not interpret.
	Extras map[string]string
}

// Extra values recognized by the platform viewers.
const (
	ExtraUSBSTORVendor      = "usbstor_vendor"
	ExtraUSBSTORProduct     = "usbstor_product"
	ExtraParentPrefixID     = "parent_prefix_id"
	ExtraGUID               = "guid"
	ExtraDriveLetter        = "drive_letter"
	ExtraSyslogManufacturer = "syslog_manufacturer"
	ExtraSyslogProduct      = "syslog_product"
	ExtraBusNumber          = "bus_number"
	ExtraDeviceNumber       = "device_number"
)

// SetExtra records a platform-only field, dropping empty values so the
// fill-in merge never sees them.
func (o *Observation) SetExtra(key, value string) {
	if value == "" {
		return
	}

	if o.Extras == nil {
		o.Extras = make(map[string]string)
	}

	o.Extras[key] = value
}
