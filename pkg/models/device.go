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

// Package models contains the canonical USB device history types shared
// by the platform viewers and the reconciler.
package models

import (
	"fmt"
	"strings"
	"time"
)

// EventType classifies a single observed USB event.
type EventType string

const (
	EventConnect    EventType = "connect"
	EventDisconnect EventType = "disconnect"
	EventUnknown    EventType = "unknown"
)

// USBDevice is the canonical, platform-agnostic record produced by
// reconciliation. Serial number is the stable identity; every other
// field may be filled in by a later, more complete observation.
type USBDevice struct {
	SerialNumber string `json:"serial_number,omitempty"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	Version      string `json:"version,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`

	// DeviceSize is the storage capacity in bytes, when the source
	// exposed one (mass-storage devices only).
	DeviceSize *uint64 `json:"device_size,omitempty"`

	FirstConnectDate *time.Time `json:"first_connect_date,omitempty"`
	LastConnectDate  *time.Time `json:"last_connect_date,omitempty"`

	// Enrichment results from the optional vendor/product lookup.
	VendorName         string `json:"vendor_name,omitempty"`
	ProductDescription string `json:"product_description,omitempty"`
}

// Device is the capability set shared by the canonical record and the
// platform variants. Reconciliation and presentation code operate only
// on this interface.
type Device interface {
	Canonical() *USBDevice
	Details() string
}

// Canonical returns the platform-agnostic subset of the record.
func (d *USBDevice) Canonical() *USBDevice { return d }

// Details renders the fixed-format multi-line description of the
// device. Unset optional fields are shown as N/A.
func (d *USBDevice) Details() string {
	var b strings.Builder

	writeDetail(&b, "Device", d.FriendlyName)
	writeDetail(&b, "Vendor Name", d.VendorName)
	writeDetail(&b, "Product Description", d.ProductDescription)
	writeDetailTime(&b, "First Connect Date", d.FirstConnectDate)
	writeDetailTime(&b, "Last Connect Date", d.LastConnectDate)
	writeDetail(&b, "Serial Number", d.SerialNumber)
	writeDetail(&b, "Vendor ID", d.VendorID)
	writeDetail(&b, "Product ID", d.ProductID)
	writeDetail(&b, "Version", d.Version)

	return b.String()
}

// USBDeviceWindows extends the canonical record with fields recovered
// only from the Windows registry.
type USBDeviceWindows struct {
	USBDevice

	USBSTORVendor  string `json:"usbstor_vendor,omitempty"`
	USBSTORProduct string `json:"usbstor_product,omitempty"`
	ParentPrefixID string `json:"parent_prefix_id,omitempty"`
	GUID           string `json:"guid,omitempty"`
	DriveLetter    string `json:"drive_letter,omitempty"`
}

func (d *USBDeviceWindows) Details() string {
	var b strings.Builder

	b.WriteString(d.USBDevice.Details())
	writeDetail(&b, "USBSTOR Vendor", d.USBSTORVendor)
	writeDetail(&b, "USBSTOR Product", d.USBSTORProduct)
	writeDetail(&b, "Drive Name", d.DriveLetter)
	writeDetail(&b, "GUID", d.GUID)
	writeDetail(&b, "Parent Prefix ID", d.ParentPrefixID)

	return b.String()
}

// USBDeviceLinux extends the canonical record with fields recovered
// only from the kernel log stream.
type USBDeviceLinux struct {
	USBDevice

	SyslogManufacturer string `json:"syslog_manufacturer,omitempty"`
	SyslogProduct      string `json:"syslog_product,omitempty"`
	BusNumber          int    `json:"bus_number,omitempty"`
	DeviceNumber       int    `json:"device_number,omitempty"`
}

func (d *USBDeviceLinux) Details() string {
	var b strings.Builder

	b.WriteString(d.USBDevice.Details())
	writeDetail(&b, "SYSLOG Manufacturer", d.SyslogManufacturer)
	writeDetail(&b, "SYSLOG Product", d.SyslogProduct)

	if d.DeviceSize != nil {
		fmt.Fprintf(&b, "Device Size: %d bytes\n", *d.DeviceSize)
	} else {
		b.WriteString("Device Size: N/A\n")
	}

	return b.String()
}

func writeDetail(b *strings.Builder, label, value string) {
	if value == "" {
		value = "N/A"
	}

	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func writeDetailTime(b *strings.Builder, label string, t *time.Time) {
	if t == nil {
		fmt.Fprintf(b, "%s: N/A\n", label)
		return
	}

	fmt.Fprintf(b, "%s: %s\n", label, t.Format(time.RFC3339))
}
