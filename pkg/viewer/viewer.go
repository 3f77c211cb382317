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

// Package viewer ties a platform history source to the reconciler and
// exposes the scan as a single operation. A viewer is selected once,
// at startup, for the operating system the process runs on.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/usbtrace/usbtrace/pkg/config"
	"github.com/usbtrace/usbtrace/pkg/enrich"
	"github.com/usbtrace/usbtrace/pkg/logger"
	"github.com/usbtrace/usbtrace/pkg/models"
	"github.com/usbtrace/usbtrace/pkg/reconcile"
	"github.com/usbtrace/usbtrace/pkg/syslog"
	"github.com/usbtrace/usbtrace/pkg/winreg"
)

var (
	// ErrSourceUnavailable wraps a platform source that could not be
	// opened at all. Callers check it with errors.Is.
	ErrSourceUnavailable = errors.New("usb history source unavailable")

	// ErrUnsupportedPlatform is returned by NewViewer when no viewer
	// exists for the detected operating system.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Viewer produces the reconciled device history for one platform.
type Viewer interface {
	GetUSBDevices(ctx context.Context) ([]models.Device, error)
}

// observationSource is the slice of syslog.Source and winreg.Source
// the viewers consume.
type observationSource interface {
	Observations(ctx context.Context) ([]models.Observation, error)
}

type enricher interface {
	Lookup(ctx context.Context, vendorID, productID string) enrich.Result
}

const detectTimeout = 2 * time.Second

// hostInfo is swappable in tests.
var hostInfo = host.InfoWithContext

// NewViewer selects the viewer for the operating system the process
// runs on. Detection happens once here; the returned viewer never
// re-detects.
func NewViewer(ctx context.Context, cfg *config.Config, log logger.Logger) (Viewer, error) {
	os := detectOS(ctx)

	var enr enricher
	if cfg.Enrichment.Enabled {
		enr = enrich.NewClient(cfg.Enrichment.BaseURL, time.Duration(cfg.Enrichment.Timeout), log)
	}

	switch os {
	case "linux":
		return &linuxViewer{
			source:   syslog.NewSource(cfg.KmsgPath, cfg.SyslogPaths, log),
			enricher: enr,
			log:      log,
		}, nil
	case "windows":
		return &windowsViewer{
			source:   winreg.NewSource(cfg.SetupAPIGlob, log),
			enricher: enr,
			log:      log,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, os)
	}
}

func detectOS(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	info, err := hostInfo(ctx)
	if err != nil || info == nil || info.OS == "" {
		return runtime.GOOS
	}

	return info.OS
}

type linuxViewer struct {
	source   observationSource
	enricher enricher
	log      logger.Logger
}

func (v *linuxViewer) GetUSBDevices(ctx context.Context) ([]models.Device, error) {
	records, err := scan(ctx, v.source)
	if err != nil {
		return nil, err
	}

	enrichRecords(ctx, v.enricher, records)

	devices := make([]models.Device, 0, len(records))

	for _, rec := range records {
		dev := &models.USBDeviceLinux{
			USBDevice:          *rec.Device,
			SyslogManufacturer: rec.Extras[models.ExtraSyslogManufacturer],
			SyslogProduct:      rec.Extras[models.ExtraSyslogProduct],
			BusNumber:          atoiOrZero(rec.Extras[models.ExtraBusNumber]),
			DeviceNumber:       atoiOrZero(rec.Extras[models.ExtraDeviceNumber]),
		}
		devices = append(devices, dev)
	}

	v.log.Info().Int("devices", len(devices)).Msg("Kernel log scan complete")

	return devices, nil
}

type windowsViewer struct {
	source   observationSource
	enricher enricher
	log      logger.Logger
}

func (v *windowsViewer) GetUSBDevices(ctx context.Context) ([]models.Device, error) {
	records, err := scan(ctx, v.source)
	if err != nil {
		return nil, err
	}

	enrichRecords(ctx, v.enricher, records)

	devices := make([]models.Device, 0, len(records))

	for _, rec := range records {
		dev := &models.USBDeviceWindows{
			USBDevice:      *rec.Device,
			USBSTORVendor:  rec.Extras[models.ExtraUSBSTORVendor],
			USBSTORProduct: rec.Extras[models.ExtraUSBSTORProduct],
			ParentPrefixID: rec.Extras[models.ExtraParentPrefixID],
			GUID:           rec.Extras[models.ExtraGUID],
			DriveLetter:    rec.Extras[models.ExtraDriveLetter],
		}
		devices = append(devices, dev)
	}

	v.log.Info().Int("devices", len(devices)).Msg("Registry scan complete")

	return devices, nil
}

// scan runs one source read and folds the observations. A source that
// cannot be opened at all crosses the boundary as ErrSourceUnavailable;
// per-entry parse failures were already absorbed inside the source.
func scan(ctx context.Context, src observationSource) ([]*reconcile.Record, error) {
	observations, err := src.Observations(ctx)
	if err != nil {
		if errors.Is(err, syslog.ErrSourceUnavailable) || errors.Is(err, winreg.ErrSourceUnavailable) {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, err)
		}

		return nil, err
	}

	return reconcile.Reconcile(observations), nil
}

// enrichRecords fills VendorName and ProductDescription from the
// lookup service. Lookups are cached per ID pair; failures leave the
// fields empty.
func enrichRecords(ctx context.Context, enr enricher, records []*reconcile.Record) {
	if enr == nil {
		return
	}

	cache := make(map[string]enrich.Result)

	for _, rec := range records {
		dev := rec.Device
		if dev.VendorName != "" && dev.ProductDescription != "" {
			continue
		}

		key := dev.VendorID + ":" + dev.ProductID

		res, ok := cache[key]
		if !ok {
			res = enr.Lookup(ctx, dev.VendorID, dev.ProductID)
			cache[key] = res
		}

		if dev.VendorName == "" {
			dev.VendorName = res.VendorName
		}

		if dev.ProductDescription == "" {
			dev.ProductDescription = res.ProductDescription
		}
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}

	return n
}
