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

//go:build windows

package winreg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/usbtrace/usbtrace/pkg/logger"
	"github.com/usbtrace/usbtrace/pkg/models"
)

const (
	usbstorPath         = `SYSTEM\CurrentControlSet\Enum\USBSTOR`
	usbPath             = `SYSTEM\CurrentControlSet\Enum\USB`
	mountedDevicesPath  = `SYSTEM\MountedDevices`
	portableDevicesPath = `SOFTWARE\Microsoft\Windows Portable Devices\Devices`
	mountPointsPath     = `SOFTWARE\Microsoft\Windows\CurrentVersion\Explorer\MountPoints2`
)

// Source reads USB mass-storage history from the registry hives and
// the setupapi device-install logs.
type Source struct {
	setupAPIGlob string
	log          logger.Logger
}

// NewSource builds a Source. setupAPIGlob may be empty to skip the
// install-log pass.
func NewSource(setupAPIGlob string, log logger.Logger) *Source {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Source{setupAPIGlob: setupAPIGlob, log: log}
}

// Observations scans the registry for USB storage device instances.
// Only a failure to open the USBSTOR enumeration hive is fatal;
// secondary hives enrich the observations on a best-effort basis.
func (s *Source) Observations(ctx context.Context) ([]models.Observation, error) {
	stor, err := registry.OpenKey(registry.LOCAL_MACHINE, usbstorPath, registry.READ)
	if err != nil {
		return nil, fmt.Errorf("%w: open USBSTOR: %s", ErrSourceUnavailable, err)
	}
	defer stor.Close()

	observations, bySerial, err := s.readStorInstances(ctx, stor)
	if err != nil {
		return nil, err
	}

	s.fillVendorProductIDs(bySerial)
	s.fillVolumeGUIDs(observations)
	s.fillDriveLetters(observations)

	observations = append(observations, s.mountPointEvents(observations)...)
	observations = append(observations, s.installEvents(bySerial)...)

	s.log.Info().
		Int("observations", len(observations)).
		Msg("registry scan complete")

	return observations, nil
}

// readStorInstances walks USBSTOR\<Disk&Ven_*>\<serial&instance>,
// producing one observation per device instance. The instance key's
// last-write time serves as the connect timestamp: Windows keeps no
// per-event history in the hive.
func (s *Source) readStorInstances(ctx context.Context, stor registry.Key) ([]models.Observation, map[string]*models.Observation, error) {
	storKeys, err := stor.ReadSubKeyNames(-1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: enumerate USBSTOR: %s", ErrSourceUnavailable, err)
	}

	var observations []models.Observation

	for _, storName := range storKeys {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		keyName, ok := ParseStorKeyName(storName)
		if !ok {
			continue
		}

		deviceKey, err := registry.OpenKey(stor, storName, registry.READ)
		if err != nil {
			s.log.Debug().Err(err).Str("key", storName).Msg("skipping unreadable USBSTOR key")
			continue
		}

		instances, err := deviceKey.ReadSubKeyNames(-1)
		if err != nil {
			deviceKey.Close()
			s.log.Debug().Err(err).Str("key", storName).Msg("skipping unreadable USBSTOR instances")

			continue
		}

		for _, instance := range instances {
			obs, err := s.readInstance(deviceKey, keyName, instance)
			if err != nil {
				s.log.Debug().Err(err).Str("instance", instance).Msg("skipping device instance")
				continue
			}

			observations = append(observations, obs)
		}

		deviceKey.Close()
	}

	// Index after collection so the pointers survive slice growth.
	bySerial := make(map[string]*models.Observation, len(observations))
	for i := range observations {
		bySerial[observations[i].SerialNumber] = &observations[i]
	}

	return observations, bySerial, nil
}

func (s *Source) readInstance(deviceKey registry.Key, keyName StorKeyName, instance string) (models.Observation, error) {
	key, err := registry.OpenKey(deviceKey, instance, registry.READ)
	if err != nil {
		return models.Observation{}, err
	}
	defer key.Close()

	obs := models.Observation{
		SerialNumber: SerialFromInstanceKey(instance),
		Version:      keyName.Version,
		Event:        models.EventConnect,
	}

	obs.SetExtra(models.ExtraUSBSTORVendor, keyName.Vendor)
	obs.SetExtra(models.ExtraUSBSTORProduct, keyName.Product)

	if friendly, _, err := key.GetStringValue("FriendlyName"); err == nil {
		obs.FriendlyName = friendly
	}

	parentPrefix := instance
	if v, _, err := key.GetStringValue("ParentPrefixId"); err == nil && v != "" {
		parentPrefix = v
	}

	obs.SetExtra(models.ExtraParentPrefixID, parentPrefix)

	if info, err := key.Stat(); err == nil {
		ts := info.ModTime().UTC()
		obs.Timestamp = &ts
	}

	return obs, nil
}

// fillVendorProductIDs maps serial numbers to VID/PID pairs through
// the Enum\USB hive.
func (s *Source) fillVendorProductIDs(bySerial map[string]*models.Observation) {
	usb, err := registry.OpenKey(registry.LOCAL_MACHINE, usbPath, registry.READ)
	if err != nil {
		s.log.Debug().Err(err).Msg("Enum\\USB unavailable, vendor/product IDs unresolved")
		return
	}
	defer usb.Close()

	keys, err := usb.ReadSubKeyNames(-1)
	if err != nil {
		return
	}

	for _, name := range keys {
		vendorID, productID, ok := ParseUSBKeyName(name)
		if !ok {
			continue
		}

		idKey, err := registry.OpenKey(usb, name, registry.READ)
		if err != nil {
			continue
		}

		serials, err := idKey.ReadSubKeyNames(-1)
		idKey.Close()

		if err != nil {
			continue
		}

		for _, serial := range serials {
			if obs, ok := bySerial[serial]; ok {
				obs.VendorID = models.NormalizeHexID(vendorID)
				obs.ProductID = models.NormalizeHexID(productID)
			}
		}
	}
}

// fillVolumeGUIDs matches MountedDevices binary values against each
// device's parent prefix ID to recover its volume GUID.
func (s *Source) fillVolumeGUIDs(observations []models.Observation) {
	mounted, err := registry.OpenKey(registry.LOCAL_MACHINE, mountedDevicesPath, registry.READ)
	if err != nil {
		s.log.Debug().Err(err).Msg("MountedDevices unavailable, volume GUIDs unresolved")
		return
	}
	defer mounted.Close()

	valueNames, err := mounted.ReadValueNames(-1)
	if err != nil {
		return
	}

	for _, valueName := range valueNames {
		guid, ok := VolumeGUID(valueName)
		if !ok {
			continue
		}

		data, _, err := mounted.GetBinaryValue(valueName)
		if err != nil {
			continue
		}

		decoded := BinaryToASCII(data)

		for i := range observations {
			prefix := observations[i].Extras[models.ExtraParentPrefixID]
			if prefix != "" && strings.Contains(decoded, prefix) {
				observations[i].SetExtra(models.ExtraGUID, guid)
			}
		}
	}
}

// fillDriveLetters recovers the user-visible drive name from the
// Windows Portable Devices hive.
func (s *Source) fillDriveLetters(observations []models.Observation) {
	portable, err := registry.OpenKey(registry.LOCAL_MACHINE, portableDevicesPath, registry.READ)
	if err != nil {
		s.log.Debug().Err(err).Msg("Portable Devices unavailable, drive letters unresolved")
		return
	}
	defer portable.Close()

	keys, err := portable.ReadSubKeyNames(-1)
	if err != nil {
		return
	}

	for _, name := range keys {
		for i := range observations {
			prefix := observations[i].Extras[models.ExtraParentPrefixID]
			if prefix == "" || !strings.Contains(name, prefix) {
				continue
			}

			deviceKey, err := registry.OpenKey(portable, name, registry.READ)
			if err != nil {
				continue
			}

			if letter, _, err := deviceKey.GetStringValue("FriendlyName"); err == nil {
				observations[i].SetExtra(models.ExtraDriveLetter, letter)
			}

			deviceKey.Close()
		}
	}
}

// mountPointEvents reads the current user's MountPoints2 hive: the
// per-GUID key write time records the most recent mount, giving a
// last-connect event per device.
func (s *Source) mountPointEvents(observations []models.Observation) []models.Observation {
	points, err := registry.OpenKey(registry.CURRENT_USER, mountPointsPath, registry.READ)
	if err != nil {
		s.log.Debug().Err(err).Msg("MountPoints2 unavailable, last-connect times unresolved")
		return nil
	}
	defer points.Close()

	guids, err := points.ReadSubKeyNames(-1)
	if err != nil {
		return nil
	}

	var events []models.Observation

	for _, guid := range guids {
		for i := range observations {
			if observations[i].Extras[models.ExtraGUID] != guid {
				continue
			}

			guidKey, err := registry.OpenKey(points, guid, registry.READ)
			if err != nil {
				continue
			}

			if info, err := guidKey.Stat(); err == nil {
				ts := info.ModTime().UTC()
				events = append(events, models.Observation{
					SerialNumber: observations[i].SerialNumber,
					Event:        models.EventConnect,
					Timestamp:    &ts,
				})
			}

			guidKey.Close()
		}
	}

	return events
}

// installEvents parses the setupapi device-install logs for the
// first-connect timestamps of known serials.
func (s *Source) installEvents(bySerial map[string]*models.Observation) []models.Observation {
	if s.setupAPIGlob == "" {
		return nil
	}

	paths, err := filepath.Glob(s.setupAPIGlob)
	if err != nil {
		s.log.Debug().Err(err).Str("glob", s.setupAPIGlob).Msg("bad setupapi glob")
		return nil
	}

	var events []models.Observation

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("skipping unreadable setupapi log")
			continue
		}

		for _, ev := range ParseInstallLog(f) {
			for serial := range bySerial {
				if !ev.MatchesSerial(serial) {
					continue
				}

				ts := ev.Timestamp
				events = append(events, models.Observation{
					SerialNumber: serial,
					Event:        models.EventConnect,
					Timestamp:    &ts,
				})
			}
		}

		f.Close()
	}

	return events
}
