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

package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbtrace/usbtrace/pkg/models"
)

func tsPtr(t time.Time) *time.Time { return &t }

func TestMergeExampleScenario(t *testing.T) {
	// Two observations for ABC123: a later one first, then an earlier
	// one carrying a previously unset manufacturer.
	later := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	earlier := time.Date(2023, 1, 2, 9, 0, 0, 0, time.UTC)

	records := Reconcile([]models.Observation{
		{SerialNumber: "ABC123", Timestamp: tsPtr(later)},
		{SerialNumber: "ABC123", Timestamp: tsPtr(earlier), Manufacturer: "Acme"},
	})

	require.Len(t, records, 1)

	dev := records[0].Device
	require.NotNil(t, dev.FirstConnectDate)
	require.NotNil(t, dev.LastConnectDate)
	assert.Equal(t, earlier, *dev.FirstConnectDate)
	assert.Equal(t, later, *dev.LastConnectDate)
	assert.Equal(t, "Acme", dev.Manufacturer)
	assert.Equal(t, 2, records[0].Observations)
}

func TestTimestampMergeCommutative(t *testing.T) {
	a := models.Observation{SerialNumber: "S1", Timestamp: tsPtr(time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC))}
	b := models.Observation{SerialNumber: "S1", Timestamp: tsPtr(time.Date(2023, 2, 14, 23, 30, 0, 0, time.UTC))}

	ab := Reconcile([]models.Observation{a, b})
	ba := Reconcile([]models.Observation{b, a})

	require.Len(t, ab, 1)
	require.Len(t, ba, 1)
	assert.Equal(t, ab[0].Device.FirstConnectDate, ba[0].Device.FirstConnectDate)
	assert.Equal(t, ab[0].Device.LastConnectDate, ba[0].Device.LastConnectDate)
}

func TestFillInNeverRegresses(t *testing.T) {
	r := New()
	r.Add(models.Observation{SerialNumber: "S1", FriendlyName: "SanDisk Cruzer", VendorID: "0781"})
	r.Add(models.Observation{SerialNumber: "S1", FriendlyName: "", VendorID: ""})

	records := r.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "SanDisk Cruzer", records[0].Device.FriendlyName)
	assert.Equal(t, "0781", records[0].Device.VendorID)
}

func TestConflictingIDsFirstNonEmptyWins(t *testing.T) {
	r := New()
	r.Add(models.Observation{SerialNumber: "S1", VendorID: "0781", ProductID: "5567"})
	r.Add(models.Observation{SerialNumber: "S1", VendorID: "dead", ProductID: "beef"})

	records := r.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "0781", records[0].Device.VendorID)
	assert.Equal(t, "5567", records[0].Device.ProductID)
}

func TestIdempotentReconciliation(t *testing.T) {
	obs := models.Observation{
		SerialNumber: "S1",
		VendorID:     "0781",
		Manufacturer: "SanDisk",
		Timestamp:    tsPtr(time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)),
	}

	once := Reconcile([]models.Observation{obs})
	twice := Reconcile([]models.Observation{obs, obs})

	require.Len(t, once, 1)
	require.Len(t, twice, 1)
	assert.Equal(t, once[0].Device, twice[0].Device)
}

func TestDeterministicOrder(t *testing.T) {
	observations := []models.Observation{
		{SerialNumber: "C", Timestamp: tsPtr(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC))},
		{SerialNumber: "A", Timestamp: tsPtr(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))},
		{SerialNumber: "B", Timestamp: tsPtr(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))},
		{SerialNumber: "A", Timestamp: tsPtr(time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC))},
	}

	for run := 0; run < 5; run++ {
		records := Reconcile(observations)
		require.Len(t, records, 3)
		assert.Equal(t, "C", records[0].Key)
		assert.Equal(t, "A", records[1].Key)
		assert.Equal(t, "B", records[2].Key)
	}
}

func TestSerialLessObservationsNeverMerge(t *testing.T) {
	r := New()

	n := 0
	r.newKey = func() string {
		n++
		return fmt.Sprintf("anon:%d", n)
	}

	r.Add(models.Observation{VendorID: "0781", ProductID: "5567"})
	r.Add(models.Observation{VendorID: "0781", ProductID: "5567"})

	records := r.Records()
	require.Len(t, records, 2)
	assert.Empty(t, records[0].Device.SerialNumber)
	assert.NotEqual(t, records[0].Key, records[1].Key)
}

func TestTimestamplessObservationLeavesDatesUnset(t *testing.T) {
	records := Reconcile([]models.Observation{{SerialNumber: "S1", VendorID: "0781"}})

	require.Len(t, records, 1)
	assert.Nil(t, records[0].Device.FirstConnectDate)
	assert.Nil(t, records[0].Device.LastConnectDate)
}

func TestExtrasFillIn(t *testing.T) {
	r := New()
	r.Add(models.Observation{
		SerialNumber: "S1",
		Extras:       map[string]string{models.ExtraDriveLetter: "E:\\"},
	})
	r.Add(models.Observation{
		SerialNumber: "S1",
		Extras: map[string]string{
			models.ExtraDriveLetter: "F:\\",
			models.ExtraGUID:        "{abcd}",
		},
	})

	records := r.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "E:\\", records[0].Extras[models.ExtraDriveLetter])
	assert.Equal(t, "{abcd}", records[0].Extras[models.ExtraGUID])
}

func TestDeviceSizeFillIn(t *testing.T) {
	size := uint64(32000000000)

	r := New()
	r.Add(models.Observation{SerialNumber: "S1"})
	r.Add(models.Observation{SerialNumber: "S1", DeviceSize: &size})

	devices := r.Devices()
	require.Len(t, devices, 1)
	require.NotNil(t, devices[0].DeviceSize)
	assert.Equal(t, size, *devices[0].DeviceSize)
}
