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

package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/usbtrace/usbtrace/pkg/logger"
)

const devicePage = `<html><body>
<div class="details details--type-vendor">
  <h2 class="details__heading">SanDisk Corp.</h2>
</div>
<div class="details details--type-device">
  <h2 class="details__heading">
    Cruzer Blade
  </h2>
</div>
</body></html>`

func TestLookupScrapesNames(t *testing.T) {
	var requested string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write([]byte(devicePage))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logger.NewTestLogger())

	res := c.Lookup(context.Background(), "0781", "5567")
	assert.Equal(t, "/view/type/usb/vendor/0781/device/5567", requested)
	assert.Equal(t, "SanDisk Corp.", res.VendorName)
	assert.Equal(t, "Cruzer Blade", res.ProductDescription)
}

func TestLookupUnknownDevicePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>No matches found</p></body></html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logger.NewTestLogger())

	res := c.Lookup(context.Background(), "dead", "beef")
	assert.Empty(t, res.VendorName)
	assert.Empty(t, res.ProductDescription)
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logger.NewTestLogger())

	assert.Equal(t, Result{}, c.Lookup(context.Background(), "0781", "5567"))
}

func TestLookupNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, time.Second, logger.NewTestLogger())

	assert.Equal(t, Result{}, c.Lookup(context.Background(), "0781", "5567"))
}

func TestLookupMissingIDs(t *testing.T) {
	c := NewClient("http://example.invalid", time.Second, logger.NewTestLogger())

	assert.Equal(t, Result{}, c.Lookup(context.Background(), "", "5567"))
	assert.Equal(t, Result{}, c.Lookup(context.Background(), "0781", ""))
}
