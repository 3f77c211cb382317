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

// Package enrich resolves a vendor/product ID pair to human-readable
// names via devicehunt.com. The lookup is purely additive: every
// failure mode yields empty results, never an error the scan has to
// handle.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/usbtrace/usbtrace/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Result holds the scraped display names. Empty fields mean the
// lookup could not resolve them.
type Result struct {
	VendorName         string
	ProductDescription string
}

// Client performs best-effort device name lookups.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        logger.Logger
}

// NewClient builds a lookup client. baseURL is the devicehunt root
// (overridable for tests); a zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        log,
	}
}

// Lookup fetches the devicehunt page for the ID pair and scrapes the
// vendor and device headings. Network failures and unexpected page
// shapes degrade to empty results.
func (c *Client) Lookup(ctx context.Context, vendorID, productID string) Result {
	if vendorID == "" || productID == "" {
		return Result{}
	}

	url := fmt.Sprintf("%s/view/type/usb/vendor/%s/device/%s", c.baseURL, vendorID, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Result{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("url", url).Msg("device lookup failed")
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("device lookup rejected")
		return Result{}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		c.log.Debug().Err(err).Str("url", url).Msg("device lookup page unparsable")
		return Result{}
	}

	return Result{
		VendorName:         headingForCard(doc, "--type-vendor"),
		ProductDescription: headingForCard(doc, "--type-device"),
	}
}

// headingForCard finds the card whose class carries the given marker
// and returns its details__heading text.
func headingForCard(doc *html.Node, marker string) string {
	card := findByClass(doc, marker)
	if card == nil {
		return ""
	}

	heading := findByClass(card, "details__heading")
	if heading == nil {
		return ""
	}

	return strings.TrimSpace(textOf(heading))
}

func findByClass(n *html.Node, substr string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, substr) {
				return n
			}
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByClass(child, substr); found != nil {
			return found
		}
	}

	return nil
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}

	var b strings.Builder

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textOf(child))
	}

	return b.String()
}
