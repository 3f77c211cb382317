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

import "strings"

const hexIDWidth = 4

// NormalizeHexID canonicalizes a USB vendor or product identifier into
// the fixed 4-digit lowercase hexadecimal form used for comparison and
// enrichment lookups. Inputs that are not hexadecimal are returned
// empty rather than guessed at.
func NormalizeHexID(raw string) string {
	id := strings.TrimSpace(strings.ToLower(raw))
	id = strings.TrimPrefix(id, "0x")

	if id == "" || len(id) > hexIDWidth {
		return ""
	}

	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}

	return strings.Repeat("0", hexIDWidth-len(id)) + id
}
