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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHexID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already normalized", input: "0781", expected: "0781"},
		{name: "uppercase", input: "0X8564", expected: "8564"},
		{name: "short id padded", input: "5e3", expected: "05e3"},
		{name: "surrounding whitespace", input: " 1b1c ", expected: "1b1c"},
		{name: "empty", input: "", expected: ""},
		{name: "non hex", input: "Ven_", expected: ""},
		{name: "too long", input: "12345", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHexID(tt.input))
		})
	}
}
