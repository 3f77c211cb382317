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

package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "/dev/kmsg", cfg.KmsgPath)
	assert.Contains(t, cfg.SyslogPaths, "/var/log/syslog*")
	assert.True(t, cfg.Enrichment.Enabled)
	assert.Equal(t, Duration(10*time.Second), cfg.Enrichment.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbtrace.json")
	content := `{
		"kmsg_path": "",
		"syslog_paths": ["/tmp/syslog*"],
		"enrichment": {"enabled": false, "timeout": "3s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, cfg.KmsgPath)
	assert.Equal(t, []string{"/tmp/syslog*"}, cfg.SyslogPaths)
	assert.False(t, cfg.Enrichment.Enabled)
	assert.Equal(t, Duration(3*time.Second), cfg.Enrichment.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptySyslogPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbtrace.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"syslog_paths": []}`), 0o600))

	_, err := Load(context.Background(), path)
	assert.ErrorIs(t, err, errNoSyslogPaths)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("USBTRACE_SYSLOG_PATHS", "/a*, /b*")
	t.Setenv("USBTRACE_ENRICH", "false")
	t.Setenv("USBTRACE_SETUPAPI_GLOB", `D:\logs\setupapi.dev*.log`)

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"/a*", "/b*"}, cfg.SyslogPaths)
	assert.False(t, cfg.Enrichment.Enabled)
	assert.Equal(t, `D:\logs\setupapi.dev*.log`, cfg.SetupAPIGlob)
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string form", input: `"1m30s"`, expected: Duration(90 * time.Second)},
		{name: "numeric nanoseconds", input: `1000000000`, expected: Duration(time.Second)},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bad type", input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
