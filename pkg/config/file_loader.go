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
	"fmt"
	"os"
	"strings"
)

// envPrefix namespaces the environment overrides applied after the
// file load.
const envPrefix = "USBTRACE_"

// Load reads the configuration: defaults, then the optional JSON file,
// then environment overrides, then validation. An empty path skips the
// file layer.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFile(ctx, path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(_ context.Context, path string, dst *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "KMSG_PATH"); v != "" {
		cfg.KmsgPath = v
	}

	if v := os.Getenv(envPrefix + "SYSLOG_PATHS"); v != "" {
		parts := strings.Split(v, ",")

		paths := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}

		if len(paths) > 0 {
			cfg.SyslogPaths = paths
		}
	}

	if v := os.Getenv(envPrefix + "SETUPAPI_GLOB"); v != "" {
		cfg.SetupAPIGlob = v
	}

	if v := os.Getenv(envPrefix + "ENRICH"); v != "" {
		v = strings.ToLower(v)
		cfg.Enrichment.Enabled = v == "true" || v == "1" || v == "yes" || v == "on"
	}
}
