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

// Package config loads and validates the scanner configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/usbtrace/usbtrace/pkg/logger"
)

var (
	errInvalidEnrichTimeout = errors.New("enrichment timeout must be positive")
	errNoSyslogPaths        = errors.New("at least one syslog path glob is required")
)

// Enrichment controls the optional vendor/product name lookup.
type Enrichment struct {
	Enabled bool     `json:"enabled"`
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
}

// Config is the full scanner configuration.
type Config struct {
	Logging *logger.Config `json:"logging,omitempty"`

	// KmsgPath is the kernel ring buffer device tried before any log
	// file. Empty disables the ring buffer source.
	KmsgPath string `json:"kmsg_path"`

	// SyslogPaths are glob patterns tried in order after the ring
	// buffer. Missing or unreadable matches are skipped.
	SyslogPaths []string `json:"syslog_paths"`

	// SetupAPIGlob matches the Windows setup logs used for
	// first-connect timestamps.
	SetupAPIGlob string `json:"setupapi_glob"`

	Enrichment Enrichment `json:"enrichment"`
}

const (
	defaultKmsgPath      = "/dev/kmsg"
	defaultSetupAPIGlob  = `C:\Windows\inf\setupapi.dev*.log`
	defaultEnrichBaseURL = "https://devicehunt.com"
	defaultEnrichTimeout = 10 * time.Second
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Logging:  logger.DefaultConfig(),
		KmsgPath: defaultKmsgPath,
		SyslogPaths: []string{
			"/var/log/syslog*",
			"/var/log/messages*",
			"/var/log/kern.log*",
		},
		SetupAPIGlob: defaultSetupAPIGlob,
		Enrichment: Enrichment{
			Enabled: true,
			BaseURL: defaultEnrichBaseURL,
			Timeout: Duration(defaultEnrichTimeout),
		},
	}
}

// Validate applies defaults for unset fields and rejects unusable
// values.
func (c *Config) Validate() error {
	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if len(c.SyslogPaths) == 0 {
		return errNoSyslogPaths
	}

	if c.SetupAPIGlob == "" {
		c.SetupAPIGlob = defaultSetupAPIGlob
	}

	if c.Enrichment.BaseURL == "" {
		c.Enrichment.BaseURL = defaultEnrichBaseURL
	}

	if c.Enrichment.Timeout == 0 {
		c.Enrichment.Timeout = Duration(defaultEnrichTimeout)
	}

	if c.Enrichment.Timeout < 0 {
		return fmt.Errorf("%w: %s", errInvalidEnrichTimeout, c.Enrichment.Timeout)
	}

	return nil
}
