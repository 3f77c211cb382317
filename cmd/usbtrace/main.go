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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/usbtrace/usbtrace/pkg/config"
	"github.com/usbtrace/usbtrace/pkg/logger"
	"github.com/usbtrace/usbtrace/pkg/models"
	"github.com/usbtrace/usbtrace/pkg/privcheck"
	"github.com/usbtrace/usbtrace/pkg/viewer"
)

// Dracula theme colors.
const (
	draculaCyan    = "#8BE9FD"
	draculaGreen   = "#50FA7B"
	draculaPink    = "#FF79C6"
	draculaRed     = "#FF5555"
	draculaComment = "#6272A4"
)

type styles struct {
	title, heading, count, fieldErr lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true),
		heading: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)).
			Bold(true),
		count: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		fieldErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
	}
}

func main() {
	configPath := flag.String("config", "", "path to JSON config file (optional)")
	jsonOut := flag.Bool("json", false, "emit devices as JSON instead of styled text")
	noEnrich := flag.Bool("no-enrich", false, "disable the online vendor/product name lookup")
	logLevel := flag.String("log-level", "", "log level override (trace, debug, info, warn, error)")
	flag.Parse()

	os.Exit(run(*configPath, *jsonOut, *noEnrich, *logLevel))
}

func run(configPath string, jsonOut, noEnrich bool, logLevel string) int {
	st := newStyles()

	if !privcheck.Elevated() {
		fmt.Fprintln(os.Stderr, st.fieldErr.Render("usbtrace must run elevated: use sudo on Linux or an administrator shell on Windows"))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if noEnrich {
		cfg.Enrichment.Enabled = false
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	v, err := viewer.NewViewer(ctx, cfg, log)
	if err != nil {
		if errors.Is(err, viewer.ErrUnsupportedPlatform) {
			fmt.Fprintln(os.Stderr, st.fieldErr.Render("usbtrace supports Linux and Windows only"))
			return 1
		}

		fmt.Fprintf(os.Stderr, "Failed to initialize scanner: %v\n", err)

		return 1
	}

	devices, err := v.GetUSBDevices(ctx)
	if err != nil {
		if errors.Is(err, viewer.ErrSourceUnavailable) {
			fmt.Fprintln(os.Stderr, st.fieldErr.Render(fmt.Sprintf("No USB history source could be read: %v", err)))
			return 1
		}

		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)

		return 1
	}

	if jsonOut {
		return printJSON(devices)
	}

	printStyled(devices, st)

	return 0
}

func printJSON(devices []models.Device) int {
	out, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode devices: %v\n", err)
		return 1
	}

	fmt.Println(string(out))

	return 0
}

func printStyled(devices []models.Device, st styles) {
	fmt.Println(st.title.Render("USB mass storage device history"))
	fmt.Println()

	if len(devices) == 0 {
		fmt.Println(st.count.Render("No USB mass storage devices found."))
		return
	}

	for i, dev := range devices {
		fmt.Println(st.heading.Render(deviceHeading(i, dev)))
		fmt.Print(dev.Details())
		fmt.Println()
	}

	noun := "devices"
	if len(devices) == 1 {
		noun = "device"
	}

	fmt.Println(st.count.Render(fmt.Sprintf("%d %s found.", len(devices), noun)))
}

func deviceHeading(i int, dev models.Device) string {
	c := dev.Canonical()

	label := strings.TrimSpace(c.FriendlyName)
	if label == "" {
		label = strings.TrimSpace(c.Product)
	}

	if label == "" {
		label = "(unnamed device)"
	}

	return fmt.Sprintf("Device %d: %s", i+1, label)
}
