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

//go:build !windows

// Package privcheck reports whether the process holds the elevated
// privilege needed to read the platform's USB history stores. The
// core scan never checks privilege itself; it fails identifiably when
// a read is denied.
package privcheck

import "golang.org/x/sys/unix"

// Elevated reports whether the process runs as root.
func Elevated() bool {
	return unix.Geteuid() == 0
}
