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

package winreg

import (
	"context"
	"fmt"

	"github.com/usbtrace/usbtrace/pkg/logger"
	"github.com/usbtrace/usbtrace/pkg/models"
)

// Source is a stub on non-Windows platforms; the registry hives only
// exist on Windows.
type Source struct{}

func NewSource(_ string, _ logger.Logger) *Source {
	return &Source{}
}

func (*Source) Observations(_ context.Context) ([]models.Observation, error) {
	return nil, fmt.Errorf("%w: registry access requires Windows", ErrSourceUnavailable)
}
