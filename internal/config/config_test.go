// SPDX-License-Identifier: AGPL-3.0-or-later
// mesytec-mvlc-collator - Parse Mesytec MVLC readout streams into collated events
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package config_test

import (
	"testing"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/config"
	"github.com/stretchr/testify/assert"
)

func makeValidConfig() config.Config {
	return config.Config{
		LogLevel:    config.LogLevelInfo,
		CrateMapDir: "./testdata",
		Source:      config.SourceConfig{Host: "localhost", Port: 5575},
		Publish:     config.PublishConfig{Port: 9097},
		Run:         config.RunConfig{OutputDir: ".", MaxFileSizeMB: 1024},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.LogLevel = config.LogLevel("trace")
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidLogLevel)
}

func TestValidateRejectsEmptyCrateMapDir(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.CrateMapDir = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrCrateMapDirRequired)
}

func TestValidateRejectsBadSourcePort(t *testing.T) {
	t.Parallel()
	for _, port := range []int{0, -1, 65536} {
		cfg := makeValidConfig()
		cfg.Source.Port = port
		assert.ErrorIsf(t, cfg.Validate(), config.ErrInvalidSourcePort, "port %d", port)
	}
}

func TestValidateRejectsBadPublishPort(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Publish.Port = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidPublishPort)
}

func TestValidateRejectsNonPositiveMaxFileSize(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Run.MaxFileSizeMB = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidMaxFileSize)
}
