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

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrCrateMapDirRequired indicates that no crate-map directory was configured.
	ErrCrateMapDirRequired = errors.New("config_dir is required")
	// ErrInvalidSourcePort indicates that the provided source port is not valid.
	ErrInvalidSourcePort = errors.New("invalid mvme_port provided")
	// ErrInvalidPublishPort indicates that the provided publish port is not valid.
	ErrInvalidPublishPort = errors.New("invalid publish_port provided")
	// ErrInvalidMaxFileSize indicates a non-positive rolling file size limit.
	ErrInvalidMaxFileSize = errors.New("run.max_file_size_mb must be positive")
)

// Validate checks the configuration for the invariants the receiver and
// receiver-writer executables rely on before starting any collaborator.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}
	if c.CrateMapDir == "" {
		return ErrCrateMapDirRequired
	}
	if c.Source.Port <= 0 || c.Source.Port > 65535 {
		return ErrInvalidSourcePort
	}
	if c.Publish.Port <= 0 || c.Publish.Port > 65535 {
		return ErrInvalidPublishPort
	}
	if c.Run.MaxFileSizeMB <= 0 {
		return ErrInvalidMaxFileSize
	}
	return nil
}
