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

// Package config describes the receiver and receiver-writer executables'
// runtime configuration, loaded through configulator from CLI flags and
// environment variables.
package config

// Config stores the application configuration shared by the "receive" and
// "receive-write" subcommands.
type Config struct {
	LogLevel LogLevel `name:"log-level" description:"Minimum level of log messages to emit." default:"info"`

	// CrateMapDir is the directory holding the crate-map and
	// detector-correspondence text files (§6, §4.2). Reading and parsing
	// these files is a collaborator outside THE CORE; this config only
	// names the directory.
	CrateMapDir string `name:"config_dir" description:"Directory containing crate_map.csv and detector_correspondence.csv." default:"./config"`

	Source  SourceConfig  `name:"source"`
	Publish PublishConfig `name:"publish"`
	Replay  ReplayConfig  `name:"replay"`
	Run     RunConfig     `name:"run"`
	Metrics MetricsConfig `name:"metrics"`
}

// SourceConfig names the message-bus subscribe socket the receiver reads
// length-delimited raw buffers from. The socket client itself is a
// collaborator outside THE CORE (spec.md §1); this only carries its
// connection coordinates.
type SourceConfig struct {
	Host string `name:"mvme_host" description:"Host of the MVLC/MVME message-bus source." default:"localhost"`
	Port int    `name:"mvme_port" description:"Port of the MVLC/MVME message-bus source." default:"5575"`
}

// PublishConfig names the socket the receiver republishes MFM-wrapped
// events to.
type PublishConfig struct {
	Port int `name:"publish_port" description:"Port to republish decoded events on." default:"9097"`
}

// ReplayConfig configures the receiver-writer's listfile replay mode
// (SPEC_FULL.md §4, supplemented feature), an alternative to a live
// message-bus source for offline testing against a captured raw buffer
// file.
type ReplayConfig struct {
	File string `name:"replay" description:"Path to a captured raw buffer file to replay instead of connecting to a live source." default:""`
}

// RunConfig configures the receiver-writer's rolling output file naming
// (spec.md §6).
type RunConfig struct {
	Number        int    `name:"run_number" description:"Run number used in the output file name." default:"0"`
	OutputDir     string `name:"output_dir" description:"Directory rolling output files are written to." default:"."`
	MaxFileSizeMB int    `name:"max_file_size_mb" description:"Per-file size limit in megabytes before rolling to the next index." default:"1024"`
}

// MetricsConfig configures the Prometheus metrics HTTP server and the
// optional OpenTelemetry tracer.
type MetricsConfig struct {
	Enabled      bool   `name:"enabled" description:"Enable the Prometheus metrics HTTP server." default:"true"`
	Bind         string `name:"bind" description:"Bind address for the metrics HTTP server." default:"0.0.0.0"`
	Port         int    `name:"port" description:"Port for the metrics HTTP server." default:"9098"`
	OTLPEndpoint string `name:"otlp_endpoint" description:"OTLP gRPC collector endpoint. Empty disables tracing." default:""`
}
