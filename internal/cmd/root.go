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

// Package cmd wires THE CORE mesytec packages into two runnable
// executables: "receive", which republishes decoded events to a message
// bus, and "receive-write", which writes them to rolling files on disk.
// Both share the same startup sequence (config, logging, crate map,
// tracing, metrics), following the structure of the teacher's own
// internal/cmd/root.go.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand builds the root command, with "receive" and "receive-write"
// as its subcommands. Neither subcommand does anything on its own; the
// root exists only to carry the version/commit annotations and group them.
func NewCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:     "mesytec-mvlc-collator",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	root.AddCommand(newReceiveCommand())
	root.AddCommand(newReceiveWriteCommand())

	return root
}
