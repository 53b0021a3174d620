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

// Package rollfile implements the receiver-writer's file-size-bounded
// rolling output writer (spec.md §6, SPEC_FULL.md §4 "Rolling output file
// splitter"), supplemented from the original
// execs/mesytec_receiver_mfm_transmitter.cpp file splitter dropped by the
// distillation.
package rollfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer rolls to a new file named mesytec_run_<run>.dat[.<index>] once the
// current file reaches maxBytes.
type Writer struct {
	dir       string
	run       int
	maxBytes  int64
	index     int
	written   int64
	file      *os.File
}

// New returns a Writer rooted at dir for run, rolling every maxSizeMB
// megabytes. The first file is created lazily on the first Write call.
func New(dir string, run int, maxSizeMB int) *Writer {
	return &Writer{
		dir:      dir,
		run:      run,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		index:    -1, // no file open yet; next Write opens index 0
	}
}

// Write appends buf to the current output file, rolling to a new index
// first if the current file would exceed maxBytes.
func (w *Writer) Write(buf []byte) (int, error) {
	if w.file == nil || (w.written+int64(len(buf)) > w.maxBytes && w.written > 0) {
		if err := w.roll(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(buf)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("rollfile: write failed: %w", err)
	}
	return n, nil
}

// roll closes the current file, if any, and opens the next indexed file.
func (w *Writer) roll() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("rollfile: failed to close %s: %w", w.file.Name(), err)
		}
	}
	w.index++
	w.written = 0
	path := w.path()
	f, err := os.Create(path) //nolint:gosec // output path is operator-configured, not attacker-controlled
	if err != nil {
		return fmt.Errorf("rollfile: failed to create %s: %w", path, err)
	}
	w.file = f
	return nil
}

// path returns the current file's path: mesytec_run_<run>.dat for index 0,
// mesytec_run_<run>.dat.<index> thereafter.
func (w *Writer) path() string {
	name := fmt.Sprintf("mesytec_run_%d.dat", w.run)
	if w.index > 0 {
		name = fmt.Sprintf("%s.%d", name, w.index)
	}
	return filepath.Join(w.dir, name)
}

// Close closes the current output file, if any.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("rollfile: failed to close %s: %w", w.file.Name(), err)
	}
	return nil
}
