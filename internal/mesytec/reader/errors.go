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

package reader

import "fmt"

// ErrBufferNotAligned is returned when a buffer's length is not a multiple
// of four bytes — a usage error, fatal to the current call.
var ErrBufferNotAligned = fmt.Errorf("mesytec/reader: buffer length is not a multiple of 4")

// SinkAbortedError wraps a non-backpressure error returned by the sink.
// Per the error handling design, any such error aborts the current parse
// call; the caller is expected to call Reset and move on to the next
// buffer.
type SinkAbortedError struct {
	Err error
}

func (e *SinkAbortedError) Error() string {
	return fmt.Sprintf("mesytec/reader: sink aborted the parse call: %v", e.Err)
}

func (e *SinkAbortedError) Unwrap() error { return e.Err }
